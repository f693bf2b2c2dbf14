// Package ldap implements the LDAPv3 front-end of the directory: a TCP server that decodes
// BER-encoded protocol messages, tracks the bind state of every connection and serves bind,
// search, modify and a few extended operations from the directory BackendHandler.
package ldap

import (
	"errors"
	"fmt"
	"io"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// Application tags of the protocol operations.
const (
	tagBindRequest      ber.Tag = 0
	tagBindResponse     ber.Tag = 1
	tagUnbindRequest    ber.Tag = 2
	tagSearchRequest    ber.Tag = 3
	tagSearchEntry      ber.Tag = 4
	tagSearchDone       ber.Tag = 5
	tagModifyRequest    ber.Tag = 6
	tagModifyResponse   ber.Tag = 7
	tagAddRequest       ber.Tag = 8
	tagAddResponse      ber.Tag = 9
	tagDelRequest       ber.Tag = 10
	tagDelResponse      ber.Tag = 11
	tagModDNRequest     ber.Tag = 12
	tagModDNResponse    ber.Tag = 13
	tagCompareRequest   ber.Tag = 14
	tagCompareResponse  ber.Tag = 15
	tagAbandonRequest   ber.Tag = 16
	tagExtendedRequest  ber.Tag = 23
	tagExtendedResponse ber.Tag = 24
)

// Context tags of the extended operation fields.
const (
	tagExtendedRequestName   ber.Tag = 0
	tagExtendedRequestValue  ber.Tag = 1
	tagExtendedResponseName  ber.Tag = 10
	tagExtendedResponseValue ber.Tag = 11
)

// noticeOfDisconnectionOID is sent unsolicited before the server drops a connection.
const noticeOfDisconnectionOID = "1.3.6.1.4.1.1466.20036"

// maxMessageSize bounds a single request.
const maxMessageSize = 4 * 1024 * 1024

var errMalformedMessage = errors.New("ldap: malformed message")

func init() {
	ber.MaxPacketLengthBytes = maxMessageSize
}

// message is one decoded LDAPMessage envelope.
type message struct {
	id int64
	op *ber.Packet
}

// readMessage reads the next envelope from r.
func readMessage(r io.Reader) (*message, error) {
	packet, err := ber.ReadPacket(r)
	if err != nil {
		return nil, err
	}
	if packet.ClassType != ber.ClassUniversal || packet.Tag != ber.TagSequence || len(packet.Children) < 2 {
		return nil, errMalformedMessage
	}

	id, ok := packet.Children[0].Value.(int64)
	if !ok || id < 0 {
		return nil, fmt.Errorf("%w: invalid message id", errMalformedMessage)
	}

	op := packet.Children[1]
	if op.ClassType != ber.ClassApplication {
		return nil, fmt.Errorf("%w: operation is not an application tag", errMalformedMessage)
	}
	return &message{id: id, op: op}, nil
}

// envelope wraps a complete protocol operation into an LDAPMessage.
func envelope(id int64, op *ber.Packet) *ber.Packet {
	packet := ber.NewSequence("LDAP Message")
	packet.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, id, "Message ID"))
	packet.AppendChild(op)
	return packet
}

// newResultPacket builds an LDAPResult-shaped response with the given application tag.
// extra children (referral, extended response fields) are appended after the message.
func newResultPacket(tag ber.Tag, res Result, extra ...*ber.Packet) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, tag, nil, "Response")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(res.Code), "resultCode"))
	op.AppendChild(octetString(res.MatchedDN, "matchedDN"))
	op.AppendChild(octetString(res.Message, "diagnosticMessage"))
	for _, child := range extra {
		op.AppendChild(child)
	}
	return op
}

// noticeOfDisconnection is the unsolicited notification sent with message id 0.
func noticeOfDisconnection(res Result) *ber.Packet {
	name := ber.NewString(ber.ClassContext, ber.TypePrimitive, tagExtendedResponseName, noticeOfDisconnectionOID, "responseName")
	return envelope(0, newResultPacket(tagExtendedResponse, res, name))
}

func octetString(value, description string) *ber.Packet {
	return ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, value, description)
}

// packetString returns the raw content of a primitive packet as a string. It works for
// universal and context-specific tags alike.
func packetString(p *ber.Packet) string {
	if p == nil || p.Data == nil {
		return ""
	}
	return string(p.Data.Bytes())
}

// packetInt returns the integer or enumerated value of a primitive packet.
func packetInt(p *ber.Packet) (int64, bool) {
	if p == nil {
		return 0, false
	}
	v, ok := p.Value.(int64)
	return v, ok
}

// operationName labels an operation tag in logs and metrics.
func operationName(tag ber.Tag) string {
	switch tag {
	case tagBindRequest:
		return "bind"
	case tagUnbindRequest:
		return "unbind"
	case tagSearchRequest:
		return "search"
	case tagModifyRequest:
		return "modify"
	case tagAddRequest:
		return "add"
	case tagDelRequest:
		return "delete"
	case tagModDNRequest:
		return "modify_dn"
	case tagCompareRequest:
		return "compare"
	case tagAbandonRequest:
		return "abandon"
	case tagExtendedRequest:
		return "extended"
	default:
		return "unknown"
	}
}
