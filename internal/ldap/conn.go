package ldap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/allisson/lightldap/internal/metrics"
)

const (
	writeTimeout = 30 * time.Second
	// protocolName labels the metrics of this server.
	protocolName = "ldap"
)

// conn serves the requests of one client connection sequentially.
type conn struct {
	server  *Server
	netConn net.Conn
	session *Session
	logger  *slog.Logger
}

func (s *Server) newConn(netConn net.Conn) *conn {
	return &conn{
		server:  s,
		netConn: netConn,
		session: NewSession(),
		logger:  s.logger.With(slog.String("client", netConn.RemoteAddr().String())),
	}
}

// serve reads requests until the client unbinds, disconnects or sends garbage.
func (c *conn) serve(ctx context.Context) {
	start := time.Now()
	c.logger.Debug("connection established")
	c.server.connections.ConnectionOpened(ctx, protocolName)
	defer func() {
		c.session.Unbind()
		_ = c.netConn.Close()
		c.server.connections.ConnectionClosed(ctx, protocolName, time.Since(start))
		c.logger.Debug("connection closed", slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	}()

	for {
		msg, err := readMessage(c.netConn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			c.logger.Warn("protocol error", slog.Any("error", err))
			_ = c.write(noticeOfDisconnection(Result{Code: ResultProtocolError, Message: "malformed message"}))
			return
		}
		if !c.handle(ctx, msg) {
			return
		}
	}
}

// handle serves one request and reports whether the connection stays open.
func (c *conn) handle(ctx context.Context, msg *message) bool {
	start := time.Now()
	operation := operationName(msg.op.Tag)

	var (
		code ResultCode
		err  error
	)
	switch msg.op.Tag {
	case tagBindRequest:
		code, err = c.respond(msg.id, tagBindResponse, c.bind(ctx, msg.op))
	case tagUnbindRequest:
		c.session.Unbind()
		c.record(ctx, operation, ResultSuccess, time.Since(start))
		return false
	case tagSearchRequest:
		code, err = c.handleSearch(ctx, msg)
	case tagModifyRequest:
		code, err = c.respond(msg.id, tagModifyResponse, c.modify(ctx, msg.op))
	case tagExtendedRequest:
		code, err = c.handleExtended(ctx, msg)
	case tagAbandonRequest:
		// Requests are served sequentially, so there is never anything to abandon.
		return true
	case tagAddRequest, tagDelRequest, tagModDNRequest, tagCompareRequest:
		code, err = c.respond(msg.id, msg.op.Tag+1,
			newError(ResultUnwillingToPerform, "%s is not supported", operation))
	default:
		c.logger.Warn("unknown operation", slog.Int("tag", int(msg.op.Tag)))
		c.record(ctx, operation, ResultProtocolError, time.Since(start))
		_ = c.write(noticeOfDisconnection(Result{Code: ResultProtocolError, Message: "unknown operation"}))
		return false
	}

	c.record(ctx, operation, code, time.Since(start))
	if err != nil {
		c.logger.Warn("write error", slog.Any("error", err))
		return false
	}
	return true
}

// respond maps opErr to a result and writes it with the given response tag.
func (c *conn) respond(id int64, tag ber.Tag, opErr error, extra ...*ber.Packet) (ResultCode, error) {
	res := resultFor(opErr)
	if res.Code == ResultOperationsError || res.Code == ResultOther {
		c.logger.Error("operation failed", slog.Int64("message_id", id), slog.Any("error", opErr))
	}
	return res.Code, c.write(envelope(id, newResultPacket(tag, res, extra...)))
}

func (c *conn) write(packet *ber.Packet) error {
	if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := c.netConn.Write(packet.Bytes())
	return err
}

func (c *conn) record(ctx context.Context, operation string, code ResultCode, duration time.Duration) {
	status := metrics.StatusSuccess
	if code != ResultSuccess {
		status = metrics.StatusError
	}
	c.server.metrics.RecordOperation(ctx, protocolName, operation, status)
	c.server.metrics.RecordDuration(ctx, protocolName, operation, duration, status)
}
