package ldap

import (
	"context"
	"errors"
	"log/slog"

	ber "github.com/go-asn1-ber/asn1-ber"

	apperrors "github.com/allisson/lightldap/internal/errors"
)

// Context tags of the PasswdModifyRequestValue (RFC 3062).
const (
	passwdUserIdentity ber.Tag = 0
	passwdOldPassword  ber.Tag = 1
	passwdNewPassword  ber.Tag = 2
)

type passwordModifyRequest struct {
	userIdentity string
	oldPassword  string
	newPassword  string
}

func parseExtendedRequest(op *ber.Packet) (string, []byte, error) {
	if len(op.Children) < 1 || op.Children[0].Tag != tagExtendedRequestName {
		return "", nil, newError(ResultProtocolError, "malformed extended request")
	}
	oid := packetString(op.Children[0])
	var value []byte
	if len(op.Children) > 1 && op.Children[1].Tag == tagExtendedRequestValue {
		value = op.Children[1].Data.Bytes()
	}
	return oid, value, nil
}

func parsePasswordModify(value []byte) (*passwordModifyRequest, error) {
	req := &passwordModifyRequest{}
	if len(value) == 0 {
		return req, nil
	}
	packet, err := ber.DecodePacketErr(value)
	if err != nil {
		return nil, newError(ResultProtocolError, "malformed password modify request")
	}
	for _, child := range packet.Children {
		switch child.Tag {
		case passwdUserIdentity:
			req.userIdentity = packetString(child)
		case passwdOldPassword:
			req.oldPassword = packetString(child)
		case passwdNewPassword:
			req.newPassword = packetString(child)
		}
	}
	return req, nil
}

// handleExtended dispatches on the request OID.
func (c *conn) handleExtended(ctx context.Context, msg *message) (ResultCode, error) {
	oid, value, err := parseExtendedRequest(msg.op)
	if err != nil {
		return c.respond(msg.id, tagExtendedResponse, err)
	}

	switch oid {
	case WhoAmIOID:
		authzID := ber.NewString(ber.ClassContext, ber.TypePrimitive, tagExtendedResponseValue, c.whoAmI(), "authzId")
		return c.respond(msg.id, tagExtendedResponse, nil, authzID)
	case PasswordModifyOID:
		return c.respond(msg.id, tagExtendedResponse, c.passwordModify(ctx, value))
	default:
		return c.respond(msg.id, tagExtendedResponse,
			newError(ResultProtocolError, "unsupported extended operation %s", oid))
	}
}

// whoAmI returns the authorization identity: "dn:<user DN>", or empty when anonymous.
func (c *conn) whoAmI() string {
	principal, err := c.session.Principal()
	if err != nil {
		return ""
	}
	return "dn:" + c.server.tree.userDN(principal.UserID)
}

// passwordModify changes the password of the bound user or, for admins and password
// managers, of the user named in the request. Generated passwords are not supported.
func (c *conn) passwordModify(ctx context.Context, value []byte) error {
	principal, err := c.session.Principal()
	if err != nil {
		return newError(ResultInsufficientAccessRights, "bind required")
	}

	req, err := parsePasswordModify(value)
	if err != nil {
		return err
	}
	if req.newPassword == "" {
		return newError(ResultUnwillingToPerform, "a new password is required")
	}

	target := principal.UserID
	if req.userIdentity != "" {
		id, ok := c.server.tree.bindUserID(req.userIdentity)
		if !ok {
			return newError(ResultNoSuchObject, "no such user %q", req.userIdentity)
		}
		target = id
	}

	if err := c.mayResetPassword(ctx, principal, target); err != nil {
		if errors.Is(err, apperrors.ErrForbidden) {
			c.logger.Info("password change denied",
				slog.String("user_id", principal.UserID),
				slog.String("target", target))
		}
		return err
	}

	if req.oldPassword != "" && target == principal.UserID {
		if err := c.server.passwords.VerifyPassword(ctx, target, req.oldPassword); err != nil {
			return err
		}
	}

	if err := c.server.passwords.RegisterPassword(ctx, target, req.newPassword); err != nil {
		return err
	}
	c.logger.Info("password changed", slog.String("user_id", principal.UserID), slog.String("target", target))
	return nil
}
