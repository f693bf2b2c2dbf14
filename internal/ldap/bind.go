package ldap

import (
	"context"
	"errors"
	"log/slog"

	ber "github.com/go-asn1-ber/asn1-ber"

	apperrors "github.com/allisson/lightldap/internal/errors"
)

// Context tags of the AuthenticationChoice.
const (
	authSimple ber.Tag = 0
	authSASL   ber.Tag = 3
)

// bind authenticates the connection. A failed or anonymous bind leaves it Unbound.
func (c *conn) bind(ctx context.Context, op *ber.Packet) error {
	if len(op.Children) != 3 {
		return newError(ResultProtocolError, "malformed bind request")
	}
	if version, ok := packetInt(op.Children[0]); !ok || version != 3 {
		return newError(ResultProtocolError, "only LDAPv3 is supported")
	}

	if err := c.session.Reset(); err != nil {
		return newError(ResultOperationsError, "session closed")
	}

	name := packetString(op.Children[1])
	auth := op.Children[2]
	if auth.ClassType != ber.ClassContext || auth.Tag != authSimple {
		if auth.Tag == authSASL {
			return newError(ResultAuthMethodNotSupported, "SASL authentication is not supported")
		}
		return newError(ResultAuthMethodNotSupported, "unsupported authentication method")
	}
	password := packetString(auth)

	if password == "" {
		if name == "" {
			// Anonymous bind.
			return nil
		}
		return newError(ResultUnwillingToPerform, "unauthenticated bind is not allowed")
	}

	userID, ok := c.server.tree.bindUserID(name)
	if !ok {
		c.logger.Debug("bind rejected: name outside the directory tree", slog.String("name", name))
		return newError(ResultInvalidCredentials, "")
	}

	if err := c.server.passwords.VerifyPassword(ctx, userID, password); err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			c.logger.Info("bind failed", slog.String("user_id", userID))
			return newError(ResultInvalidCredentials, "")
		}
		return err
	}

	principal, err := c.server.principal(ctx, userID)
	if err != nil {
		return err
	}
	if err := c.session.Bind(principal); err != nil {
		return newError(ResultOperationsError, "session closed")
	}

	c.logger.Info("bind succeeded", slog.String("user_id", userID))
	return nil
}
