// Package mail describes outbound notifications. Delivery happens outside the process:
// the only Mailer shipped here records messages in the structured log.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/lightldap/internal/validation"
)

// Message is a plain text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Validate checks the message envelope.
func (m *Message) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.From, validation.Required, customValidation.NotBlank),
		validation.Field(&m.To, validation.Required, customValidation.Email),
		validation.Field(&m.Subject, validation.Required, customValidation.NotBlank),
	)
}

// Mailer hands a message over to a delivery system.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// RelayConfig names the SMTP relay a delivery system would use.
type RelayConfig struct {
	Host string
	Port int
	User string
}

// LogMailer logs messages instead of sending them.
type LogMailer struct {
	relay  RelayConfig
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(relay RelayConfig, logger *slog.Logger) *LogMailer {
	return &LogMailer{relay: relay, logger: logger}
}

// Send validates msg and logs it with the relay it is addressed to. The body is not logged.
func (l *LogMailer) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return customValidation.WrapValidationError(err)
	}

	relay := "unset"
	if l.relay.Host != "" {
		relay = fmt.Sprintf("%s:%d", l.relay.Host, l.relay.Port)
	}
	l.logger.InfoContext(ctx, "mail queued for external delivery",
		slog.String("relay", relay),
		slog.String("relay_user", l.relay.User),
		slog.String("from", msg.From),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("body_size", len(msg.Body)),
	)
	return nil
}
