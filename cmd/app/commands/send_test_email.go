package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/lightldap/internal/mail"
)

const testEmailSubject = "LLDAP test email"

// RunSendTestEmail hands a test message to the mailer to check the outbound mail settings.
// The server has no SMTP transport, so the message is only written to the log.
func RunSendTestEmail(
	ctx context.Context,
	mailer mail.Mailer,
	logger *slog.Logger,
	writer io.Writer,
	from string,
	to string,
) error {
	logger.Info("sending test email", slog.String("to", to))

	err := mailer.Send(ctx, &mail.Message{
		From:    from,
		To:      to,
		Subject: testEmailSubject,
		Body:    "The test email was handed over successfully.",
	})
	if err != nil {
		return fmt.Errorf("failed to send test email: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Test email for %s written to the log, SMTP delivery is not enabled\n", to)
	return nil
}
