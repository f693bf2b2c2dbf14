package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	authService "github.com/allisson/lightldap/internal/auth/service"
)

// RunGenServerKey generates the server identity key used by the password protocol and
// prints its public half. An existing key is kept unless overwrite is set: replacing the key
// invalidates every stored password.
func RunGenServerKey(
	ctx context.Context,
	keyService authService.ServerKeyService,
	logger *slog.Logger,
	writer io.Writer,
	overwrite bool,
	format string,
) error {
	logger.Info("generating server key", slog.Bool("overwrite", overwrite))

	key, err := keyService.Generate(ctx, overwrite)
	if err != nil {
		return fmt.Errorf("failed to generate server key: %w", err)
	}

	publicKey := base64.StdEncoding.EncodeToString(key.PublicKey())
	if format == "json" {
		if err := writeJSON(writer, map[string]any{"public_key": publicKey}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintln(writer, "Server key generated successfully")
		_, _ = fmt.Fprintf(writer, "Public key: %s\n", publicKey)
		if overwrite {
			_, _ = fmt.Fprintln(writer, "WARNING: passwords registered with the previous key must be set again")
		}
	}

	logger.Info("server key generated")
	return nil
}
