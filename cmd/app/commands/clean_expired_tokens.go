package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/lightldap/internal/scheduler"
)

// RunCleanExpiredTokens deletes the expired refresh tokens once, the same way a scheduled
// cleanup does.
//
// Requirements: Database must be migrated and accessible.
func RunCleanExpiredTokens(
	ctx context.Context,
	cleaner scheduler.TokenCleaner,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	logger.Info("cleaning expired tokens")

	count, err := cleaner.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, map[string]any{"count": count}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(writer, "Successfully deleted %d expired token(s)\n", count)
	}

	logger.Info("cleanup completed", slog.Int64("count", count))
	return nil
}
