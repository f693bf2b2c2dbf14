package commands

import (
	"context"
	"fmt"
	"log/slog"

	directoryUseCase "github.com/allisson/lightldap/internal/directory/usecase"
)

// RunSetPassword registers a new password for an existing user. The password is read from
// the tuple reader when not given.
//
// Requirements: Database must be migrated and accessible.
func RunSetPassword(
	ctx context.Context,
	passwords directoryUseCase.PasswordRegistrar,
	logger *slog.Logger,
	userID string,
	password string,
	io IOTuple,
) error {
	password, err := promptPassword(io, password)
	if err != nil {
		return err
	}

	if err := passwords.RegisterPassword(ctx, userID, password); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}

	_, _ = fmt.Fprintf(io.Writer, "Password set for %s\n", userID)
	logger.Info("password set", slog.String("user_id", userID))
	return nil
}
