package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/lightldap/internal/directory/domain"
	directoryUseCase "github.com/allisson/lightldap/internal/directory/usecase"
)

// CreateUserParams carries the create-user flags.
type CreateUserParams struct {
	UserID      string
	Email       string
	DisplayName string
	FirstName   string
	LastName    string
	Password    string
	// Groups lists group display names the user is added to.
	Groups []string
}

// RunCreateUser creates a user, registers its password when one is given and adds it to
// the named groups.
//
// Requirements: Database must be migrated and accessible.
func RunCreateUser(
	ctx context.Context,
	backend directoryUseCase.BackendHandler,
	passwords directoryUseCase.PasswordRegistrar,
	logger *slog.Logger,
	params CreateUserParams,
	format string,
	io IOTuple,
) error {
	logger.Info("creating user", slog.String("user_id", params.UserID))

	groups := make([]*domain.Group, 0, len(params.Groups))
	for _, name := range params.Groups {
		group, err := findGroupByName(ctx, backend, name)
		if err != nil {
			return err
		}
		groups = append(groups, group)
	}

	user, err := backend.CreateUser(ctx, &domain.CreateUserInput{
		ID:          params.UserID,
		Email:       params.Email,
		DisplayName: params.DisplayName,
		FirstName:   params.FirstName,
		LastName:    params.LastName,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if params.Password != "" {
		if err := passwords.RegisterPassword(ctx, user.ID, params.Password); err != nil {
			return fmt.Errorf("user created but failed to set password: %w", err)
		}
	}

	for _, group := range groups {
		if err := backend.AddUserToGroup(ctx, user.ID, group.ID); err != nil {
			return fmt.Errorf("failed to add user to group %q: %w", group.DisplayName, err)
		}
	}

	if format == "json" {
		if err := writeJSON(io.Writer, map[string]any{
			"user_id":      user.ID,
			"email":        user.Email,
			"display_name": user.DisplayName,
			"uuid":         user.UUID.String(),
			"groups":       params.Groups,
			"has_password": params.Password != "",
		}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintln(io.Writer, "User created successfully")
		_, _ = fmt.Fprintf(io.Writer, "User ID: %s\n", user.ID)
		_, _ = fmt.Fprintf(io.Writer, "UUID: %s\n", user.UUID)
		if params.Password == "" {
			_, _ = fmt.Fprintln(io.Writer, "No password set, use set-password to allow logins")
		}
	}

	logger.Info("user created",
		slog.String("user_id", user.ID),
		slog.Int("groups", len(groups)),
	)
	return nil
}

// findGroupByName resolves a group display name, which is unique, into the group.
func findGroupByName(ctx context.Context, backend directoryUseCase.BackendHandler, name string) (*domain.Group, error) {
	groups, err := backend.ListGroups(ctx, domain.Eq(domain.AttrDisplayName, name))
	if err != nil {
		return nil, fmt.Errorf("failed to look up group %q: %w", name, err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("group %q: %w", name, domain.ErrGroupNotFound)
	}
	return groups[0], nil
}
