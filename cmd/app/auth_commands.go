package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/lightldap/cmd/app/commands"
	"github.com/allisson/lightldap/internal/app"
	"github.com/allisson/lightldap/internal/config"
)

func getAuthCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "clean-expired-tokens",
			Usage: "Delete expired refresh tokens",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				sessionUseCase, err := container.SessionUseCase()
				if err != nil {
					return err
				}

				return commands.RunCleanExpiredTokens(
					ctx,
					sessionUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "create-user",
			Usage: "Create a directory user",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "User id (lowercase letters, digits and ._@-)",
				},
				&cli.StringFlag{
					Name:     "email",
					Aliases:  []string{"e"},
					Required: true,
					Usage:    "Unique email address",
				},
				&cli.StringFlag{
					Name:  "display-name",
					Usage: "Display name",
				},
				&cli.StringFlag{
					Name:  "first-name",
					Usage: "First name",
				},
				&cli.StringFlag{
					Name:  "last-name",
					Usage: "Last name",
				},
				&cli.StringFlag{
					Name:    "password",
					Aliases: []string{"p"},
					Usage:   "Initial password (omit to create the user without one)",
				},
				&cli.StringSliceFlag{
					Name:    "group",
					Aliases: []string{"g"},
					Usage:   "Group display name to add the user to (repeatable)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				backend, err := container.BackendHandler()
				if err != nil {
					return err
				}
				passwordUseCase, err := container.PasswordUseCase()
				if err != nil {
					return err
				}

				return commands.RunCreateUser(
					ctx,
					backend,
					passwordUseCase,
					container.Logger(),
					commands.CreateUserParams{
						UserID:      cmd.String("id"),
						Email:       cmd.String("email"),
						DisplayName: cmd.String("display-name"),
						FirstName:   cmd.String("first-name"),
						LastName:    cmd.String("last-name"),
						Password:    cmd.String("password"),
						Groups:      cmd.StringSlice("group"),
					},
					cmd.String("format"),
					commands.DefaultIO(),
				)
			},
		},
		{
			Name:  "set-password",
			Usage: "Set the password of an existing user",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "User id",
				},
				&cli.StringFlag{
					Name:    "password",
					Aliases: []string{"p"},
					Usage:   "New password (omit to read it from stdin)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				passwordUseCase, err := container.PasswordUseCase()
				if err != nil {
					return err
				}

				return commands.RunSetPassword(
					ctx,
					passwordUseCase,
					container.Logger(),
					cmd.String("id"),
					cmd.String("password"),
					commands.DefaultIO(),
				)
			},
		},
	}
}
