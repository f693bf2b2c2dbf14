package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/lightldap/cmd/app/commands"
	"github.com/allisson/lightldap/internal/app"
	"github.com/allisson/lightldap/internal/config"
	"github.com/allisson/lightldap/internal/mail"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the LDAP server, the HTTP API and the token cleanup scheduler",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "gen-server-key",
			Usage: "Generate the server identity key used by password logins",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "overwrite",
					Value: false,
					Usage: "Replace an existing key (every password must be set again)",
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

				return commands.RunGenServerKey(
					ctx,
					container.ServerKeyService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Bool("overwrite"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "send-test-email",
			Usage: "Log a test email with the configured SMTP settings (nothing is delivered)",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "to",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Recipient address",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				logger := container.Logger()
				mailer := mail.NewLogMailer(mail.RelayConfig{
					Host: cfg.SMTPHost,
					Port: cfg.SMTPPort,
					User: cfg.SMTPUser,
				}, logger)

				return commands.RunSendTestEmail(
					ctx,
					mailer,
					logger,
					commands.DefaultIO().Writer,
					cfg.SMTPFrom,
					cmd.String("to"),
				)
			},
		},
	}
}
