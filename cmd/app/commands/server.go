package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/lightldap/internal/app"
	"github.com/allisson/lightldap/internal/config"
	directoryUseCase "github.com/allisson/lightldap/internal/directory/usecase"
)

// RunServer starts the LDAP server, the administrative HTTP API, the metrics server and the
// token cleanup scheduler.
// Migrations and the administrator bootstrap run first; a failure there is fatal, and a
// signal received during them aborts the startup. Blocks until SIGINT/SIGTERM or until one
// of the servers fails, then stops everything within DBConnMaxLifetime.
func RunServer(ctx context.Context, version string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	if err := startupInterrupted(ctx); err != nil {
		return err
	}
	if err := RunMigrations(logger, cfg.DBDriver, cfg.DBConnectionString); err != nil {
		return err
	}
	if err := startupInterrupted(ctx); err != nil {
		return err
	}

	bootstrap, err := container.BootstrapUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize bootstrap: %w", err)
	}
	if err := bootstrap.Run(ctx, &directoryUseCase.BootstrapInput{
		AdminUserID:   cfg.AdminUserID,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	}); err != nil {
		return fmt.Errorf("failed to bootstrap directory: %w", err)
	}

	httpServer, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	ldapServer, err := container.LDAPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize LDAP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	cleanupScheduler, err := container.Scheduler()
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Start(gctx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := ldapServer.Start(gctx); err != nil {
			return fmt.Errorf("ldap server error: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(gctx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return cleanupScheduler.Start(gctx)
	})

	// Stop the servers once a signal arrives or any of them fails.
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("shutdown signal received")
		} else {
			logger.Error("server error, initiating shutdown")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		var shutdownErrors []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}
		if err := ldapServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("ldap server shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

func startupInterrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("startup interrupted: %w", err)
	}
	return nil
}
