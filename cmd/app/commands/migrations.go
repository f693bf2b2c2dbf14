package commands

import (
	"fmt"
	"log/slog"

	"github.com/allisson/lightldap/internal/database"
)

// RunMigrations applies the embedded migrations of the configured driver.
// Returns nil if there is nothing to apply.
func RunMigrations(logger *slog.Logger, driver, connectionString string) error {
	logger.Info("running database migrations", slog.String("driver", driver))

	dialect, err := database.NewDialect(driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m, err := database.NewMigrate(dialect, connectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := database.MigrateUp(m); err != nil {
		return err
	}

	logger.Info("migrations completed successfully")
	return nil
}
