// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/aristath/riskgovernor/internal/config"
	"github.com/aristath/riskgovernor/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the governor database and applies the schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	// Ledger profile: the decision/audit trail must survive power loss
	db, err := database.New(database.Config{
		Path:    cfg.DBPath,
		Profile: database.ProfileLedger,
		Name:    "governor",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize governor database: %w", err)
	}
	container.DB = db
	container.addCloser(db.Close)

	// Migration is idempotent and runs on every start
	if err := db.Migrate(); err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("failed to migrate governor database: %w", err)
	}

	log.Info().
		Str("path", db.Path()).
		Str("profile", string(db.Profile())).
		Msg("Governor database initialized")

	return container, nil
}
