package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/skfed/internal/config"
)

// Open creates the store selected by cfg.Driver.
// Supported drivers: "sqlite" (default), "postgres".
func Open(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return NewSQLiteStorage(cfg.DatabasePath)
	case config.DriverPostgres:
		return NewPostgresStorage(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: sqlite, postgres)", cfg.Driver)
	}
}
