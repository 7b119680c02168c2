package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"sec-agent/internal/config"
	"sec-agent/internal/db"
)

// Database holds the pools the application runs on. For SQLite, writes go
// through a single-connection pool and queries through a read-only pool; a
// DuckDB file uses one pool for both.
type Database struct {
	Driver  string
	WriteDB *sql.DB
	ReadDB  *sql.DB
}

// OpenDatabase opens the configured store, applies its schema and, when
// enabled, seeds sample data.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Database, error) {
	var d Database
	d.Driver = cfg.Store.Driver

	switch cfg.Store.Driver {
	case config.DriverDuckDB:
		duck, err := db.OpenDuckDB(ctx, cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureDuckDBSchema(ctx, duck); err != nil {
			_ = duck.Close()
			return nil, err
		}
		d.WriteDB, d.ReadDB = duck, duck
	default:
		writeDB, readDB, err := db.OpenSQLitePair(cfg.Store.Path, 0)
		if err != nil {
			return nil, err
		}
		d.WriteDB, d.ReadDB = writeDB, readDB
		if err := db.RunMigrations(ctx, writeDB); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.Store.Path, err)
		}
	}

	if cfg.Store.SeedSample {
		if _, err := db.Seed(ctx, d.WriteDB, db.SeedOptions{Table: cfg.Store.Table}, logger); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("seed sample data: %w", err)
		}
	}
	logger.Info("database ready", "driver", d.Driver, "path", cfg.Store.Path)
	return &d, nil
}

// Close closes every distinct pool.
func (d *Database) Close() error {
	if d.ReadDB == d.WriteDB {
		return d.WriteDB.Close()
	}
	return errors.Join(d.ReadDB.Close(), d.WriteDB.Close())
}
