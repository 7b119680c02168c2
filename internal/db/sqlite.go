// Package db opens the security log database, applies its schema and seeds
// sample data.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
)

// Pool modes for OpenSQLite.
const (
	ModeWrite = "write"
	ModeRead  = "read"
)

const (
	busyTimeoutMillis = "5000"
	defaultReadConns  = 4
	pingTimeout       = 5 * time.Second
)

// OpenSQLite opens a pool on the SQLite file at path.
//
// A write pool holds a single connection and begins transactions with
// IMMEDIATE locking. A read pool holds maxOpen connections (0 means 4).
// Both use WAL journaling and a 5s busy timeout.
func OpenSQLite(path, mode string, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", sqliteDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	conns := 1
	if mode == ModeRead {
		conns = maxOpen
		if conns <= 0 {
			conns = defaultReadConns
		}
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

// OpenSQLitePair opens a write pool for migrations and seeding plus a read
// pool for pipeline queries on the same file.
func OpenSQLitePair(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		return nil, nil, err
	}
	readDB, err = OpenSQLite(path, ModeRead, readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}
	return writeDB, readDB, nil
}

func sqliteDSN(path, mode string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", busyTimeoutMillis)
	params.Set("_synchronous", "NORMAL")
	params.Set("_foreign_keys", "on")
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	} else {
		// Pipeline queries never write; SQLite enforces it per connection.
		params.Set("_query_only", "true")
	}
	return path + "?" + params.Encode()
}
