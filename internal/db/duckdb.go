package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2" // registers "duckdb"
)

// duckDBSchema mirrors migrations/001_security_logs.sql in DuckDB types.
const duckDBSchema = `
CREATE SEQUENCE IF NOT EXISTS security_logs_id_seq;
CREATE TABLE IF NOT EXISTS security_logs (
    id               BIGINT PRIMARY KEY DEFAULT nextval('security_logs_id_seq'),
    timestamp        TIMESTAMP NOT NULL,
    source_ip        VARCHAR NOT NULL,
    destination_ip   VARCHAR NOT NULL,
    event_type       VARCHAR NOT NULL,
    severity         VARCHAR NOT NULL,
    protocol         VARCHAR,
    source_port      INTEGER,
    destination_port INTEGER,
    user_id          VARCHAR,
    action           VARCHAR,
    status           VARCHAR,
    bytes_sent       BIGINT,
    bytes_received   BIGINT,
    session_duration DOUBLE,
    description      VARCHAR,
    raw_log          VARCHAR
);`

// OpenDuckDB opens the DuckDB database at path; an empty path is in-memory.
func OpenDuckDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// EnsureDuckDBSchema creates the security_logs table when missing.
func EnsureDuckDBSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, duckDBSchema); err != nil {
		return fmt.Errorf("create duckdb schema: %w", err)
	}
	return nil
}
