package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a write/read pool pair on a file in t.TempDir(),
// applies the migrations and registers cleanup.
func OpenTestSQLite(t *testing.T) (writeDB, readDB *sql.DB) {
	t.Helper()

	writeDB, readDB, err := OpenSQLitePair(filepath.Join(t.TempDir(), "security_logs.db"), 4)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	})

	if err := RunMigrations(context.Background(), writeDB); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return writeDB, readDB
}
