package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// migrationsFS roots the embedded files at the migrations directory.
func migrationsFS() fs.FS {
	sub, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return sub
}
