// Package db records runs and their results in SQLite so that earlier runs
// can be listed, compared and served.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bitswalk/lkt/src/common/paths"
	"github.com/bitswalk/lkt/src/lkt/db/migrations"
	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Database wraps the SQLite connection
type Database struct {
	db        *sql.DB
	path      string
	closeOnce sync.Once
}

// Config holds the database configuration
type Config struct {
	// Path is the database file, or MemoryPath
	Path string
	// Release is the lkt build stamped on schema upgrades
	Release string
}

// DefaultConfig returns a default database configuration
func DefaultConfig() Config {
	return Config{
		Path: "~/.local/share/lkt/lkt.db",
	}
}

// New opens the database and applies pending migrations
func New(cfg Config) (*Database, error) {
	path := cfg.Path
	if path != MemoryPath {
		path = paths.Expand(path)
		if err := paths.EnsureDirPath(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("failed to create database folder: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// One connection keeps PRAGMAs and in-memory contents in one place
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := migrations.NewRunner(db, cfg.Release).Run(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db, path: path}, nil
}

// DB returns the underlying sql.DB for direct queries
func (d *Database) DB() *sql.DB {
	return d.db
}

// Path returns the database location
func (d *Database) Path() string {
	return d.path
}

// Close closes the connection; later calls are no-ops
func (d *Database) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if cerr := d.db.Close(); cerr != nil {
			err = fmt.Errorf("failed to close database: %w", cerr)
		}
	})
	return err
}
