// Package migrations versions the run history schema. Every applied step
// is stamped with the lkt release that applied it, and a database that a
// newer release already moved past is refused instead of being misread.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/common/logs"
)

var log *logs.Logger

// SetLogger sets the logger for the migrations package
func SetLogger(l *logs.Logger) {
	log = l
}

// Step is one change to the run history schema
type Step struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// steps is the run history schema, oldest first. Versions are contiguous.
var steps = []Step{
	runsAndResults(),
	resultNotes(),
	runHost(),
}

// Latest is the schema version this release writes
func Latest() int {
	return steps[len(steps)-1].Version
}

// Runner brings a history database up to Latest
type Runner struct {
	db *sql.DB
	// release is recorded next to every step it applies
	release string
	steps   []Step
}

// NewRunner creates a runner stamping steps with release, e.g. "v0.4.0-4f9f297"
func NewRunner(db *sql.DB, release string) *Runner {
	if release == "" {
		release = "unknown"
	}
	return &Runner{db: db, release: release, steps: steps}
}

const schemaTable = `
	CREATE TABLE IF NOT EXISTS lkt_schema (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		lkt_release TEXT NOT NULL DEFAULT '',
		applied_at DATETIME NOT NULL
	)
`

// Version returns the schema version of the database, 0 when empty
func (r *Runner) Version(ctx context.Context) (int, error) {
	if _, err := r.db.ExecContext(ctx, schemaTable); err != nil {
		return 0, fmt.Errorf("failed to create schema table: %w", err)
	}
	var version int
	err := r.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM lkt_schema").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Run applies the pending steps and returns how many it applied
func (r *Runner) Run(ctx context.Context) (int, error) {
	current, err := r.Version(ctx)
	if err != nil {
		return 0, err
	}
	latest := r.steps[len(r.steps)-1].Version
	if current > latest {
		var release string
		_ = r.db.QueryRowContext(ctx, "SELECT lkt_release FROM lkt_schema WHERE version = ?", current).Scan(&release)
		return 0, lkterrors.ErrSchemaTooNew.WithMessagef(
			"run history is at schema %d (written by lkt %s), this lkt only knows up to %d; upgrade lkt or use another --db-path",
			current, release, latest)
	}

	applied := 0
	for _, s := range r.steps {
		if s.Version <= current {
			continue
		}
		if err := r.apply(ctx, s); err != nil {
			if log != nil {
				log.Error("History schema step failed", "version", s.Version, "description", s.Description, "error", err)
			}
			return applied, fmt.Errorf("schema step %d (%s) failed: %w", s.Version, s.Description, err)
		}
		applied++
	}

	if applied > 0 && log != nil {
		log.Debug("History schema upgraded", "from", current, "to", latest, "release", r.release)
	}
	return applied, nil
}

func (r *Runner) apply(ctx context.Context, s Step) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.Up(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO lkt_schema (version, description, lkt_release, applied_at) VALUES (?, ?, ?, ?)",
		s.Version, s.Description, r.release, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record schema step: %w", err)
	}
	return tx.Commit()
}
