package migrations

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunAppliesEveryStepOnce(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	r := NewRunner(db, "v0.4.0-4f9f297")

	applied, err := r.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if applied != len(steps) {
		t.Errorf("first Run applied %d steps, want %d", applied, len(steps))
	}
	if applied, err := r.Run(ctx); err != nil || applied != 0 {
		t.Fatalf("second Run = %d, %v", applied, err)
	}

	version, err := r.Version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if version != Latest() {
		t.Errorf("Version = %d, want %d", version, Latest())
	}

	var release string
	if err := db.QueryRow("SELECT lkt_release FROM lkt_schema WHERE version = 1").Scan(&release); err != nil || release != "v0.4.0-4f9f297" {
		t.Errorf("release = %q, %v", release, err)
	}

	if _, err := db.Exec(`INSERT INTO runs (id, source, started_at, host) VALUES ('r', '/src', CURRENT_TIMESTAMP, 'x86_64')`); err != nil {
		t.Errorf("schema is missing columns: %v", err)
	}
}

func TestStepsAreContiguous(t *testing.T) {
	for i, s := range steps {
		if s.Version != i+1 {
			t.Errorf("step %d has version %d", i, s.Version)
		}
	}
}

func TestRunRefusesNewerSchema(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	if _, err := NewRunner(db, "v0.4.0").Run(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO lkt_schema (version, description, lkt_release, applied_at)
		VALUES (?, 'from the future', 'v9.0.0', CURRENT_TIMESTAMP)`, Latest()+1); err != nil {
		t.Fatal(err)
	}

	_, err := NewRunner(db, "v0.4.0").Run(ctx)
	if !lkterrors.Is(err, lkterrors.ErrSchemaTooNew) {
		t.Fatalf("expected ErrSchemaTooNew, got %v", err)
	}
}
