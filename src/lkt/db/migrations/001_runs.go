package migrations

import (
	"database/sql"
)

func runsAndResults() Step {
	return Step{
		Version:     1,
		Description: "Add runs and results tables",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE runs (
					id TEXT PRIMARY KEY,
					source TEXT NOT NULL,
					linux_version TEXT NOT NULL DEFAULT '',
					llvm_version TEXT NOT NULL DEFAULT '',
					architectures TEXT NOT NULL DEFAULT '',
					targets TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'running',
					successful INTEGER DEFAULT 0,
					failed INTEGER DEFAULT 0,
					skipped INTEGER DEFAULT 0,
					log_folder TEXT DEFAULT '',
					archive_prefix TEXT DEFAULT '',
					started_at DATETIME NOT NULL,
					finished_at DATETIME
				)
			`)
			if err != nil {
				return err
			}

			_, err = tx.Exec(`
				CREATE TABLE results (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					arch TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL,
					build TEXT NOT NULL,
					duration_ms INTEGER DEFAULT 0,
					reason TEXT DEFAULT '',
					boot TEXT DEFAULT '',
					boot_reason TEXT DEFAULT '',
					log_name TEXT DEFAULT '',
					excerpt TEXT DEFAULT '',
					FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
				)
			`)
			if err != nil {
				return err
			}

			_, err = tx.Exec(`CREATE INDEX idx_runs_started_at ON runs(started_at)`)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`CREATE INDEX idx_results_run ON results(run_id, position)`)
			return err
		},
	}
}
