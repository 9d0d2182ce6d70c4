package migrations

import (
	"database/sql"
)

func runHost() Step {
	return Step{
		Version:     3,
		Description: "Record the build host of a run",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE runs ADD COLUMN host TEXT DEFAULT ''`)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`CREATE INDEX idx_results_build ON results(build)`)
			return err
		},
	}
}
