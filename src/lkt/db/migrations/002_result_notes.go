package migrations

import (
	"database/sql"
)

func resultNotes() Step {
	return Step{
		Version:     2,
		Description: "Add workaround notes to results",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE results ADD COLUMN notes TEXT DEFAULT ''`)
			return err
		},
	}
}
