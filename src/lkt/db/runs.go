package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunRepository handles run and result database operations
type RunRepository struct {
	db *Database
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *Database) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run, assigning an ID when it has none
func (r *RunRepository) Create(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	query := `
		INSERT INTO runs (id, source, host, linux_version, llvm_version,
			architectures, targets, status, successful, failed, skipped,
			log_folder, archive_prefix, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.DB().Exec(query,
		run.ID, run.Source, run.Host, run.LinuxVersion, run.LLVMVersion,
		joinList(run.Architectures), joinList(run.Targets), run.Status,
		run.Successful, run.Failed, run.Skipped,
		run.LogFolder, run.ArchivePrefix, run.StartedAt.UTC(), nullTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// Finish stores the final status, counts and archive location of a run
func (r *RunRepository) Finish(run *Run) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}

	result, err := r.db.DB().Exec(`
		UPDATE runs SET status = ?, successful = ?, failed = ?, skipped = ?,
			archive_prefix = ?, finished_at = ?
		WHERE id = ?
	`, run.Status, run.Successful, run.Failed, run.Skipped,
		run.ArchivePrefix, run.FinishedAt.UTC(), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// AddResults appends results to a run in one transaction. Positions
// continue after the results already stored.
func (r *RunRepository) AddResults(runID string, results []Result) error {
	tx, err := r.db.DB().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow("SELECT COALESCE(MAX(position) + 1, 0) FROM results WHERE run_id = ?", runID).Scan(&next); err != nil {
		return fmt.Errorf("failed to get result position: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO results (run_id, position, arch, name, build, duration_ms,
			reason, boot, boot_reason, log_name, excerpt, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i := range results {
		res := &results[i]
		res.RunID = runID
		res.Position = next + i
		row, err := stmt.Exec(res.RunID, res.Position, res.Arch, res.Name, res.Build,
			res.Duration.Milliseconds(), res.Reason, res.Boot, res.BootReason,
			res.LogName, strings.Join(res.Excerpt, "\n"), strings.Join(res.Notes, "\n"))
		if err != nil {
			return fmt.Errorf("failed to store result %s: %w", res.Name, err)
		}
		if res.ID, err = row.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get result id: %w", err)
		}
	}

	return tx.Commit()
}

// selectRunsQuery is the base SELECT query for runs
const selectRunsQuery = `
	SELECT id, source, host, linux_version, llvm_version, architectures, targets,
		status, successful, failed, skipped, log_folder, archive_prefix,
		started_at, finished_at
	FROM runs
`

// GetByID retrieves a run by ID, or nil when it does not exist
func (r *RunRepository) GetByID(id string) (*Run, error) {
	row := r.db.DB().QueryRow(selectRunsQuery+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return run, nil
}

// List retrieves runs, newest first
func (r *RunRepository) List(limit, offset int) ([]Run, error) {
	rows, err := r.db.DB().Query(selectRunsQuery+` ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ArchivedBeyond returns the runs with archived logs that come after the
// newest keep of them, newest first
func (r *RunRepository) ArchivedBeyond(keep int) ([]Run, error) {
	rows, err := r.db.DB().Query(selectRunsQuery+`
		WHERE archive_prefix != ''
		ORDER BY started_at DESC LIMIT -1 OFFSET ?`, keep)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ClearArchive forgets the archive location of a run once its logs are
// removed
func (r *RunRepository) ClearArchive(id string) error {
	if _, err := r.db.DB().Exec(`UPDATE runs SET archive_prefix = '' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear archive of run %s: %w", id, err)
	}
	return nil
}

// Results retrieves the results of a run in the order they were recorded
func (r *RunRepository) Results(runID string) ([]Result, error) {
	rows, err := r.db.DB().Query(`
		SELECT id, run_id, position, arch, name, build, duration_ms, reason,
			boot, boot_reason, log_name, excerpt, notes
		FROM results WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var res Result
		var durationMs int64
		var reason, boot, bootReason, logName, excerpt, notes sql.NullString
		if err := rows.Scan(&res.ID, &res.RunID, &res.Position, &res.Arch, &res.Name,
			&res.Build, &durationMs, &reason, &boot, &bootReason, &logName,
			&excerpt, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		res.Duration = time.Duration(durationMs) * time.Millisecond
		res.Reason = reason.String
		res.Boot = boot.String
		res.BootReason = bootReason.String
		res.LogName = logName.String
		res.Excerpt = splitLines(excerpt.String)
		res.Notes = splitLines(notes.String)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return results, nil
}

// Delete removes a run and its results
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.DB().Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var arches, targets string
	var host, logFolder, archivePrefix sql.NullString
	var finishedAt sql.NullTime

	if err := s.Scan(&run.ID, &run.Source, &host, &run.LinuxVersion, &run.LLVMVersion,
		&arches, &targets, &run.Status, &run.Successful, &run.Failed, &run.Skipped,
		&logFolder, &archivePrefix, &run.StartedAt, &finishedAt); err != nil {
		return nil, err
	}

	run.Host = host.String
	run.Architectures = splitList(arches)
	run.Targets = splitList(targets)
	run.LogFolder = logFolder.String
	run.ArchivePrefix = archivePrefix.String
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
