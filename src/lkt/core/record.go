package core

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/bitswalk/lkt/src/common/cli"
	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/lkt/arch"
	"github.com/bitswalk/lkt/src/lkt/archive"
	"github.com/bitswalk/lkt/src/lkt/db"
	"github.com/bitswalk/lkt/src/lkt/probe"
	"github.com/bitswalk/lkt/src/lkt/report"
	"github.com/bitswalk/lkt/src/lkt/source"
	"github.com/bitswalk/lkt/src/lkt/storage"
)

// historyConfig says where runs are recorded and logs archived
type historyConfig struct {
	// DatabasePath is empty when recording is disabled
	DatabasePath string
	// Archive enables uploading the log folder to Storage
	Archive bool
	// KeepRuns bounds how many runs keep their archived logs, zero keeps
	// all of them
	KeepRuns int
	Storage  storage.Config
}

func loadHistoryConfig() historyConfig {
	return historyConfig{
		DatabasePath: viper.GetString(cli.KeyDatabasePath),
		Archive:      viper.GetBool(cli.KeyArchiveEnabled),
		KeepRuns:     viper.GetInt(cli.KeyArchiveKeepRuns),
		Storage:      loadStorageConfig(),
	}
}

func loadStorageConfig() storage.Config {
	return storage.Config{
		Type: viper.GetString(cli.KeyStorageType),
		Local: storage.LocalConfig{
			BasePath: cli.GetExpandedString(cli.KeyStorageLocalPath),
		},
		S3: storage.S3Config{
			Endpoint:        viper.GetString(cli.KeyS3Endpoint),
			Region:          viper.GetString(cli.KeyS3Region),
			Bucket:          viper.GetString(cli.KeyS3Bucket),
			AccessKeyID:     viper.GetString(cli.KeyS3AccessKey),
			SecretAccessKey: viper.GetString(cli.KeyS3SecretKey),
			UsePathStyle:    viper.GetBool(cli.KeyS3PathStyle),
		},
	}
}

// history records a run in the database and archives its logs. Either
// part may be disabled.
type history struct {
	database *db.Database
	runs     *db.RunRepository
	archiver *archive.Archiver
	keepRuns int
}

// openHistory opens what cfg enables. An archive bucket that does not
// exist yet is created.
func openHistory(ctx context.Context, cfg historyConfig) (*history, error) {
	h := &history{}
	if cfg.DatabasePath != "" {
		database, err := db.New(db.Config{Path: cfg.DatabasePath, Release: VersionInfo.Release()})
		if err != nil {
			return nil, err
		}
		h.database = database
		h.runs = db.NewRunRepository(database)
	}
	if cfg.Archive {
		backend, err := storage.New(cfg.Storage)
		if err != nil {
			h.Close()
			return nil, err
		}
		if err := storage.Prepare(ctx, backend); err != nil {
			h.Close()
			return nil, lkterrors.ErrStorageUnavailable.WithMessagef("log archive %s is not usable", backend.Location()).WithCause(err)
		}
		h.archiver = &archive.Archiver{Backend: backend}
		h.keepRuns = cfg.KeepRuns
	}
	return h, nil
}

// Close closes the database
func (h *history) Close() error {
	if h.database == nil {
		return nil
	}
	return h.database.Close()
}

// begin records run as running
func (h *history) begin(run *db.Run) error {
	if h.runs == nil {
		return nil
	}
	if err := h.runs.Create(run); err != nil {
		return err
	}
	if log != nil {
		log.Info("Recording run", "id", run.ID, "database", h.database.Path())
	}
	return nil
}

// finish archives the log folder, then stores the results and the final
// status of run. It still runs after the run context was cancelled.
func (h *history) finish(ctx context.Context, run *db.Run, rep *report.Report, logDir string, runErr error) error {
	ctx = context.WithoutCancel(ctx)

	if h.archiver != nil {
		if run.ID == "" {
			run.ID = uuid.New().String()
		}
		prefix := archive.Prefix(run.ID)
		if _, err := h.archiver.Store(ctx, prefix, logDir); err != nil {
			return fmt.Errorf("failed to archive logs: %w", err)
		}
		run.ArchivePrefix = prefix
	}

	if h.runs == nil {
		return nil
	}

	if err := h.runs.AddResults(run.ID, dbResults(rep.Results())); err != nil {
		return err
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = runStatus(rep, runErr)
	run.Successful = len(rep.Good)
	run.Failed = len(rep.Bad)
	run.Skipped = len(rep.Skip)
	if err := h.runs.Finish(run); err != nil {
		return err
	}

	if h.archiver != nil && h.keepRuns > 0 {
		h.prune(ctx)
	}
	return nil
}

// prune removes the archived logs of runs older than the newest keepRuns.
// Failures are logged, the run itself is already recorded.
func (h *history) prune(ctx context.Context) {
	old, err := h.runs.ArchivedBeyond(h.keepRuns)
	if err != nil {
		if log != nil {
			log.Warn("Failed to list archived runs", "error", err)
		}
		return
	}
	for _, run := range old {
		removed, err := h.archiver.Remove(ctx, run.ArchivePrefix)
		if err == nil {
			err = h.runs.ClearArchive(run.ID)
		}
		if err != nil {
			if log != nil {
				log.Warn("Failed to remove archived logs", "run", run.ID, "prefix", run.ArchivePrefix, "error", err)
			}
			continue
		}
		if log != nil {
			log.Debug("Removed archived logs", "run", run.ID, "files", removed)
		}
	}
}

func runStatus(rep *report.Report, runErr error) db.RunStatus {
	switch {
	case runErr != nil:
		return db.RunStatusAborted
	case rep.HasFailures():
		return db.RunStatusFailed
	}
	return db.RunStatusPassed
}

// newRunRecord describes a run that is about to start
func newRunRecord(cfg *runConfig, tree *source.Tree, llvm probe.ToolCode, host string) *db.Run {
	targets := make([]string, len(cfg.Targets))
	for i, t := range cfg.Targets {
		targets[i] = string(t)
	}
	return &db.Run{
		Source:        tree.Folder,
		Host:          host,
		LinuxVersion:  tree.Version.String(),
		LLVMVersion:   llvm.String(),
		Architectures: arch.Strings(cfg.Arches),
		Targets:       targets,
		LogFolder:     cfg.LogFolder,
		StartedAt:     time.Now().UTC(),
	}
}

// dbResults converts report results to their stored form. Logs are kept
// by name, relative to the log folder.
func dbResults(results []report.Result) []db.Result {
	out := make([]db.Result, len(results))
	for i, r := range results {
		out[i] = db.Result{
			Arch:       r.Arch,
			Name:       r.Name,
			Build:      string(r.Build),
			Duration:   r.Duration,
			Reason:     r.Reason,
			Boot:       string(r.Boot),
			BootReason: r.BootReason,
			Excerpt:    r.Excerpt,
			Notes:      r.Notes,
		}
		if r.Log != "" {
			out[i].LogName = filepath.Base(r.Log)
		}
	}
	return out
}
