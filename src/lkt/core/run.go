package core

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bitswalk/lkt/src/common/cli"
	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/common/paths"
	"github.com/bitswalk/lkt/src/lkt/arch"
	"github.com/bitswalk/lkt/src/lkt/boot"
	"github.com/bitswalk/lkt/src/lkt/executor"
	"github.com/bitswalk/lkt/src/lkt/kconfig"
	"github.com/bitswalk/lkt/src/lkt/probe"
	"github.com/bitswalk/lkt/src/lkt/report"
	"github.com/bitswalk/lkt/src/lkt/runner"
	"github.com/bitswalk/lkt/src/lkt/source"
)

// runConfig is the resolved configuration of one kernel run
type runConfig struct {
	LinuxFolder   string
	BuildFolder   string
	LogFolder     string
	ConfigsFolder string
	Arches        []arch.Arch
	Targets       []arch.TargetKind
	Jobs          int
	OnlyTestBoot  bool
	SaveObjects   bool
	UseCCache     bool

	// Prefixes are prepended to PATH in order, so the last one wins
	Prefixes      []string
	TCPrefix      string
	TCBuildScript string
	SkipTCBuild   bool

	BootUtilsFolder string
	// UpdateBootUtils is set when boot-utils lives in the data folder and
	// is managed by lkt
	UpdateBootUtils     bool
	BootUtilsRepository string

	// Variables are the NAME=value arguments
	Variables map[string]string

	History historyConfig
}

// loadRunConfig resolves the run configuration from viper and the
// positional arguments
func loadRunConfig(args []string, now time.Time) (*runConfig, error) {
	cfg := &runConfig{
		Jobs:                viper.GetInt(cli.KeyJobs),
		OnlyTestBoot:        viper.GetBool(cli.KeyOnlyTestBoot),
		SaveObjects:         viper.GetBool(cli.KeySaveObjects),
		UseCCache:           viper.GetBool(cli.KeyUseCCache),
		ConfigsFolder:       cli.GetExpandedString(cli.KeyConfigsFolder),
		TCPrefix:            cli.GetExpandedString(cli.KeyTCPrefix),
		TCBuildScript:       cli.GetExpandedString(cli.KeyTCBuildScript),
		SkipTCBuild:         viper.GetBool(cli.KeySkipTCBuild),
		BootUtilsRepository: viper.GetString(cli.KeyBootUtilsRepository),
		History:             loadHistoryConfig(),
	}

	linux := cli.GetExpandedString(cli.KeyLinuxFolder)
	if linux == "" {
		return nil, lkterrors.ErrLinuxFolderRequired.WithMessage("the Linux source folder is required (-l/--linux-folder)")
	}
	abs, err := filepath.Abs(linux)
	if err != nil {
		return nil, lkterrors.ErrPathNotFound.WithCause(err)
	}
	if !paths.IsDir(abs) {
		return nil, lkterrors.ErrPathNotFound.WithMessagef("supplied Linux source folder %s could not be found", abs)
	}
	cfg.LinuxFolder = abs

	if cfg.Arches, err = arch.ParseList(viper.GetStringSlice(cli.KeyArchitectures)); err != nil {
		return nil, err
	}
	if cfg.Targets, err = arch.ParseTargets(viper.GetStringSlice(cli.KeyTargets)); err != nil {
		return nil, err
	}
	if cfg.Variables, err = parseVariables(args); err != nil {
		return nil, err
	}

	cfg.BuildFolder = cli.GetExpandedString(cli.KeyBuildFolder)
	if cfg.BuildFolder == "" {
		cfg.BuildFolder = filepath.Join(cfg.LinuxFolder, "build")
	}
	if cfg.BuildFolder, err = filepath.Abs(cfg.BuildFolder); err != nil {
		return nil, err
	}

	cfg.LogFolder = cli.GetExpandedString(cli.KeyLogFolder)
	if cfg.LogFolder == "" {
		cfg.LogFolder = filepath.Join(paths.Expand(cli.DataDir), "logs", now.Format("20060102-1504"))
	}
	if cfg.LogFolder, err = filepath.Abs(cfg.LogFolder); err != nil {
		return nil, err
	}

	cfg.BootUtilsFolder = cli.GetExpandedString(cli.KeyBootUtilsFolder)
	if cfg.BootUtilsFolder == "" {
		cfg.BootUtilsFolder = filepath.Join(paths.Expand(cli.DataDir), "boot-utils")
		cfg.UpdateBootUtils = true
	}

	cfg.Prefixes = cli.Prefixes()
	return cfg, nil
}

func runKernels(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(args, time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runWith(ctx, executor.NewHost(), cfg, cmd.OutOrStdout())
	if ctx.Err() != nil && !lkterrors.Is(err, lkterrors.ErrInterrupted) {
		return lkterrors.ErrInterrupted.WithCause(err)
	}
	return err
}

// setup builds the toolchain, extends PATH and fetches boot-utils
func setup(ctx context.Context, e executor.Executor, cfg *runConfig, out io.Writer) error {
	if cfg.TCBuildScript != "" && !cfg.SkipTCBuild {
		report.Header(out, "Building toolchain")
		if err := buildToolchain(ctx, e, cfg.TCBuildScript, cfg.TCPrefix, out); err != nil {
			return err
		}
	}

	for _, prefix := range cfg.Prefixes {
		if err := addToPath(prefix); err != nil {
			return err
		}
	}

	if cfg.UpdateBootUtils {
		report.Header(out, "Updating boot-utils")
		if err := updateBootUtils(ctx, e, cfg.BootUtilsRepository, cfg.BootUtilsFolder, out); err != nil {
			return err
		}
	}

	if err := paths.EnsureDirPath(cfg.LogFolder); err != nil {
		return lkterrors.ErrPathNotFound.WithMessagef("failed to create log folder %s", cfg.LogFolder).WithCause(err)
	}
	return nil
}

// runWith performs a whole run: setup, every architecture, the report,
// then the history record and the log archive
func runWith(ctx context.Context, e executor.Executor, cfg *runConfig, out io.Writer) error {
	if err := setup(ctx, e, cfg, out); err != nil {
		return err
	}

	tree, err := source.Open(ctx, e, cfg.LinuxFolder)
	if err != nil {
		return err
	}
	llvm, err := probe.LLVM(ctx, e, "clang")
	if err != nil {
		return err
	}
	host, err := hostMachine(ctx, e)
	if err != nil {
		return err
	}

	hist, err := openHistory(ctx, cfg.History)
	if err != nil {
		return err
	}
	defer hist.Close()

	record := newRunRecord(cfg, tree, llvm, host)
	if err := hist.begin(record); err != nil {
		return err
	}

	r := &runner.Runner{
		Exec: e,
		Tree: tree,
		Booter: &boot.Booter{
			Exec:      e,
			Folder:    cfg.BootUtilsFolder,
			LogDir:    cfg.LogFolder,
			Host:      host,
			KVMAccess: boot.HaveDevKVMAccess,
			Stdout:    out,
		},
		Patcher: kconfig.NewPatcher(e, tree.Folder),
		Opts: runner.Options{
			Arches:       cfg.Arches,
			Targets:      cfg.Targets,
			BuildFolder:  cfg.BuildFolder,
			LogFolder:    cfg.LogFolder,
			ConfigsDir:   cfg.ConfigsFolder,
			Jobs:         cfg.Jobs,
			OnlyTestBoot: cfg.OnlyTestBoot,
			SaveObjects:  cfg.SaveObjects,
			Vars:         makeVariables(e, cfg.UseCCache),
			Env:          cfg.Variables,
			Host:         host,
			LLVM:         llvm,
		},
		Stdout: out,
	}

	rep, runErr := r.Run(ctx)
	if runErr == nil {
		if err := rep.CollectEnv(ctx, e); err != nil && log != nil {
			log.Warn("Failed to collect environment information", "error", err)
		}
		if err := rep.Write(out, time.Now()); err != nil {
			return err
		}
	}

	if err := hist.finish(ctx, record, rep, cfg.LogFolder, runErr); err != nil {
		if runErr != nil {
			return runErr
		}
		return err
	}

	if runErr != nil {
		return runErr
	}
	if rep.HasFailures() {
		return lkterrors.ErrRunFailed.WithMessagef("%d failed builds or boots, see %s", len(rep.Bad), cfg.LogFolder)
	}
	return nil
}
