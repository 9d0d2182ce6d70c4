package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/common/paths"
	"github.com/bitswalk/lkt/src/lkt/executor"
	"github.com/bitswalk/lkt/src/lkt/kconfig"
	"github.com/bitswalk/lkt/src/lkt/report"
	"github.com/bitswalk/lkt/src/lkt/source"
)

var log *logs.Logger

// SetLogger sets the logger for the build package
func SetLogger(l *logs.Logger) {
	log = l
}

const llvmIASDefaultOn = "ifeq ($(LLVM_IAS),0)"

// DefaultVars are passed to every make invocation unless overridden
func DefaultVars() map[string]string {
	return map[string]string{
		"HOSTLDFLAGS":  "-fuse-ld=lld",
		"LLVM":         "1",
		"LLVM_IAS":     "1",
		"LOCALVERSION": "-cbl",
	}
}

// Builder builds scenarios of one architecture into a shared output folder
type Builder struct {
	Exec executor.Executor
	Tree *source.Tree
	// BuildDir is <build>/<ARCH>, reset before every scenario
	BuildDir string
	LogDir   string
	// Jobs defaults to the number of CPUs
	Jobs int
	// Vars are the run and architecture make variables layered over
	// DefaultVars
	Vars map[string]string
	// Env is exported into every make subprocess
	Env     map[string]string
	Patcher kconfig.Patcher
	// OnlyTestBoot builds the image target instead of all
	OnlyTestBoot bool
	// Stdout mirrors the build output, usually the terminal
	Stdout io.Writer
	// Now is time.Now unless overridden in tests
	Now func() time.Time
}

// Outcome is the result of the build step
type Outcome struct {
	Status   report.Status
	Duration time.Duration
	Log      string
	Missing  []kconfig.Option
	Commands []string
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Builder) jobs() int {
	if b.Jobs > 0 {
		return b.Jobs
	}
	return runtime.NumCPU()
}

func (b *Builder) configPath() string {
	return filepath.Join(b.BuildDir, ".config")
}

// MakeVars merges defaults, builder and scenario variables, points O at
// the output folder and drops LLVM_IAS when it matches the tree default.
func (b *Builder) MakeVars(sc *Scenario) map[string]string {
	vars := DefaultVars()
	for k, v := range b.Vars {
		vars[k] = v
	}
	for k, v := range sc.Vars {
		vars[k] = v
	}
	if sc.Arch != "" {
		vars["ARCH"] = sc.Arch
	}

	vars["O"] = paths.RelativeTo(b.Tree.Folder, b.BuildDir)

	defaultOn := b.Tree.Contains("scripts/Makefile.clang", llvmIASDefaultOn)
	if ias, ok := vars["LLVM_IAS"]; ok {
		if (defaultOn && ias == "1") || (!defaultOn && ias == "0") {
			delete(vars, "LLVM_IAS")
		}
	}
	return vars
}

// MakeCommand renders "make -skj<N> -C <src> VAR=value... targets..."
func (b *Builder) MakeCommand(vars map[string]string, targets ...string) executor.Command {
	args := []string{"-skj" + strconv.Itoa(b.jobs()), "-C", b.Tree.Folder}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k+"="+vars[k])
	}
	args = append(args, targets...)
	return executor.Command{Name: "make", Args: args, Env: b.Env}
}

// Build resets the output folder, configures and builds sc. A failing
// build is reported through Outcome.Status; errors are reserved for
// problems that make the whole run unreliable.
func (b *Builder) Build(ctx context.Context, sc *Scenario) (*Outcome, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(b.BuildDir); err != nil {
		return nil, fmt.Errorf("failed to remove build folder %s: %w", b.BuildDir, err)
	}
	if err := paths.EnsureDirPath(b.LogDir); err != nil {
		return nil, fmt.Errorf("failed to create log folder %s: %w", b.LogDir, err)
	}

	out := &Outcome{Log: sc.LogPath(b.LogDir)}
	vars := b.MakeVars(sc)

	targets, needOlddefconfig, err := b.configure(ctx, sc, vars, out)
	if err != nil {
		return nil, err
	}

	if needOlddefconfig {
		targets = append(targets, "olddefconfig")
	}
	if b.OnlyTestBoot && sc.ImageTarget != "" {
		targets = append(targets, sc.ImageTarget)
	} else {
		targets = append(targets, "all")
	}
	targets = append(targets, sc.ExtraTargets...)

	makeCmd := b.MakeCommand(vars, targets...)
	out.Commands = append(out.Commands, makeCmd.String())

	logFile, err := os.Create(out.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create build log %s: %w", out.Log, err)
	}
	defer logFile.Close()

	header := make([]string, len(out.Commands))
	for i, c := range out.Commands {
		header[i] = c + "\n"
	}
	if _, err := io.WriteString(logFile, strings.Join(header, "\n")); err != nil {
		return nil, fmt.Errorf("failed to write build log: %w", err)
	}

	if log != nil {
		log.Info("Building kernel", "name", sc.Name(), "log", out.Log)
		for _, note := range sc.Notes {
			log.Info("Workaround", "name", sc.Name(), "note", note)
		}
	}
	fmt.Fprintf(b.stdout(), "\n$ %s\n", makeCmd.String())

	makeCmd.Output = io.MultiWriter(logFile, b.stdout())
	start := b.now()
	res, err := b.Exec.Run(ctx, makeCmd)
	if err != nil {
		return nil, fmt.Errorf("failed to run make for %s: %w", sc.Name(), err)
	}
	out.Duration = b.now().Sub(start)
	out.Status = report.Successful
	if !res.Success() {
		out.Status = report.Failed
	}

	if needOlddefconfig {
		out.Missing = b.verify(sc)
		if len(out.Missing) > 0 {
			warning := "\nWARNING: Missing requested configurations after olddefconfig: " +
				strings.Join(kconfig.Strings(out.Missing), ", ")
			fmt.Fprintln(b.stdout(), warning)
			fmt.Fprintln(logFile, warning)
		}
	}

	timing := fmt.Sprintf("\nReal\t%s\n", report.FormatDuration(out.Duration))
	fmt.Fprint(b.stdout(), timing)
	if _, err := io.WriteString(logFile, timing); err != nil {
		return nil, fmt.Errorf("failed to write build log: %w", err)
	}

	return out, nil
}

// configure seeds .config. It returns the config targets that still have
// to be passed to the final make and whether olddefconfig is needed.
func (b *Builder) configure(ctx context.Context, sc *Scenario, vars map[string]string, out *Outcome) ([]string, bool, error) {
	extra := append(append([]kconfig.Option(nil), sc.Options...), sc.Adjust...)
	needOlddefconfig := false

	if sc.IsDistro() {
		if err := paths.EnsureDirPath(b.BuildDir); err != nil {
			return nil, false, fmt.Errorf("failed to create build folder %s: %w", b.BuildDir, err)
		}
		out.Commands = append(out.Commands, fmt.Sprintf("cp %s %s", sc.DistroConfig, b.configPath()))
		if err := copyFile(sc.DistroConfig, b.configPath()); err != nil {
			return nil, false, lkterrors.ErrConfigNotFound.WithMessagef("failed to copy %s", sc.DistroConfig).WithCause(err)
		}
		needOlddefconfig = true
	} else {
		configTargets := append([]string{sc.Target}, sc.Fragments...)
		if len(extra) == 0 {
			return configTargets, false, nil
		}
		cmd := b.MakeCommand(vars, configTargets...)
		out.Commands = append(out.Commands, cmd.String())
		fmt.Fprintf(b.stdout(), "\n$ %s\n", cmd.String())
		if _, err := executor.Output(ctx, b.Exec, cmd); err != nil {
			return nil, false, lkterrors.ErrConfigureFailed.WithMessagef("failed to generate %s for %s", sc.Target, sc.Name()).WithCause(err)
		}
	}

	if len(extra) > 0 {
		opts := kconfig.WithChoicePartners(extra)
		patcher := b.patcher()
		out.Commands = append(out.Commands, fmt.Sprintf("%s %s\n%s",
			patcher.Name(), b.configPath(), strings.Join(kconfig.Strings(opts), "\n")))
		if err := patcher.Apply(ctx, b.configPath(), opts); err != nil {
			return nil, false, err
		}
		needOlddefconfig = true
	}

	return nil, needOlddefconfig, nil
}

// verify compares the requested options with the final .config
func (b *Builder) verify(sc *Scenario) []kconfig.Option {
	final, err := kconfig.ParseFile(b.configPath())
	if err != nil {
		if log != nil {
			log.Warn("Cannot verify requested configurations", "name", sc.Name(), "error", err)
		}
		return nil
	}
	return final.Missing(sc.Options)
}

func (b *Builder) patcher() kconfig.Patcher {
	if b.Patcher == nil {
		b.Patcher = kconfig.NewPatcher(b.Exec, b.Tree.Folder)
	}
	return b.Patcher
}

func (b *Builder) stdout() io.Writer {
	if b.Stdout != nil {
		return b.Stdout
	}
	return io.Discard
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
