// Package runner sequences a whole run: for every architecture it probes
// the toolchain, plans the scenarios, builds and boots them one at a time
// and files the results into the report.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/lkt/arch"
	"github.com/bitswalk/lkt/src/lkt/boot"
	"github.com/bitswalk/lkt/src/lkt/build"
	"github.com/bitswalk/lkt/src/lkt/executor"
	"github.com/bitswalk/lkt/src/lkt/kconfig"
	"github.com/bitswalk/lkt/src/lkt/probe"
	"github.com/bitswalk/lkt/src/lkt/report"
	"github.com/bitswalk/lkt/src/lkt/rules"
	"github.com/bitswalk/lkt/src/lkt/source"
)

var log *logs.Logger

// SetLogger sets the logger for the runner package
func SetLogger(l *logs.Logger) {
	log = l
}

// Options are the run settings shared by every architecture
type Options struct {
	Arches  []arch.Arch
	Targets []arch.TargetKind
	// BuildFolder gets one <ARCH> subfolder per architecture
	BuildFolder string
	LogFolder   string
	// ConfigsDir holds the distribution configs, <distro>/<stem>.config
	ConfigsDir   string
	Jobs         int
	OnlyTestBoot bool
	SaveObjects  bool
	// Vars are run-wide make variables such as CC for ccache
	Vars map[string]string
	// Env is exported into every build subprocess
	Env map[string]string
	// Host is the build machine name (uname -m)
	Host string
	// LLVM is the clang version code when it was probed already
	LLVM probe.ToolCode
}

// Runner runs the selected architectures against one kernel tree
type Runner struct {
	Exec    executor.Executor
	Tree    *source.Tree
	Booter  *boot.Booter
	Patcher kconfig.Patcher
	Opts    Options
	// Stdout receives build output and section headers
	Stdout io.Writer
	// Now is time.Now unless overridden in tests
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return io.Discard
}

// Run builds every architecture in turn. Scenario failures end up in the
// report; a returned error means the run was aborted.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	rep := report.New(r.Tree.Folder, r.Opts.LogFolder, r.now())

	llvm := r.Opts.LLVM
	if llvm == 0 {
		var err error
		if llvm, err = probe.LLVM(ctx, r.Exec, "clang"); err != nil {
			return rep, r.interrupted(ctx, err)
		}
	}
	if log != nil {
		log.Info("Starting run",
			"linux", r.Tree.Version.String(),
			"llvm", llvm.String(),
			"architectures", arch.Strings(r.Opts.Arches))
	}

	for _, a := range r.Opts.Arches {
		results, err := r.runArch(ctx, a, llvm)
		if addErr := rep.Add(results...); addErr != nil && err == nil {
			err = addErr
		}
		if err != nil {
			return rep, r.interrupted(ctx, err)
		}
	}
	return rep, nil
}

func (r *Runner) interrupted(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return lkterrors.ErrInterrupted.WithCause(err)
	}
	return err
}

// Env probes the per-architecture toolchain facts for h
func (r *Runner) Env(ctx context.Context, h *arch.Handler, llvm probe.ToolCode) (*rules.Env, error) {
	env := &rules.Env{
		Arch:         string(h.Arch),
		LLVM:         llvm,
		Tree:         r.Tree,
		Host:         r.Opts.Host,
		OnlyTestBoot: r.Opts.OnlyTestBoot,
		Lookup:       func(name string) bool { return executor.Has(r.Exec, name) },
	}

	var err error
	if env.MinLLVM, err = probe.MinTool(ctx, r.Exec, r.Tree.Folder, srcarch(h.Arch), "llvm"); err != nil {
		return nil, err
	}
	if h.BinutilsAs != "" {
		if env.Binutils, err = probe.Binutils(ctx, r.Exec, h.BinutilsAs); err != nil {
			return nil, err
		}
	}
	if h.QEMUArch != "" {
		if env.QEMU, err = probe.QEMU(ctx, r.Exec, h.QEMUArch); err != nil {
			return nil, err
		}
	}
	return env, nil
}

func srcarch(a arch.Arch) string {
	switch a {
	case arch.I386, arch.X86_64:
		return "x86"
	}
	return string(a)
}

func (r *Runner) skipAll(a arch.Arch, reason, detail string) []report.Result {
	res := report.Skip(string(a), arch.SkipAllName(string(a)), reason)
	report.Header(r.stdout(), "Skipping "+res.Name)
	fmt.Fprintf(r.stdout(), "Reason: %s\n", detail)
	if log != nil {
		log.Warn("Skipping architecture", "arch", a, "reason", reason)
	}
	return []report.Result{res}
}

func (r *Runner) runArch(ctx context.Context, a arch.Arch, llvm probe.ToolCode) ([]report.Result, error) {
	h, err := arch.For(a)
	if err != nil {
		return nil, err
	}

	if !probe.ClangSupportsTarget(ctx, r.Exec, h.ClangTarget) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return r.skipAll(a, "missing clang target", fmt.Sprintf("Missing %s target in clang", h.ClangTarget)), nil
	}

	env, err := r.Env(ctx, h, llvm)
	if err != nil {
		return nil, err
	}
	plan, err := h.Plan(env, arch.PlanOptions{Targets: r.Opts.Targets, ConfigsDir: r.Opts.ConfigsDir})
	if err != nil {
		return nil, err
	}
	if plan.SkipAll != nil {
		return r.skipAll(a, plan.SkipAll.Reason, plan.SkipAll.Reason), nil
	}
	if missingBinutils(plan.Vars, r.Exec) {
		return r.skipAll(a, "missing binutils", "Cannot find binutils"), nil
	}

	report.Header(r.stdout(), "Building "+plan.Vars["ARCH"]+" kernels")

	results := append([]report.Result(nil), plan.Skipped...)
	for _, res := range plan.Skipped {
		fmt.Fprintf(r.stdout(), "Skipping %s due to %s\n", res.Name, res.Reason)
	}

	builder := &build.Builder{
		Exec:         r.Exec,
		Tree:         r.Tree,
		BuildDir:     filepath.Join(r.Opts.BuildFolder, plan.Vars["ARCH"]),
		LogDir:       r.Opts.LogFolder,
		Jobs:         r.Opts.Jobs,
		Vars:         mergeVars(r.Opts.Vars, plan.Vars),
		Env:          r.Opts.Env,
		Patcher:      r.Patcher,
		OnlyTestBoot: r.Opts.OnlyTestBoot,
		Stdout:       r.Stdout,
		Now:          r.Now,
	}

	for _, sc := range plan.Scenarios {
		res, err := r.runScenario(ctx, builder, sc)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if err := ctx.Err(); err != nil {
			return results, err
		}
	}

	if !r.Opts.SaveObjects {
		if err := os.RemoveAll(builder.BuildDir); err != nil {
			return results, fmt.Errorf("failed to remove build folder %s: %w", builder.BuildDir, err)
		}
	}
	return results, nil
}

// runScenario builds sc and boots it when it is bootable and built
func (r *Runner) runScenario(ctx context.Context, b *build.Builder, sc *build.Scenario) (report.Result, error) {
	fmt.Fprintf(r.stdout(), "\nBuilding %s...\n", sc.Name())

	out, err := b.Build(ctx, sc)
	if err != nil {
		return report.Result{}, err
	}
	res := report.Result{
		Name:     sc.Name(),
		Arch:     sc.Arch,
		Build:    out.Status,
		Duration: out.Duration,
		Log:      out.Log,
		Notes:    sc.Notes,
	}
	if !sc.Bootable {
		return res, nil
	}

	switch {
	case sc.SkipBoot:
		res.Boot = report.Skipped
		res.BootReason = sc.BootReason
	case out.Status != report.Successful:
		res.Boot = report.Skipped
	default:
		booted, err := r.Booter.Boot(ctx, boot.Request{
			Name:     sc.Name(),
			BootArch: sc.BootArch,
			QEMUArch: sc.QEMUArch,
			BuildDir: b.BuildDir,
			Log:      out.Log,
		})
		if err != nil {
			return res, err
		}
		res.Boot = booted.Status
		res.BootReason = booted.Reason
	}
	return res, nil
}

// missingBinutils reports whether the plan relies on GNU as that is not
// installed
func missingBinutils(vars map[string]string, e executor.Executor) bool {
	cross, ok := vars["CROSS_COMPILE"]
	if !ok || vars["LLVM_IAS"] != "0" {
		return false
	}
	return !executor.Has(e, cross+"as")
}

func mergeVars(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
