package runner

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/lkt/arch"
	"github.com/bitswalk/lkt/src/lkt/boot"
	"github.com/bitswalk/lkt/src/lkt/executor"
	"github.com/bitswalk/lkt/src/lkt/kconfig"
	"github.com/bitswalk/lkt/src/lkt/probe"
	"github.com/bitswalk/lkt/src/lkt/report"
	"github.com/bitswalk/lkt/src/lkt/source"
)

type nopPatcher struct{ calls int }

func (p *nopPatcher) Name() string { return "nop" }

func (p *nopPatcher) Apply(ctx context.Context, path string, opts []kconfig.Option) error {
	p.calls++
	return nil
}

func newRunner(t *testing.T, fake *executor.Fake, linux probe.LinuxCode, a arch.Arch, features ...string) *Runner {
	t.Helper()
	fake.AddTool("clang").On("clang -E", executor.Result{Output: []byte("11 0 0\n")})

	bootUtils := t.TempDir()
	if err := os.WriteFile(filepath.Join(bootUtils, "boot-qemu.py"), []byte("#!/usr/bin/env python3\n"), 0755); err != nil {
		t.Fatal(err)
	}
	logDir := t.TempDir()

	return &Runner{
		Exec:    fake,
		Tree:    source.NewStatic(t.TempDir(), linux, features...),
		Booter:  &boot.Booter{Exec: fake, Folder: bootUtils, Host: "x86_64", KVMAccess: func() bool { return false }},
		Patcher: &nopPatcher{},
		Opts: Options{
			Arches:      []arch.Arch{a},
			Targets:     []arch.TargetKind{arch.Def},
			BuildFolder: t.TempDir(),
			LogFolder:   logDir,
			Jobs:        4,
			Host:        "x86_64",
		},
	}
}

func resultNames(results []report.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Name
	}
	return out
}

func TestI386BeforeLinux59BuildsNothing(t *testing.T) {
	fake := executor.NewFake()
	r := newRunner(t, fake, probe.NewLinuxCode(5, 8, 0), arch.I386)

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	results := rep.Results()
	if len(results) != 1 {
		t.Fatalf("expected one result, got %+v", results)
	}
	if results[0].Name != "i386 kernels" || results[0].Build != report.Skipped {
		t.Errorf("unexpected result %+v", results[0])
	}
	if calls := fake.CallsMatching("make"); len(calls) != 0 {
		t.Errorf("expected no make invocation, got %d", len(calls))
	}
}

func TestMissingClangTarget(t *testing.T) {
	fake := executor.NewFake().On("clang --target=", executor.Result{ExitCode: 1})
	r := newRunner(t, fake, probe.NewLinuxCode(6, 1, 0), arch.X86_64)

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	results := rep.Results()
	if len(results) != 1 || results[0].Name != "x86_64 kernels" || results[0].Reason != "missing clang target" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestRunDefconfigAndLTO(t *testing.T) {
	fake := executor.NewFake()
	r := newRunner(t, fake, probe.NewLinuxCode(5, 10, 0), arch.X86_64, "CONFIG_LTO_CLANG_THIN")

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"x86_64 CFI configs",
		"x86_64 defconfig",
		"x86_64 defconfig + CONFIG_LTO_CLANG_THIN=y",
	}
	results := rep.Results()
	if got := resultNames(results); !reflect.DeepEqual(got, want) {
		t.Fatalf("results = %v, want %v", got, want)
	}
	for _, res := range results[1:] {
		if res.Build != report.Successful {
			t.Errorf("%s build = %s", res.Name, res.Build)
		}
		if res.Boot != report.Skipped || res.BootReason != "missing qemu-system-x86_64" {
			t.Errorf("%s boot = %s %q", res.Name, res.Boot, res.BootReason)
		}
	}
	if rep.HasFailures() {
		t.Error("no failure expected")
	}
	if p := r.Patcher.(*nopPatcher); p.calls != 1 {
		t.Errorf("patcher called %d times, want 1", p.calls)
	}
}

func TestBuildFailureContinues(t *testing.T) {
	fake := executor.NewFake().Handle("make", func(c executor.Command) (executor.Result, error) {
		if slices.Contains(c.Args, "defconfig") && slices.Contains(c.Args, "all") {
			return executor.Result{ExitCode: 2, Output: []byte("drivers/foo.c:1:2: error: oops\n")}, nil
		}
		return executor.Result{}, nil
	})
	fake.AddTool("qemu-system-x86_64").
		On("qemu-system-x86_64 --version", executor.Result{Output: []byte("QEMU emulator version 8.2.0\n")})
	r := newRunner(t, fake, probe.NewLinuxCode(5, 10, 0), arch.X86_64, "CONFIG_LTO_CLANG_THIN")

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	results := rep.Results()
	if len(results) != 3 {
		t.Fatalf("unexpected results %v", resultNames(results))
	}

	failed := results[1]
	if failed.Build != report.Failed || len(failed.Excerpt) == 0 {
		t.Errorf("expected a failure with an excerpt, got %+v", failed)
	}
	if failed.Boot != report.Skipped || failed.BootReason != "" {
		t.Errorf("boot after a failed build = %s %q", failed.Boot, failed.BootReason)
	}

	next := results[2]
	if next.Build != report.Successful || next.Boot != report.Successful {
		t.Errorf("next scenario did not run: %+v", next)
	}
	if !rep.HasFailures() {
		t.Error("expected the report to carry the failure")
	}
}

func TestBuildFolderRemoval(t *testing.T) {
	for _, save := range []bool{false, true} {
		fake := executor.NewFake()
		r := newRunner(t, fake, probe.NewLinuxCode(6, 1, 0), arch.X86_64)
		r.Opts.SaveObjects = save
		buildDir := filepath.Join(r.Opts.BuildFolder, "x86_64")
		fake.Handle("make", func(c executor.Command) (executor.Result, error) {
			return executor.Result{}, os.MkdirAll(buildDir, 0755)
		})

		if _, err := r.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		_, err := os.Stat(buildDir)
		if exists := err == nil; exists != save {
			t.Errorf("save-objects=%v: build folder exists = %v", save, exists)
		}
	}
}

func TestInterrupted(t *testing.T) {
	fake := executor.NewFake()
	r := newRunner(t, fake, probe.NewLinuxCode(6, 1, 0), arch.X86_64)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx)
	if !lkterrors.Is(err, lkterrors.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if code := lkterrors.GetExitCode(err); code != lkterrors.ExitInterrupted {
		t.Errorf("exit code = %d", code)
	}
}

func TestMissingBinutils(t *testing.T) {
	fake := executor.NewFake().AddTool("mips-linux-gnu-as")
	tests := []struct {
		name string
		vars map[string]string
		want bool
	}{
		{"no cross compile", map[string]string{"LLVM_IAS": "0"}, false},
		{"integrated assembler", map[string]string{"CROSS_COMPILE": "arm-linux-gnueabi-", "LLVM_IAS": "1"}, false},
		{"default assembler", map[string]string{"CROSS_COMPILE": "arm-linux-gnueabi-"}, false},
		{"gnu as missing", map[string]string{"CROSS_COMPILE": "arm-linux-gnueabi-", "LLVM_IAS": "0"}, true},
		{"gnu as found", map[string]string{"CROSS_COMPILE": "mips-linux-gnu-", "LLVM_IAS": "0"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := missingBinutils(tt.vars, fake); got != tt.want {
				t.Errorf("missingBinutils(%v) = %v, want %v", tt.vars, got, tt.want)
			}
		})
	}
}
