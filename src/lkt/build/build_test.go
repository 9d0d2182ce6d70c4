package build

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bitswalk/lkt/src/lkt/executor"
	"github.com/bitswalk/lkt/src/lkt/kconfig"
	"github.com/bitswalk/lkt/src/lkt/probe"
	"github.com/bitswalk/lkt/src/lkt/report"
	"github.com/bitswalk/lkt/src/lkt/source"
)

func TestScenarioNames(t *testing.T) {
	tests := []struct {
		name     string
		sc       Scenario
		wantName string
		wantLog  string
	}{
		{
			name:     "config target",
			sc:       Scenario{Arch: "x86_64", Target: "defconfig"},
			wantName: "x86_64 defconfig",
			wantLog:  "x86_64-defconfig.log",
		},
		{
			name:     "options",
			sc:       Scenario{Arch: "arm64", Target: "defconfig", Options: kconfig.MustParse("CONFIG_CFI_CLANG=y", "CONFIG_SHADOW_CALL_STACK=y")},
			wantName: "arm64 defconfig + CONFIG_CFI_CLANG=y + CONFIG_SHADOW_CALL_STACK=y",
			wantLog:  "arm64-defconfig-CONFIG_CFI_CLANG=y-CONFIG_SHADOW_CALL_STACK=y.log",
		},
		{
			name: "distro",
			sc: Scenario{
				Arch:         "x86_64",
				Distro:       "archlinux",
				DistroConfig: "/configs/archlinux/x86_64.config",
				Options:      kconfig.MustParse(`CONFIG_EXTRA_FIRMWARE=""`),
				Adjust:       kconfig.MustParse("CONFIG_UNIX=y"),
			},
			wantName: `x86_64 archlinux config + CONFIG_EXTRA_FIRMWARE=""`,
			wantLog:  "x86_64-archlinux-config-CONFIG_EXTRA_FIRMWARE=.log",
		},
		{
			name:     "fragment",
			sc:       Scenario{Arch: "mips", Target: "32r2el_defconfig", Fragments: []string{"kvm_guest.config"}},
			wantName: "mips 32r2el_defconfig + kvm_guest.config",
			wantLog:  "mips-32r2el_defconfig-kvm_guest.config.log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sc.Name(); got != tt.wantName {
				t.Errorf("Name() = %q, want %q", got, tt.wantName)
			}
			if got := tt.sc.LogName(); got != tt.wantLog {
				t.Errorf("LogName() = %q, want %q", got, tt.wantLog)
			}
		})
	}
}

func TestLogNameTruncated(t *testing.T) {
	var opts []string
	for i := 0; i < 40; i++ {
		opts = append(opts, "CONFIG_SOME_LONG_OPTION_NAME=y")
	}
	sc := Scenario{Arch: "x86_64", Target: "allmodconfig", Options: kconfig.MustParse(opts...)}
	name := sc.LogName()
	if len(name) != maxLogName+len(".log") {
		t.Errorf("len(LogName()) = %d, want %d", len(name), maxLogName+4)
	}
}

func TestScenarioValidate(t *testing.T) {
	tests := []struct {
		name    string
		sc      Scenario
		wantErr bool
	}{
		{"ok", Scenario{Arch: "arm", Target: "multi_v7_defconfig"}, false},
		{"no arch", Scenario{Target: "defconfig"}, true},
		{"no config", Scenario{Arch: "arm"}, true},
		{"distro fragments", Scenario{Arch: "arm", Distro: "debian", DistroConfig: "x", Fragments: []string{"a.config"}}, true},
		{"bootable without arch", Scenario{Arch: "arm", Target: "defconfig", Bootable: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func newBuilder(t *testing.T, e executor.Executor, makefileClang string) *Builder {
	t.Helper()
	src := t.TempDir()
	if makefileClang != "" {
		if err := os.MkdirAll(filepath.Join(src, "scripts"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(src, "scripts", "Makefile.clang"), []byte(makefileClang), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return &Builder{
		Exec:     e,
		Tree:     source.NewStatic(src, probe.NewLinuxCode(6, 1, 0)),
		BuildDir: filepath.Join(src, "build", "x86_64"),
		LogDir:   filepath.Join(t.TempDir(), "logs"),
		Jobs:     4,
		Patcher:  kconfig.FilePatcher{},
	}
}

func TestMakeVars(t *testing.T) {
	tests := []struct {
		name          string
		makefileClang string
		vars          map[string]string
		wantIAS       string
	}{
		{"default on drops 1", "ifeq ($(LLVM_IAS),0)\n", nil, ""},
		{"default on keeps 0", "ifeq ($(LLVM_IAS),0)\n", map[string]string{"LLVM_IAS": "0"}, "0"},
		{"default off keeps 1", "ifeq ($(LLVM_IAS),1)\n", nil, "1"},
		{"default off drops 0", "", map[string]string{"LLVM_IAS": "0"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t, executor.NewFake(), tt.makefileClang)
			vars := b.MakeVars(&Scenario{Arch: "x86_64", Target: "defconfig", Vars: tt.vars})
			if got := vars["LLVM_IAS"]; got != tt.wantIAS {
				t.Errorf("LLVM_IAS = %q, want %q", got, tt.wantIAS)
			}
			if vars["O"] != filepath.Join("build", "x86_64") {
				t.Errorf("O = %q, want relative build folder", vars["O"])
			}
			if vars["ARCH"] != "x86_64" || vars["HOSTLDFLAGS"] != "-fuse-ld=lld" {
				t.Errorf("unexpected vars %v", vars)
			}
		})
	}
}

func TestMakeVarsPrecedence(t *testing.T) {
	b := newBuilder(t, executor.NewFake(), "")
	b.Vars = map[string]string{"LD": "ld.lld", "CROSS_COMPILE": "aarch64-linux-gnu-"}
	vars := b.MakeVars(&Scenario{Arch: "arm64", Target: "defconfig", Vars: map[string]string{"LD": "aarch64-linux-gnu-ld"}})
	if vars["LD"] != "aarch64-linux-gnu-ld" {
		t.Errorf("scenario vars should win, LD = %q", vars["LD"])
	}
	if vars["CROSS_COMPILE"] != "aarch64-linux-gnu-" {
		t.Errorf("builder vars lost, CROSS_COMPILE = %q", vars["CROSS_COMPILE"])
	}
}

func TestMakeCommandSortsVars(t *testing.T) {
	b := newBuilder(t, executor.NewFake(), "")
	cmd := b.MakeCommand(map[string]string{"O": "build", "ARCH": "arm", "LLVM": "1"}, "defconfig", "all")
	want := []string{"-skj4", "-C", b.Tree.Folder, "ARCH=arm", "LLVM=1", "O=build", "defconfig", "all"}
	if !slices.Equal(cmd.Args, want) {
		t.Errorf("Args = %v, want %v", cmd.Args, want)
	}
}

func TestBuildSingleMake(t *testing.T) {
	fake := executor.NewFake().On("make", executor.Result{Output: []byte("  LD      vmlinux\n")})
	b := newBuilder(t, fake, "")

	sc := &Scenario{Arch: "x86_64", Target: "defconfig", ExtraTargets: []string{"dtbs"}}
	out, err := b.Build(context.Background(), sc)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if out.Status != report.Successful {
		t.Errorf("Status = %s", out.Status)
	}

	calls := fake.CallsMatching("make")
	if len(calls) != 1 {
		t.Fatalf("expected one make call, got %d", len(calls))
	}
	args := calls[0].Args
	if got := args[len(args)-3:]; !slices.Equal(got, []string{"defconfig", "all", "dtbs"}) {
		t.Errorf("targets = %v", got)
	}

	data, err := os.ReadFile(out.Log)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "make -skj4") {
		t.Errorf("log should start with the make command:\n%s", text)
	}
	if !strings.Contains(text, "LD      vmlinux") || !strings.Contains(text, "\nReal\t") {
		t.Errorf("log missing build output or timing:\n%s", text)
	}
}

func TestBuildOnlyTestBoot(t *testing.T) {
	fake := executor.NewFake()
	b := newBuilder(t, fake, "")
	b.OnlyTestBoot = true

	if _, err := b.Build(context.Background(), &Scenario{Arch: "x86_64", Target: "defconfig", ImageTarget: "bzImage"}); err != nil {
		t.Fatal(err)
	}
	args := fake.CallsMatching("make")[0].Args
	if args[len(args)-1] != "bzImage" {
		t.Errorf("expected image target, got %v", args)
	}
}

// fakeKbuild writes a .config for config targets and drops KASAN during
// olddefconfig, like an invisible symbol would.
func fakeKbuild(buildDir string, exitCode int) func(executor.Command) (executor.Result, error) {
	return func(c executor.Command) (executor.Result, error) {
		cfg := filepath.Join(buildDir, ".config")
		if slices.Contains(c.Args, "defconfig") {
			if err := os.MkdirAll(buildDir, 0755); err != nil {
				return executor.Result{}, err
			}
			if err := os.WriteFile(cfg, []byte("CONFIG_WERROR=y\nCONFIG_LTO_NONE=y\n"), 0644); err != nil {
				return executor.Result{}, err
			}
			return executor.Result{}, nil
		}
		if slices.Contains(c.Args, "olddefconfig") {
			f, err := kconfig.ParseFile(cfg)
			if err != nil {
				return executor.Result{}, err
			}
			f.Undefine("KASAN")
			if err := f.WriteFile(cfg); err != nil {
				return executor.Result{}, err
			}
		}
		out := "drivers/foo.c:1:1: warning: something\n"
		if exitCode != 0 {
			out += "drivers/foo.c:2:1: error: something else\n"
		}
		return executor.Result{ExitCode: exitCode, Output: []byte(out)}, nil
	}
}

func TestBuildWithOptions(t *testing.T) {
	fake := executor.NewFake()
	b := newBuilder(t, fake, "")
	fake.Handle("make", fakeKbuild(b.BuildDir, 0))

	sc := &Scenario{
		Arch:    "x86_64",
		Target:  "defconfig",
		Options: kconfig.MustParse("CONFIG_LTO_CLANG_THIN=y", "CONFIG_KASAN=y"),
	}
	out, err := b.Build(context.Background(), sc)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	calls := fake.CallsMatching("make")
	if len(calls) != 2 {
		t.Fatalf("expected config and build make calls, got %d", len(calls))
	}
	if last := calls[0].Args[len(calls[0].Args)-1]; last != "defconfig" {
		t.Errorf("first make should only generate the config, got %v", calls[0].Args)
	}
	final := calls[1].Args
	if got := final[len(final)-2:]; !slices.Equal(got, []string{"olddefconfig", "all"}) {
		t.Errorf("final targets = %v", got)
	}

	cfg, err := kconfig.ParseFile(filepath.Join(b.BuildDir, ".config"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Value("LTO_NONE") != kconfig.No {
		t.Errorf("choice partner not applied, LTO_NONE = %q", cfg.Value("LTO_NONE"))
	}

	if len(out.Missing) != 1 || out.Missing[0].Name != "KASAN" {
		t.Errorf("Missing = %v, want KASAN", out.Missing)
	}
	data, err := os.ReadFile(out.Log)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "WARNING: Missing requested configurations after olddefconfig: CONFIG_KASAN=y") {
		t.Errorf("missing warning not logged:\n%s", data)
	}
}

func TestBuildFailure(t *testing.T) {
	fake := executor.NewFake()
	b := newBuilder(t, fake, "")
	fake.Handle("make", fakeKbuild(b.BuildDir, 2))

	out, err := b.Build(context.Background(), &Scenario{Arch: "x86_64", Target: "allmodconfig"})
	if err != nil {
		t.Fatalf("a failing build is not an error: %v", err)
	}
	if out.Status != report.Failed {
		t.Errorf("Status = %s, want failed", out.Status)
	}
	excerpt, err := report.Excerpt(out.Log, b.Tree.Folder)
	if err != nil {
		t.Fatal(err)
	}
	if len(excerpt) == 0 {
		t.Error("expected at least one excerpt line")
	}
}

func TestBuildDistro(t *testing.T) {
	fake := executor.NewFake()
	b := newBuilder(t, fake, "")

	distroCfg := filepath.Join(t.TempDir(), "debian", "amd64.config")
	if err := os.MkdirAll(filepath.Dir(distroCfg), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(distroCfg, []byte("CONFIG_SYSTEM_TRUSTED_KEYS=\"debian/certs/debian-uefi-certs.pem\"\nCONFIG_ASHMEM=m\n"), 0644); err != nil {
		t.Fatal(err)
	}

	sc := &Scenario{
		Arch:         "x86_64",
		Distro:       "debian",
		DistroConfig: distroCfg,
		Options:      kconfig.MustParse("CONFIG_SYSTEM_TRUSTED_KEYS=n"),
		Adjust:       kconfig.MustParse("CONFIG_ASHMEM=y"),
	}
	out, err := b.Build(context.Background(), sc)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(out.Missing) != 0 {
		t.Errorf("unexpected missing options %v", out.Missing)
	}

	cfg, err := kconfig.ParseFile(filepath.Join(b.BuildDir, ".config"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Value("SYSTEM_TRUSTED_KEYS") != kconfig.No || cfg.Value("ASHMEM") != kconfig.Yes {
		t.Errorf("options not applied:\n%s", cfg.Serialize())
	}

	calls := fake.CallsMatching("make")
	if len(calls) != 1 {
		t.Fatalf("expected one make call, got %d", len(calls))
	}
	args := calls[0].Args
	if got := args[len(args)-2:]; !slices.Equal(got, []string{"olddefconfig", "all"}) {
		t.Errorf("targets = %v", got)
	}
	if !strings.HasPrefix(out.Commands[0], "cp "+distroCfg) {
		t.Errorf("first logged command = %q", out.Commands[0])
	}
}

func TestBuildResetsOutputFolder(t *testing.T) {
	fake := executor.NewFake()
	b := newBuilder(t, fake, "")
	stale := filepath.Join(b.BuildDir, ".config")
	if err := os.MkdirAll(b.BuildDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("CONFIG_STALE=y\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Build(context.Background(), &Scenario{Arch: "x86_64", Target: "tinyconfig"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale .config survived the reset")
	}
}
