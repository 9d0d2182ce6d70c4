package boot

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/lkt/executor"
	"github.com/bitswalk/lkt/src/lkt/report"
)

func newBooter(t *testing.T, fake *executor.Fake, host string, kvm bool) *Booter {
	t.Helper()
	folder := t.TempDir()
	if err := os.WriteFile(filepath.Join(folder, bootScript), []byte("#!/usr/bin/env python3\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return &Booter{
		Exec:      fake,
		Folder:    folder,
		LogDir:    t.TempDir(),
		Host:      host,
		KVMAccess: func() bool { return kvm },
	}
}

func TestCommand(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		kvm      bool
		bootArch string
		wantMem  bool
	}{
		{"x86_64 on x86_64 with kvm", "x86_64", true, "x86_64", true},
		{"x86 on x86_64 keeps default memory", "x86_64", true, "x86", false},
		{"arm64 on x86_64", "x86_64", true, "arm64", false},
		{"arm64 on aarch64 with kvm", "aarch64", true, "arm64be", true},
		{"no kvm access", "x86_64", false, "x86_64", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBooter(t, executor.NewFake(), tt.host, tt.kvm)
			cmd := b.Command(context.Background(), Request{BootArch: tt.bootArch, BuildDir: "/build/x86_64"})
			if cmd.Args[0] != "-a" || cmd.Args[1] != tt.bootArch || cmd.Args[3] != "/build/x86_64" {
				t.Errorf("unexpected args %v", cmd.Args)
			}
			if got := slices.Contains(cmd.Args, "2G"); got != tt.wantMem {
				t.Errorf("-m 2G present = %v, want %v (args %v)", got, tt.wantMem, cmd.Args)
			}
		})
	}
}

func TestCommandArm32OnAarch64(t *testing.T) {
	fake := executor.NewFake().On("", executor.Result{ExitCode: 1})
	b := newBooter(t, fake, "aarch64", true)
	cmd := b.Command(context.Background(), Request{BootArch: "arm32_v7", BuildDir: "b"})
	if slices.Contains(cmd.Args, "2G") {
		t.Error("32-bit EL1 unsupported, KVM must not be used")
	}
	if len(fake.CallsMatching(filepath.Join(b.Folder, el1Check))) != 1 {
		t.Error("expected the EL1 support check to run")
	}
}

func TestCommandGHJSON(t *testing.T) {
	b := newBooter(t, executor.NewFake(), "x86_64", false)
	jsonFile := filepath.Join(b.LogDir, ghJSONFile)
	if err := os.WriteFile(jsonFile, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	cmd := b.Command(context.Background(), Request{BootArch: "x86_64", BuildDir: "b"})
	if !slices.Contains(cmd.Args, "--gh-json-file") || !slices.Contains(cmd.Args, jsonFile) {
		t.Errorf("expected --gh-json-file, got %v", cmd.Args)
	}
}

func TestBoot(t *testing.T) {
	tests := []struct {
		name       string
		qemu       bool
		exitCode   int
		wantStatus report.Status
		wantReason string
	}{
		{"success", true, 0, report.Successful, ""},
		{"failure", true, 1, report.Failed, ""},
		{"emulator missing", false, 0, report.Skipped, "missing qemu-system-x86_64"},
		{"reserved missing", true, ExitEmulatorMissing, report.Skipped, "missing qemu-system-x86_64"},
		{"reserved incompatible", true, ExitEmulatorIncompatible, report.Skipped, "incompatible qemu-system-x86_64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := executor.NewFake()
			if tt.qemu {
				fake.AddTool("qemu-system-x86_64")
			}
			b := newBooter(t, fake, "x86_64", false)
			fake.On(b.Script(), executor.Result{ExitCode: tt.exitCode, Output: []byte("Linux version 6.1.0\n")})

			logPath := filepath.Join(t.TempDir(), "x86_64-defconfig.log")
			if err := os.WriteFile(logPath, []byte("build output\n"), 0644); err != nil {
				t.Fatal(err)
			}

			out, err := b.Boot(context.Background(), Request{
				Name: "x86_64 defconfig", BootArch: "x86_64", QEMUArch: "x86_64", BuildDir: "b", Log: logPath,
			})
			if err != nil {
				t.Fatalf("Boot failed: %v", err)
			}
			if out.Status != tt.wantStatus || out.Reason != tt.wantReason {
				t.Errorf("got %+v, want %s %q", out, tt.wantStatus, tt.wantReason)
			}

			if tt.qemu {
				data, err := os.ReadFile(logPath)
				if err != nil {
					t.Fatal(err)
				}
				if !strings.HasPrefix(string(data), "build output\n") || !strings.Contains(string(data), "Linux version") {
					t.Errorf("boot output not appended:\n%s", data)
				}
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestBootFailureEchoError(t *testing.T) {
	var logged bytes.Buffer
	SetLogger(logs.New(logs.Config{Writer: &logged, Level: "warn"}))
	t.Cleanup(func() { SetLogger(nil) })

	fake := executor.NewFake().AddTool("qemu-system-x86_64")
	b := newBooter(t, fake, "x86_64", false)
	b.Stdout = failingWriter{}
	fake.On(b.Script(), executor.Result{ExitCode: 1, Output: []byte("Kernel panic - not syncing\n")})

	logPath := filepath.Join(t.TempDir(), "x86_64-defconfig.log")
	out, err := b.Boot(context.Background(), Request{
		Name: "x86_64 defconfig", BootArch: "x86_64", QEMUArch: "x86_64", BuildDir: "b", Log: logPath,
	})
	if err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	if out.Status != report.Failed {
		t.Errorf("status = %s, want failed", out.Status)
	}
	if data, _ := os.ReadFile(logPath); !strings.Contains(string(data), "Kernel panic") {
		t.Errorf("boot log lost the output:\n%s", data)
	}
	if !strings.Contains(logged.String(), "Failed to echo boot output") || !strings.Contains(logged.String(), "broken pipe") {
		t.Errorf("echo failure not logged:\n%s", logged.String())
	}
}

func TestBootMissingHelper(t *testing.T) {
	fake := executor.NewFake().AddTool("qemu-system-aarch64")
	b := &Booter{Exec: fake, Folder: filepath.Join(t.TempDir(), "boot-utils")}

	_, err := b.Boot(context.Background(), Request{Name: "arm64 defconfig", BootArch: "arm64", QEMUArch: "aarch64"})
	if !lkterrors.Is(err, lkterrors.ErrBootHelperMissing) {
		t.Errorf("expected ErrBootHelperMissing, got %v", err)
	}
}
