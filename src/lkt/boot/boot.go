// Package boot drives boot-utils' boot-qemu.py against a finished build.
package boot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/common/paths"
	"github.com/bitswalk/lkt/src/lkt/executor"
	"github.com/bitswalk/lkt/src/lkt/report"
)

var log *logs.Logger

// SetLogger sets the logger for the boot package
func SetLogger(l *logs.Logger) {
	log = l
}

// Exit statuses boot-qemu.py reserves for "could not try"
const (
	ExitEmulatorMissing      = 77
	ExitEmulatorIncompatible = 78
)

const (
	bootScript = "boot-qemu.py"
	ghJSONFile = ".boot-utils.json"
	el1Check   = "utils/aarch64_32_bit_el1_supported"
)

// Request describes one boot attempt
type Request struct {
	// Name is the scenario name, for logging
	Name string
	// BootArch is the boot-utils architecture tag, e.g. "arm32_v7"
	BootArch string
	// QEMUArch is the qemu-system-<arch> suffix
	QEMUArch string
	// BuildDir is the kernel output folder passed with -k
	BuildDir string
	// Log is the scenario log the boot output is appended to
	Log string
}

// Outcome is the boot status and, for skips, why
type Outcome struct {
	Status report.Status
	Reason string
}

// Booter boots kernels with boot-qemu.py
type Booter struct {
	Exec executor.Executor
	// Folder is the boot-utils checkout
	Folder string
	// LogDir may hold a .boot-utils.json with GitHub release metadata
	LogDir string
	// Host is the build machine name (uname -m)
	Host string
	// KVMAccess reports read/write access to /dev/kvm
	KVMAccess func() bool
	// Stdout receives the boot output of failed boots
	Stdout io.Writer
}

// HaveDevKVMAccess checks /dev/kvm for read and write access
func HaveDevKVMAccess() bool {
	return unix.Access("/dev/kvm", unix.R_OK|unix.W_OK) == nil
}

// Script returns the path of boot-qemu.py
func (b *Booter) Script() string {
	return filepath.Join(b.Folder, bootScript)
}

// Command builds the boot-qemu.py invocation for req
func (b *Booter) Command(ctx context.Context, req Request) executor.Command {
	args := []string{"-a", req.BootArch, "-k", req.BuildDir}
	if b.LogDir != "" {
		if jsonFile := filepath.Join(b.LogDir, ghJSONFile); paths.IsFile(jsonFile) {
			args = append(args, "--gh-json-file", jsonFile)
		}
	}
	// x86 can only have 8 CPUs and may lack highmem, so it keeps the default
	if b.usingKVM(ctx, req.BootArch) && req.BootArch != "x86" {
		args = append(args, "-m", "2G")
	}
	return executor.Command{Name: b.Script(), Args: args}
}

func (b *Booter) usingKVM(ctx context.Context, bootArch string) bool {
	access := b.KVMAccess
	if access == nil {
		access = HaveDevKVMAccess
	}

	switch b.Host {
	case "aarch64":
		if bootArch == "arm32_v7" {
			res, err := b.Exec.Run(ctx, executor.Command{Name: filepath.Join(b.Folder, el1Check)})
			return err == nil && res.Success() && access()
		}
		return (bootArch == "arm64" || bootArch == "arm64be") && access()
	case "x86_64":
		return (bootArch == "x86" || bootArch == "x86_64") && access()
	}
	return false
}

// Boot runs boot-qemu.py and appends its output to the scenario log. A
// missing emulator is a skip; a missing boot-utils checkout is an error.
func (b *Booter) Boot(ctx context.Context, req Request) (Outcome, error) {
	if req.BootArch == "" || req.QEMUArch == "" {
		return Outcome{}, lkterrors.ErrScenarioInvalid.WithMessagef("%s has no boot or QEMU architecture", req.Name)
	}

	qemu := "qemu-system-" + req.QEMUArch
	if !executor.Has(b.Exec, qemu) {
		return Outcome{Status: report.Skipped, Reason: "missing " + qemu}, nil
	}
	if !paths.IsDir(b.Folder) {
		return Outcome{}, lkterrors.ErrBootHelperMissing.WithMessagef("boot-utils could not be found at %s", b.Folder)
	}
	if !paths.IsFile(b.Script()) {
		return Outcome{}, lkterrors.ErrBootHelperMissing.WithMessagef("%s could not be found in %s", bootScript, b.Folder)
	}

	cmd := b.Command(ctx, req)
	fmt.Fprintf(b.stdout(), "\n$ %s\n", cmd.String())
	if log != nil {
		log.Info("Booting kernel", "name", req.Name, "arch", req.BootArch)
	}

	res, err := b.Exec.Run(ctx, cmd)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to run %s: %w", bootScript, err)
	}

	if err := appendLog(req.Log, res.Output); err != nil {
		return Outcome{}, err
	}

	switch res.ExitCode {
	case 0:
		return Outcome{Status: report.Successful}, nil
	case ExitEmulatorMissing:
		return Outcome{Status: report.Skipped, Reason: "missing " + qemu}, nil
	case ExitEmulatorIncompatible:
		return Outcome{Status: report.Skipped, Reason: "incompatible " + qemu}, nil
	}

	// the boot log already holds the output
	if _, err := b.stdout().Write(res.Output); err != nil && log != nil {
		log.Warn("Failed to echo boot output", "name", req.Name, "log", req.Log, "error", err)
	}
	return Outcome{Status: report.Failed}, nil
}

func (b *Booter) stdout() io.Writer {
	if b.Stdout != nil {
		return b.Stdout
	}
	return io.Discard
}

func appendLog(path string, data []byte) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open boot log %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write boot log %s: %w", path, err)
	}
	return f.Close()
}
