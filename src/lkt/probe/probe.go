package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/lkt/executor"
)

var log *logs.Logger

// SetLogger sets the logger for the probe package
func SetLogger(l *logs.Logger) {
	log = l
}

var qemuVersionRe = regexp.MustCompile(`version (\d+\.\d+\.\d+)`)

// LLVM asks clang for its own version macros. A missing clang yields 0.
func LLVM(ctx context.Context, e executor.Executor, clang string) (ToolCode, error) {
	if clang == "" {
		clang = "clang"
	}
	if !executor.Has(e, clang) {
		return 0, nil
	}

	out, err := executor.Output(ctx, e, executor.Command{
		Name:  clang,
		Args:  []string{"-E", "-P", "-x", "c", "-"},
		Stdin: strings.NewReader("__clang_major__ __clang_minor__ __clang_patchlevel__"),
	})
	if err != nil {
		return 0, lkterrors.ErrProbeFailed.WithMessagef("failed to query %s version", clang).WithCause(err)
	}

	fields := strings.Fields(out)
	if len(fields) != 3 {
		return 0, lkterrors.ErrProbeFailed.WithMessagef("unexpected %s version output %q", clang, out)
	}
	return ParseToolCode(strings.Join(fields, "."))
}

// Binutils parses the version printed by "<as> --version". Both
// "GNU assembler (GNU Binutils) 2.39.50.20221024" and
// "GNU assembler version 2.39-3.fc38" are understood.
func Binutils(ctx context.Context, e executor.Executor, as string) (ToolCode, error) {
	if as == "" {
		as = "as"
	}
	if !executor.Has(e, as) {
		return 0, nil
	}

	out, err := executor.Output(ctx, e, executor.Command{Name: as, Args: []string{"--version"}})
	if err != nil {
		return 0, lkterrors.ErrProbeFailed.WithMessagef("failed to query %s version", as).WithCause(err)
	}

	first := firstLine(out)
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return 0, lkterrors.ErrProbeFailed.WithMessagef("empty %s version output", as)
	}
	return ParseToolCode(fields[len(fields)-1])
}

// QEMU parses "qemu-system-<arch> --version". A missing binary yields 0.
func QEMU(ctx context.Context, e executor.Executor, arch string) (ToolCode, error) {
	binary := "qemu-system-" + arch
	if !executor.Has(e, binary) {
		return 0, nil
	}

	out, err := executor.Output(ctx, e, executor.Command{Name: binary, Args: []string{"--version"}})
	if err != nil {
		return 0, lkterrors.ErrProbeFailed.WithMessagef("failed to query %s version", binary).WithCause(err)
	}

	m := qemuVersionRe.FindStringSubmatch(firstLine(out))
	if m == nil {
		return 0, lkterrors.ErrProbeFailed.WithMessagef("could not find QEMU version in %q", firstLine(out))
	}
	return ParseToolCode(m[1])
}

// Linux runs "make -s kernelversion" in the source tree
func Linux(ctx context.Context, e executor.Executor, folder string) (LinuxCode, error) {
	if _, err := os.Stat(filepath.Join(folder, "Makefile")); err != nil {
		return 0, lkterrors.ErrNotKernelTree.WithMessagef("%s does not look like a Linux kernel tree", folder)
	}

	out, err := executor.Output(ctx, e, executor.Command{
		Name: "make",
		Args: []string{"-C", folder, "-s", "kernelversion"},
	})
	if err != nil {
		return 0, lkterrors.ErrProbeFailed.WithMessage("failed to query kernel version").WithCause(err)
	}

	code, err := ParseLinuxCode(firstLine(out))
	if err != nil {
		return 0, err
	}
	if log != nil {
		log.Debug("Probed kernel version", "folder", folder, "version", code.String())
	}
	return code, nil
}

// MinTool runs scripts/min-tool-version.sh for tool, optionally with
// SRCARCH set. Trees without the script yield 0.
func MinTool(ctx context.Context, e executor.Executor, folder, srcarch, tool string) (ToolCode, error) {
	script := filepath.Join(folder, "scripts", "min-tool-version.sh")
	if _, err := os.Stat(script); err != nil {
		return 0, nil
	}

	cmd := executor.Command{Name: script, Args: []string{tool}}
	if srcarch != "" {
		cmd.Env = map[string]string{"SRCARCH": srcarch}
	}
	out, err := executor.Output(ctx, e, cmd)
	if err != nil {
		return 0, lkterrors.ErrProbeFailed.WithMessagef("failed to query minimum %s version", tool).WithCause(err)
	}
	return ParseToolCode(out)
}

// ClangSupportsTarget compiles an empty file for target
func ClangSupportsTarget(ctx context.Context, e executor.Executor, target string) bool {
	res, err := e.Run(ctx, executor.Command{
		Name: "clang",
		Args: []string{fmt.Sprintf("--target=%s", target), "-c", "-x", "c", "-o", "/dev/null", "/dev/null"},
	})
	return err == nil && res.Success()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
