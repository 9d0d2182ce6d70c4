package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sys/unix"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/common/paths"
	"github.com/bitswalk/lkt/src/lkt/executor"
)

var variableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// parseVariables turns NAME=value arguments into a map. The value may be
// empty or contain further '=' characters.
func parseVariables(args []string) (map[string]string, error) {
	vars := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || !variableNameRe.MatchString(name) {
			return nil, lkterrors.ErrInvalidVariable.WithMessagef("invalid argument %q, expected NAME=value", arg)
		}
		vars[name] = value
	}
	return vars, nil
}

// addToPath puts <prefix>/bin in front of PATH
func addToPath(prefix string) error {
	if prefix == "" {
		return nil
	}
	prefix = paths.Expand(prefix)
	if !paths.IsDir(prefix) {
		return lkterrors.ErrPathNotFound.WithMessagef("supplied folder %s does not exist", prefix)
	}
	bin := filepath.Join(prefix, "bin")
	if !paths.IsDir(bin) {
		return lkterrors.ErrPrefixNoBin.WithMessagef("supplied folder %s does not have a 'bin' folder in it", prefix)
	}
	return os.Setenv("PATH", paths.PrependPath(os.Getenv("PATH"), bin))
}

// updateBootUtils clones boot-utils into folder when it is missing, then
// pulls the latest changes
func updateBootUtils(ctx context.Context, e executor.Executor, repository, folder string, out io.Writer) error {
	if !paths.IsDir(folder) {
		if err := paths.EnsureDir(folder); err != nil {
			return lkterrors.ErrBootUtilsFetch.WithCause(err)
		}
		if err := git(ctx, e, out, "clone", repository, folder); err != nil {
			return err
		}
	}
	return git(ctx, e, out, "-C", folder, "pull", "--no-edit")
}

func git(ctx context.Context, e executor.Executor, out io.Writer, args ...string) error {
	cmd := executor.Command{Name: "git", Args: args, Output: out}
	res, err := e.Run(ctx, cmd)
	if err != nil {
		return lkterrors.ErrBootUtilsFetch.WithCause(err)
	}
	if !res.Success() {
		return lkterrors.ErrBootUtilsFetch.WithMessagef("%s exited with status %d", cmd.String(), res.ExitCode)
	}
	return nil
}

// buildToolchain runs the toolchain build script, installing into prefix
// when one is given
func buildToolchain(ctx context.Context, e executor.Executor, script, prefix string, out io.Writer) error {
	script = paths.Expand(script)
	if !paths.IsFile(script) {
		return lkterrors.ErrPathNotFound.WithMessagef("toolchain build script %s does not exist", script)
	}

	cmd := executor.Command{Name: script, Output: out}
	if prefix != "" {
		cmd.Args = []string{"--install-folder", paths.Expand(prefix)}
	}
	fmt.Fprintf(out, "$ %s\n", cmd.String())

	res, err := e.Run(ctx, cmd)
	if err != nil {
		return lkterrors.ErrToolchainBuild.WithCause(err)
	}
	if !res.Success() {
		return lkterrors.ErrToolchainBuild.WithMessagef("%s exited with status %d", cmd.String(), res.ExitCode)
	}
	return nil
}

// makeVariables picks the optional make variables the host supports
func makeVariables(e executor.Executor, useCCache bool) map[string]string {
	vars := make(map[string]string)
	if useCCache && executor.Has(e, "ccache") {
		vars["CC"] = "ccache clang"
		vars["HOSTCC"] = "ccache clang"
	}
	if executor.Has(e, "pbzip2") {
		vars["KBZIP2"] = "pbzip2"
	}
	if executor.Has(e, "pigz") {
		vars["KGZIP"] = "pigz"
	}
	return vars
}

// hostMachine returns the machine name uname -m reports
func hostMachine(ctx context.Context, e executor.Executor) (string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err == nil {
		if m := unix.ByteSliceToString(u.Machine[:]); m != "" {
			return m, nil
		}
	}
	out, err := executor.Output(ctx, e, executor.Command{Name: "uname", Args: []string{"-m"}})
	if err != nil {
		return "", fmt.Errorf("failed to get host machine: %w", err)
	}
	return out, nil
}
