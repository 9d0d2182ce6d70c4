package kconfig

import (
	"context"
	"os"
	"path/filepath"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/lkt/executor"
)

// Patcher applies option edits to a .config on disk, leaving it ready for
// an olddefconfig pass. Applying the same options twice must produce the
// same file as applying them once.
type Patcher interface {
	Apply(ctx context.Context, path string, opts []Option) error
	Name() string
}

// FilePatcher edits the .config in-process
type FilePatcher struct{}

// Name identifies the patcher in logs
func (FilePatcher) Name() string { return "in-process" }

// Apply rewrites path with opts applied
func (FilePatcher) Apply(ctx context.Context, path string, opts []Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := ParseFile(path)
	if err != nil {
		return lkterrors.ErrConfigNotFound.WithMessagef("cannot patch %s", path).WithCause(err)
	}
	f.Apply(opts)
	return f.WriteFile(path)
}

// ScriptsConfig drives the kernel's own scripts/config tool
type ScriptsConfig struct {
	Exec   executor.Executor
	Script string
}

// Name identifies the patcher in logs
func (s *ScriptsConfig) Name() string { return "scripts/config" }

// Args builds the scripts/config argument list for opts
func (s *ScriptsConfig) Args(path string, opts []Option) []string {
	args := []string{"--file", path}
	for _, o := range opts {
		switch o.Action() {
		case ActionEnable:
			args = append(args, "-e", o.Name)
		case ActionDisable:
			args = append(args, "-d", o.Name)
		case ActionModule:
			args = append(args, "-m", o.Name)
		case ActionSetString:
			args = append(args, "--set-str", o.Name, o.Unquoted())
		case ActionSetValue:
			args = append(args, "--set-val", o.Name, o.Value)
		case ActionUndefine:
			args = append(args, "-u", o.Name)
		}
	}
	return args
}

// Apply runs scripts/config once with every edit
func (s *ScriptsConfig) Apply(ctx context.Context, path string, opts []Option) error {
	if len(opts) == 0 {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return lkterrors.ErrConfigNotFound.WithMessagef("cannot patch %s", path).WithCause(err)
	}
	if _, err := executor.Output(ctx, s.Exec, executor.Command{Name: s.Script, Args: s.Args(path, opts)}); err != nil {
		return lkterrors.ErrConfigureFailed.WithMessagef("scripts/config failed on %s", path).WithCause(err)
	}
	return nil
}

// NewPatcher prefers the tree's scripts/config and falls back to the
// in-process editor for trees that lack it.
func NewPatcher(e executor.Executor, source string) Patcher {
	script := filepath.Join(source, "scripts", "config")
	if info, err := os.Stat(script); err == nil && !info.IsDir() {
		return &ScriptsConfig{Exec: e, Script: script}
	}
	return FilePatcher{}
}
