// Package executor runs the external tools lkt drives: make, clang,
// scripts/config, boot-qemu.py and friends.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Command describes one subprocess invocation
type Command struct {
	// Name is the program to run, resolved through PATH
	Name string
	// Args are the program arguments
	Args []string
	// Dir is the working directory, empty for the current one
	Dir string
	// Env holds variables layered on top of the process environment
	Env map[string]string
	// Stdin is connected to the program's standard input when set
	Stdin io.Reader
	// Output receives combined stdout and stderr. When nil the output is
	// captured into Result.Output instead.
	Output io.Writer
}

// String renders the command the way a user would type it
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Name))
	for _, arg := range c.Args {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'$`\\|&;<>()*?[]#~") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

// Result is the outcome of a command that ran to completion
type Result struct {
	ExitCode int
	Output   []byte
}

// Success reports whether the command exited with status 0
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Executor is the interface for running external commands.
// Run only returns an error when the command could not be started or was
// cancelled; a non-zero exit status is reported through Result.ExitCode.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
	LookPath(name string) (string, error)
}

// Host runs commands directly on the host
type Host struct{}

// NewHost creates a host executor
func NewHost() *Host {
	return &Host{}
}

// LookPath resolves name through the current PATH
func (h *Host) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes the command, inheriting the host environment plus overrides
func (h *Host) Run(ctx context.Context, c Command) (*Result, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("no command specified")
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Env = os.Environ()
	for _, k := range sortedKeys(c.Env) {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, c.Env[k]))
	}

	var captured bytes.Buffer
	if c.Output != nil {
		cmd.Stdout = c.Output
		cmd.Stderr = c.Output
	} else {
		cmd.Stdout = &captured
		cmd.Stderr = &captured
	}

	err := cmd.Run()
	res := &Result{Output: captured.Bytes()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("failed to run %s: %w", c.Name, err)
	}

	return res, nil
}

// Output runs the command and returns its trimmed output, treating a
// non-zero exit status as an error that carries the output.
func Output(ctx context.Context, e Executor, c Command) (string, error) {
	c.Output = nil
	res, err := e.Run(ctx, c)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(string(res.Output))
	if !res.Success() {
		return out, fmt.Errorf("%s exited with status %d: %s", c.String(), res.ExitCode, out)
	}
	return out, nil
}

// Has reports whether name can be found through the executor's PATH
func Has(e Executor, name string) bool {
	_, err := e.LookPath(name)
	return err == nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
