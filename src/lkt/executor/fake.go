package executor

import (
	"context"
	"os/exec"
	"strings"
	"sync"
)

// Fake is an in-memory Executor for tests. Responses are matched by
// command-line prefix in registration order; unmatched commands succeed
// with no output.
type Fake struct {
	mu        sync.Mutex
	calls     []Command
	handlers  []fakeHandler
	available map[string]string
}

type fakeHandler struct {
	prefix string
	fn     func(Command) (Result, error)
}

// NewFake creates a fake executor
func NewFake() *Fake {
	return &Fake{available: make(map[string]string)}
}

// AddTool makes name resolvable through LookPath
func (f *Fake) AddTool(names ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range names {
		f.available[name] = "/usr/bin/" + name
	}
	return f
}

// On registers a canned result for commands starting with prefix
func (f *Fake) On(prefix string, res Result) *Fake {
	return f.Handle(prefix, func(Command) (Result, error) { return res, nil })
}

// Handle registers a callback for commands starting with prefix
func (f *Fake) Handle(prefix string, fn func(Command) (Result, error)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, fakeHandler{prefix: prefix, fn: fn})
	return f
}

// LookPath resolves tools registered with AddTool
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.available[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Run records the command and returns the first matching response
func (f *Fake) Run(ctx context.Context, c Command) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	var match *fakeHandler
	line := c.String()
	for i := range f.handlers {
		if strings.HasPrefix(line, f.handlers[i].prefix) {
			match = &f.handlers[i]
			break
		}
	}
	f.mu.Unlock()

	if match == nil {
		return &Result{}, nil
	}

	res, err := match.fn(c)
	if err != nil {
		return nil, err
	}
	if c.Output != nil && len(res.Output) > 0 {
		_, _ = c.Output.Write(res.Output)
		res.Output = nil
	}
	return &res, nil
}

// Calls returns every command run so far
func (f *Fake) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// CallsMatching returns the commands whose command line starts with prefix
func (f *Fake) CallsMatching(prefix string) []Command {
	var out []Command
	for _, c := range f.Calls() {
		if strings.HasPrefix(c.String(), prefix) {
			out = append(out, c)
		}
	}
	return out
}
