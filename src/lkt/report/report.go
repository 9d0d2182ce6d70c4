package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/common/paths"
	"github.com/bitswalk/lkt/src/lkt/executor"
)

var log *logs.Logger

// SetLogger sets the logger for the report package
func SetLogger(l *logs.Logger) {
	log = l
}

var (
	excerptRe   = regexp.MustCompile(`error:|warning:|undefined`)
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// Summary file names in the log folder
const (
	InfoLog    = "info.log"
	SuccessLog = "success.log"
	FailedLog  = "failed.log"
	SkippedLog = "skipped.log"
)

// EnvItem is one "label: value" line of environment information
type EnvItem struct {
	Label string
	Value string
}

// Report collects results into successful, failed and skipped lists
type Report struct {
	Source string
	LogDir string
	Start  time.Time
	Env    []EnvItem

	Good []string
	Bad  []string
	Skip []string

	results []Result
}

// New starts a report for a run that began at start
func New(source, logDir string, start time.Time) *Report {
	return &Report{Source: source, LogDir: logDir, Start: start}
}

// Results returns every result added so far
func (r *Report) Results() []Result {
	return append([]Result(nil), r.results...)
}

// Add categorizes results. Failed builds get the matching lines of their
// log as an excerpt, with the source folder prefix stripped.
func (r *Report) Add(results ...Result) error {
	for _, res := range results {
		if !res.Build.Valid() {
			return fmt.Errorf("could not handle build result %q for %s", res.Build, res.Name)
		}

		entry := []string{res.Line()}
		if res.Build == Failed && res.Log != "" {
			excerpt, err := Excerpt(res.Log, r.Source)
			if err != nil {
				return err
			}
			res.Excerpt = excerpt
			if len(excerpt) > 0 {
				entry = append(entry, strings.Join(excerpt, "\n"))
			}
		}
		r.file(res.Build, strings.Join(entry, "\n"))

		if res.Boot != "" {
			if !res.Boot.Valid() {
				return fmt.Errorf("could not handle boot result %q for %s", res.Boot, res.Name)
			}
			r.file(res.Boot, res.BootLine())
		}
		r.results = append(r.results, res)
	}
	return nil
}

func (r *Report) file(s Status, entry string) {
	switch s {
	case Successful:
		r.Good = append(r.Good, entry)
	case Failed:
		r.Bad = append(r.Bad, entry)
	case Skipped:
		r.Skip = append(r.Skip, entry)
	}
}

// HasFailures reports whether any build or boot failed
func (r *Report) HasFailures() bool {
	return len(r.Bad) > 0
}

// Excerpt returns the lines of a build log that look like diagnostics
func Excerpt(logPath, source string) ([]string, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open build log %s: %w", logPath, err)
	}
	defer f.Close()

	prefix := strings.TrimSuffix(source, "/") + "/"
	var lines []string
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for s.Scan() {
		line := s.Text()
		if excerptRe.MatchString(line) {
			lines = append(lines, strings.ReplaceAll(line, prefix, ""))
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to read build log %s: %w", logPath, err)
	}
	return lines, nil
}

// CollectEnv records toolchain and source information for info.log
func (r *Report) CollectEnv(ctx context.Context, e executor.Executor) error {
	if !paths.IsDir(r.Source) {
		return fmt.Errorf("source location %s does not exist", r.Source)
	}

	r.Env = nil
	for _, tool := range []struct{ cmd, label string }{{"clang", "clang"}, {"as", "binutils"}} {
		version, location, err := cmdInfo(ctx, e, tool.cmd)
		if err != nil {
			return err
		}
		r.Env = append(r.Env,
			EnvItem{tool.label + " version", version},
			EnvItem{tool.label + " location", location})
	}

	linux, err := LinuxRelease(ctx, e, r.Source)
	if err != nil {
		return err
	}
	r.Env = append(r.Env,
		EnvItem{"Linux version", linux},
		EnvItem{"Linux source location", r.Source},
		EnvItem{"PATH", os.Getenv("PATH")})
	return nil
}

func cmdInfo(ctx context.Context, e executor.Executor, cmd string) (string, string, error) {
	path, err := e.LookPath(cmd)
	if err != nil {
		return "", "", fmt.Errorf("failed to find %s: %w", cmd, err)
	}
	out, err := executor.Output(ctx, e, executor.Command{Name: cmd, Args: []string{"--version"}})
	if err != nil {
		return "", "", fmt.Errorf("failed to get %s version: %w", cmd, err)
	}
	first, _, _ := strings.Cut(out, "\n")
	return first, filepath.Dir(path), nil
}

// LinuxRelease returns "Linux <release>" including the local version
// suffix that scripts/setlocalversion derives from git.
func LinuxRelease(ctx context.Context, e executor.Executor, source string) (string, error) {
	includeConfig := filepath.Join(source, "include", "config")
	if err := paths.EnsureDirPath(includeConfig); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", includeConfig, err)
	}
	defer os.RemoveAll(includeConfig)

	autoConf := filepath.Join(includeConfig, "auto.conf")
	if err := os.WriteFile(autoConf, []byte("CONFIG_LOCALVERSION_AUTO=y\n"), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", autoConf, err)
	}

	makeCmd := executor.Command{Name: "make", Args: []string{"-C", source, "-s"}}
	setlocalversion := filepath.Join(source, "scripts", "setlocalversion")
	text, err := os.ReadFile(setlocalversion)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", setlocalversion, err)
	}

	if strings.Contains(string(text), "KERNELVERSION is not set") {
		makeCmd.Args = append(makeCmd.Args, "kernelrelease")
		release, err := executor.Output(ctx, e, makeCmd)
		if err != nil {
			return "", fmt.Errorf("failed to get kernel release: %w", err)
		}
		return "Linux " + release, nil
	}

	makeCmd.Args = append(makeCmd.Args, "kernelversion")
	version, err := executor.Output(ctx, e, makeCmd)
	if err != nil {
		return "", fmt.Errorf("failed to get kernel version: %w", err)
	}
	local, err := executor.Output(ctx, e, executor.Command{Name: setlocalversion, Dir: source})
	if err != nil {
		return "", fmt.Errorf("failed to get local version: %w", err)
	}
	return "Linux " + version + local, nil
}

// Header renders a boxed section title, bold when w is a terminal
func Header(w io.Writer, title string) {
	border := strings.Repeat("=", len(title)+6)
	text := fmt.Sprintf("%s\n== %s ==\n%s", border, title, border)
	if isTerminal(w) {
		text = headerStyle.Render(text)
	}
	fmt.Fprintf(w, "\n%s\n", text)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Write prints the environment, the total duration and every category to
// w, then writes info.log and the per-category logs into the log folder.
func (r *Report) Write(w io.Writer, end time.Time) error {
	total := "Total script duration: " + FormatDuration(end.Sub(r.Start))

	Header(w, "Environment information")
	for _, item := range r.Env {
		fmt.Fprintf(w, "%s: %s\n", item.Label, item.Value)
	}
	fmt.Fprintf(w, "\n%s\n", total)

	sections := []struct {
		title   string
		file    string
		entries []string
	}{
		{"List of successful tests", SuccessLog, r.Good},
		{"List of failed tests", FailedLog, r.Bad},
		{"List of skipped tests", SkippedLog, r.Skip},
	}
	for _, s := range sections {
		if len(s.entries) == 0 {
			continue
		}
		Header(w, s.title)
		fmt.Fprintln(w, strings.Join(s.entries, "\n"))
	}

	if err := paths.EnsureDirPath(r.LogDir); err != nil {
		return fmt.Errorf("failed to create log folder %s: %w", r.LogDir, err)
	}

	info := make([]string, 0, len(r.Env)+3)
	for _, item := range r.Env {
		info = append(info, fmt.Sprintf("%s: %s", item.Label, item.Value))
	}
	info = append(info, "", total, "")
	if err := os.WriteFile(filepath.Join(r.LogDir, InfoLog), []byte(strings.Join(info, "\n")), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", InfoLog, err)
	}

	for _, s := range sections {
		if len(s.entries) == 0 {
			continue
		}
		text := strings.Join(s.entries, "\n\n") + "\n"
		if err := os.WriteFile(filepath.Join(r.LogDir, s.file), []byte(text), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", s.file, err)
		}
	}

	if log != nil {
		log.Info("Report written",
			"folder", r.LogDir,
			"successful", len(r.Good),
			"failed", len(r.Bad),
			"skipped", len(r.Skip))
	}
	return nil
}
