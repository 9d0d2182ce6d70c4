// Package logs provides the logging facility for lkt commands.
// Logs go to stdout, stderr or systemd journald depending on configuration.
package logs

import (
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// LogOutput defines the output destination for logs
type LogOutput string

const (
	// OutputStdout sends logs to standard output
	OutputStdout LogOutput = "stdout"
	// OutputStderr sends logs to standard error, keeping stdout for build output
	OutputStderr LogOutput = "stderr"
	// OutputJournald sends logs to systemd journald
	OutputJournald LogOutput = "journald"
	// OutputAuto selects journald when available, otherwise stderr
	OutputAuto LogOutput = "auto"
)

// Logger wraps the charm log.Logger with its resolved output
type Logger struct {
	*log.Logger
	output LogOutput
}

// Config holds the configuration for the logger
type Config struct {
	// Output specifies where logs should be sent
	Output LogOutput
	// Level sets the minimum log level (debug, info, warn, error)
	Level string
	// Prefix sets a prefix for all log messages
	Prefix string
	// Writer overrides Output when set
	Writer io.Writer
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Output: OutputStderr,
		Level:  "info",
		Prefix: "lkt",
	}
}

func journaldAvailable() bool {
	if _, err := exec.LookPath("systemd-cat"); err != nil {
		return false
	}
	if _, err := os.Stat("/run/systemd/journal/socket"); err != nil {
		return false
	}
	return true
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func resolve(cfg Config) (io.Writer, LogOutput) {
	if cfg.Writer != nil {
		return cfg.Writer, cfg.Output
	}
	switch cfg.Output {
	case OutputStdout:
		return os.Stdout, OutputStdout
	case OutputJournald, OutputAuto:
		if journaldAvailable() {
			return newJournaldWriter(cfg.Prefix), OutputJournald
		}
	}
	return os.Stderr, OutputStderr
}

// New creates a new Logger with the given configuration
func New(cfg Config) *Logger {
	writer, output := resolve(cfg)

	logger := log.NewWithOptions(writer, log.Options{
		Level:           parseLevel(cfg.Level),
		Prefix:          cfg.Prefix,
		ReportTimestamp: output != OutputJournald,
	})

	return &Logger{
		Logger: logger,
		output: output,
	}
}

// NewDefault creates a new Logger with default configuration
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	return New(Config{Writer: io.Discard, Level: "error"})
}

// Output returns the current output destination
func (l *Logger) Output() LogOutput {
	return l.output
}

// journaldWriter sends each write to journald through systemd-cat
type journaldWriter struct {
	identifier string
}

func newJournaldWriter(identifier string) *journaldWriter {
	if identifier == "" {
		identifier = "lkt"
	}
	return &journaldWriter{identifier: identifier}
}

// Write implements io.Writer, falling back to stderr if systemd-cat fails
func (w *journaldWriter) Write(p []byte) (int, error) {
	cmd := exec.Command("systemd-cat", "-t", w.identifier)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return os.Stderr.Write(p)
	}
	if err := cmd.Start(); err != nil {
		return os.Stderr.Write(p)
	}

	n, _ := stdin.Write(p)
	stdin.Close()
	_ = cmd.Wait()

	return n, nil
}
