// Package report categorizes scenario results and writes the run summary.
package report

import (
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of a build or a boot
type Status string

const (
	Successful Status = "successful"
	Failed     Status = "failed"
	Skipped    Status = "skipped"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case Successful, Failed, Skipped:
		return true
	}
	return false
}

// Result is the record of one scenario, or of a skipped group of them
type Result struct {
	Name     string
	Arch     string
	Build    Status
	Duration time.Duration
	Reason   string

	// Boot is empty when the scenario is not bootable
	Boot       Status
	BootReason string

	Log     string
	Excerpt []string
	Notes   []string
}

// Skip builds a skipped result
func Skip(arch, name, reason string) Result {
	return Result{Arch: arch, Name: name, Build: Skipped, Reason: reason}
}

// Line renders the build outcome: "<name> <status> [in <dur>] [due to <reason>]"
func (r Result) Line() string {
	parts := []string{r.Name, string(r.Build)}
	if r.Build != Skipped {
		parts = append(parts, "in", FormatDuration(r.Duration))
	}
	if r.Reason != "" {
		parts = append(parts, "due to", r.Reason)
	}
	return strings.Join(parts, " ")
}

// BootLine renders the boot outcome, or "" when nothing was booted
func (r Result) BootLine() string {
	if r.Boot == "" {
		return ""
	}
	line := fmt.Sprintf("%s qemu boot %s", r.Name, r.Boot)
	if r.BootReason != "" {
		line += " due to " + r.BootReason
	}
	return line
}

// Failed reports whether the build or the boot failed
func (r Result) Failed() bool {
	return r.Build == Failed || r.Boot == Failed
}

// FormatDuration renders whole seconds as "1d 2h 3m 4s", omitting leading
// zero units but always showing seconds.
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	days := seconds / 86400
	seconds %= 86400
	hours := seconds / 3600
	seconds %= 3600
	minutes := seconds / 60
	seconds %= 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))
	return strings.Join(parts, " ")
}
