package db

import "time"

// RunStatus is the overall outcome of a run
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusPassed  RunStatus = "passed"
	RunStatusFailed  RunStatus = "failed"
	RunStatusAborted RunStatus = "aborted"
)

// Run is one invocation of the harness against a kernel tree
type Run struct {
	ID            string     `json:"id"`
	Source        string     `json:"source"`
	Host          string     `json:"host,omitempty"`
	LinuxVersion  string     `json:"linux_version"`
	LLVMVersion   string     `json:"llvm_version"`
	Architectures []string   `json:"architectures"`
	Targets       []string   `json:"targets"`
	Status        RunStatus  `json:"status"`
	Successful    int        `json:"successful"`
	Failed        int        `json:"failed"`
	Skipped       int        `json:"skipped"`
	LogFolder     string     `json:"log_folder,omitempty"`
	ArchivePrefix string     `json:"archive_prefix,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Result is one scenario outcome of a run
type Result struct {
	ID         int64         `json:"id"`
	RunID      string        `json:"run_id"`
	Position   int           `json:"position"`
	Arch       string        `json:"arch"`
	Name       string        `json:"name"`
	Build      string        `json:"build"`
	Duration   time.Duration `json:"duration_ns"`
	Reason     string        `json:"reason,omitempty"`
	Boot       string        `json:"boot,omitempty"`
	BootReason string        `json:"boot_reason,omitempty"`
	LogName    string        `json:"log_name,omitempty"`
	Excerpt    []string      `json:"excerpt,omitempty"`
	Notes      []string      `json:"notes,omitempty"`
}
