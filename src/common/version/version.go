// Package version describes an lkt build: its release, the commit it was
// built from and the run history schema it writes.
package version

import (
	"fmt"
	"runtime"
	"strconv"
)

// Info holds version information, set at build time via ldflags
type Info struct {
	// Version is the full version string, e.g. "v0.4.0-4f9f297"
	Version string

	// ReleaseVersion is the semantic version (e.g., "0.4.0")
	ReleaseVersion string

	// BuildDate is the ISO 8601 build timestamp
	BuildDate string

	// GitCommit is the short git commit hash
	GitCommit string

	// Schema is the newest run history schema this build writes, zero
	// when unknown
	Schema int
}

// Values of a build without ldflags
const (
	DevVersion = "dev"
	DevRelease = "0.0.0"
	Unknown    = "unknown"
)

// New creates the Info of a development build
func New() *Info {
	return &Info{
		Version:        DevVersion,
		ReleaseVersion: DevRelease,
		BuildDate:      Unknown,
		GitCommit:      Unknown,
	}
}

// GoVersion returns the Go runtime version
func GoVersion() string {
	return runtime.Version()
}

// IsDev reports whether this build was made without release ldflags
func (i *Info) IsDev() bool {
	return i.ReleaseVersion == "" || i.ReleaseVersion == DevRelease
}

// String returns the full version string
func (i *Info) String() string {
	return i.Version
}

// Release identifies the build in the run history, e.g.
// "v0.4.0-4f9f297". Development builds give "dev" or "dev-<commit>".
func (i *Info) Release() string {
	commit := i.GitCommit
	if commit == Unknown {
		commit = ""
	}
	base := "v" + i.ReleaseVersion
	if i.IsDev() {
		base = DevVersion
	}
	if commit == "" {
		return base
	}
	return base + "-" + commit
}

// Full returns a detailed multi-line version string
func (i *Info) Full() string {
	return fmt.Sprintf(`%s
  Version:    %s
  Build Date: %s
  Git Commit: %s
  Go Version: %s
  History:    schema %d`,
		i.Version,
		i.ReleaseVersion,
		i.BuildDate,
		i.GitCommit,
		GoVersion(),
		i.Schema,
	)
}

// Map returns version info as a map, used by `lkt version -o json` and
// the results API
func (i *Info) Map() map[string]string {
	return map[string]string{
		"version":         i.Version,
		"release_version": i.ReleaseVersion,
		"release":         i.Release(),
		"build_date":      i.BuildDate,
		"git_commit":      i.GitCommit,
		"go_version":      GoVersion(),
		"history_schema":  strconv.Itoa(i.Schema),
	}
}
