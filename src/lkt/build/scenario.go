// Package build runs one kernel build scenario: it seeds the .config,
// applies the requested options, runs make and verifies the result.
package build

import (
	"path/filepath"
	"strings"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/lkt/kconfig"
)

// maxLogName leaves room for ".log" within the usual 255 byte limit
const maxLogName = 251

// Scenario is one fully materialised kernel build
type Scenario struct {
	// Arch is the kernel ARCH make variable
	Arch string
	// Target is the config make target, e.g. "defconfig"
	Target string
	// Fragments are extra config fragment targets such as "kvm_guest.config"
	Fragments []string
	// Distro names the distribution whose config is copied into place
	Distro string
	// DistroConfig is the path of that distribution config
	DistroConfig string
	// Options are requested explicitly; they are part of the name and are
	// verified after the build
	Options []kconfig.Option
	// Adjust are compatibility options applied silently
	Adjust []kconfig.Option
	// Vars override the run and architecture make variables
	Vars map[string]string
	// ExtraTargets are built after all or the image target
	ExtraTargets []string
	// ImageTarget is built instead of all when only boot testing
	ImageTarget string

	Bootable bool
	BootArch string
	QEMUArch string
	// SkipBoot is set when a workaround keeps a bootable image from booting
	SkipBoot   bool
	BootReason string

	// Notes are workaround annotations for the log
	Notes []string
}

// IsDistro reports whether the scenario starts from a distribution config
func (s *Scenario) IsDistro() bool {
	return s.DistroConfig != ""
}

// Labels returns the parts the scenario name is made of
func (s *Scenario) Labels() []string {
	var labels []string
	if s.IsDistro() {
		labels = append(labels, s.Distro+" config")
	} else {
		labels = append(labels, s.Target)
	}
	labels = append(labels, s.Fragments...)
	labels = append(labels, kconfig.Strings(s.Options)...)
	return labels
}

// Name is "<ARCH> <config> + <fragment> + <option> ..."
func (s *Scenario) Name() string {
	return s.Arch + " " + strings.Join(s.Labels(), " + ")
}

// LogName turns the name into a file name
func (s *Scenario) LogName() string {
	name := strings.ReplaceAll(s.Name(), " ", "-")
	name = strings.ReplaceAll(name, "-+-", "-")
	name = strings.ReplaceAll(name, `""`, "")
	name = strings.ReplaceAll(name, "/", "_")
	if len(name) > maxLogName {
		name = name[:maxLogName]
	}
	return name + ".log"
}

// LogPath is the scenario log inside logDir
func (s *Scenario) LogPath(logDir string) string {
	return filepath.Join(logDir, s.LogName())
}

// Validate checks the scenario is buildable
func (s *Scenario) Validate() error {
	switch {
	case s.Arch == "":
		return lkterrors.ErrScenarioInvalid.WithMessage("scenario has no ARCH")
	case s.Target == "" && !s.IsDistro():
		return lkterrors.ErrScenarioInvalid.WithMessagef("%s has no configuration to build", s.Arch)
	case s.Target != "" && s.IsDistro():
		return lkterrors.ErrScenarioInvalid.WithMessagef("%s has both a config target and a distribution config", s.Name())
	case s.IsDistro() && len(s.Fragments) > 0:
		return lkterrors.ErrScenarioInvalid.WithMessagef("config fragments are not supported with distribution configs (%s)", s.Name())
	case s.Bootable && (s.BootArch == "" || s.QEMUArch == ""):
		return lkterrors.ErrScenarioInvalid.WithMessagef("%s is bootable but has no boot or QEMU architecture", s.Name())
	}
	return nil
}
