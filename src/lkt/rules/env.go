// Package rules evaluates the version-gated workaround table.
//
// A rule pairs a predicate over the toolchain, the kernel tree and the
// scenario being planned with an effect: force config options, set make
// variables, annotate, or skip a scenario, its boot or a whole
// architecture. Rules run in order and see the options earlier rules
// requested.
package rules

import (
	"os"

	"github.com/bitswalk/lkt/src/lkt/kconfig"
	"github.com/bitswalk/lkt/src/lkt/probe"
	"github.com/bitswalk/lkt/src/lkt/source"
)

// Env is everything a rule predicate may look at. Toolchain codes and the
// tree are fixed for the run; the scenario fields change per scenario.
type Env struct {
	// Arch is the kernel ARCH value
	Arch string
	// LLVM is the clang version code
	LLVM probe.ToolCode
	// Binutils is the version of the architecture's cross assembler
	Binutils probe.ToolCode
	// QEMU is the version of the architecture's qemu-system binary
	QEMU probe.ToolCode
	// MinLLVM is what scripts/min-tool-version.sh reports for the arch
	MinLLVM probe.ToolCode
	// Tree is the kernel source under test
	Tree *source.Tree
	// Host is the machine name of the build host (uname -m)
	Host string
	// Cross is the resolved CROSS_COMPILE prefix for the architecture
	Cross string
	// Lookup reports whether a tool is available on PATH
	Lookup func(name string) bool
	// OnlyTestBoot restricts the run to bootable images
	OnlyTestBoot bool
	// Vars are the architecture make variables resolved so far
	Vars map[string]string

	// Target is the config make target of the scenario, empty for distros
	Target string
	// Distro is the distribution whose config the scenario builds
	Distro string
	// DistroConfig is the config file stem, e.g. "amd64"
	DistroConfig string
	// Base is the parsed distribution config
	Base *kconfig.File
	// Options holds the options requested so far for the scenario
	Options []kconfig.Option
}

// Linux returns the version code of the tree under test
func (e *Env) Linux() probe.LinuxCode {
	if e.Tree == nil {
		return 0
	}
	return e.Tree.Version
}

// Has reports whether a tool is available
func (e *Env) Has(name string) bool {
	return e.Lookup != nil && e.Lookup(name)
}

// Scenario returns a copy of e scoped to one scenario
func (e *Env) Scenario(target, distro, distroConfig string, base *kconfig.File, opts []kconfig.Option) *Env {
	s := *e
	s.Target = target
	s.Distro = distro
	s.DistroConfig = distroConfig
	s.Base = base
	s.Options = append([]kconfig.Option(nil), opts...)
	return &s
}

// Requested reports whether option has been requested for the scenario
func (e *Env) Requested(opt kconfig.Option) bool {
	for _, o := range e.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Var returns the make variable name and whether it is set
func (e *Env) Var(name string) (string, bool) {
	v, ok := e.Vars[name]
	return v, ok
}

// Expand substitutes $cross, $arch, $llvm, $linux, $qemu, $binutils,
// $minllvm and make variables in s
func (e *Env) Expand(s string) string {
	return os.Expand(s, e.expand)
}

func (e *Env) expand(key string) string {
	switch key {
	case "cross":
		return e.Cross
	case "arch":
		return e.Arch
	case "llvm":
		return e.LLVM.String()
	case "linux":
		return e.Linux().String()
	case "qemu":
		return e.QEMU.String()
	case "binutils":
		return e.Binutils.String()
	case "minllvm":
		return e.MinLLVM.String()
	}
	return e.Vars[key]
}
