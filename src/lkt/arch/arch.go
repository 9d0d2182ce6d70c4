// Package arch holds the per-architecture build tables: which scenarios
// each architecture builds, the make variables it needs and the
// workarounds that gate them.
package arch

import (
	"sort"
	"strings"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
)

// Arch is a kernel architecture the harness knows how to build
type Arch string

const (
	ARM       Arch = "arm"
	ARM64     Arch = "arm64"
	Hexagon   Arch = "hexagon"
	I386      Arch = "i386"
	LoongArch Arch = "loongarch"
	MIPS      Arch = "mips"
	PowerPC   Arch = "powerpc"
	RISCV     Arch = "riscv"
	S390      Arch = "s390"
	X86_64    Arch = "x86_64"
)

// experimental architectures are only built when asked for by name
var experimental = map[Arch]bool{
	LoongArch: true,
}

func (a Arch) String() string {
	return string(a)
}

// All returns every supported architecture, sorted
func All() []Arch {
	return []Arch{ARM, ARM64, Hexagon, I386, LoongArch, MIPS, PowerPC, RISCV, S390, X86_64}
}

// Default returns the architectures built when none are requested
func Default() []Arch {
	var def []Arch
	for _, a := range All() {
		if !experimental[a] {
			def = append(def, a)
		}
	}
	return def
}

// Parse validates an architecture name
func Parse(s string) (Arch, error) {
	a := Arch(strings.TrimSpace(s))
	for _, known := range All() {
		if a == known {
			return a, nil
		}
	}
	return "", lkterrors.ErrUnknownArchitecture.WithMessagef("unknown architecture %q (supported: %s)", s, strings.Join(Strings(All()), ", "))
}

// ParseList parses and sorts architecture names, dropping duplicates.
// An empty list selects Default.
func ParseList(names []string) ([]Arch, error) {
	if len(names) == 0 {
		return Default(), nil
	}
	seen := make(map[Arch]bool)
	var out []Arch
	for _, n := range names {
		a, err := Parse(n)
		if err != nil {
			return nil, err
		}
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Strings renders architectures as plain names
func Strings(arches []Arch) []string {
	out := make([]string, len(arches))
	for i, a := range arches {
		out[i] = string(a)
	}
	return out
}

// TargetKind selects a family of scenarios
type TargetKind string

const (
	// Def are the default configurations, usually bootable
	Def TargetKind = "def"
	// Other are allmodconfig, allnoconfig, tinyconfig and friends
	Other TargetKind = "other"
	// Distro are the distribution configurations
	Distro TargetKind = "distro"
)

// AllTargets returns every target kind in run order
func AllTargets() []TargetKind {
	return []TargetKind{Def, Other, Distro}
}

// ParseTargets validates target kinds; an empty list selects all of them
func ParseTargets(names []string) ([]TargetKind, error) {
	if len(names) == 0 {
		return AllTargets(), nil
	}
	var out []TargetKind
	for _, n := range names {
		switch k := TargetKind(strings.TrimSpace(n)); k {
		case Def, Other, Distro:
			out = append(out, k)
		default:
			return nil, lkterrors.ErrUnknownTarget.WithMessagef("unknown target %q (supported: def, other, distro)", n)
		}
	}
	return out, nil
}
