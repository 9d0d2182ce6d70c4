// Package probe derives integer version codes for the tools and kernel
// trees that workaround gates compare against.
package probe

import (
	"fmt"
	"strconv"
	"strings"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
)

// ToolCode encodes an LLVM, binutils or QEMU version as
// major*10000 + minor*100 + patch.
type ToolCode int

// LinuxCode encodes a kernel version as major*100000 + minor*1000 + patch.
// It is a distinct type from ToolCode so the two schemes never mix.
type LinuxCode int

// NewToolCode builds a tool code; minor and patch must be below 100
func NewToolCode(major, minor, patch int) ToolCode {
	return ToolCode(major*10000 + minor*100 + patch)
}

// NewLinuxCode builds a kernel code; minor must be below 100, patch below 1000
func NewLinuxCode(major, minor, patch int) LinuxCode {
	return LinuxCode(major*100000 + minor*1000 + patch)
}

// Major returns the major component
func (c ToolCode) Major() int { return int(c) / 10000 }

// Minor returns the minor component
func (c ToolCode) Minor() int { return int(c) / 100 % 100 }

// Patch returns the patch component
func (c ToolCode) Patch() int { return int(c) % 100 }

func (c ToolCode) String() string {
	return fmt.Sprintf("%d.%d.%d", c.Major(), c.Minor(), c.Patch())
}

// Major returns the major component
func (c LinuxCode) Major() int { return int(c) / 100000 }

// Minor returns the minor component
func (c LinuxCode) Minor() int { return int(c) / 1000 % 100 }

// Patch returns the patch component
func (c LinuxCode) Patch() int { return int(c) % 1000 }

func (c LinuxCode) String() string {
	return fmt.Sprintf("%d.%d.%d", c.Major(), c.Minor(), c.Patch())
}

// ParseToolCode parses "12.0.1", "2.39" or "2.39.50.20221024"
func ParseToolCode(s string) (ToolCode, error) {
	parts, err := splitVersion(s)
	if err != nil {
		return 0, err
	}
	if parts[1] > 99 || parts[2] > 99 {
		return 0, lkterrors.ErrInvalidVersion.WithMessagef("tool version %q out of range", s)
	}
	return NewToolCode(parts[0], parts[1], parts[2]), nil
}

// ParseLinuxCode parses "6.1.0", "6.1" or "6.7.0-rc3"
func ParseLinuxCode(s string) (LinuxCode, error) {
	parts, err := splitVersion(s)
	if err != nil {
		return 0, err
	}
	if parts[1] > 99 || parts[2] > 999 {
		return 0, lkterrors.ErrInvalidVersion.WithMessagef("kernel version %q out of range", s)
	}
	return NewLinuxCode(parts[0], parts[1], parts[2]), nil
}

// splitVersion drops everything after the first '-' and returns the first
// three dotted components, padding a missing patch level with zero.
func splitVersion(s string) ([3]int, error) {
	var out [3]int

	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	fields := strings.Split(s, ".")
	if len(fields) < 2 {
		return out, lkterrors.ErrInvalidVersion.WithMessagef("cannot parse version %q", s)
	}
	if len(fields) > 3 {
		fields = fields[:3]
	}
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return out, lkterrors.ErrInvalidVersion.WithMessagef("cannot parse version %q", s)
		}
		out[i] = n
	}
	return out, nil
}
