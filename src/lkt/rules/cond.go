package rules

import (
	"regexp"

	"github.com/bitswalk/lkt/src/lkt/kconfig"
	"github.com/bitswalk/lkt/src/lkt/probe"
)

// Cond is a rule predicate
type Cond func(*Env) bool

// Always holds unconditionally
func Always(*Env) bool { return true }

// All holds when every condition holds
func All(conds ...Cond) Cond {
	return func(e *Env) bool {
		for _, c := range conds {
			if !c(e) {
				return false
			}
		}
		return true
	}
}

// Any holds when at least one condition holds
func Any(conds ...Cond) Cond {
	return func(e *Env) bool {
		for _, c := range conds {
			if c(e) {
				return true
			}
		}
		return false
	}
}

// Not negates c
func Not(c Cond) Cond {
	return func(e *Env) bool { return !c(e) }
}

// LLVMAtLeast holds for clang >= major.minor.patch
func LLVMAtLeast(major, minor, patch int) Cond {
	code := probe.NewToolCode(major, minor, patch)
	return func(e *Env) bool { return e.LLVM >= code }
}

// LLVMBelow holds for clang < major.minor.patch
func LLVMBelow(major, minor, patch int) Cond {
	return Not(LLVMAtLeast(major, minor, patch))
}

// LLVMBelowMin holds when clang is older than both the tree's declared
// minimum and the given hard floor
func LLVMBelowMin(major, minor, patch int) Cond {
	floor := probe.NewToolCode(major, minor, patch)
	return func(e *Env) bool {
		min := e.MinLLVM
		if min < floor {
			min = floor
		}
		return e.LLVM < min
	}
}

// LinuxAtLeast holds for trees >= major.minor.patch
func LinuxAtLeast(major, minor, patch int) Cond {
	code := probe.NewLinuxCode(major, minor, patch)
	return func(e *Env) bool { return e.Linux() >= code }
}

// LinuxBelow holds for trees < major.minor.patch
func LinuxBelow(major, minor, patch int) Cond {
	return Not(LinuxAtLeast(major, minor, patch))
}

// BinutilsAtLeast holds for a cross assembler >= major.minor.patch
func BinutilsAtLeast(major, minor, patch int) Cond {
	code := probe.NewToolCode(major, minor, patch)
	return func(e *Env) bool { return e.Binutils >= code }
}

// QEMUBelow holds for qemu-system < major.minor.patch, including a
// missing binary (version 0)
func QEMUBelow(major, minor, patch int) Cond {
	code := probe.NewToolCode(major, minor, patch)
	return func(e *Env) bool { return e.QEMU < code }
}

// Commit holds when the tree carries the abbreviated upstream commit
func Commit(id string) Cond {
	return func(e *Env) bool { return e.Tree != nil && e.Tree.HasCommit(id) }
}

// Config holds when the tree defines the Kconfig symbol
func Config(symbol string) Cond {
	return func(e *Env) bool { return e.Tree != nil && e.Tree.HasConfig(symbol) }
}

// FileContains holds when rel in the tree contains text
func FileContains(rel, text string) Cond {
	return func(e *Env) bool { return e.Tree != nil && e.Tree.Contains(rel, text) }
}

// FileMatches holds when rel in the tree matches pattern
func FileMatches(rel, pattern string) Cond {
	re := regexp.MustCompile(pattern)
	return func(e *Env) bool { return e.Tree != nil && e.Tree.Matches(rel, re) }
}

// KconfigTristate holds when symbol is declared tristate in rel,
// ignoring whitespace
func KconfigTristate(rel, symbol string) Cond {
	return KconfigType(rel, symbol, "tristate")
}

// KconfigType holds when symbol is declared with typ in rel
func KconfigType(rel, symbol, typ string) Cond {
	needle := "config" + symbol + typ
	return func(e *Env) bool { return e.Tree != nil && e.Tree.ContainsStripped(rel, needle) }
}

// Exists holds when rel exists in the tree
func Exists(rel string) Cond {
	return func(e *Env) bool { return e.Tree != nil && e.Tree.Exists(rel) }
}

// IsDir holds when rel is a directory in the tree
func IsDir(rel string) Cond {
	return func(e *Env) bool { return e.Tree != nil && e.Tree.IsDir(rel) }
}

// Host holds when the build machine is one of machines
func Host(machines ...string) Cond {
	return func(e *Env) bool {
		for _, m := range machines {
			if e.Host == m {
				return true
			}
		}
		return false
	}
}

// Tool holds when name is on PATH
func Tool(name string) Cond {
	return func(e *Env) bool { return e.Has(name) }
}

// Var holds when the make variable name is set
func Var(name string) Cond {
	return func(e *Env) bool {
		_, ok := e.Var(name)
		return ok
	}
}

// VarEquals holds when the make variable name is set to value
func VarEquals(name, value string) Cond {
	return func(e *Env) bool {
		v, ok := e.Var(name)
		return ok && v == value
	}
}

// OnlyTestBoot holds when only bootable images are being built
func OnlyTestBoot(e *Env) bool { return e.OnlyTestBoot }

// Target holds when the scenario's config target is one of targets
func Target(targets ...string) Cond {
	return func(e *Env) bool {
		for _, t := range targets {
			if e.Target == t {
				return true
			}
		}
		return false
	}
}

// IsDistro holds for distribution config scenarios, optionally limited to
// the named distributions
func IsDistro(names ...string) Cond {
	return func(e *Env) bool {
		if e.Distro == "" {
			return false
		}
		if len(names) == 0 {
			return true
		}
		for _, n := range names {
			if e.Distro == n {
				return true
			}
		}
		return false
	}
}

// DistroConfig holds when the distro config file stem is one of stems
func DistroConfig(stems ...string) Cond {
	return func(e *Env) bool {
		for _, s := range stems {
			if e.DistroConfig == s {
				return true
			}
		}
		return false
	}
}

// BaseSet holds when the distribution config sets symbol to a value
// other than n
func BaseSet(symbol string) Cond {
	return func(e *Env) bool { return e.Base != nil && e.Base.IsSet(symbol) }
}

// BaseModular holds when the distribution config builds symbol as a module
func BaseModular(symbol string) Cond {
	return func(e *Env) bool { return e.Base != nil && e.Base.IsModular(symbol) }
}

// BaseState holds when the distribution config's state for symbol is value
func BaseState(symbol, value string) Cond {
	return func(e *Env) bool { return e.Base != nil && e.Base.State(symbol) == value }
}

// Requested holds when the scenario already asks for option
func Requested(option string) Cond {
	opt, err := kconfig.ParseOption(option)
	if err != nil {
		panic(err)
	}
	return func(e *Env) bool { return e.Requested(opt) }
}
