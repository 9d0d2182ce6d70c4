package rules

import (
	"sort"

	"github.com/bitswalk/lkt/src/lkt/kconfig"
	"github.com/bitswalk/lkt/src/lkt/probe"
)

// Action is the effect of a rule whose predicate holds
type Action int

const (
	// Configure forces config options; they appear in the scenario name
	// and are verified after the build
	Configure Action = iota
	// Adjust forces config options silently, for distro compatibility
	// fixes that are not part of what is being tested
	Adjust
	// SetVars sets make variables
	SetVars
	// Annotate records a note on the result without changing the build
	Annotate
	// SkipScenario records the scenario as skipped
	SkipScenario
	// SkipBoot builds the scenario but does not boot it
	SkipBoot
	// SkipArch skips every scenario of the architecture
	SkipArch
)

var actionNames = map[Action]string{
	Configure:    "configure",
	Adjust:       "adjust",
	SetVars:      "set-vars",
	Annotate:     "annotate",
	SkipScenario: "skip",
	SkipBoot:     "skip-boot",
	SkipArch:     "skip-arch",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

// Rule is one workaround gate
type Rule struct {
	// Name is a short identifier such as "cbl-1292"
	Name string
	// Link points at the upstream issue or commit the rule works around
	Link string
	// When is the predicate; nil always holds
	When Cond
	// Action is applied when the predicate holds
	Action Action
	// Options are forced by Configure and Adjust
	Options []kconfig.Option
	// Vars are set by SetVars; values may reference $cross, $llvm, ...
	Vars map[string]string
	// Reason explains skips and annotations and may use the same
	// references as Vars
	Reason string
	// RetiredAt is the first kernel release that no longer needs the
	// rule. Retired rules are listed but not evaluated. Zero means the
	// rule is always live.
	RetiredAt probe.LinuxCode
}

// Retired reports whether the rule no longer applies to linux
func (r Rule) Retired(linux probe.LinuxCode) bool {
	return r.RetiredAt != 0 && linux >= r.RetiredAt
}

// Outcome is the accumulated effect of evaluating a rule list
type Outcome struct {
	Options  []kconfig.Option
	Adjust   []kconfig.Option
	Vars     map[string]string
	Notes    []string
	Applied  []string
	Skip     bool
	SkipArch bool
	Reason   string

	SkipBoot   bool
	BootReason string
}

// Evaluate runs rules in order against env. Options forced by earlier
// rules are visible to later predicates. The first skip stops evaluation.
// env itself is not modified.
func Evaluate(rules []Rule, env *Env) Outcome {
	out := Outcome{Vars: make(map[string]string)}
	local := *env
	local.Options = append([]kconfig.Option(nil), env.Options...)
	local.Vars = make(map[string]string, len(env.Vars))
	for k, v := range env.Vars {
		local.Vars[k] = v
	}

	for _, r := range rules {
		if r.Retired(local.Linux()) {
			continue
		}
		if r.When != nil && !r.When(&local) {
			continue
		}
		out.Applied = append(out.Applied, r.Name)

		switch r.Action {
		case Configure:
			for _, o := range r.Options {
				if !local.Requested(o) {
					local.Options = append(local.Options, o)
					out.Options = append(out.Options, o)
				}
			}
		case Adjust:
			out.Adjust = append(out.Adjust, r.Options...)
		case SetVars:
			for _, k := range sortedKeys(r.Vars) {
				v := local.Expand(r.Vars[k])
				out.Vars[k] = v
				local.Vars[k] = v
			}
		case Annotate:
			out.Notes = append(out.Notes, local.Expand(r.Reason))
		case SkipBoot:
			if !out.SkipBoot {
				out.SkipBoot = true
				out.BootReason = local.Expand(r.Reason)
			}
		case SkipScenario, SkipArch:
			out.Skip = true
			out.SkipArch = r.Action == SkipArch
			out.Reason = local.Expand(r.Reason)
			return out
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
