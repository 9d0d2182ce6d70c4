package arch

import "github.com/bitswalk/lkt/src/lkt/rules"

// Rule group scopes
const (
	ScopeCommon   = "common"
	ScopeGates    = "gates"
	ScopeScenario = "scenario"
	ScopeArch     = "arch"
)

// RuleGroup is one list of the workaround table and where it runs
type RuleGroup struct {
	// Arch is empty for the rules every architecture shares
	Arch  Arch
	Scope string
	Rules []rules.Rule
}

// RuleTable returns the whole workaround table: the shared rules first,
// then for every architecture its gates, the rules of its candidates and
// its trailing rules. A candidate rule used by several candidates is
// listed once.
func RuleTable() []RuleGroup {
	groups := []RuleGroup{{Scope: ScopeCommon, Rules: commonRules}}
	for _, a := range All() {
		h := handlers[a]()
		if len(h.Gates) > 0 {
			groups = append(groups, RuleGroup{Arch: a, Scope: ScopeGates, Rules: h.Gates})
		}

		var scenario []rules.Rule
		seen := make(map[string]bool)
		for _, c := range h.Candidates {
			for _, r := range c.Rules {
				if !seen[r.Name] {
					seen[r.Name] = true
					scenario = append(scenario, r)
				}
			}
		}
		if len(scenario) > 0 {
			groups = append(groups, RuleGroup{Arch: a, Scope: ScopeScenario, Rules: scenario})
		}

		if len(h.Rules) > 0 {
			groups = append(groups, RuleGroup{Arch: a, Scope: ScopeArch, Rules: h.Rules})
		}
	}
	return groups
}
