package arch

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/lkt/build"
	"github.com/bitswalk/lkt/src/lkt/kconfig"
	"github.com/bitswalk/lkt/src/lkt/report"
	"github.com/bitswalk/lkt/src/lkt/rules"
)

var log *logs.Logger

// SetLogger sets the logger for the arch package
func SetLogger(l *logs.Logger) {
	log = l
}

// Handler describes how one architecture is built
type Handler struct {
	Arch Arch
	// ClangTarget is the triple probed before anything is built
	ClangTarget string
	// Cross picks the CROSS_COMPILE prefix; nil means none
	Cross func(*rules.Env) string
	// BinutilsAs is the assembler whose version feeds the gates, if any
	BinutilsAs string
	// QEMUArch is probed for its version and is the default boot emulator
	QEMUArch string
	// BootArch and ImageTarget are the defaults for bootable candidates
	BootArch    string
	ImageTarget string
	// Vars are the fixed architecture make variables besides ARCH
	Vars map[string]string
	// Gates run once per architecture and may set variables or skip it
	Gates []rules.Rule
	// Candidates are the scenarios in run order
	Candidates []Candidate
	// Rules run after every scenario's own rules
	Rules []rules.Rule
}

// Skip is a result recorded when a candidate's predicate fails
type Skip struct {
	Name   string
	Reason string
}

// Candidate is a scenario template
type Candidate struct {
	Kind TargetKind
	// Target is the config make target; empty for distribution configs
	Target    string
	Fragments []string
	// Distro and Config name <configs>/<Distro>/<Config>.config
	Distro string
	Config string
	// Options are requested up front, before any rule runs
	Options []kconfig.Option
	// Vars layer over the architecture variables
	Vars map[string]string

	Bootable    bool
	BootArch    string
	QEMUArch    string
	ImageTarget string
	// Targets returns extra make targets for the scenario
	Targets func(*rules.Env) []string

	// When must hold for the candidate to be planned; nil always holds
	When rules.Cond
	// Unmet is recorded when When does not hold
	Unmet *Skip
	// Rules are evaluated before the common rules
	Rules []rules.Rule
}

// Plan is what one architecture will do in this run
type Plan struct {
	Arch Arch
	// Vars are the architecture make variables after the gates ran
	Vars map[string]string
	// Cross is the resolved CROSS_COMPILE prefix candidate
	Cross string
	// Skipped are recorded before any scenario runs
	Skipped []report.Result
	// SkipAll is set when a gate skipped the whole architecture
	SkipAll   *report.Result
	Scenarios []*build.Scenario
}

// PlanOptions are the run settings a plan depends on
type PlanOptions struct {
	Targets []TargetKind
	// ConfigsDir holds the distribution configs
	ConfigsDir string
}

func (o PlanOptions) wants(k TargetKind) bool {
	for _, t := range o.Targets {
		if t == k {
			return true
		}
	}
	return false
}

// SkipAllName is the result name used when a whole architecture is skipped
func SkipAllName(arch string) string {
	return arch + " kernels"
}

// Plan evaluates the gates and candidates against env. env carries the
// toolchain and tree facts; the architecture fields are filled in here.
func (h *Handler) Plan(env *rules.Env, opts PlanOptions) (*Plan, error) {
	archEnv := *env
	archEnv.Arch = string(h.Arch)
	if h.Cross != nil {
		archEnv.Cross = h.Cross(&archEnv)
	} else {
		archEnv.Cross = ""
	}

	vars := map[string]string{"ARCH": string(h.Arch)}
	for k, v := range h.Vars {
		vars[k] = v
	}
	archEnv.Vars = vars

	plan := &Plan{Arch: h.Arch, Vars: vars, Cross: archEnv.Cross}

	gates := rules.Evaluate(h.Gates, &archEnv)
	if gates.Skip {
		res := report.Skip(string(h.Arch), SkipAllName(string(h.Arch)), gates.Reason)
		plan.SkipAll = &res
		return plan, nil
	}
	for k, v := range gates.Vars {
		vars[k] = v
	}

	for _, kind := range AllTargets() {
		if !opts.wants(kind) || (archEnv.OnlyTestBoot && kind != Def) {
			continue
		}
		for i := range h.Candidates {
			c := &h.Candidates[i]
			if c.Kind != kind {
				continue
			}
			if err := h.planCandidate(plan, &archEnv, c, opts); err != nil {
				return nil, err
			}
		}
	}
	return plan, nil
}

func (h *Handler) planCandidate(plan *Plan, env *rules.Env, c *Candidate, opts PlanOptions) error {
	if c.When != nil && !c.When(env) {
		if c.Unmet != nil {
			plan.Skipped = append(plan.Skipped,
				report.Skip(string(h.Arch), c.Unmet.Name, env.Expand(c.Unmet.Reason)))
		}
		return nil
	}

	sc := &build.Scenario{
		Arch:        string(h.Arch),
		Target:      c.Target,
		Fragments:   append([]string(nil), c.Fragments...),
		Distro:      c.Distro,
		Options:     append([]kconfig.Option(nil), c.Options...),
		Vars:        make(map[string]string),
		ImageTarget: first(c.ImageTarget, h.ImageTarget),
		Bootable:    c.Bootable,
		BootArch:    first(c.BootArch, h.BootArch),
		QEMUArch:    first(c.QEMUArch, h.QEMUArch),
	}
	for k, v := range c.Vars {
		sc.Vars[k] = v
	}

	var base *kconfig.File
	stem := ""
	if c.Kind == Distro {
		stem = c.Config
		sc.DistroConfig = filepath.Join(opts.ConfigsDir, c.Distro, c.Config+".config")
		f, err := kconfig.ParseFile(sc.DistroConfig)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				plan.Skipped = append(plan.Skipped,
					report.Skip(string(h.Arch), sc.Name(), "missing distro config "+sc.DistroConfig))
				return nil
			}
			return fmt.Errorf("failed to read %s: %w", sc.DistroConfig, err)
		}
		base = f
	}

	scEnv := env.Scenario(c.Target, c.Distro, stem, base, sc.Options)
	scEnv.Vars = merge(plan.Vars, sc.Vars)

	ruleList := make([]rules.Rule, 0, len(c.Rules)+len(commonRules)+len(h.Rules))
	ruleList = append(ruleList, c.Rules...)
	ruleList = append(ruleList, commonRules...)
	ruleList = append(ruleList, h.Rules...)

	out := rules.Evaluate(ruleList, scEnv)
	sc.Options = append(sc.Options, out.Options...)
	if out.Skip {
		plan.Skipped = append(plan.Skipped, report.Skip(string(h.Arch), sc.Name(), out.Reason))
		return nil
	}
	sc.Adjust = out.Adjust
	for k, v := range out.Vars {
		sc.Vars[k] = v
	}
	sc.Notes = out.Notes
	if sc.Bootable && out.SkipBoot {
		sc.SkipBoot = true
		sc.BootReason = out.BootReason
	}
	if c.Targets != nil {
		sc.ExtraTargets = c.Targets(scEnv)
	}

	if log != nil && len(out.Applied) > 0 {
		log.Debug("Applied workarounds", "name", sc.Name(), "rules", out.Applied)
	}

	plan.Scenarios = append(plan.Scenarios, sc)
	return nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func merge(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
