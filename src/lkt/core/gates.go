package core

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bitswalk/lkt/src/lkt/arch"
	"github.com/bitswalk/lkt/src/lkt/probe"
)

var gatesCmd = &cobra.Command{
	Use:   "gates",
	Short: "List the workaround rules",
	Long: `Lists every version-gated workaround with its action and upstream
reference. With --linux, rules that the given kernel release no longer
needs are shown as retired; retired rules are not evaluated.`,
	Args: cobra.NoArgs,
	RunE: runGates,
}

func init() {
	gatesCmd.Flags().String("linux", "", "Kernel release to check retirement against, e.g. 6.1.0")
	gatesCmd.Flags().StringSliceP("architectures", "a", nil, "Only list these architectures (shared rules are always listed)")
}

// gateEntry is one row of the gates listing
type gateEntry struct {
	Arch      string `json:"arch"`
	Scope     string `json:"scope"`
	Name      string `json:"name"`
	Action    string `json:"action"`
	Link      string `json:"link,omitempty"`
	RetiredAt string `json:"retired_at,omitempty"`
	Retired   bool   `json:"retired"`
}

func runGates(cmd *cobra.Command, args []string) error {
	var linux probe.LinuxCode
	if v, _ := cmd.Flags().GetString("linux"); v != "" {
		var err error
		if linux, err = probe.ParseLinuxCode(v); err != nil {
			return err
		}
	}

	var only []arch.Arch
	if names, _ := cmd.Flags().GetStringSlice("architectures"); len(names) > 0 {
		var err error
		if only, err = arch.ParseList(names); err != nil {
			return err
		}
	}

	entries := gateEntries(arch.RuleTable(), only, linux)
	if outputFormat == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	printGates(cmd.OutOrStdout(), entries, linux != 0)
	return nil
}

// gateEntries flattens the rule table. A zero linux marks nothing retired.
func gateEntries(groups []arch.RuleGroup, only []arch.Arch, linux probe.LinuxCode) []gateEntry {
	keep := func(a arch.Arch) bool {
		if a == "" || len(only) == 0 {
			return true
		}
		for _, o := range only {
			if o == a {
				return true
			}
		}
		return false
	}

	entries := []gateEntry{}
	for _, g := range groups {
		if !keep(g.Arch) {
			continue
		}
		name := string(g.Arch)
		if name == "" {
			name = "*"
		}
		for _, r := range g.Rules {
			e := gateEntry{
				Arch:    name,
				Scope:   g.Scope,
				Name:    r.Name,
				Action:  r.Action.String(),
				Link:    r.Link,
				Retired: linux != 0 && r.Retired(linux),
			}
			if r.RetiredAt != 0 {
				e.RetiredAt = r.RetiredAt.String()
			}
			entries = append(entries, e)
		}
	}
	return entries
}

func printGates(w io.Writer, entries []gateEntry, checked bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ARCH\tSCOPE\tRULE\tACTION\tSTATE\tLINK")
	for _, e := range entries {
		state := "live"
		switch {
		case e.Retired:
			state = "retired"
		case e.RetiredAt != "" && !checked:
			state = "until " + e.RetiredAt
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Arch, e.Scope, e.Name, e.Action, state, e.Link)
	}
	tw.Flush()
}
