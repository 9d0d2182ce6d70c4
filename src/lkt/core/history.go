package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/lkt/db"
	"github.com/bitswalk/lkt/src/lkt/report"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs or show the results of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	historyCmd.Flags().Int("offset", 0, "Number of runs to skip")
}

// openRuns opens the run database for reading
func openRuns() (*db.Database, *db.RunRepository, error) {
	cfg := loadHistoryConfig()
	if cfg.DatabasePath == "" {
		return nil, nil, lkterrors.ErrStorageUnavailable.WithMessage("run history is disabled, database.path is empty")
	}
	database, err := db.New(db.Config{Path: cfg.DatabasePath, Release: VersionInfo.Release()})
	if err != nil {
		return nil, nil, err
	}
	return database, db.NewRunRepository(database), nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	database, runs, err := openRuns()
	if err != nil {
		return err
	}
	defer database.Close()

	w := cmd.OutOrStdout()
	if len(args) == 0 {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		list, err := runs.List(limit, offset)
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(w, list)
		}
		printRuns(w, list)
		return nil
	}

	run, err := runs.GetByID(args[0])
	if err != nil {
		return err
	}
	if run == nil {
		return lkterrors.ErrRunNotFound.WithMessagef("run %s not found", args[0])
	}
	results, err := runs.Results(run.ID)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return printJSON(w, map[string]interface{}{"run": run, "results": results})
	}
	printRun(w, run, results)
	return nil
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printRuns(w io.Writer, runs []db.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tLINUX\tLLVM\tARCHITECTURES\tOK\tFAILED\tSKIPPED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status,
			r.LinuxVersion, r.LLVMVersion, strings.Join(r.Architectures, ","),
			r.Successful, r.Failed, r.Skipped)
	}
	tw.Flush()
}

func printRun(w io.Writer, run *db.Run, results []db.Result) {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Status:   %s\n", run.Status)
	fmt.Fprintf(w, "Source:   %s (Linux %s)\n", run.Source, run.LinuxVersion)
	fmt.Fprintf(w, "LLVM:     %s\n", run.LLVMVersion)
	if run.Host != "" {
		fmt.Fprintf(w, "Host:     %s\n", run.Host)
	}
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "Duration: %s\n", report.FormatDuration(run.FinishedAt.Sub(run.StartedAt)))
	}
	if run.ArchivePrefix != "" {
		fmt.Fprintf(w, "Archive:  %s\n", run.ArchivePrefix)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tBUILD\tTIME\tBOOT\tREASON")
	for _, r := range results {
		duration := "-"
		if r.Build != string(report.Skipped) {
			duration = report.FormatDuration(r.Duration)
		}
		boot := r.Boot
		if boot == "" {
			boot = "-"
		}
		reason := r.Reason
		if reason == "" {
			reason = r.BootReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			strconv.Itoa(r.Position+1), r.Name, r.Build, duration, boot, reason)
	}
	tw.Flush()

	for _, r := range results {
		if len(r.Excerpt) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", r.Name)
		for _, line := range r.Excerpt {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
