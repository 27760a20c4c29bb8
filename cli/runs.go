// ABOUTME: Run ledger inspection commands
// ABOUTME: Lists past sync runs, shows one run in detail, and prints per-flow status
package cli

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/models"
)

// RunsCommand lists recent runs, or shows one run with --id.
func RunsCommand(database *sql.DB, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	flowName := fs.String("flow", "", "Filter by flow (conversions, audience, export)")
	limit := fs.Int("limit", 20, "Maximum results")
	id := fs.String("id", "", "Show a single run with its failure messages")
	_ = fs.Parse(args)

	if *id != "" {
		return showRun(database, out, *id)
	}

	filter := db.RunFilter{Limit: *limit}
	if *flowName != "" {
		flow, ok := models.ParseFlow(*flowName)
		if !ok {
			return fmt.Errorf("unknown flow %q", *flowName)
		}
		filter.Flow = flow
	}

	runs, err := db.ListRuns(database, filter)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STARTED\tFLOW\tPHASE\tPREPARED\tUPLOADED\tFAILED\tID")
	_, _ = fmt.Fprintln(w, "-------\t----\t-----\t--------\t--------\t------\t--")

	for _, run := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.StartedAt.Local().Format(time.DateTime), run.Flow, run.Phase,
			run.Result.Prepared, run.Result.Uploaded, run.Result.Failed, run.ID)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nTotal: %d run(s)\n", len(runs))
	return nil
}

func showRun(database *sql.DB, out io.Writer, id string) error {
	run, err := db.GetRun(database, id)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", id)
	}

	_, _ = fmt.Fprint(out, RenderSummary(run, isTerminal(out)))
	_, _ = fmt.Fprintf(out, "\nPhase: %s\n", run.Phase)
	if run.FinishedAt != nil {
		_, _ = fmt.Fprintf(out, "Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		_, _ = fmt.Fprintf(out, "Error: %s\n", run.Error)
	}
	return nil
}

// StatusCommand prints the sync state of every flow.
func StatusCommand(database *sql.DB, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	_ = fs.Parse(args)

	states, err := db.GetAllSyncStates(database)
	if err != nil {
		return fmt.Errorf("failed to get sync status: %w", err)
	}

	_, _ = fmt.Fprint(out, RenderStatus(states, isTerminal(out)))
	return nil
}
