package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/wnv-cli/internal/model"
	"github.com/sells-group/wnv-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Lists recent runs, or shows one run with its step results when --id is given.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("runs: history is disabled (history.path is empty)")
		}
		defer st.Close() //nolint:errcheck

		id, _ := cmd.Flags().GetString("id")
		if id != "" {
			run, err := st.GetRun(ctx, id)
			if err != nil {
				return eris.Wrap(err, "runs show")
			}
			steps, err := st.ListSteps(ctx, id)
			if err != nil {
				return eris.Wrap(err, "runs show")
			}
			return writeRunDetail(os.Stdout, run, steps)
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatus(status), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// writeRunDetail encodes a run and its steps as indented JSON.
func writeRunDetail(out io.Writer, run *model.Run, steps []model.StepResult) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*model.Run
		StepLog []model.StepResult `json:"step_log"`
	}{run, steps})
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSUBTITLE\tSTATUS\tLOADED\tMATCHES\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t--------\t------\t------\t-------\t-------\t--------")

	for _, r := range runs {
		dur := ""
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.CreatedAt).Round(time.Second).String()
		}
		loaded, matches := "-", "-"
		if r.Result != nil {
			loaded = fmt.Sprintf("%d/%d", r.Result.Loaded, r.Result.Records)
			if r.Result.Matches >= 0 {
				matches = fmt.Sprintf("%d", r.Result.Matches)
			}
		}
		subtitle := r.Subtitle
		if len(subtitle) > 30 {
			subtitle = subtitle[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			subtitle,
			r.Status,
			loaded,
			matches,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsCmd.Flags().Int("limit", 20, "max number of runs to display")
	runsCmd.Flags().String("status", "", "filter by run status (running, complete, partial, failed)")
	runsCmd.Flags().String("id", "", "show one run with its step log")
	rootCmd.AddCommand(runsCmd)
}
