package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/wnv-cli/internal/model"
	"github.com/sells-group/wnv-cli/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run ETL, analysis and exports",
	Long: "Extracts the address sheet, geocodes it into the workspace, runs the analysis chain, " +
		"writes the notification CSV and exports the map PDF. Step failures are reported but never " +
		"change the exit status.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		subtitle, _ := cmd.Flags().GetString("subtitle")
		noMap, _ := cmd.Flags().GetBool("no-map")
		skipETL, _ := cmd.Flags().GetBool("skip-etl")

		if subtitle == "" && !noMap {
			s, err := promptSubtitle(os.Stdin, os.Stderr)
			if err != nil {
				return err
			}
			subtitle = s
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.Pipeline.Run(ctx, pipeline.RunOptions{
			Subtitle: subtitle,
			SkipETL:  skipETL,
			SkipMap:  noMap,
		})
		printRunResult(os.Stdout, res)
		return nil
	},
}

// promptSubtitle asks for the map subtitle on in.
func promptSubtitle(in io.Reader, out io.Writer) (string, error) {
	_, _ = fmt.Fprint(out, "Enter the map subtitle: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", eris.Wrap(err, "read subtitle")
	}
	return strings.TrimSpace(line), nil
}

// printRunResult writes a step table and the run totals to w.
func printRunResult(out io.Writer, res *model.RunResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STEP\tSTATUS\tDURATION\tDETAIL")
	_, _ = fmt.Fprintln(w, "----\t------\t--------\t------")
	for _, s := range res.Steps {
		detail := s.Error
		if d, ok := s.Metadata["detail"].(string); ok && detail == "" {
			detail = d
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%dms\t%s\n", s.Name, s.Status, s.Duration, detail)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nRun %s: %s\n", truncateID(res.ID), res.Status())
	if res.Records > 0 {
		_, _ = fmt.Fprintf(out, "Geocoded %d of %d records (%d missed)\n", res.Loaded, res.Records, res.Missed)
	}
	if res.Matches >= 0 {
		_, _ = fmt.Fprintf(out, "Matching addresses: %d\n", res.Matches)
	}
	for _, o := range res.Outputs {
		_, _ = fmt.Fprintf(out, "Wrote %s\n", o)
	}
}

func init() {
	runCmd.Flags().String("subtitle", "", "map subtitle (prompted when empty)")
	runCmd.Flags().Bool("no-map", false, "skip the PDF map export")
	runCmd.Flags().Bool("skip-etl", false, "reuse the existing point dataset")
	rootCmd.AddCommand(runCmd)
}
