package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/wnv-cli/internal/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the analysis chain against the current workspace",
	Long: "Runs buffer, erase, spatial join, match count, filter and exports against whatever " +
		"layers the workspace holds, without downloading the sheet.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		subtitle, _ := cmd.Flags().GetString("subtitle")
		noMap, _ := cmd.Flags().GetBool("no-map")
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
			SkipETL:  true,
			SkipMap:  noMap,
		})
		printRunResult(os.Stdout, res)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("subtitle", "", "map subtitle (prompted when empty)")
	analyzeCmd.Flags().Bool("no-map", false, "skip the PDF map export")
	rootCmd.AddCommand(analyzeCmd)
}
