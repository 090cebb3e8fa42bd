package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/wnv-cli/internal/pipeline"
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Extract, transform and load the address sheet",
	Long:  "Downloads the sheet, parses it and replaces the geocoded point dataset. No analysis runs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.Pipeline.Run(ctx, pipeline.RunOptions{SkipAnalysis: true})
		printRunResult(os.Stdout, res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(etlCmd)
}
