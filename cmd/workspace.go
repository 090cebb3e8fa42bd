package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/db"
	"github.com/sells-group/wnv-cli/internal/geospatial"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage the PostGIS analysis workspace",
}

var workspaceInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the workspace schema and apply migrations",
	Long:  "Enables PostGIS, creates the workspace schema and applies pending migrations in lexicographic order.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := db.Connect(ctx, cfg.Workspace.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "connect workspace")
		}
		defer pool.Close()

		if err := geospatial.Migrate(ctx, pool, cfg.Workspace.Schema); err != nil {
			return eris.Wrap(err, "workspace init")
		}

		zap.L().Info("workspace ready", zap.String("schema", cfg.Workspace.Schema))
		return nil
	},
}

func init() {
	workspaceCmd.AddCommand(workspaceInitCmd)
	rootCmd.AddCommand(workspaceCmd)
}
