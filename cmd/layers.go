package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/geospatial"
	"github.com/sells-group/wnv-cli/internal/layers"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List, import and export workspace layers",
}

var layersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the layers in the workspace",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, ws, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		infos, err := ws.ListLayers(ctx)
		if err != nil {
			return eris.Wrap(err, "layers list")
		}
		if len(infos) == 0 {
			fmt.Fprintln(os.Stderr, "No layers found.")
			return nil
		}
		formatLayersList(os.Stdout, infos)
		return nil
	},
}

var layersImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an ESRI shapefile as a workspace layer",
	Long:  "Reads a shapefile and replaces the named layer with its features. Used to seed the risk and address layers.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		name, _ := cmd.Flags().GetString("name")
		srid, _ := cmd.Flags().GetInt("srid")

		layer, err := layers.ReadShapefile(file, srid)
		if err != nil {
			return err
		}
		if name == "" {
			name = layer.Name
		}
		if err := geospatial.ValidateName(name); err != nil {
			return err
		}

		pool, ws, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := ws.ImportLayer(ctx, name, layer.Fields, layer.Features, srid)
		if err != nil {
			return eris.Wrapf(err, "layers import %s", name)
		}
		zap.L().Info("layer imported", zap.String("layer", name), zap.Int64("features", n))
		return nil
	},
}

var layersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a workspace layer to a shapefile or GeoJSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		name, _ := cmd.Flags().GetString("name")
		out, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")
		format = strings.ToLower(format)
		if format != "shp" && format != "geojson" {
			return eris.Errorf("layers export: unknown format %q (want shp or geojson)", format)
		}

		pool, ws, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		features, err := ws.Features(ctx, name, nil)
		if err != nil {
			return eris.Wrapf(err, "layers export %s", name)
		}

		switch format {
		case "geojson":
			err = layers.WriteGeoJSON(out, features)
		default:
			var fields []geospatial.Field
			fields, err = ws.Fields(ctx, name)
			if err != nil {
				return eris.Wrapf(err, "layers export %s", name)
			}
			err = layers.WriteShapefile(out, fields, features)
		}
		if err != nil {
			return err
		}
		zap.L().Info("layer exported", zap.String("layer", name), zap.String("out", out), zap.Int("features", len(features)))
		return nil
	},
}

// formatLayersList writes a table of layers to w.
func formatLayersList(out io.Writer, infos []geospatial.LayerInfo) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LAYER\tGEOMETRY\tSRID")
	_, _ = fmt.Fprintln(w, "-----\t--------\t----")
	for _, l := range infos {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", l.Name, l.GeometryType, l.SRID)
	}
	_ = w.Flush()
}

func init() {
	layersImportCmd.Flags().String("file", "", "path to the .shp file")
	layersImportCmd.Flags().String("name", "", "layer name (defaults to the file name)")
	layersImportCmd.Flags().Int("srid", 4326, "SRID of the shapefile coordinates")
	_ = layersImportCmd.MarkFlagRequired("file")

	layersExportCmd.Flags().String("name", "", "layer to export")
	layersExportCmd.Flags().String("out", "", "output file path")
	layersExportCmd.Flags().String("format", "shp", "output format: shp or geojson")
	_ = layersExportCmd.MarkFlagRequired("name")
	_ = layersExportCmd.MarkFlagRequired("out")

	layersCmd.AddCommand(layersListCmd)
	layersCmd.AddCommand(layersImportCmd)
	layersCmd.AddCommand(layersExportCmd)
	rootCmd.AddCommand(layersCmd)
}
