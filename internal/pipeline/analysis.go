package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/cartography"
	"github.com/sells-group/wnv-cli/internal/config"
	"github.com/sells-group/wnv-cli/internal/geospatial"
)

// Step names, in execution order.
const (
	StepETL           = "etl"
	StepBuffer        = "buffer"
	StepErase         = "erase"
	StepSpatialJoin   = "spatial_join"
	StepCountMatches  = "count_matches"
	StepFilterExport  = "filter_export"
	StepTabularExport = "tabular_export"
	StepStyleMap      = "style_map"
	StepExportMap     = "export_map"
)

// Analysis builds the fixed analysis chain over a SpatialBackend.
type Analysis struct {
	cfg      *config.Config
	backend  SpatialBackend
	renderer MapRenderer

	doc     *cartography.Document
	matches int64
	outputs []string
}

// NewAnalysis creates the analysis chain. renderer may be nil when maps are disabled.
func NewAnalysis(cfg *config.Config, backend SpatialBackend, renderer MapRenderer) *Analysis {
	return &Analysis{cfg: cfg, backend: backend, renderer: renderer}
}

// Matches returns the count_matches result of the last run, or -1 if it failed.
func (a *Analysis) Matches() int64 { return a.matches }

// Outputs lists files written by the last run.
func (a *Analysis) Outputs() []string { return a.outputs }

// Document returns the styled map document, or nil before style_map ran.
func (a *Analysis) Document() *cartography.Document { return a.doc }

// Steps returns the analysis chain. skipMap records export_map as skipped.
func (a *Analysis) Steps(subtitle string, skipMap bool) []Step {
	a.doc = nil
	a.matches = -1
	a.outputs = nil

	exportMap := Step{Name: StepExportMap, Needs: []string{StepStyleMap}, Run: func(ctx context.Context) (string, error) {
		return a.exportMap(ctx, subtitle)
	}}
	switch {
	case skipMap:
		exportMap.Skip = "map export disabled"
	case a.renderer == nil:
		exportMap.Skip = "no map renderer configured"
	}

	return []Step{
		{Name: StepBuffer, Run: a.buffer},
		{Name: StepErase, Needs: []string{StepBuffer}, Run: a.erase},
		{Name: StepSpatialJoin, Needs: []string{StepErase}, Run: a.spatialJoin},
		{Name: StepCountMatches, Diagnostic: true, Run: a.countMatches},
		{Name: StepFilterExport, Needs: []string{StepSpatialJoin}, Run: a.filterExport},
		{Name: StepTabularExport, Needs: []string{StepFilterExport}, Run: a.tabularExport},
		{Name: StepStyleMap, Needs: []string{StepErase}, Run: a.styleMap},
		exportMap,
	}
}

func (a *Analysis) buffer(ctx context.Context) (string, error) {
	l := a.cfg.Layers
	if err := a.backend.Buffer(ctx, l.AvoidPoints, l.AvoidBuffer, a.cfg.Analysis.BufferFeet, true); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s buffered %v ft into %s", l.AvoidPoints, a.cfg.Analysis.BufferFeet, l.AvoidBuffer), nil
}

func (a *Analysis) erase(ctx context.Context) (string, error) {
	l := a.cfg.Layers
	if err := a.backend.Erase(ctx, l.Risk, l.AvoidBuffer, l.RiskFinal); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s minus %s into %s", l.Risk, l.AvoidBuffer, l.RiskFinal), nil
}

func (a *Analysis) spatialJoin(ctx context.Context) (string, error) {
	l := a.cfg.Layers
	opts := geospatial.JoinOptions{CountField: a.cfg.Analysis.JoinCountField}
	if err := a.backend.SpatialJoin(ctx, l.Addresses, l.RiskFinal, l.Joined, opts); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s joined with %s into %s", l.Addresses, l.RiskFinal, l.Joined), nil
}

func (a *Analysis) filter() (geospatial.Predicate, error) {
	pred, err := geospatial.ParsePredicate(a.cfg.Analysis.Filter)
	if err != nil {
		return pred, eris.Wrap(err, "pipeline: analysis.filter")
	}
	return pred, nil
}

func (a *Analysis) countMatches(ctx context.Context) (string, error) {
	pred, err := a.filter()
	if err != nil {
		return "", err
	}
	n, err := a.backend.Count(ctx, a.cfg.Layers.Joined, &pred)
	if err != nil {
		return "", err
	}
	a.matches = n
	zap.L().Info("analysis: matching features", zap.String("filter", pred.String()), zap.Int64("count", n))
	return fmt.Sprintf("%d features where %s", n, pred), nil
}

func (a *Analysis) filterExport(ctx context.Context) (string, error) {
	pred, err := a.filter()
	if err != nil {
		return "", err
	}
	l := a.cfg.Layers
	if err := a.backend.CopyWhere(ctx, l.Joined, l.Notify, pred); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s where %s into %s", l.Joined, pred, l.Notify), nil
}

func (a *Analysis) tabularExport(ctx context.Context) (string, error) {
	layer := a.cfg.Layers.Notify
	exists, err := a.backend.Exists(ctx, layer)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", eris.Errorf("pipeline: layer %s does not exist", layer)
	}

	values, err := a.backend.FieldValues(ctx, layer, a.cfg.Analysis.AddressField)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "no records to export", nil
	}

	path := filepath.Join(a.cfg.Output.ProjDir, a.cfg.Output.CSVName)
	if err := WriteAddressCSV(path, a.cfg.Output.CSVHeader, values); err != nil {
		return "", err
	}
	a.outputs = append(a.outputs, path)
	return fmt.Sprintf("%d addresses written to %s", len(values), path), nil
}

func (a *Analysis) styleMap(ctx context.Context) (string, error) {
	l := a.cfg.Layers
	opts := geospatial.JoinOptions{CountField: a.cfg.Analysis.JoinCountField, KeepCommon: true}
	if err := a.backend.SpatialJoin(ctx, l.Addresses, l.RiskFinal, l.Target, opts); err != nil {
		return "", err
	}

	def, err := geospatial.ParsePredicate(a.cfg.Map.DefinitionQuery)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: map.definition_query")
	}

	doc := &cartography.Document{Title: a.cfg.Map.Title}
	doc.AddLayer(cartography.LayerStyle{
		Name: l.AvoidBuffer, Stroke: cartography.BufferGreen, Fill: cartography.BufferGreen, NoFill: true,
	})
	doc.AddLayer(cartography.LayerStyle{
		Name: l.RiskFinal, Fill: cartography.RiskRed, Stroke: cartography.OutlineBlack,
	})
	doc.AddLayer(cartography.LayerStyle{
		Name: l.Target, Fill: cartography.TargetBlue, Stroke: cartography.TargetBlue, PointRadius: 1.2,
	})
	if err := doc.SetTransparency(l.RiskFinal, a.cfg.Map.Transparency); err != nil {
		return "", err
	}
	if err := doc.SetDefinitionQuery(l.Target, def); err != nil {
		return "", err
	}

	a.doc = doc
	return fmt.Sprintf("%s at %v%% transparency, %s where %s", l.RiskFinal, a.cfg.Map.Transparency, l.Target, def), nil
}

// MapPath returns the PDF path for subtitle under the project directory.
func MapPath(cfg *config.Config, subtitle string) string {
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(subtitle)
	return filepath.Join(cfg.Output.ProjDir, cfg.Output.MapPrefix+name+".pdf")
}

// MapTitle returns the map title for subtitle.
func MapTitle(cfg *config.Config, subtitle string) string {
	if subtitle == "" {
		return cfg.Map.Title
	}
	return cfg.Map.Title + " - " + subtitle
}

func (a *Analysis) exportMap(ctx context.Context, subtitle string) (string, error) {
	if a.doc == nil {
		return "", eris.New("pipeline: map document was not styled")
	}
	a.doc.Title = MapTitle(a.cfg, subtitle)

	path := MapPath(a.cfg, subtitle)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", eris.Wrapf(err, "pipeline: create dir for %s", path)
	}
	if err := a.renderer.Render(ctx, a.doc, a.backend, path); err != nil {
		return "", err
	}
	a.outputs = append(a.outputs, path)
	return "map written to " + path, nil
}
