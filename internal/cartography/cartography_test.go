package cartography

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/geospatial"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeSource struct {
	layers map[string][]geospatial.Feature
	preds  map[string]*geospatial.Predicate
	err    error
}

func (f *fakeSource) Features(_ context.Context, layer string, pred *geospatial.Predicate) ([]geospatial.Feature, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.preds == nil {
		f.preds = map[string]*geospatial.Predicate{}
	}
	f.preds[layer] = pred
	var out []geospatial.Feature
	for _, feat := range f.layers[layer] {
		if pred == nil || pred.MatchAttrs(feat.Attrs) {
			out = append(out, feat)
		}
	}
	return out, nil
}

func square(x, y, d float64) *geom.MultiPolygon {
	return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{x, y}, {x + d, y}, {x + d, y + d}, {x, y + d}, {x, y},
	}}})
}

func testDocument() *Document {
	doc := &Document{Title: "West Nile Virus Model - Week 32"}
	doc.AddLayer(LayerStyle{Name: "Risk_Intersect_Final", Fill: RiskRed, Stroke: OutlineBlack})
	doc.AddLayer(LayerStyle{Name: "Target_Addresses", Fill: TargetBlue, Stroke: TargetBlue, PointRadius: 1.2})
	return doc
}

func TestDocumentStyling(t *testing.T) {
	doc := testDocument()

	require.NoError(t, doc.SetTransparency("Risk_Intersect_Final", 50))
	assert.InDelta(t, 0.5, doc.Layer("Risk_Intersect_Final").Opacity(), 1e-9)

	pred := geospatial.Predicate{Field: "Join_Count", Op: "=", Value: 1}
	require.NoError(t, doc.SetDefinitionQuery("Target_Addresses", pred))
	require.NotNil(t, doc.Layer("Target_Addresses").Definition)
	assert.Equal(t, "Join_Count = 1", doc.Layer("Target_Addresses").Definition.String())

	assert.Error(t, doc.SetTransparency("Missing", 10))
	assert.Error(t, doc.SetTransparency("Risk_Intersect_Final", 120))
	assert.Error(t, doc.SetDefinitionQuery("Missing", pred))
	assert.Nil(t, doc.Layer("Missing"))
}

func TestOpacityClamps(t *testing.T) {
	assert.InDelta(t, 1.0, LayerStyle{Transparency: -5}.Opacity(), 1e-9)
	assert.InDelta(t, 0.0, LayerStyle{Transparency: 150}.Opacity(), 1e-9)
}

func TestRenderWritesPDF(t *testing.T) {
	doc := testDocument()
	require.NoError(t, doc.SetTransparency("Risk_Intersect_Final", 50))
	require.NoError(t, doc.SetDefinitionQuery("Target_Addresses", geospatial.Predicate{Field: "Join_Count", Op: "=", Value: 1}))

	src := &fakeSource{layers: map[string][]geospatial.Feature{
		"Risk_Intersect_Final": {{Geom: square(-105.0, 40.0, 0.01)}},
		"Target_Addresses": {
			{Geom: geom.NewPointFlat(geom.XY, []float64{-104.995, 40.005}), Attrs: map[string]any{"Join_Count": int64(1)}},
			{Geom: geom.NewPointFlat(geom.XY, []float64{-104.9, 40.1}), Attrs: map[string]any{"Join_Count": int64(0)}},
		},
	}}

	path := filepath.Join(t.TempDir(), "WNV_Map_Week 32.pdf")
	r := &PDFRenderer{}
	require.NoError(t, r.Render(context.Background(), doc, src, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, len(data) > 4)
	assert.Equal(t, "%PDF", string(data[:4]))

	require.NotNil(t, src.preds["Target_Addresses"])
	assert.Nil(t, src.preds["Risk_Intersect_Final"])
}

func TestRenderEmptyLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	r := &PDFRenderer{PageSize: "A4", Orientation: "P"}
	require.NoError(t, r.Render(context.Background(), testDocument(), &fakeSource{}, path))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestRenderSourceError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fail.pdf")
	r := &PDFRenderer{}
	err := r.Render(context.Background(), testDocument(), &fakeSource{err: errors.New("relation does not exist")}, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Risk_Intersect_Final")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProjectionKeepsPointsInFrame(t *testing.T) {
	layers := []drawLayer{{features: []geospatial.Feature{
		{Geom: geom.NewPointFlat(geom.XY, []float64{-105, 40})},
		{Geom: geom.NewPointFlat(geom.XY, []float64{-104, 41})},
	}}}
	p := newProjection(layers, 10, 20, 200, 100)
	require.NotNil(t, p)

	for _, c := range [][2]float64{{-105, 40}, {-104, 41}} {
		pt := p.point(c[0], c[1])
		assert.GreaterOrEqual(t, pt.X, 10.0-1e-6)
		assert.LessOrEqual(t, pt.X, 210.0+1e-6)
		assert.GreaterOrEqual(t, pt.Y, 20.0-1e-6)
		assert.LessOrEqual(t, pt.Y, 120.0+1e-6)
	}
	// North is up.
	assert.Less(t, p.point(-104, 41).Y, p.point(-105, 40).Y)

	assert.Nil(t, newProjection(nil, 0, 0, 10, 10))
}

func TestDrawPolygonCutsHoles(t *testing.T) {
	holed := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	}})
	layers := []drawLayer{{
		style:    LayerStyle{Name: "Risk_Intersect_Final", Fill: RiskRed, Stroke: OutlineBlack},
		features: []geospatial.Feature{{Geom: holed}},
	}}

	pdf := (&PDFRenderer{}).draw("holes", layers)
	pdf.SetCompression(false)
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	out := buf.String()
	assert.Contains(t, out, "h\nB*\n")
	// Shell and hole are closed subpaths of a single painted path.
	assert.Equal(t, 2, strings.Count(out, "\nh\n"))
	assert.Equal(t, 1, strings.Count(out, "\nB*\n"))
}

func TestDrawPolygonOutlineOnly(t *testing.T) {
	layers := []drawLayer{{
		style:    LayerStyle{Name: "Avoid_Points_Buffer", Stroke: BufferGreen, NoFill: true},
		features: []geospatial.Feature{{Geom: square(0, 0, 1)}},
	}}

	pdf := (&PDFRenderer{}).draw("outline", layers)
	pdf.SetCompression(false)
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	assert.Contains(t, buf.String(), "h\nS\n")
	assert.NotContains(t, buf.String(), "B*")
}
