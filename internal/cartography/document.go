// Package cartography holds the map document (layer order, transparency,
// definition queries) and renders it to PDF.
package cartography

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/wnv-cli/internal/geospatial"
)

// Color is an RGB color.
type Color struct {
	R, G, B int
}

// Palette used by the analysis map.
var (
	RiskRed      = Color{R: 214, G: 39, B: 40}
	BufferGreen  = Color{R: 44, G: 160, B: 44}
	TargetBlue   = Color{R: 31, G: 119, B: 180}
	OutlineBlack = Color{R: 40, G: 40, B: 40}
)

// LayerStyle is one layer of the map, drawn bottom to top in document order.
type LayerStyle struct {
	Name string
	// Transparency in percent: 0 is opaque, 100 invisible.
	Transparency float64
	// Definition restricts the drawn features; nil draws all.
	Definition  *geospatial.Predicate
	Fill        Color
	Stroke      Color
	NoFill      bool
	PointRadius float64 // mm
}

// Opacity returns the alpha value for the layer's transparency.
func (l LayerStyle) Opacity() float64 {
	t := l.Transparency
	if t < 0 {
		t = 0
	}
	if t > 100 {
		t = 100
	}
	return 1 - t/100
}

// Document is an ordered set of styled layers with a title.
type Document struct {
	Title  string
	Layers []LayerStyle
}

// AddLayer appends a layer on top of the current ones.
func (d *Document) AddLayer(l LayerStyle) {
	d.Layers = append(d.Layers, l)
}

// Layer returns the named layer, or nil.
func (d *Document) Layer(name string) *LayerStyle {
	for i := range d.Layers {
		if d.Layers[i].Name == name {
			return &d.Layers[i]
		}
	}
	return nil
}

// SetTransparency sets a layer's transparency in percent.
func (d *Document) SetTransparency(name string, pct float64) error {
	l := d.Layer(name)
	if l == nil {
		return eris.Errorf("cartography: layer %s not in map", name)
	}
	if pct < 0 || pct > 100 {
		return eris.Errorf("cartography: transparency %v outside 0-100", pct)
	}
	l.Transparency = pct
	return nil
}

// SetDefinitionQuery restricts the features drawn for a layer.
func (d *Document) SetDefinitionQuery(name string, pred geospatial.Predicate) error {
	l := d.Layer(name)
	if l == nil {
		return eris.Errorf("cartography: layer %s not in map", name)
	}
	l.Definition = &pred
	return nil
}
