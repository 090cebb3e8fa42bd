package cartography

import (
	"context"
	"fmt"
	"math"

	"github.com/go-pdf/fpdf"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/geospatial"
)

// FeatureSource supplies the features of a layer. *geospatial.Workspace implements it.
type FeatureSource interface {
	Features(ctx context.Context, layer string, pred *geospatial.Predicate) ([]geospatial.Feature, error)
}

// PDFRenderer renders a Document to a single-page PDF.
type PDFRenderer struct {
	PageSize    string // "Letter", "A4", ...
	Orientation string // "L" or "P"
}

type drawLayer struct {
	style    LayerStyle
	features []geospatial.Feature
}

// projection maps lon/lat to page millimetres. Longitude is scaled by the
// cosine of the centre latitude.
type projection struct {
	minX, minY, maxX, maxY float64
	scale, kx              float64
	left, top, w, h        float64
}

func newProjection(layers []drawLayer, left, top, w, h float64) *projection {
	p := &projection{
		minX: math.Inf(1), minY: math.Inf(1),
		maxX: math.Inf(-1), maxY: math.Inf(-1),
		left: left, top: top, w: w, h: h,
	}
	for _, l := range layers {
		for _, f := range l.features {
			if f.Geom == nil {
				continue
			}
			flat, stride := f.Geom.FlatCoords(), f.Geom.Stride()
			for i := 0; i+1 < len(flat); i += stride {
				p.minX = math.Min(p.minX, flat[i])
				p.maxX = math.Max(p.maxX, flat[i])
				p.minY = math.Min(p.minY, flat[i+1])
				p.maxY = math.Max(p.maxY, flat[i+1])
			}
		}
	}
	if math.IsInf(p.minX, 1) {
		return nil
	}

	p.kx = math.Cos((p.minY + p.maxY) / 2 * math.Pi / 180)
	if p.kx <= 0 {
		p.kx = 1
	}
	spanX := (p.maxX - p.minX) * p.kx
	spanY := p.maxY - p.minY
	// Pad single points and degenerate extents.
	if spanX == 0 && spanY == 0 {
		spanX, spanY = 0.01, 0.01
	}
	p.scale = math.Min(w/nonZero(spanX), h/nonZero(spanY))
	return p
}

func nonZero(v float64) float64 {
	if v == 0 {
		return math.SmallestNonzeroFloat64
	}
	return v
}

func (p *projection) point(x, y float64) fpdf.PointType {
	drawnW := (p.maxX - p.minX) * p.kx * p.scale
	drawnH := (p.maxY - p.minY) * p.scale
	offX := p.left + (p.w-drawnW)/2
	offY := p.top + (p.h-drawnH)/2
	return fpdf.PointType{
		X: offX + (x-p.minX)*p.kx*p.scale,
		Y: offY + drawnH - (y-p.minY)*p.scale,
	}
}

func (p *projection) ring(coords []geom.Coord) []fpdf.PointType {
	pts := make([]fpdf.PointType, len(coords))
	for i, c := range coords {
		pts[i] = p.point(c.X(), c.Y())
	}
	return pts
}

// Render loads each layer from src and writes the map to path.
func (r *PDFRenderer) Render(ctx context.Context, doc *Document, src FeatureSource, path string) error {
	layers := make([]drawLayer, 0, len(doc.Layers))
	for _, style := range doc.Layers {
		features, err := src.Features(ctx, style.Name, style.Definition)
		if err != nil {
			return eris.Wrapf(err, "cartography: load layer %s", style.Name)
		}
		zap.L().Debug("cartography: layer loaded", zap.String("layer", style.Name), zap.Int("features", len(features)))
		layers = append(layers, drawLayer{style: style, features: features})
	}

	pdf := r.draw(doc.Title, layers)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return eris.Wrapf(err, "cartography: write %s", path)
	}
	return nil
}

func (r *PDFRenderer) draw(title string, layers []drawLayer) *fpdf.Fpdf {
	orientation := r.Orientation
	if orientation == "" {
		orientation = "L"
	}
	size := r.PageSize
	if size == "" {
		size = "Letter"
	}

	pdf := fpdf.New(orientation, "mm", size, "")
	pdf.SetTitle(title, true)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()
	left, top, right, bottom := pdf.GetMargins()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(pageW-left-right, 10, title, "", 1, "C", false, 0, "")

	legendH := 8.0 * float64(len(layers))
	mapTop := top + 14
	mapH := pageH - mapTop - bottom - legendH - 4
	mapW := pageW - left - right

	pdf.SetDrawColor(OutlineBlack.R, OutlineBlack.G, OutlineBlack.B)
	pdf.SetLineWidth(0.3)
	pdf.Rect(left, mapTop, mapW, mapH, "D")

	proj := newProjection(layers, left+2, mapTop+2, mapW-4, mapH-4)
	if proj == nil {
		pdf.SetFont("Helvetica", "I", 12)
		pdf.Text(left+mapW/2-20, mapTop+mapH/2, "No features to display")
	} else {
		for _, l := range layers {
			drawFeatures(pdf, proj, l)
		}
	}

	legendTop := mapTop + mapH + 4
	pdf.SetFont("Helvetica", "", 10)
	for i, l := range layers {
		y := legendTop + float64(i)*8
		pdf.SetAlpha(l.style.Opacity(), "Normal")
		pdf.SetFillColor(l.style.Fill.R, l.style.Fill.G, l.style.Fill.B)
		pdf.SetDrawColor(l.style.Stroke.R, l.style.Stroke.G, l.style.Stroke.B)
		style := "FD"
		if l.style.NoFill {
			style = "D"
		}
		pdf.Rect(left, y, 6, 5, style)
		pdf.SetAlpha(1, "Normal")
		label := fmt.Sprintf("%s (%d)", l.style.Name, len(l.features))
		if l.style.Definition != nil {
			label += "  where " + l.style.Definition.String()
		}
		pdf.Text(left+9, y+4, label)
	}

	return pdf
}

func drawFeatures(pdf *fpdf.Fpdf, proj *projection, l drawLayer) {
	s := l.style
	pdf.SetAlpha(s.Opacity(), "Normal")
	defer pdf.SetAlpha(1, "Normal")

	pdf.SetFillColor(s.Fill.R, s.Fill.G, s.Fill.B)
	pdf.SetDrawColor(s.Stroke.R, s.Stroke.G, s.Stroke.B)
	pdf.SetLineWidth(0.2)

	polyStyle := "FD"
	if s.NoFill {
		polyStyle = "D"
	}
	radius := s.PointRadius
	if radius == 0 {
		radius = 1
	}

	for _, f := range l.features {
		switch g := f.Geom.(type) {
		case *geom.Point:
			pt := proj.point(g.X(), g.Y())
			pdf.Circle(pt.X, pt.Y, radius, "FD")
		case *geom.MultiPoint:
			for _, c := range g.Coords() {
				pt := proj.point(c.X(), c.Y())
				pdf.Circle(pt.X, pt.Y, radius, "FD")
			}
		case *geom.LineString:
			drawLine(pdf, proj.ring(g.Coords()))
		case *geom.MultiLineString:
			for _, line := range g.Coords() {
				drawLine(pdf, proj.ring(line))
			}
		case *geom.Polygon:
			drawPolygon(pdf, proj, g.Coords(), polyStyle)
		case *geom.MultiPolygon:
			for _, poly := range g.Coords() {
				drawPolygon(pdf, proj, poly, polyStyle)
			}
		}
	}
}

func drawLine(pdf *fpdf.Fpdf, pts []fpdf.PointType) {
	for i := 1; i < len(pts); i++ {
		pdf.Line(pts[i-1].X, pts[i-1].Y, pts[i].X, pts[i].Y)
	}
}

// drawPolygon paints shell and holes as one path with the even-odd rule so
// holes stay unfilled.
func drawPolygon(pdf *fpdf.Fpdf, proj *projection, rings [][]geom.Coord, style string) {
	if len(rings) == 0 || len(rings[0]) < 3 {
		return
	}
	for _, ring := range rings {
		if len(ring) < 3 {
			continue
		}
		pts := proj.ring(ring)
		pdf.MoveTo(pts[0].X, pts[0].Y)
		for _, pt := range pts[1:] {
			pdf.LineTo(pt.X, pt.Y)
		}
		pdf.ClosePath()
	}
	if style == "D" {
		pdf.DrawPath("D")
		return
	}
	pdf.DrawPath(style + "*")
}
