package layers

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// shapeToGeom converts a go-shp shape to a go-geom geometry in srid.
// Returns nil for unsupported or empty shapes.
func shapeToGeom(shape shp.Shape, srid int) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(srid)
	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil
		}
		flat := make([]float64, 0, len(s.Points)*2)
		for _, p := range s.Points {
			flat = append(flat, p.X, p.Y)
		}
		return geom.NewMultiPointFlat(geom.XY, flat).SetSRID(srid)
	case *shp.PolyLine:
		return polyLineToMultiLineString(s, srid)
	case *shp.Polygon:
		return polygonToMultiPolygon(s, srid)
	}
	return nil
}

// partBounds returns the point range of part i.
func partBounds(parts []int32, numParts int32, numPoints int, i int32) (int32, int32) {
	start := parts[i]
	end := int32(numPoints)
	if i+1 < numParts {
		end = parts[i+1]
	}
	return start, end
}

func polyLineToMultiLineString(pl *shp.PolyLine, srid int) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(srid)
	for i := int32(0); i < pl.NumParts; i++ {
		start, end := partBounds(pl.Parts, pl.NumParts, len(pl.Points), i)
		ls := geom.NewLineStringFlat(geom.XY, flatPoints(pl.Points[start:end]))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("layers: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon treats every ring as the shell of its own polygon.
func polygonToMultiPolygon(p *shp.Polygon, srid int) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
	for i := int32(0); i < p.NumParts; i++ {
		start, end := partBounds(p.Parts, p.NumParts, len(p.Points), i)
		ring := geom.NewLinearRingFlat(geom.XY, flatPoints(p.Points[start:end]))
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("layers: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("layers: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func flatPoints(points []shp.Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, pt := range points {
		flat = append(flat, pt.X, pt.Y)
	}
	return flat
}

// shapeTypeOf maps a geometry to the shapefile type that can hold it.
func shapeTypeOf(g geom.T) (shp.ShapeType, error) {
	switch g.(type) {
	case *geom.Point:
		return shp.POINT, nil
	case *geom.MultiPoint:
		return shp.MULTIPOINT, nil
	case *geom.LineString, *geom.MultiLineString:
		return shp.POLYLINE, nil
	case *geom.Polygon, *geom.MultiPolygon:
		return shp.POLYGON, nil
	}
	return shp.NULL, eris.Errorf("layers: unsupported geometry %T", g)
}

// geomToShape converts a go-geom geometry to the matching go-shp shape.
func geomToShape(g geom.T) (shp.Shape, error) {
	switch t := g.(type) {
	case *geom.Point:
		return &shp.Point{X: t.X(), Y: t.Y()}, nil
	case *geom.MultiPoint:
		points := coordsToPoints(t.Coords())
		box := shp.BBoxFromPoints(points)
		return &shp.MultiPoint{Box: box, NumPoints: int32(len(points)), Points: points}, nil
	case *geom.LineString:
		pl := shp.NewPolyLine([][]shp.Point{coordsToPoints(t.Coords())})
		return pl, nil
	case *geom.MultiLineString:
		var parts [][]shp.Point
		for _, line := range t.Coords() {
			parts = append(parts, coordsToPoints(line))
		}
		return shp.NewPolyLine(parts), nil
	case *geom.Polygon:
		pl := shp.NewPolyLine(ringsToParts(t.Coords()))
		poly := shp.Polygon(*pl)
		return &poly, nil
	case *geom.MultiPolygon:
		var parts [][]shp.Point
		for _, polygon := range t.Coords() {
			parts = append(parts, ringsToParts(polygon)...)
		}
		pl := shp.NewPolyLine(parts)
		poly := shp.Polygon(*pl)
		return &poly, nil
	}
	return nil, eris.Errorf("layers: unsupported geometry %T", g)
}

func coordsToPoints(coords []geom.Coord) []shp.Point {
	points := make([]shp.Point, len(coords))
	for i, c := range coords {
		points[i] = shp.Point{X: c.X(), Y: c.Y()}
	}
	return points
}

func ringsToParts(rings [][]geom.Coord) [][]shp.Point {
	parts := make([][]shp.Point, 0, len(rings))
	for _, r := range rings {
		parts = append(parts, coordsToPoints(r))
	}
	return parts
}
