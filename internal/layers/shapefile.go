package layers

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/geospatial"
)

// wgs84PRJ is the ESRI projection file for EPSG:4326.
const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// ReadShapefile reads every record of a shapefile into a Layer named after the
// file. Records without a usable geometry are skipped.
func ReadShapefile(shpPath string, srid int) (*Layer, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "layers: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	dbfFields := reader.Fields()
	fields := make([]geospatial.Field, len(dbfFields))
	for i, f := range dbfFields {
		fields[i] = geospatial.Field{
			Name: strings.TrimRight(f.String(), "\x00"),
			Type: fieldTypeOf(f),
		}
	}

	layer := &Layer{
		Name:   strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath)),
		Fields: fields,
	}

	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		g := shapeToGeom(shape, srid)
		if g == nil {
			skipped++
			continue
		}

		attrs := make(map[string]any, len(fields))
		for i, f := range fields {
			raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			attrs[f.Name] = parseAttribute(raw, f.Type)
		}
		layer.Features = append(layer.Features, geospatial.Feature{Geom: g, Attrs: attrs})
	}

	if skipped > 0 {
		zap.L().Debug("layers: skipped shapefile records",
			zap.String("file", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return layer, nil
}

func fieldTypeOf(f shp.Field) geospatial.FieldType {
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			return geospatial.FieldInteger
		}
		return geospatial.FieldDouble
	case 'F':
		return geospatial.FieldDouble
	default:
		return geospatial.FieldText
	}
}

func parseAttribute(raw string, t geospatial.FieldType) any {
	if raw == "" {
		return nil
	}
	switch t {
	case geospatial.FieldInteger:
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
		return nil
	case geospatial.FieldDouble:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		return nil
	}
	return raw
}

// WriteShapefile writes features to shpPath (plus .shx/.dbf and, for SRID
// 4326, a .prj). The first feature's geometry decides the shape type.
func WriteShapefile(shpPath string, fields []geospatial.Field, features []geospatial.Feature) error {
	if len(features) == 0 {
		return eris.New("layers: no features to write")
	}

	shapeType, err := shapeTypeOf(features[0].Geom)
	if err != nil {
		return err
	}

	w, err := shp.Create(shpPath, shapeType)
	if err != nil {
		return eris.Wrapf(err, "layers: create shapefile %s", shpPath)
	}
	defer w.Close()

	names := dbfNames(fields)
	dbfFields := make([]shp.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case geospatial.FieldInteger:
			dbfFields[i] = shp.NumberField(names[i], 18)
		case geospatial.FieldDouble:
			dbfFields[i] = shp.FloatField(names[i], 24, 8)
		default:
			dbfFields[i] = shp.StringField(names[i], 254)
		}
	}
	if err := w.SetFields(dbfFields); err != nil {
		return eris.Wrap(err, "layers: set dbf fields")
	}

	for i, feat := range features {
		ft, err := shapeTypeOf(feat.Geom)
		if err != nil || ft != shapeType {
			return eris.Errorf("layers: feature %d: geometry %T does not match shape type of the layer", i, feat.Geom)
		}
		shape, err := geomToShape(feat.Geom)
		if err != nil {
			return eris.Wrapf(err, "layers: feature %d", i)
		}
		row := int(w.Write(shape))
		for j, f := range fields {
			v, ok := feat.Attrs[f.Name]
			if !ok || v == nil {
				continue
			}
			if err := w.WriteAttribute(row, j, attributeValue(v)); err != nil {
				return eris.Wrapf(err, "layers: write attribute %s of feature %d", f.Name, i)
			}
		}
	}

	if srid := features[0].Geom.SRID(); srid == 4326 {
		prj := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".prj"
		if err := os.WriteFile(prj, []byte(wgs84PRJ), 0o644); err != nil {
			return eris.Wrapf(err, "layers: write %s", prj)
		}
	}

	return nil
}

// dbfNames truncates field names to the 10 characters dBASE allows, keeping them unique.
func dbfNames(fields []geospatial.Field) []string {
	names := make([]string, len(fields))
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		name := f.Name
		if len(name) > 10 {
			name = name[:10]
		}
		for n := 1; seen[name]; n++ {
			suffix := strconv.Itoa(n)
			base := f.Name
			if len(base) > 10-len(suffix) {
				base = base[:10-len(suffix)]
			}
			name = base + suffix
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// attributeValue converts v to one of the types the dbf writer accepts: int, float64 or string.
func attributeValue(v any) any {
	switch t := v.(type) {
	case string, int, float64:
		return t
	case int64:
		return int(t)
	case int32:
		return int(t)
	case float32:
		return float64(t)
	default:
		return fmt.Sprint(t)
	}
}
