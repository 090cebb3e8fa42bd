package geospatial

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/db"
)

// ImportLayer replaces layer with features, creating one column per field.
// Geometries are stored untyped in srid and loaded with COPY.
func (w *Workspace) ImportLayer(ctx context.Context, layer string, fields []Field, features []Feature, srid int) (int64, error) {
	t, err := w.table(layer)
	if err != nil {
		return 0, err
	}

	defs := []string{"fid SERIAL PRIMARY KEY"}
	columns := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if err := ValidateName(f.Name); err != nil {
			return 0, err
		}
		if !validFieldType(f.Type) {
			return 0, eris.Errorf("geo: unsupported field type %q", f.Type)
		}
		defs = append(defs, quoteIdent(f.Name)+" "+string(f.Type))
		columns = append(columns, f.Name)
	}
	defs = append(defs, fmt.Sprintf("geom geometry(Geometry, %d)", srid))
	columns = append(columns, "geom")

	rows := make([][]any, 0, len(features))
	for i, feat := range features {
		if feat.Geom == nil {
			continue
		}
		wkb, err := ewkb.Marshal(feat.Geom, ewkb.NDR)
		if err != nil {
			return 0, eris.Wrapf(err, "geo: encode feature %d of %s", i, layer)
		}
		row := make([]any, 0, len(columns))
		for _, f := range fields {
			row = append(row, feat.Attrs[f.Name])
		}
		row = append(row, wkb)
		rows = append(rows, row)
	}

	if err := w.Drop(ctx, layer); err != nil {
		return 0, err
	}
	if _, err := w.pool.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", t, strings.Join(defs, ", "))); err != nil {
		return 0, eris.Wrapf(err, "geo: create layer %s", layer)
	}

	n, err := db.CopyFromSchema(ctx, w.pool, w.schema, layer, columns, rows)
	if err != nil {
		return 0, err
	}

	if skipped := len(features) - len(rows); skipped > 0 {
		zap.L().Debug("geo: skipped features without geometry",
			zap.String("layer", layer),
			zap.Int("skipped", skipped),
		)
	}
	return n, nil
}
