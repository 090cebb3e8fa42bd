package geospatial

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/db"
)

// Workspace is a PostGIS schema holding named layers. Each layer is one table
// with a "geom" column; layer names are case-preserving quoted identifiers.
type Workspace struct {
	pool   db.Pool
	schema string
}

// NewWorkspace returns a Workspace over schema.
func NewWorkspace(pool db.Pool, schema string) (*Workspace, error) {
	if err := ValidateName(schema); err != nil {
		return nil, eris.Wrap(err, "geo: workspace schema")
	}
	return &Workspace{pool: pool, schema: schema}, nil
}

// Schema returns the workspace schema name.
func (w *Workspace) Schema() string { return w.schema }

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// table returns the quoted, schema-qualified table for a layer.
func (w *Workspace) table(layer string) (string, error) {
	if err := ValidateName(layer); err != nil {
		return "", err
	}
	return pgx.Identifier{w.schema, layer}.Sanitize(), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Exists reports whether a layer table exists.
func (w *Workspace) Exists(ctx context.Context, layer string) (bool, error) {
	if err := ValidateName(layer); err != nil {
		return false, err
	}
	var exists bool
	err := w.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
		w.schema, layer,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "geo: check layer %s exists", layer)
	}
	return exists, nil
}

// Drop removes a layer if present.
func (w *Workspace) Drop(ctx context.Context, layer string) error {
	t, err := w.table(layer)
	if err != nil {
		return err
	}
	if _, err := w.pool.Exec(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
		return eris.Wrapf(err, "geo: drop layer %s", layer)
	}
	return nil
}

// CreatePointDataset creates an empty point layer in srid.
func (w *Workspace) CreatePointDataset(ctx context.Context, layer string, srid int) error {
	t, err := w.table(layer)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf(`CREATE TABLE %s (fid SERIAL PRIMARY KEY, geom geometry(Point, %d))`, t, srid)
	if _, err := w.pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "geo: create point dataset %s", layer)
	}
	return nil
}

// AddField adds an attribute column to a layer.
func (w *Workspace) AddField(ctx context.Context, layer string, field Field) error {
	t, err := w.table(layer)
	if err != nil {
		return err
	}
	if err := ValidateName(field.Name); err != nil {
		return err
	}
	if !validFieldType(field.Type) {
		return eris.Errorf("geo: unsupported field type %q", field.Type)
	}
	sql := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, t, quoteIdent(field.Name), field.Type)
	if _, err := w.pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "geo: add field %s to %s", field.Name, layer)
	}
	return nil
}

// Insert writes one feature. The geometry must carry its SRID.
func (w *Workspace) Insert(ctx context.Context, layer string, f Feature) error {
	t, err := w.table(layer)
	if err != nil {
		return err
	}
	if f.Geom == nil {
		return eris.Errorf("geo: insert into %s: nil geometry", layer)
	}
	wkb, err := ewkb.Marshal(f.Geom, ewkb.NDR)
	if err != nil {
		return eris.Wrapf(err, "geo: encode geometry for %s", layer)
	}

	names := make([]string, 0, len(f.Attrs))
	for name := range f.Attrs {
		if err := ValidateName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	cols := []string{"geom"}
	placeholders := []string{"ST_GeomFromEWKB($1)"}
	args := []any{wkb}
	for i, name := range names {
		cols = append(cols, quoteIdent(name))
		placeholders = append(placeholders, "$"+strconv.Itoa(i+2))
		args = append(args, f.Attrs[name])
	}

	sql := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, t, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := w.pool.Exec(ctx, sql, args...); err != nil {
		return eris.Wrapf(err, "geo: insert feature into %s", layer)
	}
	return nil
}

// replaceWith drops out and rebuilds it from stmts inside one transaction.
func (w *Workspace) replaceWith(ctx context.Context, out string, stmts ...string) error {
	t, err := w.table(out)
	if err != nil {
		return err
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "geo: begin tx for %s", out)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
		return eris.Wrapf(err, "geo: drop layer %s", out)
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "geo: build layer %s", out)
		}
	}

	return eris.Wrapf(tx.Commit(ctx), "geo: commit layer %s", out)
}

// Buffer writes polygons at distanceFeet around every feature of in. With
// dissolve the result is a single multipolygon.
func (w *Workspace) Buffer(ctx context.Context, in, out string, distanceFeet float64, dissolve bool) error {
	src, err := w.table(in)
	if err != nil {
		return err
	}
	dst, err := w.table(out)
	if err != nil {
		return err
	}
	if distanceFeet <= 0 {
		return eris.Errorf("geo: buffer distance must be positive, got %v", distanceFeet)
	}

	// International foot: 0.3048 m.
	meters := formatFloat(distanceFeet * 3048 / 10000)
	var sql string
	if dissolve {
		sql = fmt.Sprintf(`CREATE TABLE %s AS
			SELECT 1 AS fid, ST_Multi(ST_Union(ST_Buffer(geom::geography, %s)::geometry)) AS geom
			FROM %s`, dst, meters, src)
	} else {
		sql = fmt.Sprintf(`CREATE TABLE %s AS
			SELECT row_number() OVER () AS fid, ST_Buffer(geom::geography, %s)::geometry AS geom
			FROM %s`, dst, meters, src)
	}

	zap.L().Debug("geo: buffer", zap.String("in", in), zap.String("out", out), zap.String("meters", meters))
	return w.replaceWith(ctx, out, sql)
}

// Erase writes base minus the union of erase into out, keeping base attributes.
// Features erased completely are removed.
func (w *Workspace) Erase(ctx context.Context, base, erase, out string) error {
	src, err := w.table(base)
	if err != nil {
		return err
	}
	cut, err := w.table(erase)
	if err != nil {
		return err
	}
	dst, err := w.table(out)
	if err != nil {
		return err
	}

	return w.replaceWith(ctx, out,
		fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM %s`, dst, src),
		fmt.Sprintf(`ALTER TABLE %s ALTER COLUMN geom TYPE geometry USING geom::geometry`, dst),
		fmt.Sprintf(`UPDATE %s o SET geom = ST_Multi(ST_CollectionExtract(ST_Difference(o.geom, e.geom), 3))
			FROM (SELECT ST_Union(geom) AS geom FROM %s) e
			WHERE e.geom IS NOT NULL`, dst, cut),
		fmt.Sprintf(`DELETE FROM %s WHERE geom IS NULL OR ST_IsEmpty(geom)`, dst),
	)
}

// SpatialJoin copies target into out with opts.CountField holding the number
// of join features that intersect each target feature. An existing column of
// that name on target is replaced.
func (w *Workspace) SpatialJoin(ctx context.Context, target, join, out string, opts JoinOptions) error {
	src, err := w.table(target)
	if err != nil {
		return err
	}
	other, err := w.table(join)
	if err != nil {
		return err
	}
	dst, err := w.table(out)
	if err != nil {
		return err
	}
	if err := ValidateName(opts.CountField); err != nil {
		return err
	}
	if opts.CountField == "geom" {
		return eris.New("geo: spatial join count field cannot be geom")
	}
	count := quoteIdent(opts.CountField)

	create := fmt.Sprintf(`CREATE TABLE %s AS SELECT t.* FROM %s t`, dst, src)
	if opts.KeepCommon {
		create += fmt.Sprintf(`
		WHERE EXISTS (SELECT 1 FROM %s j WHERE ST_Intersects(t.geom, j.geom))`, other)
	}

	return w.replaceWith(ctx, out,
		create,
		fmt.Sprintf(`ALTER TABLE %s DROP COLUMN IF EXISTS %s`, dst, count),
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s integer NOT NULL DEFAULT 0`, dst, count),
		fmt.Sprintf(`UPDATE %s t SET %s = (SELECT count(*) FROM %s j WHERE ST_Intersects(t.geom, j.geom))`, dst, count, other),
	)
}

// Count returns the number of features in layer matching pred.
func (w *Workspace) Count(ctx context.Context, layer string, pred *Predicate) (int64, error) {
	t, err := w.table(layer)
	if err != nil {
		return 0, err
	}
	sql := "SELECT count(*) FROM " + t
	if pred != nil {
		where, err := pred.sql()
		if err != nil {
			return 0, err
		}
		sql += " WHERE " + where
	}

	var n int64
	if err := w.pool.QueryRow(ctx, sql).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "geo: count %s", layer)
	}
	return n, nil
}

// CopyWhere writes the features of in that match pred into out.
func (w *Workspace) CopyWhere(ctx context.Context, in, out string, pred Predicate) error {
	src, err := w.table(in)
	if err != nil {
		return err
	}
	dst, err := w.table(out)
	if err != nil {
		return err
	}
	where, err := pred.sql()
	if err != nil {
		return err
	}

	return w.replaceWith(ctx, out,
		fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM %s WHERE %s`, dst, src, where))
}

// FieldValues returns one field of every feature as text. NULLs become "".
func (w *Workspace) FieldValues(ctx context.Context, layer, field string) ([]string, error) {
	t, err := w.table(layer)
	if err != nil {
		return nil, err
	}
	if err := ValidateName(field); err != nil {
		return nil, err
	}

	rows, err := w.pool.Query(ctx, fmt.Sprintf(`SELECT COALESCE(%s::text, '') FROM %s`, quoteIdent(field), t))
	if err != nil {
		return nil, eris.Wrapf(err, "geo: query %s.%s", layer, field)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrapf(err, "geo: scan %s.%s", layer, field)
		}
		values = append(values, v)
	}
	return values, eris.Wrapf(rows.Err(), "geo: read %s.%s", layer, field)
}

// Fields lists the attribute columns of a layer, excluding geom.
func (w *Workspace) Fields(ctx context.Context, layer string) ([]Field, error) {
	if err := ValidateName(layer); err != nil {
		return nil, err
	}
	rows, err := w.pool.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 AND column_name <> 'geom'
		ORDER BY ordinal_position`,
		w.schema, layer,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: list fields of %s", layer)
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, eris.Wrapf(err, "geo: scan field of %s", layer)
		}
		fields = append(fields, Field{Name: name, Type: fieldTypeOf(dataType)})
	}
	return fields, eris.Wrapf(rows.Err(), "geo: read fields of %s", layer)
}

func fieldTypeOf(dataType string) FieldType {
	switch dataType {
	case "integer", "bigint", "smallint":
		return FieldInteger
	case "double precision", "real", "numeric":
		return FieldDouble
	default:
		return FieldText
	}
}

// Features reads every feature of layer, optionally filtered by pred.
func (w *Workspace) Features(ctx context.Context, layer string, pred *Predicate) ([]Feature, error) {
	t, err := w.table(layer)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT ST_AsEWKB(geom), to_jsonb(l) - 'geom' FROM %s l WHERE geom IS NOT NULL`, t)
	if pred != nil {
		where, err := pred.sql()
		if err != nil {
			return nil, err
		}
		sql += " AND " + where
	}

	rows, err := w.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: query features of %s", layer)
	}
	defer rows.Close()

	var features []Feature
	for rows.Next() {
		var (
			wkb   []byte
			attrs map[string]any
		)
		if err := rows.Scan(&wkb, &attrs); err != nil {
			return nil, eris.Wrapf(err, "geo: scan feature of %s", layer)
		}
		g, err := ewkb.Unmarshal(wkb)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: decode geometry of %s", layer)
		}
		features = append(features, Feature{Geom: g, Attrs: attrs})
	}
	return features, eris.Wrapf(rows.Err(), "geo: read features of %s", layer)
}

// ListLayers returns the layers of the workspace schema.
func (w *Workspace) ListLayers(ctx context.Context) ([]LayerInfo, error) {
	rows, err := w.pool.Query(ctx, `
		SELECT f_table_name, type, srid
		FROM geometry_columns
		WHERE f_table_schema = $1
		ORDER BY f_table_name`,
		w.schema,
	)
	if err != nil {
		return nil, eris.Wrap(err, "geo: list layers")
	}
	defer rows.Close()

	var layers []LayerInfo
	for rows.Next() {
		var l LayerInfo
		if err := rows.Scan(&l.Name, &l.GeometryType, &l.SRID); err != nil {
			return nil, eris.Wrap(err, "geo: scan layer")
		}
		layers = append(layers, l)
	}
	return layers, eris.Wrap(rows.Err(), "geo: read layers")
}
