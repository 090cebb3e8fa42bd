// Package geospatial implements the analysis workspace on PostgreSQL/PostGIS:
// point datasets, buffer, erase, spatial join, attribute filters and layer import.
package geospatial

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Feature is one row of a layer: a geometry plus its attributes.
type Feature struct {
	Geom  geom.T
	Attrs map[string]any
}

// FieldType is a column type accepted by AddField and ImportLayer.
type FieldType string

// Supported field types.
const (
	FieldText    FieldType = "TEXT"
	FieldInteger FieldType = "INTEGER"
	FieldDouble  FieldType = "DOUBLE PRECISION"
)

// Field describes an attribute column.
type Field struct {
	Name string
	Type FieldType
}

// LayerInfo summarizes a layer registered in geometry_columns.
type LayerInfo struct {
	Name         string
	GeometryType string
	SRID         int
}

// JoinOptions controls SpatialJoin.
type JoinOptions struct {
	// CountField receives the number of join features intersecting each target feature.
	CountField string
	// KeepCommon drops target features with no intersecting join feature.
	KeepCommon bool
}

var layerNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateName rejects layer and field names that are not plain identifiers.
func ValidateName(name string) error {
	if !layerNameRe.MatchString(name) {
		return eris.Errorf("geo: invalid layer or field name %q", name)
	}
	return nil
}

func validFieldType(t FieldType) bool {
	switch t {
	case FieldText, FieldInteger, FieldDouble:
		return true
	}
	return false
}

// Predicate is a single integer comparison on an attribute, e.g. "Join_Count > 0".
type Predicate struct {
	Field string
	Op    string
	Value int64
}

var predicateOps = []string{">=", "<=", "<>", "!=", "=", ">", "<"}

// ParsePredicate parses "<field> <op> <integer>".
func ParsePredicate(s string) (Predicate, error) {
	expr := strings.TrimSpace(s)
	for _, op := range predicateOps {
		idx := strings.Index(expr, op)
		if idx <= 0 {
			continue
		}
		field := strings.TrimSpace(expr[:idx])
		raw := strings.TrimSpace(expr[idx+len(op):])
		if err := ValidateName(field); err != nil {
			return Predicate{}, eris.Wrapf(err, "geo: parse predicate %q", s)
		}
		val, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Predicate{}, eris.Wrapf(err, "geo: parse predicate %q value", s)
		}
		if op == "!=" {
			op = "<>"
		}
		return Predicate{Field: field, Op: op, Value: val}, nil
	}
	return Predicate{}, eris.Errorf("geo: parse predicate %q: no comparison operator", s)
}

// String renders the predicate in its parseable form.
func (p Predicate) String() string {
	return p.Field + " " + p.Op + " " + strconv.FormatInt(p.Value, 10)
}

// Match evaluates the predicate against an integer value.
func (p Predicate) Match(v int64) bool {
	switch p.Op {
	case "=":
		return v == p.Value
	case "<>":
		return v != p.Value
	case ">":
		return v > p.Value
	case ">=":
		return v >= p.Value
	case "<":
		return v < p.Value
	case "<=":
		return v <= p.Value
	}
	return false
}

// MatchAttrs evaluates the predicate against a feature's attribute map.
// Missing or non-numeric attributes never match.
func (p Predicate) MatchAttrs(attrs map[string]any) bool {
	v, ok := attrs[p.Field]
	if !ok {
		return false
	}
	switch n := v.(type) {
	case int:
		return p.Match(int64(n))
	case int32:
		return p.Match(int64(n))
	case int64:
		return p.Match(n)
	case float64:
		return p.Match(int64(n))
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return err == nil && p.Match(i)
	}
	return false
}

// sql renders the predicate as a WHERE clause with a quoted column and integer literal.
func (p Predicate) sql() (string, error) {
	if err := ValidateName(p.Field); err != nil {
		return "", err
	}
	switch p.Op {
	case "=", "<>", ">", ">=", "<", "<=":
	default:
		return "", eris.Errorf("geo: unsupported predicate operator %q", p.Op)
	}
	return quoteIdent(p.Field) + " " + p.Op + " " + strconv.FormatInt(p.Value, 10), nil
}
