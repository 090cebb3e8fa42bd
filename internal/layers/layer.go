// Package layers converts between workspace features and layer files:
// ESRI shapefiles for import and export, GeoJSON for export.
package layers

import (
	"github.com/sells-group/wnv-cli/internal/geospatial"
)

// Layer is an in-memory set of features sharing one attribute schema.
type Layer struct {
	Name     string
	Fields   []geospatial.Field
	Features []geospatial.Feature
}
