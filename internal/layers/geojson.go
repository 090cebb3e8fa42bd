package layers

import (
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/wnv-cli/internal/geospatial"
)

// EncodeGeoJSON writes features as a GeoJSON FeatureCollection.
func EncodeGeoJSON(w io.Writer, features []geospatial.Feature) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(features))}
	for i, f := range features {
		id := strconv.Itoa(i + 1)
		if fid, ok := f.Attrs["fid"]; ok && fid != nil {
			id = jsonString(fid)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         id,
			Geometry:   f.Geom,
			Properties: f.Attrs,
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "layers: encode geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "layers: write geojson")
	}
	return nil
}

// WriteGeoJSON writes features to path as a GeoJSON FeatureCollection.
func WriteGeoJSON(path string, features []geospatial.Feature) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "layers: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	return EncodeGeoJSON(f, features)
}

func jsonString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	}
	data, _ := json.Marshal(v)
	return string(data)
}
