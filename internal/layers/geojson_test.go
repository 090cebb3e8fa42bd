package layers

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/wnv-cli/internal/geospatial"
)

func TestEncodeGeoJSON(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeGeoJSON(&buf, []geospatial.Feature{
		{
			Geom:  geom.NewPointFlat(geom.XY, []float64{-89.65, 39.78}).SetSRID(4326),
			Attrs: map[string]any{"fid": float64(7), "FULLADDR": "1 Main St"},
		},
	})
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 1)
	assert.Equal(t, "7", doc.Features[0].ID)
	assert.Equal(t, "Point", doc.Features[0].Geometry.Type)
	assert.Equal(t, []float64{-89.65, 39.78}, doc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "1 Main St", doc.Features[0].Properties["FULLADDR"])
}

func TestWriteGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.geojson")
	require.NoError(t, WriteGeoJSON(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FeatureCollection")
}
