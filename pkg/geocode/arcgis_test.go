package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArcGISServer(t *testing.T, status int, body string, gotQuery *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/World/GeocodeServer/findAddressCandidates"))
		if gotQuery != nil {
			*gotQuery = r.URL.Query().Get("SingleLine")
		}
		assert.Equal(t, "json", r.URL.Query().Get("f"))
		assert.Equal(t, "*", r.URL.Query().Get("outFields"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestArcGISGeocode_Success(t *testing.T) {
	var query string
	srv := newArcGISServer(t, http.StatusOK, `{
		"spatialReference": {"wkid": 4326},
		"candidates": [
			{"address": "1 Main St, Springfield, Illinois, 62701", "location": {"x": -89.6501, "y": 39.7817}, "score": 98.5},
			{"address": "1 Main St, Springfield, Ohio", "location": {"x": -83.8, "y": 39.9}, "score": 80}
		]
	}`, &query)

	c, err := New(ProviderArcGIS, srv.URL+"/arcgis/rest/services/")
	require.NoError(t, err)

	result, err := c.Geocode(context.Background(), AddressInput{
		Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701",
	})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, -89.6501, result.Longitude, 0.0001)
	assert.InDelta(t, 39.7817, result.Latitude, 0.0001)
	assert.InDelta(t, 98.5, result.Score, 0.001)
	assert.Equal(t, ProviderArcGIS, result.Source)
	assert.Equal(t, "1 Main St, Springfield, IL 62701", query)
}

func TestArcGISGeocode_NoCandidates(t *testing.T) {
	srv := newArcGISServer(t, http.StatusOK, `{"candidates": []}`, nil)

	c, err := New(ProviderArcGIS, srv.URL+"/")
	require.NoError(t, err)

	result, err := c.Geocode(context.Background(), AddressInput{Street: "123 Nowhere St", City: "Faketown", State: "XX", ZipCode: "00000"})
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestArcGISGeocode_Non200(t *testing.T) {
	srv := newArcGISServer(t, http.StatusBadGateway, `bad gateway`, nil)

	c, err := New(ProviderArcGIS, srv.URL+"/")
	require.NoError(t, err)

	_, err = c.Geocode(context.Background(), AddressInput{Street: "1 Main St"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestArcGISGeocode_ErrorObject(t *testing.T) {
	srv := newArcGISServer(t, http.StatusOK, `{"error": {"code": 498, "message": "Invalid token."}}`, nil)

	c, err := New(ProviderArcGIS, srv.URL+"/")
	require.NoError(t, err)

	_, err = c.Geocode(context.Background(), AddressInput{Street: "1 Main St"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid token")
}

func TestArcGISGeocode_MalformedJSON(t *testing.T) {
	srv := newArcGISServer(t, http.StatusOK, `{"candidates": [`, nil)

	c, err := New(ProviderArcGIS, srv.URL+"/")
	require.NoError(t, err)

	_, err = c.Geocode(context.Background(), AddressInput{Street: "1 Main St"})
	assert.Error(t, err)
}

func TestArcGISURL(t *testing.T) {
	u := arcgisURL("https://geocode.example.com/arcgis/rest/services", "1 Main St, Springfield, IL 62701")
	assert.True(t, strings.HasPrefix(u, "https://geocode.example.com/arcgis/rest/services/World/GeocodeServer/findAddressCandidates?"))
	assert.Contains(t, u, "SingleLine=1+Main+St%2C+Springfield%2C+IL+62701")
	assert.Contains(t, u, "outFields=%2A")
	assert.Contains(t, u, "f=json")
}
