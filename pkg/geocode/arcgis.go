package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

const arcgisCandidatesPath = "World/GeocodeServer/findAddressCandidates"

// arcgisResponse is the JSON response from findAddressCandidates.
type arcgisResponse struct {
	Candidates []arcgisCandidate `json:"candidates"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type arcgisCandidate struct {
	Address  string `json:"address"`
	Location struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"location"`
	Score float64 `json:"score"`
}

// arcgisURL builds the candidates request for a single-line address.
func arcgisURL(prefix, oneLine string) string {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	params := url.Values{
		"f":          {"json"},
		"SingleLine": {oneLine},
		"outFields":  {"*"},
	}
	return prefix + arcgisCandidatesPath + "?" + params.Encode()
}

// geocodeArcGIS takes the first candidate returned for the one-line address.
func (g *geocoder) geocodeArcGIS(ctx context.Context, addr AddressInput) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arcgisURL(g.prefix, addr.OneLine()), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: arcgis returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis read body")
	}

	var arcResp arcgisResponse
	if err := json.Unmarshal(body, &arcResp); err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis parse response")
	}

	// ArcGIS reports request errors with HTTP 200 and an error object.
	if arcResp.Error != nil {
		return nil, eris.Errorf("geocode: arcgis error %d: %s", arcResp.Error.Code, arcResp.Error.Message)
	}

	if len(arcResp.Candidates) == 0 {
		return &Result{Matched: false, Source: ProviderArcGIS}, nil
	}

	c := arcResp.Candidates[0]
	return &Result{
		Latitude:       c.Location.Y,
		Longitude:      c.Location.X,
		Score:          c.Score,
		MatchedAddress: c.Address,
		Source:         ProviderArcGIS,
		Matched:        true,
	}, nil
}
