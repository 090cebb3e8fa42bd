// Package geocode converts single-line addresses into WGS84 coordinates via an
// ArcGIS findAddressCandidates service (default) or the Census one-line geocoder.
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Providers accepted by New.
const (
	ProviderArcGIS = "arcgis"
	ProviderCensus = "census"
)

// Client geocodes one address per call. No retry and no caching.
type Client interface {
	// Geocode returns Matched=false with a nil error when the service has no candidate.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
}

// AddressInput represents an address to geocode.
type AddressInput struct {
	ID      string // Optional identifier for log correlation
	Street  string
	City    string
	State   string
	ZipCode string
}

// OneLine formats the address as "Street, City, State ZIP".
func (a AddressInput) OneLine() string {
	return fmt.Sprintf("%s, %s, %s %s",
		strings.TrimSpace(a.Street),
		strings.TrimSpace(a.City),
		strings.TrimSpace(a.State),
		strings.TrimSpace(a.ZipCode),
	)
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude       float64 // y
	Longitude      float64 // x
	Score          float64
	MatchedAddress string
	Source         string // "arcgis" or "census"
	Matched        bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout. A custom client passed with
// WithHTTPClient is copied, not modified.
func WithTimeout(d time.Duration) Option {
	return func(g *geocoder) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit throttles requests to rps per second. Zero or less leaves calls unthrottled.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type geocoder struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	provider   string
	prefix     string
}

// New creates a Client for provider. prefix is the service root; for ArcGIS it
// is the REST services prefix that "World/GeocodeServer/..." is appended to.
func New(provider, prefix string, opts ...Option) (Client, error) {
	switch provider {
	case ProviderArcGIS:
		if prefix == "" {
			return nil, eris.New("geocode: arcgis provider requires a prefix url")
		}
	case ProviderCensus:
		if prefix == "" {
			prefix = censusDefaultPrefix
		}
	default:
		return nil, eris.Errorf("geocode: unknown provider %q", provider)
	}

	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		provider:   provider,
		prefix:     prefix,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.timeout > 0 && g.httpClient.Timeout != g.timeout {
		hc := *g.httpClient
		hc.Timeout = g.timeout
		g.httpClient = &hc
	}
	return g, nil
}

// Geocode dispatches to the configured provider.
func (g *geocoder) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	switch g.provider {
	case ProviderCensus:
		return g.geocodeCensus(ctx, addr)
	default:
		return g.geocodeArcGIS(ctx, addr)
	}
}
