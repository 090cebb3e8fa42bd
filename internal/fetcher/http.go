package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	PreviewChars int
}

// HTTPFetcher implements Fetcher with one GET per call and no retry.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "wnv-cli/1.0"
	}
	if opts.PreviewChars == 0 {
		opts.PreviewChars = 300
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// WithClient replaces the underlying HTTP client.
func (f *HTTPFetcher) WithClient(c *http.Client) *HTTPFetcher {
	f.client = c
	return f
}

// Fetch performs a single GET and returns the body of a 200 response.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}

	return &Payload{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Extract fetches the sheet and never returns an error: any transport failure
// or non-200 status is logged and reported as a nil payload.
func (f *HTTPFetcher) Extract(ctx context.Context, rawURL string) *Payload {
	log := zap.L().With(zap.String("component", "extract"), zap.String("url", rawURL))

	p, err := f.Fetch(ctx, rawURL)
	if err != nil {
		log.Warn("extract: failed to fetch sheet", zap.Error(err))
		return nil
	}

	log.Info("extract: fetched sheet",
		zap.Int("bytes", len(p.Body)),
		zap.String("content_type", p.ContentType),
		zap.String("preview", p.Preview(f.opts.PreviewChars)),
	)
	return p
}
