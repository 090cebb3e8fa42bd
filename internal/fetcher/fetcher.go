// Package fetcher downloads the published address sheet and parses it into records.
package fetcher

import (
	"context"
)

// Fetcher downloads a remote document.
type Fetcher interface {
	// Fetch performs a single GET and returns the body of a 200 response.
	Fetch(ctx context.Context, url string) (*Payload, error)
}

// Payload is the raw body of a fetched sheet. A nil *Payload marks absence.
type Payload struct {
	URL         string
	ContentType string
	Body        []byte
}

// Preview returns at most n characters of the body.
func (p *Payload) Preview(n int) string {
	if p == nil {
		return ""
	}
	r := []rune(string(p.Body))
	if n < 0 || len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
