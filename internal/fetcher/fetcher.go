// Package fetcher retrieves product pages, either over plain HTTP or through
// a headless Chrome session.
package fetcher

import (
	"context"
	"fmt"
	"strings"
)

// Fetcher returns the raw markup of a page. Any returned error wraps domain.ErrFetch.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Backend names accepted by New.
const (
	BackendHTTP   = "http"
	BackendChrome = "chrome"
)

// Options configures both backends.
type Options struct {
	UserAgent         string
	RequestsPerMinute int // 0 disables rate limiting
	ChromePath        string
}

// New builds the fetcher for the named backend.
func New(backend string, opts Options) (Fetcher, error) {
	switch strings.ToLower(backend) {
	case "", BackendHTTP:
		return NewHTTP(opts), nil
	case BackendChrome:
		return NewChrome(opts), nil
	default:
		return nil, fmt.Errorf("unknown fetch backend %q (want %s or %s)", backend, BackendHTTP, BackendChrome)
	}
}

// Closer is implemented by fetchers holding long-lived resources.
type Closer interface {
	Close()
}
