// Package fetch retrieves module text by URL.
//
// Fetchers return the raw text of a module; they never interpret it. Failures
// are reported as network errors from the errors package so that the loader
// can propagate them unchanged.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/wippyai/modload/errors"
)

// DefaultMaxBytes caps the size of a fetched module.
const DefaultMaxBytes = 32 << 20

// Fetcher retrieves module text.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Func adapts a function to a Fetcher.
type Func func(ctx context.Context, url string) ([]byte, error)

// Get implements Fetcher.
func (f Func) Get(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// HTTP fetches http and https URLs.
type HTTP struct {
	Client    *http.Client
	UserAgent string
	// MaxBytes caps the response body. Zero means DefaultMaxBytes.
	MaxBytes int64
}

// NewHTTP creates an HTTP fetcher with the given request timeout.
func NewHTTP(timeout time.Duration) *HTTP {
	return &HTTP{Client: &http.Client{Timeout: timeout}}
}

// Get implements Fetcher. Any non-2xx status is a network error.
func (h *HTTP) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Network(rawURL, err)
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Network(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NetworkStatus(rawURL, resp.StatusCode)
	}

	limit := h.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, errors.Network(rawURL, err)
	}
	if int64(len(body)) > limit {
		return nil, errors.Network(rawURL, fmt.Errorf("module exceeds %d bytes", limit))
	}
	return body, nil
}

// File fetches file:// URLs from the local filesystem.
type File struct{}

// Get implements Fetcher.
func (File) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Network(rawURL, err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Network(rawURL, err)
	}
	if u.Scheme != "file" {
		return nil, errors.Network(rawURL, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return nil, errors.Network(rawURL, err)
	}
	return data, nil
}

// Mux dispatches to a Fetcher by URL scheme.
type Mux struct {
	mu      sync.RWMutex
	schemes map[string]Fetcher
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{schemes: make(map[string]Fetcher)}
}

// Default returns a Mux serving http, https and file URLs. An empty
// userAgent keeps the HTTP default.
func Default(timeout time.Duration, userAgent string) *Mux {
	m := NewMux()
	h := NewHTTP(timeout)
	h.UserAgent = userAgent
	m.Handle("http", h)
	m.Handle("https", h)
	m.Handle("file", File{})
	return m
}

// Handle registers f for scheme, replacing any previous registration.
func (m *Mux) Handle(scheme string, f Fetcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemes[scheme] = f
}

// Get implements Fetcher.
func (m *Mux) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Network(rawURL, err)
	}

	m.mu.RLock()
	f, ok := m.schemes[u.Scheme]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Network(rawURL, fmt.Errorf("no fetcher for scheme %q", u.Scheme))
	}
	return f.Get(ctx, rawURL)
}
