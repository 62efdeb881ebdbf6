package fetch

import (
	"context"
	goerrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wippyai/modload/errors"
)

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.js":
			if got := r.Header.Get("User-Agent"); got != "modload-test" {
				t.Errorf("User-Agent = %q, want modload-test", got)
			}
			_, _ = w.Write([]byte("module.exports = 1;"))
		case "/big.js":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := NewHTTP(5 * time.Second)
	h.UserAgent = "modload-test"
	h.MaxBytes = 32

	data, err := h.Get(context.Background(), srv.URL+"/ok.js")
	if err != nil {
		t.Fatalf("Get(ok) error = %v", err)
	}
	if string(data) != "module.exports = 1;" {
		t.Errorf("Get(ok) = %q", data)
	}

	tests := []struct {
		name string
		path string
	}{
		{"not found", "/missing.js"},
		{"too large", "/big.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Get(context.Background(), srv.URL+tt.path)
			if !goerrors.Is(err, errors.ErrNetwork) {
				t.Errorf("Get(%q) error = %v, want network error", tt.path, err)
			}
		})
	}
}

func TestHTTPStatusDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTP(time.Second).Get(context.Background(), srv.URL+"/x.js")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("Get() error = %v, want status 502 in message", err)
	}
}

func TestHTTPContextCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewHTTP(0).Get(ctx, srv.URL+"/slow.js")
	if !goerrors.Is(err, errors.ErrNetwork) {
		t.Errorf("Get() error = %v, want network error", err)
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.js")
	if err := os.WriteFile(path, []byte("return 1;"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := File{}.Get(context.Background(), "file://"+filepath.ToSlash(path))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "return 1;" {
		t.Errorf("Get() = %q, want %q", data, "return 1;")
	}

	_, err = File{}.Get(context.Background(), "file://"+filepath.ToSlash(filepath.Join(dir, "missing.js")))
	if !goerrors.Is(err, errors.ErrNetwork) {
		t.Errorf("Get(missing) error = %v, want network error", err)
	}
}

func TestMux(t *testing.T) {
	m := NewMux()
	m.Handle("mem", Func(func(_ context.Context, url string) ([]byte, error) {
		return []byte(url), nil
	}))

	data, err := m.Get(context.Background(), "mem://host/a.js")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "mem://host/a.js" {
		t.Errorf("Get() = %q", data)
	}

	_, err = m.Get(context.Background(), "ftp://host/a.js")
	if !goerrors.Is(err, errors.ErrNetwork) {
		t.Errorf("Get(ftp) error = %v, want network error", err)
	}
}

func TestDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "m.js")
	if err := os.WriteFile(path, []byte("disk"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := Default(time.Second, "modload-default")
	tests := []struct {
		url  string
		want string
	}{
		{srv.URL + "/a.js", "modload-default"},
		{"file://" + filepath.ToSlash(path), "disk"},
	}
	for _, tt := range tests {
		data, err := m.Get(context.Background(), tt.url)
		if err != nil || string(data) != tt.want {
			t.Errorf("Get(%q) = %q, %v, want %q", tt.url, data, err, tt.want)
		}
	}
}

func TestVersionFormatter(t *testing.T) {
	f, err := NewVersionFormatter("v1.2", "")
	if err != nil {
		t.Fatalf("NewVersionFormatter() error = %v", err)
	}
	if got := f.Version(); got != "1.2.0" {
		t.Errorf("Version() = %q, want 1.2.0", got)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"https://x.test/a.js", "https://x.test/a.js?v=1.2.0"},
		{"https://x.test/a.js?lang=en", "https://x.test/a.js?lang=en&v=1.2.0"},
		{"https://x.test/a.js?v=9", "https://x.test/a.js?v=9"},
	}
	for _, tt := range tests {
		if got := f.Format(tt.in); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := NewVersionFormatter("not-a-version", "v"); err == nil {
		t.Error("NewVersionFormatter(invalid) expected error")
	}
}

func TestIdentity(t *testing.T) {
	if got := Identity.Format("https://x.test/a.js"); got != "https://x.test/a.js" {
		t.Errorf("Identity.Format() = %q", got)
	}
}
