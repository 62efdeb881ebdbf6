package runtime

import (
	"context"
	goerrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/wippyai/modload/errors"
	"github.com/wippyai/modload/linker"
	"github.com/wippyai/modload/sandbox/wasmvm"
)

// addWASM exports add(i32, i32) -> i32.
var addWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

type server struct {
	*httptest.Server
	hits    atomic.Int64
	queries atomic.Value
}

func newServer(t *testing.T, files map[string][]byte) *server {
	t.Helper()
	s := &server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.queries.Store(r.URL.RawQuery)
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func newRuntime(t *testing.T, mutate func(*Options)) *Runtime {
	t.Helper()
	opts := DefaultOptions()
	opts.Logger = zaptest.NewLogger(t)
	opts.ExecTimeout = 5 * time.Second
	if mutate != nil {
		mutate(&opts)
	}

	ctx := context.Background()
	rt, err := New(ctx, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := rt.Close(ctx); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return rt
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Origin == "" {
		t.Error("expected a default origin")
	}
	if opts.FetchTimeout <= 0 || opts.ExecTimeout <= 0 {
		t.Errorf("expected positive timeouts, got fetch=%v exec=%v", opts.FetchTimeout, opts.ExecTimeout)
	}
	if opts.VersionParam != "v" {
		t.Errorf("VersionParam = %q, want v", opts.VersionParam)
	}
}

func TestNewInvalidOptions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"relative origin", func(o *Options) { o.Origin = "app.test" }},
		{"bad version", func(o *Options) { o.Version = "not-semver" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			if rt, err := New(ctx, opts); err == nil {
				_ = rt.Close(ctx)
				t.Error("New() expected error")
			}
		})
	}
}

func TestLoadOverHTTP(t *testing.T) {
	srv := newServer(t, map[string][]byte{
		"/app/main.js": []byte(`define(["./math.js", "../lib/add.wasm#add", "/host/greeter"], function (math, add, greeter) {
  return { sum: math.double(add(2, 3)[0]), hello: greeter.greet("go") };
});`),
		"/app/math.js": []byte(`exports.double = function (x) { return x * 2; };`),
		"/lib/add.wasm": addWASM,
	})
	rt := newRuntime(t, func(o *Options) {
		o.Origin = srv.URL
		o.Version = "1.4"
	})

	if _, err := rt.RegisterFuncs("host/greeter", map[string]any{
		"greet": func(name string) string { return "hello " + name },
	}); err != nil {
		t.Fatalf("RegisterFuncs() error = %v", err)
	}

	got, err := rt.Load(context.Background(), "app/main.js")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]any{"sum": int64(10), "hello": "hello go"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if q, _ := srv.queries.Load().(string); q != "v=1.4.0" {
		t.Errorf("query = %q, want v=1.4.0", q)
	}
}

func TestLoadWASM(t *testing.T) {
	srv := newServer(t, map[string][]byte{"/add.wasm": addWASM})

	for _, threads := range []bool{false, true} {
		rt := newRuntime(t, func(o *Options) {
			o.Origin = srv.URL
			o.WasmThreads = threads
		})

		got, err := rt.Load(context.Background(), "add.wasm#add")
		if err != nil {
			t.Fatalf("Load(threads=%v) error = %v", threads, err)
		}
		add, ok := got.(wasmvm.Func)
		if !ok {
			t.Fatalf("Load(threads=%v) = %T, want wasmvm.Func", threads, got)
		}
		out, err := add(40, 2)
		if err != nil || len(out) != 1 || out[0] != 42 {
			t.Errorf("add(40, 2) = %v, %v, want [42]", out, err)
		}
	}
}

func TestScopesShareGlobal(t *testing.T) {
	srv := newServer(t, map[string][]byte{"/counter.js": []byte(`module.exports = {n: 1};`)})
	rt := newRuntime(t, func(o *Options) { o.Origin = srv.URL })
	ctx := context.Background()

	if _, err := rt.Register(linker.Descriptor{ID: "settings", Exports: map[string]any{"theme": "dark"}}); err != nil {
		t.Fatal(err)
	}
	if !rt.Has("settings", "") {
		t.Error("Has(settings) = false")
	}

	a := rt.NewScope("a")
	b := rt.NewScope("b")
	for _, s := range []*linker.Scope{a, b} {
		got, err := s.Load(ctx, "settings#theme")
		if err != nil || got != "dark" {
			t.Errorf("%s.Load(settings#theme) = %v, %v", s.Name(), got, err)
		}
		if _, err := s.Load(ctx, "counter.js"); err != nil {
			t.Errorf("%s.Load(counter.js) error = %v", s.Name(), err)
		}
	}
	if got := srv.hits.Load(); got != 2 {
		t.Errorf("fetches = %d, want one per scope", got)
	}

	b.Destroy()
	if _, err := b.Load(ctx, "settings"); !goerrors.Is(err, errors.ErrScopeDestroyed) {
		t.Errorf("Load after Destroy error = %v, want scope destroyed", err)
	}
	if _, err := a.Load(ctx, "settings"); err != nil {
		t.Errorf("sibling scope affected by Destroy: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "m.js"), []byte(`return "from disk";`), 0o644); err != nil {
		t.Fatal(err)
	}
	rt := newRuntime(t, func(o *Options) { o.Origin = "file://" + filepath.ToSlash(dir) + "/" })

	got, err := rt.Load(context.Background(), "m.js")
	if err != nil || got != "from disk" {
		t.Errorf("Load(m.js) = %v, %v, want from disk", got, err)
	}
}

func TestResolve(t *testing.T) {
	rt := newRuntime(t, func(o *Options) { o.Origin = "https://app.test" })

	ident, err := rt.Resolve("./Util#a.b", "https://app.test/pkg/main.js")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := struct {
		ID      string
		URL     string
		Anchors []string
	}{"/pkg/util", "https://app.test/pkg/Util", []string{"a.b"}}
	got := struct {
		ID      string
		URL     string
		Anchors []string
	}{ident.ID, ident.URL, ident.Anchors}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}

func TestExecTimeout(t *testing.T) {
	srv := newServer(t, map[string][]byte{"/spin.js": []byte(`for (;;) {}`)})
	rt := newRuntime(t, func(o *Options) {
		o.Origin = srv.URL
		o.ExecTimeout = 50 * time.Millisecond
	})

	_, err := rt.Load(context.Background(), "spin.js")
	if !goerrors.Is(err, errors.ErrExecution) {
		t.Errorf("Load(spin.js) error = %v, want execution error", err)
	}
}

func TestLoadMany(t *testing.T) {
	srv := newServer(t, map[string][]byte{
		"/a.js": []byte(`return "a";`),
		"/b.js": []byte(`return "b";`),
	})
	rt := newRuntime(t, func(o *Options) { o.Origin = srv.URL })

	got, err := rt.LoadMany(context.Background(), []string{"b.js", "a.js"})
	if err != nil {
		t.Fatalf("LoadMany() error = %v", err)
	}
	if diff := cmp.Diff([]any{"b", "a"}, got); diff != "" {
		t.Errorf("LoadMany() mismatch (-want +got):\n%s", diff)
	}
}

func TestUserAgent(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("return 1;"))
	}))
	defer srv.Close()

	rt := newRuntime(t, func(o *Options) {
		o.Origin = srv.URL
		o.UserAgent = "modload-test/1"
	})
	if _, err := rt.Load(context.Background(), "x.js"); err != nil {
		t.Fatal(err)
	}
	if got, _ := ua.Load().(string); !strings.HasPrefix(got, "modload-test") {
		t.Errorf("User-Agent = %q", got)
	}
}
