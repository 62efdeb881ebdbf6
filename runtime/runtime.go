package runtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/modload/errors"
	"github.com/wippyai/modload/fetch"
	"github.com/wippyai/modload/linker"
	"github.com/wippyai/modload/resolve"
	"github.com/wippyai/modload/sandbox"
	"github.com/wippyai/modload/sandbox/jsvm"
	"github.com/wippyai/modload/sandbox/wasmvm"
)

// Options configures a Runtime.
type Options struct {
	// Fetcher retrieves module text. nil means http, https and file URLs
	// with FetchTimeout.
	Fetcher fetch.Fetcher
	// Logger is installed in every package that logs. nil keeps the no-op
	// default.
	Logger *zap.Logger
	// Origin is the ambient origin identifiers resolve against.
	Origin string
	// Version, when set, is appended to fetched URLs as VersionParam=Version.
	Version      string
	VersionParam string
	UserAgent    string
	FetchTimeout time.Duration
	// ExecTimeout bounds each script body and factory call. Zero disables it.
	ExecTimeout time.Duration
	// MemoryLimitPages caps wasm instance memory in 64KB pages. Zero means
	// the wazero default.
	MemoryLimitPages uint32
	// WasmThreads enables the WebAssembly threads proposal (experimental).
	WasmThreads bool
}

// DefaultOptions returns default runtime configuration.
func DefaultOptions() Options {
	return Options{
		Origin:       "http://localhost/",
		VersionParam: fetch.DefaultVersionParam,
		UserAgent:    "modload",
		FetchTimeout: 30 * time.Second,
		ExecTimeout:  30 * time.Second,
	}
}

// Runtime is a module loader with one Global scope.
type Runtime struct {
	linker *linker.Linker
	wasm   *wasmvm.Engine
}

// New creates a Runtime.
func New(ctx context.Context, opts Options) (*Runtime, error) {
	if opts.Logger != nil {
		linker.SetLogger(opts.Logger.Named("linker"))
		jsvm.SetLogger(opts.Logger.Named("jsvm"))
		wasmvm.SetLogger(opts.Logger.Named("wasmvm"))
	}

	r, err := resolve.New(opts.Origin)
	if err != nil {
		return nil, err
	}

	var formatter fetch.Formatter
	if opts.Version != "" {
		vf, err := fetch.NewVersionFormatter(opts.Version, opts.VersionParam)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseFetch, errors.KindInvalidIdentifier, err, "invalid version")
		}
		formatter = vf
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.Default(opts.FetchTimeout, opts.UserAgent)
	}

	wasm := wasmvm.New(ctx, &wasmvm.Config{
		MemoryLimitPages: opts.MemoryLimitPages,
		EnableThreads:    opts.WasmThreads,
	})
	js := jsvm.New(jsvm.Options{Timeout: opts.ExecTimeout})

	l, err := linker.New(linker.Options{
		Resolver:  r,
		Fetcher:   fetcher,
		Formatter: formatter,
		Sandbox:   sandbox.NewChain(wasm, js),
	})
	if err != nil {
		_ = wasm.Close(ctx)
		return nil, err
	}

	return &Runtime{linker: l, wasm: wasm}, nil
}

// Close destroys every scope and releases the wasm engine.
func (r *Runtime) Close(ctx context.Context) error {
	r.linker.Close()
	return r.wasm.Close(ctx)
}

// Global returns the fallback scope.
func (r *Runtime) Global() *linker.Scope {
	return r.linker.Global()
}

// NewScope creates an isolated scope that falls back to Global.
func (r *Runtime) NewScope(name string) *linker.Scope {
	return r.linker.NewScope(name)
}

// Resolve normalizes an identifier against the runtime origin.
func (r *Runtime) Resolve(raw, referrer string) (resolve.Identifier, error) {
	return r.linker.Resolver().Resolve(raw, referrer, "")
}

// Register stores descriptors in Global.
func (r *Runtime) Register(descs ...linker.Descriptor) (*linker.Handle, error) {
	return r.Global().Register(descs...)
}

// Has reports whether Global holds a descriptor for id.
func (r *Runtime) Has(id, referrer string) bool {
	return r.Global().Has(id, referrer)
}

// Load loads id in Global.
func (r *Runtime) Load(ctx context.Context, id string, opts ...linker.LoadOption) (any, error) {
	return r.Global().Load(ctx, id, opts...)
}

// LoadMany loads ids in Global, preserving order.
func (r *Runtime) LoadMany(ctx context.Context, ids []string, opts ...linker.LoadOption) ([]any, error) {
	return r.Global().LoadMany(ctx, ids, opts...)
}
