// Package wasmvm executes WebAssembly core modules with wazero.
//
// A wasm module follows the immediate convention: its export is a map of the
// module's exported functions and memories, keyed by export name. Modules
// with imports are rejected, since the loader has no way to satisfy them.
package wasmvm

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/wippyai/modload/errors"
	"github.com/wippyai/modload/sandbox"
)

var magic = []byte{0x00, 0x61, 0x73, 0x6d}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// EnableThreads enables the WebAssembly threads proposal (experimental).
	EnableThreads bool
}

// Engine implements sandbox.Engine using the wazero runtime.
type Engine struct {
	runtime wazero.Runtime
}

var _ sandbox.Engine = (*Engine)(nil)

// New creates an engine. cfg may be nil.
func New(ctx context.Context, cfg *Config) *Engine {
	runtimeCfg := wazero.NewRuntimeConfig()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.EnableThreads {
			runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
		}
	}

	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg)}
}

// Accepts implements sandbox.Engine.
func (e *Engine) Accepts(src []byte) bool {
	return bytes.HasPrefix(src, magic)
}

// Execute implements sandbox.Sandbox.
func (e *Engine) Execute(ctx context.Context, src []byte, moduleURL string) (*sandbox.Result, error) {
	compiled, err := e.runtime.CompileModule(ctx, src)
	if err != nil {
		return nil, errors.Execution(errors.PhaseExecute, moduleURL, fmt.Errorf("compile failed: %w", err))
	}

	if imports := compiled.ImportedFunctions(); len(imports) > 0 {
		_ = compiled.Close(ctx)
		mod, name, _ := imports[0].Import()
		return nil, errors.New(errors.PhaseExecute, errors.KindExecution).
			URL(moduleURL).
			Detail("unresolvable import %s.%s", mod, name).
			Build()
	}

	// anonymous so the same module can be instantiated by several scopes
	instance, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.Execution(errors.PhaseExecute, moduleURL, fmt.Errorf("instantiate failed: %w", err))
	}

	exports := make(map[string]any)
	for name := range compiled.ExportedFunctions() {
		exports[name] = bind(instance.ExportedFunction(name))
	}
	for name := range compiled.ExportedMemories() {
		if mem := instance.ExportedMemory(name); mem != nil {
			exports[name] = &Memory{mem: mem}
		}
	}

	// the instance keeps what it needs from the compiled module
	_ = compiled.Close(ctx)

	// ctx is the owning scope's lifetime; the instance goes with it.
	context.AfterFunc(ctx, func() {
		if err := instance.Close(context.Background()); err != nil {
			Logger().Warn("closing wasm instance", zap.String("url", moduleURL), zap.Error(err))
		}
	})

	Logger().Debug("wasm module instantiated",
		zap.String("url", moduleURL),
		zap.Int("exports", len(exports)))

	return sandbox.Immediate(exports), nil
}

// Property implements sandbox.Sandbox. Exports are plain Go maps, so the
// generic lookup handles them.
func (e *Engine) Property(any, string) (any, bool) {
	return nil, false
}

// Export implements sandbox.Sandbox.
func (e *Engine) Export(v any) any {
	return v
}

// Close releases the runtime and every instance it created.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Func is an exported wasm function. Parameters and results use wazero's
// uint64 encoding (see api.EncodeI32 and friends).
type Func func(args ...uint64) ([]uint64, error)

// bind wraps fn so that calls from several goroutines are serialized;
// an api.Function is not safe for concurrent use.
func bind(fn api.Function) Func {
	var mu sync.Mutex
	return func(args ...uint64) ([]uint64, error) {
		mu.Lock()
		defer mu.Unlock()
		return fn.Call(context.Background(), args...)
	}
}

// Memory is an exported wasm memory.
type Memory struct {
	mem api.Memory
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// Read copies length bytes starting at offset.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return bytes.Clone(data), nil
}

// Write copies data starting at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}
