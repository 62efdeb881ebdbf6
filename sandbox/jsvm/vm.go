// Package jsvm executes JavaScript module text in a goja runtime.
//
// Module text is compiled as the body of a function whose only intercepted
// bindings are exports, module, define and require:
//
//	(function (exports, module, define, require) { <text> })
//
// The module convention is decided by whether define was called while the
// body ran. require is present so that UMD wrappers find it, but calling it
// fails the load: dependencies must be declared through define.
//
// A VM owns one goja runtime shared by every module it executes. goja is not
// goroutine-safe, so all access is serialized; the lock is held only while a
// body or a factory runs, never while dependencies are being loaded.
package jsvm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/modload/errors"
	"github.com/wippyai/modload/sandbox"
)

const (
	wrapperHead = "(function (exports, module, define, require) {"
	wrapperTail = "\n})"
)

// Options configures a VM.
type Options struct {
	// Timeout bounds each body execution and factory call. Zero means the
	// load context is the only limit.
	Timeout time.Duration
}

// VM is a sandbox.Engine for JavaScript text.
type VM struct {
	rt      *goja.Runtime
	timeout time.Duration
	mu      sync.Mutex
}

var _ sandbox.Engine = (*VM)(nil)

// New creates a VM.
func New(opts Options) *VM {
	rt := goja.New()
	rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	return &VM{rt: rt, timeout: opts.Timeout}
}

// Accepts implements sandbox.Engine. Any text that no other engine claims is
// treated as JavaScript.
func (m *VM) Accepts([]byte) bool {
	return true
}

// Execute implements sandbox.Sandbox.
func (m *VM) Execute(ctx context.Context, src []byte, moduleURL string) (*sandbox.Result, error) {
	prg, err := goja.Compile(moduleURL, wrapperHead+string(src)+wrapperTail, false)
	if err != nil {
		return nil, errors.Execution(errors.PhaseExecute, moduleURL, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.newEnv(moduleURL)
	release := m.guard(ctx)
	ret, err := m.run(prg, e)
	release()

	if e.fault != nil {
		return nil, e.fault
	}
	if err != nil {
		return nil, errors.Execution(errors.PhaseExecute, moduleURL, err)
	}

	if e.decl != nil {
		Logger().Debug("module declared dependencies",
			zap.String("url", moduleURL),
			zap.Strings("deps", e.decl.deps))
		return sandbox.Declared(e.decl.deps, &factory{vm: m, env: e}), nil
	}

	v, err := m.settle(moduleURL, e.immediateValue(ret))
	if err != nil {
		return nil, err
	}
	return sandbox.Immediate(v), nil
}

func (m *VM) run(prg *goja.Program, e *env) (goja.Value, error) {
	wrapper, err := m.rt.RunProgram(prg)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, fmt.Errorf("module wrapper is not callable")
	}
	return fn(goja.Undefined(), e.exports, e.module, e.define, e.require)
}

// Property implements sandbox.Sandbox for goja values.
func (m *VM) Property(v any, name string) (any, bool) {
	gv, ok := v.(goja.Value)
	if !ok || gv == nil || goja.IsUndefined(gv) || goja.IsNull(gv) {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	x := gv.ToObject(m.rt).Get(name)
	if x == nil {
		return nil, false
	}
	return x, true
}

// Export implements sandbox.Sandbox. goja values become plain Go values;
// maps produced by multi-anchor drilling are exported element-wise.
func (m *VM) Export(v any) any {
	switch x := v.(type) {
	case goja.Value:
		if x == nil {
			return nil
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		return x.Export()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = m.Export(e)
		}
		return out
	}
	return v
}

// toValue converts a dependency value for use inside the runtime.
// Caller holds m.mu.
func (m *VM) toValue(v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Undefined()
	case goja.Value:
		return x
	}
	return m.rt.ToValue(v)
}

// settle unwraps a promise export. Promise jobs have already run when the
// outermost call returned, so a pending promise can never settle.
// Caller holds m.mu.
func (m *VM) settle(moduleURL string, v goja.Value) (goja.Value, error) {
	// goja reports promises with class "Object"; only the export type is
	// reliable.
	o, ok := v.(*goja.Object)
	if !ok {
		return v, nil
	}
	p, ok := o.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}

	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		return nil, errors.Execution(errors.PhaseFactory, moduleURL, rejection(p.Result()))
	}
	return nil, errors.New(errors.PhaseFactory, errors.KindExecution).
		URL(moduleURL).
		Detail("export promise never settled").
		Build()
}

func rejection(v goja.Value) error {
	if v == nil {
		return fmt.Errorf("promise rejected")
	}
	if err, ok := v.Export().(error); ok {
		return err
	}
	return fmt.Errorf("promise rejected: %s", v.String())
}

// guard interrupts the runtime when ctx ends or the VM timeout elapses.
// release must be called before the lock is dropped.
func (m *VM) guard(ctx context.Context) (release func()) {
	cancel := func() {}
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			m.rt.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
		m.rt.ClearInterrupt()
		cancel()
	}
}
