package jsvm

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/modload/errors"
	"github.com/wippyai/modload/sandbox"
)

// defaultDeps is what an AMD factory receives when define is called without a
// dependency array: the simplified CommonJS wrapper.
var defaultDeps = []string{sandbox.Require, sandbox.Exports, sandbox.Module}

// env holds the intercepted bindings of one module evaluation.
type env struct {
	vm      *VM
	exports *goja.Object
	module  *goja.Object
	define  goja.Value
	require goja.Value
	decl    *declaration
	// fault is the first loader error raised by an intercepted binding. It
	// wins over whatever the script did afterwards, including catching it.
	fault *errors.Error
	url   string
}

type declaration struct {
	factory goja.Callable
	deps    []string
}

// newEnv builds the binding set. Caller holds m.mu.
func (m *VM) newEnv(moduleURL string) *env {
	e := &env{vm: m, url: moduleURL}

	e.exports = m.rt.NewObject()
	e.module = m.rt.NewObject()
	_ = e.module.Set(sandbox.Exports, e.exports)
	_ = e.module.Set("id", moduleURL)

	def := m.rt.ToValue(e.defineFunc).(*goja.Object)
	_ = def.Set("amd", m.rt.NewObject())
	e.define = def
	e.require = m.rt.ToValue(e.requireFunc)
	return e
}

func (e *env) throw(err *errors.Error) {
	if e.fault == nil {
		e.fault = err
	}
	panic(e.vm.rt.NewGoError(err))
}

// defineFunc implements define(id?, deps?, factory). Only the trailing three
// arguments are considered.
func (e *env) defineFunc(call goja.FunctionCall) goja.Value {
	if e.decl != nil {
		Logger().Warn("define called more than once; keeping the first declaration",
			zap.String("url", e.url))
		return goja.Undefined()
	}

	args := call.Arguments
	if len(args) > 3 {
		args = args[len(args)-3:]
	}
	if len(args) == 0 {
		e.throw(errors.InvalidFactory(e.url, "define called without a factory"))
	}

	last := args[len(args)-1]
	fn, ok := goja.AssertFunction(last)
	if !ok {
		e.throw(errors.InvalidFactory(e.url, fmt.Sprintf("factory must be callable, got %s", typeName(last))))
	}

	var deps []string
	declared := false
	for _, a := range args[:len(args)-1] {
		o, isObj := a.(*goja.Object)
		if !isObj || o.ClassName() != "Array" {
			continue
		}
		if err := e.vm.rt.ExportTo(a, &deps); err != nil {
			e.throw(errors.InvalidFactory(e.url, "dependency list must contain module identifiers"))
		}
		declared = true
	}
	if !declared {
		deps = wrapperDeps(last)
	}

	e.decl = &declaration{deps: deps, factory: fn}
	return goja.Undefined()
}

func (e *env) requireFunc(call goja.FunctionCall) goja.Value {
	e.throw(errors.UnsupportedSyncRequire(e.url, call.Argument(0).String()))
	return goja.Undefined()
}

// immediateValue picks the export of a body that never called define: a
// reassigned module.exports, then a non-empty exports object, then the
// body's return value.
func (e *env) immediateValue(ret goja.Value) goja.Value {
	if me := e.module.Get(sandbox.Exports); me != nil && !goja.IsUndefined(me) && !me.SameAs(e.exports) {
		return me
	}
	if len(e.exports.Keys()) > 0 {
		return e.exports
	}
	return ret
}

// wrapperDeps returns the CommonJS-wrapper dependencies for a factory that
// declared none, truncated to the number of parameters it takes.
func wrapperDeps(fn goja.Value) []string {
	n := 0
	if o, ok := fn.(*goja.Object); ok {
		if l := o.Get("length"); l != nil {
			n = int(l.ToInteger())
		}
	}
	if n > len(defaultDeps) {
		n = len(defaultDeps)
	}
	if n <= 0 {
		return nil
	}
	return append([]string(nil), defaultDeps[:n]...)
}

func typeName(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	if o, ok := v.(*goja.Object); ok {
		return o.ClassName()
	}
	return fmt.Sprintf("%T", v.Export())
}

// factory is a declared module body bound to its environment.
type factory struct {
	vm  *VM
	env *env
}

// Invoke implements sandbox.Factory.
func (f *factory) Invoke(ctx context.Context, deps []any) (any, error) {
	m, e := f.vm, f.env

	m.mu.Lock()
	defer m.mu.Unlock()

	args := make([]goja.Value, len(e.decl.deps))
	usesExports := false
	for i, name := range e.decl.deps {
		switch name {
		case sandbox.Exports, sandbox.Module:
			usesExports = true
			if name == sandbox.Exports {
				args[i] = e.exports
			} else {
				args[i] = e.module
			}
		case sandbox.Require:
			args[i] = e.require
		default:
			var v any
			if i < len(deps) {
				v = deps[i]
			}
			args[i] = m.toValue(v)
		}
	}

	release := m.guard(ctx)
	ret, err := e.decl.factory(goja.Undefined(), args...)
	release()

	if e.fault != nil {
		return nil, e.fault
	}
	if err != nil {
		return nil, errors.Execution(errors.PhaseFactory, e.url, err)
	}

	if usesExports {
		ret = e.module.Get(sandbox.Exports)
	}
	return m.settle(e.url, ret)
}
