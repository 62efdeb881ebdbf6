// Package sandbox defines the host execution boundary used by the loader.
//
// A Sandbox evaluates module text with an explicit, minimal set of bindings and
// reports which module convention the text followed:
//
//   - Declared: the text called define(id?, deps?, factory). The loader resolves
//     Deps and invokes Factory with their values.
//   - Immediate: no define call was observed; Value is the export.
//
// Values produced by a sandbox are opaque to the loader. They are read through
// Property (anchor drilling) and converted to plain Go values with Export.
package sandbox

import (
	"context"
)

// Dependency placeholders understood by every engine. They are never loaded;
// the engine supplies them to the factory itself.
const (
	Exports = "exports"
	Module  = "module"
	Require = "require"
)

// IsPlaceholder reports whether dep is supplied by the sandbox instead of
// the loader.
func IsPlaceholder(dep string) bool {
	switch dep {
	case Exports, Module, Require:
		return true
	}
	return false
}

// Kind is the module convention detected during execution.
type Kind int

const (
	KindImmediate Kind = iota
	KindDeclared
)

func (k Kind) String() string {
	if k == KindDeclared {
		return "declared"
	}
	return "immediate"
}

// Factory is a declared module body awaiting its dependencies.
type Factory interface {
	// Invoke calls the factory. deps is aligned with Result.Deps; entries for
	// placeholders are ignored and filled in by the engine.
	Invoke(ctx context.Context, deps []any) (any, error)
}

// Result is the tagged outcome of executing module text.
type Result struct {
	Factory Factory
	Value   any
	Deps    []string
	Kind    Kind
}

// Immediate returns an immediate-convention result.
func Immediate(v any) *Result {
	return &Result{Kind: KindImmediate, Value: v}
}

// Declared returns a declared-convention result.
func Declared(deps []string, f Factory) *Result {
	return &Result{Kind: KindDeclared, Deps: deps, Factory: f}
}

// Sandbox executes module text.
type Sandbox interface {
	// Execute evaluates src, fetched from moduleURL.
	Execute(ctx context.Context, src []byte, moduleURL string) (*Result, error)

	// Property reads a named property of a sandbox value.
	Property(v any, name string) (any, bool)

	// Export converts a sandbox value to a plain Go value. Values the sandbox
	// does not own are returned unchanged.
	Export(v any) any
}

// Engine is a Sandbox that only handles some module formats.
type Engine interface {
	Sandbox

	// Accepts reports whether src is in a format this engine executes.
	Accepts(src []byte) bool
}
