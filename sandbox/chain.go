package sandbox

import (
	"context"

	"github.com/wippyai/modload/drill"
	"github.com/wippyai/modload/errors"
)

// Chain routes execution to the first engine that accepts the module text.
type Chain struct {
	engines []Engine
}

// NewChain creates a Chain. Engines are consulted in order.
func NewChain(engines ...Engine) *Chain {
	return &Chain{engines: engines}
}

// Execute implements Sandbox.
func (c *Chain) Execute(ctx context.Context, src []byte, moduleURL string) (*Result, error) {
	for _, e := range c.engines {
		if e.Accepts(src) {
			return e.Execute(ctx, src, moduleURL)
		}
	}
	return nil, errors.New(errors.PhaseExecute, errors.KindExecution).
		URL(moduleURL).
		Detail("no engine accepts this module format").
		Build()
}

// Property implements Sandbox. The first engine that knows the value answers;
// otherwise the generic Go lookup is used.
func (c *Chain) Property(v any, name string) (any, bool) {
	for _, e := range c.engines {
		if x, ok := e.Property(v, name); ok {
			return x, true
		}
	}
	return drill.Property(v, name)
}

// Export implements Sandbox.
func (c *Chain) Export(v any) any {
	for _, e := range c.engines {
		v = e.Export(v)
	}
	return v
}
