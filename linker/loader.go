package linker

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/modload/drill"
	"github.com/wippyai/modload/errors"
	"github.com/wippyai/modload/resolve"
	"github.com/wippyai/modload/sandbox"
	"github.com/wippyai/modload/task"
)

// runner returns the computation behind a cache entry for desc.
func (s *Scope) runner(desc Descriptor) runFunc {
	return func(ctx context.Context, chain []string) (any, error) {
		var (
			v   any
			err error
		)
		if desc.Loader != nil {
			v, err = desc.Loader(ctx)
			if err != nil && !errors.Typed(err) {
				err = errors.New(errors.PhaseLoad, errors.KindExecution).
					ID(desc.ID).
					URL(desc.URL).
					Cause(err).
					Build()
			}
		} else {
			v, err = s.fetchAndExecute(ctx, desc, chain)
		}

		if err != nil && ctx.Err() != nil {
			return nil, errors.New(errors.PhaseLoad, errors.KindScopeDestroyed).
				ID(desc.ID).
				Detail("scope %s destroyed during load", s.name).
				Cause(err).
				Build()
		}
		return v, err
	}
}

func (s *Scope) fetchAndExecute(ctx context.Context, desc Descriptor, chain []string) (any, error) {
	target := s.linker.formatter.Format(desc.URL)
	s.log.Info("fetching module", zap.String("id", desc.ID), zap.String("url", target))

	text, err := s.linker.fetcher.Get(ctx, target)
	if err != nil {
		if errors.Typed(err) {
			return nil, err
		}
		return nil, errors.Network(target, err)
	}
	return s.loadText(ctx, text, desc.URL, chain)
}

// loadText executes module text and, for declared modules, loads the
// dependencies and invokes the factory.
func (s *Scope) loadText(ctx context.Context, text []byte, moduleURL string, chain []string) (any, error) {
	sb := s.linker.sandbox

	res, err := sb.Execute(ctx, text, moduleURL)
	if err != nil {
		return nil, classify(errors.PhaseExecute, moduleURL, err)
	}
	if res.Kind == sandbox.KindImmediate {
		return res.Value, nil
	}
	if res.Factory == nil {
		return nil, errors.InvalidFactory(moduleURL, "declared module has no factory")
	}

	deps, err := s.loadDeps(ctx, res.Deps, moduleURL, chain)
	if err != nil {
		return nil, err
	}

	v, err := res.Factory.Invoke(ctx, deps)
	if err != nil {
		return nil, classify(errors.PhaseFactory, moduleURL, err)
	}
	return v, nil
}

// loadDeps starts every non-placeholder dependency in declared order, then
// waits for all of them. Values are returned in declared order, drilled to
// each dependency's anchors.
func (s *Scope) loadDeps(ctx context.Context, deps []string, moduleURL string, chain []string) ([]any, error) {
	tasks := make([]*task.Task, len(deps))
	idents := make([]resolve.Identifier, len(deps))
	for i, dep := range deps {
		if sandbox.IsPlaceholder(dep) {
			continue
		}
		ident, t, err := s.start(dep, moduleURL, chain)
		if err != nil {
			return nil, err
		}
		idents[i], tasks[i] = ident, t
	}

	values, err := task.AwaitAll(ctx, tasks)
	if err != nil {
		return nil, err
	}

	sb := s.linker.sandbox
	for i, t := range tasks {
		if t != nil {
			values[i] = drill.DrillWith(sb.Property, values[i], idents[i].Anchors)
		}
	}
	return values, nil
}

// classify keeps loader errors intact and wraps anything else as an
// execution error.
func classify(phase errors.Phase, moduleURL string, err error) error {
	if errors.Typed(err) {
		return err
	}
	return errors.Execution(phase, moduleURL, err)
}
