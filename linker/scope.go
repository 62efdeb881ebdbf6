package linker

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/modload/drill"
	"github.com/wippyai/modload/errors"
	"github.com/wippyai/modload/resolve"
	"github.com/wippyai/modload/task"
)

// Scope is an isolated registry and load cache. Lookups that miss locally
// fall back to the Global scope, but loads always run and memoize in the
// scope that asked for them.
type Scope struct {
	ctx       context.Context
	linker    *Linker
	fallback  *Scope
	cache     *cache
	log       *zap.Logger
	entries   map[string]*entry
	cancel    context.CancelFunc
	name      string
	mu        sync.Mutex
	destroyed bool
}

func newScope(l *Linker, name string, fallback *Scope) *Scope {
	ctx, cancel := context.WithCancel(context.Background())
	log := scopeLogger(name)
	return &Scope{
		ctx:      ctx,
		cancel:   cancel,
		linker:   l,
		fallback: fallback,
		name:     name,
		log:      log,
		entries:  make(map[string]*entry),
		cache:    newCache(ctx, log),
	}
}

// Name returns the scope name.
func (s *Scope) Name() string {
	return s.name
}

// Fallback returns the scope consulted on a local miss, or nil for Global.
func (s *Scope) Fallback() *Scope {
	return s.fallback
}

// Destroy cancels in-flight loads and drops every descriptor and cached
// load. Later operations fail with a scope-destroyed error.
func (s *Scope) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	clear(s.entries)
	s.mu.Unlock()

	s.cancel()
	s.cache.reset()
	if s.fallback != nil {
		s.linker.forget(s)
	}
	s.log.Debug("scope destroyed")
}

// LoadOption configures Start, Load and LoadMany.
type LoadOption func(*loadOptions)

type loadOptions struct {
	referrer string
	chain    []string
}

// WithReferrer resolves relative identifiers against referrer.
func WithReferrer(referrer string) LoadOption {
	return func(o *loadOptions) {
		o.referrer = referrer
	}
}

// WithChain sets the ids already being loaded on behalf of this request.
// The loader uses it when loading dependencies.
func WithChain(chain ...string) LoadOption {
	return func(o *loadOptions) {
		o.chain = chain
	}
}

func buildOptions(opts []LoadOption) loadOptions {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Start begins loading id, or attaches to the load already in flight, and
// returns its task. Identifier and lifecycle errors are returned directly;
// load failures reject the task. The task's value is the module's raw export;
// anchors are not applied.
func (s *Scope) Start(ctx context.Context, id string, opts ...LoadOption) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	_, t, err := s.start(id, o.referrer, o.chain)
	return t, err
}

// Load returns the export of id as a plain Go value, drilled to its anchors.
// ctx bounds the wait only; the load itself continues for other callers.
func (s *Scope) Load(ctx context.Context, id string, opts ...LoadOption) (any, error) {
	o := buildOptions(opts)
	ident, t, err := s.start(id, o.referrer, o.chain)
	if err != nil {
		return nil, err
	}

	v, err := t.Await(ctx)
	if err != nil {
		return nil, err
	}
	sb := s.linker.sandbox
	return sb.Export(drill.DrillWith(sb.Property, v, ident.Anchors)), nil
}

// LoadMany loads ids concurrently. Results are in input order; the first
// failure is returned.
func (s *Scope) LoadMany(ctx context.Context, ids []string, opts ...LoadOption) ([]any, error) {
	out := make([]any, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			v, err := s.Load(gctx, id, opts...)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Scope) start(raw, referrer string, chain []string) (resolve.Identifier, *task.Task, error) {
	ident, err := s.linker.resolver.Resolve(raw, referrer, "")
	if err != nil {
		return ident, nil, err
	}
	desc, err := s.lookup(ident)
	if err != nil {
		return ident, nil, err
	}
	if desc.Exports != nil {
		return ident, task.Resolved(desc.Exports), nil
	}

	t, err := s.cache.getOrStart(desc.ID, chain, s.runner(desc))
	return ident, t, err
}

// lookup finds the descriptor for ident: locally, then in the fallback
// scope, else a new {id, url} descriptor is stored locally.
func (s *Scope) lookup(ident resolve.Identifier) (Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return Descriptor{}, errors.ScopeDestroyed(s.name)
	}
	if e, ok := s.entries[ident.ID]; ok {
		return e.desc, nil
	}
	if s.fallback != nil {
		if d, ok := s.fallback.find(ident.ID); ok {
			return d, nil
		}
	}

	d := Descriptor{ID: ident.ID, URL: ident.URL}
	s.entries[d.ID] = &entry{desc: d}
	return d, nil
}
