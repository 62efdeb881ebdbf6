package linker

import (
	"fmt"
	"sync"

	"github.com/wippyai/modload/fetch"
	"github.com/wippyai/modload/resolve"
	"github.com/wippyai/modload/sandbox"
)

// GlobalScope is the name of the fallback scope.
const GlobalScope = "global"

// Options configures the collaborators shared by every scope of a Linker.
type Options struct {
	Resolver  *resolve.Resolver
	Fetcher   fetch.Fetcher
	Formatter fetch.Formatter
	Sandbox   sandbox.Sandbox
}

// Linker owns the Global scope and creates child scopes that fall back to it.
// Thread-safe.
type Linker struct {
	resolver  *resolve.Resolver
	fetcher   fetch.Fetcher
	formatter fetch.Formatter
	sandbox   sandbox.Sandbox
	global    *Scope
	scopes    map[*Scope]struct{}
	mu        sync.Mutex
}

// New creates a Linker. Resolver, Fetcher and Sandbox are required; a nil
// Formatter leaves URLs unchanged.
func New(opts Options) (*Linker, error) {
	switch {
	case opts.Resolver == nil:
		return nil, fmt.Errorf("linker: resolver is required")
	case opts.Fetcher == nil:
		return nil, fmt.Errorf("linker: fetcher is required")
	case opts.Sandbox == nil:
		return nil, fmt.Errorf("linker: sandbox is required")
	}
	if opts.Formatter == nil {
		opts.Formatter = fetch.Identity
	}

	l := &Linker{
		resolver:  opts.Resolver,
		fetcher:   opts.Fetcher,
		formatter: opts.Formatter,
		sandbox:   opts.Sandbox,
		scopes:    make(map[*Scope]struct{}),
	}
	l.global = newScope(l, GlobalScope, nil)
	return l, nil
}

// Resolver returns the identifier resolver.
func (l *Linker) Resolver() *resolve.Resolver {
	return l.resolver
}

// Sandbox returns the sandbox modules execute in.
func (l *Linker) Sandbox() sandbox.Sandbox {
	return l.sandbox
}

// Global returns the fallback scope.
func (l *Linker) Global() *Scope {
	return l.global
}

// NewScope creates an isolated scope that falls back to Global.
func (l *Linker) NewScope(name string) *Scope {
	s := newScope(l, name, l.global)

	l.mu.Lock()
	l.scopes[s] = struct{}{}
	l.mu.Unlock()
	return s
}

// Close destroys every scope, Global last.
func (l *Linker) Close() {
	l.mu.Lock()
	scopes := make([]*Scope, 0, len(l.scopes))
	for s := range l.scopes {
		scopes = append(scopes, s)
	}
	clear(l.scopes)
	l.mu.Unlock()

	for _, s := range scopes {
		s.Destroy()
	}
	l.global.Destroy()
}

func (l *Linker) forget(s *Scope) {
	l.mu.Lock()
	delete(l.scopes, s)
	l.mu.Unlock()
}
