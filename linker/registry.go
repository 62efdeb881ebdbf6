package linker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/modload/errors"
)

// Descriptor identifies a module and optionally supplies its export.
//
// Resolution priority when a descriptor is loaded:
//  1. Exports, if non-nil, is the export value; nothing is fetched.
//  2. Loader, if non-nil, produces the export value; its result is memoized.
//  3. Otherwise the text at URL is fetched and executed.
type Descriptor struct {
	Exports any
	Loader  func(ctx context.Context) (any, error)
	ID      string
	URL     string
}

// entry is a stored descriptor. Handles compare entries by pointer so that a
// later registration of the same id is never removed by an older handle.
type entry struct {
	desc Descriptor
}

// Handle undoes one Register call.
type Handle struct {
	scope   *Scope
	entries []*entry
	once    sync.Once
}

// IDs returns the canonical ids stored by the Register call.
func (h *Handle) IDs() []string {
	ids := make([]string, len(h.entries))
	for i, e := range h.entries {
		ids[i] = e.desc.ID
	}
	return ids
}

// Dispose unregisters the descriptors stored by the Register call that
// returned h. Calling it more than once has no further effect.
func (h *Handle) Dispose() {
	h.once.Do(func() {
		s := h.scope
		var removed []string

		s.mu.Lock()
		for _, e := range h.entries {
			if cur, ok := s.entries[e.desc.ID]; ok && cur == e {
				delete(s.entries, e.desc.ID)
				removed = append(removed, e.desc.ID)
			}
		}
		s.mu.Unlock()

		s.cache.purge(removed...)
		s.log.Debug("descriptors disposed", zap.Strings("ids", removed))
	})
}

// Register stores descriptors in the scope. Ids are canonicalized first; if
// any id is already present, or appears twice in descs, nothing is stored.
func (s *Scope) Register(descs ...Descriptor) (*Handle, error) {
	canon := make([]Descriptor, len(descs))
	for i, d := range descs {
		c, err := s.canonical(d)
		if err != nil {
			return nil, err
		}
		canon[i] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil, errors.ScopeDestroyed(s.name)
	}

	seen := make(map[string]struct{}, len(canon))
	for _, d := range canon {
		if _, ok := s.entries[d.ID]; ok {
			return nil, errors.DuplicateRegistration(d.ID)
		}
		if _, ok := seen[d.ID]; ok {
			return nil, errors.DuplicateRegistration(d.ID)
		}
		seen[d.ID] = struct{}{}
	}

	h := &Handle{scope: s, entries: make([]*entry, len(canon))}
	for i, d := range canon {
		e := &entry{desc: d}
		s.entries[d.ID] = e
		h.entries[i] = e
	}

	s.log.Debug("descriptors registered", zap.Strings("ids", h.IDs()))
	return h, nil
}

// Has reports whether the scope itself holds a descriptor for id, resolved
// against referrer. The fallback scope is not consulted.
func (s *Scope) Has(id, referrer string) bool {
	ident, err := s.linker.resolver.Resolve(id, referrer, "")
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[ident.ID]
	return ok
}

// Unregister removes the descriptors for ids and purges their cached loads.
// Unknown or invalid ids are ignored.
func (s *Scope) Unregister(ids ...string) {
	var removed []string

	s.mu.Lock()
	for _, raw := range ids {
		ident, err := s.linker.resolver.Resolve(raw, "", "")
		if err != nil {
			continue
		}
		if _, ok := s.entries[ident.ID]; ok {
			delete(s.entries, ident.ID)
			removed = append(removed, ident.ID)
		}
	}
	s.mu.Unlock()

	s.cache.purge(removed...)
}

// canonical resolves the descriptor's id and URL against the ambient origin.
// A descriptor may give either; the other is derived from it.
func (s *Scope) canonical(d Descriptor) (Descriptor, error) {
	raw := d.ID
	if raw == "" {
		raw = d.URL
	}
	ident, err := s.linker.resolver.Resolve(raw, "", "")
	if err != nil {
		return d, errors.New(errors.PhaseRegister, errors.KindInvalidIdentifier).
			ID(raw).
			Cause(err).
			Build()
	}
	d.ID = ident.ID

	if d.URL == "" {
		d.URL = ident.URL
		return d, nil
	}
	u, err := s.linker.resolver.Resolve(d.URL, "", "")
	if err != nil {
		return d, errors.New(errors.PhaseRegister, errors.KindInvalidIdentifier).
			ID(d.ID).
			URL(d.URL).
			Cause(err).
			Build()
	}
	d.URL = u.URL
	return d, nil
}

// find returns the descriptor stored under id, without synthesizing one.
func (s *Scope) find(id string) (Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}
