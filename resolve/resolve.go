// Package resolve normalizes module identifiers into canonical ids and URLs.
//
// Resolution works on three inputs: the raw identifier, an optional referrer
// (the URL of the module that asked for it) and an origin. The canonical id is
// the lower-cased URL path; it is qualified with the origin only when the
// module lives on a different origin than the resolver's ambient one, so
// "https://cdn.example.com/lib/a.js" and "/lib/a.js" do not collide.
package resolve

import (
	"net/url"
	"strings"

	"github.com/wippyai/modload/errors"
)

// Identifier is a resolved module identifier.
type Identifier struct {
	// ID is the canonical registry and cache key.
	ID string
	// URL is the absolute location the module text is fetched from.
	URL string
	// Anchors are the '#'-separated drill paths stripped from the raw identifier.
	Anchors []string
}

// Resolver resolves identifiers against an ambient origin.
type Resolver struct {
	origin *url.URL
}

// New creates a resolver whose ambient origin is origin, for example
// "https://app.example.com" or "file:///srv/modules/".
func New(origin string) (*Resolver, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, errors.New(errors.PhaseResolve, errors.KindInvalidIdentifier).
			ID(origin).
			Detail("invalid origin").
			Cause(err).
			Build()
	}
	if u.Scheme == "" {
		return nil, errors.InvalidIdentifier(origin, "origin must be scheme-qualified")
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return &Resolver{origin: u}, nil
}

// Origin returns the ambient origin in "scheme://host" form.
func (r *Resolver) Origin() string {
	return originOf(r.origin)
}

// Resolve normalizes raw. referrer and origin are optional; an empty origin
// means the resolver's ambient origin.
//
// The resolution base is the referrer when it is absolute, origin+referrer
// when the referrer is origin-absolute ("/x/y.js"), and the origin otherwise.
func (r *Resolver) Resolve(raw, referrer, origin string) (Identifier, error) {
	target, anchors := SplitAnchors(raw)
	target = strings.TrimSpace(target)
	if target == "" {
		return Identifier{}, errors.InvalidIdentifier(raw, "identifier is empty")
	}

	base, err := r.base(referrer, origin)
	if err != nil {
		return Identifier{}, err
	}

	ref, err := url.Parse(target)
	if err != nil {
		return Identifier{}, errors.New(errors.PhaseResolve, errors.KindInvalidIdentifier).
			ID(raw).
			Detail("malformed identifier").
			Cause(err).
			Build()
	}

	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	if abs.Path == "" || abs.Path == "/" {
		return Identifier{}, errors.InvalidIdentifier(raw, "resolved path is empty")
	}

	id := strings.ToLower(abs.Path)
	if o := originOf(abs); !strings.EqualFold(o, originOf(r.origin)) {
		id = strings.ToLower(o) + id
	}

	return Identifier{
		ID:      id,
		URL:     abs.String(),
		Anchors: anchors,
	}, nil
}

func (r *Resolver) base(referrer, origin string) (*url.URL, error) {
	def := r.origin
	if origin != "" {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" {
			return nil, errors.InvalidIdentifier(origin, "origin must be scheme-qualified")
		}
		def = u
	}

	switch {
	case referrer == "":
		return def, nil
	case strings.HasPrefix(referrer, "/") && !strings.HasPrefix(referrer, "//"):
		ref, err := url.Parse(referrer)
		if err != nil {
			return nil, errors.InvalidIdentifier(referrer, "malformed referrer")
		}
		return def.ResolveReference(ref), nil
	}

	ref, err := url.Parse(referrer)
	if err != nil {
		return nil, errors.InvalidIdentifier(referrer, "malformed referrer")
	}
	if ref.IsAbs() {
		return ref, nil
	}
	return def, nil
}

// SplitAnchors separates trailing "#segment" groups from raw.
//
//	SplitAnchors("lib/cfg#server.port#name") = "lib/cfg", ["server.port", "name"]
//
// Empty segments are dropped.
func SplitAnchors(raw string) (string, []string) {
	target, rest, found := strings.Cut(raw, "#")
	if !found {
		return raw, nil
	}
	var anchors []string
	for _, seg := range strings.Split(rest, "#") {
		if seg != "" {
			anchors = append(anchors, seg)
		}
	}
	return target, anchors
}

func originOf(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
