package errors

import (
	goerrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the load pipeline the error occurred
type Phase string

const (
	PhaseResolve  Phase = "resolve"  // identifier normalization
	PhaseRegister Phase = "register" // registry writes
	PhaseLoad     Phase = "load"     // cache and cycle tracking
	PhaseFetch    Phase = "fetch"    // module text retrieval
	PhaseExecute  Phase = "execute"  // sandboxed evaluation
	PhaseFactory  Phase = "factory"  // declared factory invocation
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidIdentifier      Kind = "invalid_identifier"
	KindDuplicateRegistration  Kind = "duplicate_registration"
	KindCircularLoad           Kind = "circular_load"
	KindUnsupportedSyncRequire Kind = "unsupported_sync_require"
	KindInvalidFactory         Kind = "invalid_factory"
	KindExecution              Kind = "execution"
	KindNetwork                Kind = "network"
	KindScopeDestroyed         Kind = "scope_destroyed"
)

// Sentinels for errors.Is. They carry no Phase, so they match any phase.
var (
	ErrInvalidIdentifier      = &Error{Kind: KindInvalidIdentifier}
	ErrDuplicateRegistration  = &Error{Kind: KindDuplicateRegistration}
	ErrCircularLoad           = &Error{Kind: KindCircularLoad}
	ErrUnsupportedSyncRequire = &Error{Kind: KindUnsupportedSyncRequire}
	ErrInvalidFactory         = &Error{Kind: KindInvalidFactory}
	ErrExecution              = &Error{Kind: KindExecution}
	ErrNetwork                = &Error{Kind: KindNetwork}
	ErrScopeDestroyed         = &Error{Kind: KindScopeDestroyed}
)

// Error is the structured error type used throughout the loader
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	ID     string
	URL    string
	Detail string
	Chain  []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	switch {
	case e.URL != "":
		b.WriteString(" at ")
		b.WriteString(e.URL)
	case e.ID != "":
		b.WriteString(" at ")
		b.WriteString(e.ID)
	}

	if len(e.Chain) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Chain, " -> "))
	}

	if e.Detail != "" {
		if len(e.Chain) > 0 {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || e.Phase == t.Phase
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// ID sets the canonical module id
func (b *Builder) ID(id string) *Builder {
	b.err.ID = id
	return b
}

// URL sets the module URL
func (b *Builder) URL(u string) *Builder {
	b.err.URL = u
	return b
}

// Chain sets the load chain
func (b *Builder) Chain(chain ...string) *Builder {
	b.err.Chain = chain
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the loader taxonomy

// InvalidIdentifier creates an invalid identifier error
func InvalidIdentifier(raw, detail string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindInvalidIdentifier,
		ID:     raw,
		Detail: detail,
	}
}

// DuplicateRegistration creates a duplicate registration error
func DuplicateRegistration(id string) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindDuplicateRegistration,
		ID:     id,
		Detail: fmt.Sprintf("module %q is already registered", id),
	}
}

// CircularLoad creates a circular load error carrying the offending chain
func CircularLoad(chain []string) *Error {
	c := make([]string, len(chain))
	copy(c, chain)
	var id string
	if len(c) > 0 {
		id = c[len(c)-1]
	}
	return &Error{
		Phase: PhaseLoad,
		Kind:  KindCircularLoad,
		ID:    id,
		Chain: c,
	}
}

// UnsupportedSyncRequire creates an error for a synchronous require call
func UnsupportedSyncRequire(moduleURL, dep string) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindUnsupportedSyncRequire,
		URL:    moduleURL,
		Detail: fmt.Sprintf("synchronous require(%q) is not supported", dep),
	}
}

// InvalidFactory creates an error for a non-callable factory
func InvalidFactory(moduleURL, detail string) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindInvalidFactory,
		URL:    moduleURL,
		Detail: detail,
	}
}

// Execution wraps an exception raised while evaluating a module
func Execution(phase Phase, moduleURL string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindExecution,
		URL:   moduleURL,
		Cause: cause,
	}
}

// Network creates a fetch failure error
func Network(rawURL string, cause error) *Error {
	return &Error{
		Phase: PhaseFetch,
		Kind:  KindNetwork,
		URL:   rawURL,
		Cause: cause,
	}
}

// NetworkStatus creates a fetch failure error for a non-success HTTP status
func NetworkStatus(rawURL string, status int) *Error {
	return &Error{
		Phase:  PhaseFetch,
		Kind:   KindNetwork,
		URL:    rawURL,
		Detail: fmt.Sprintf("unexpected status %d", status),
	}
}

// ScopeDestroyed creates an error for operations on a destroyed scope
func ScopeDestroyed(scope string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindScopeDestroyed,
		Detail: fmt.Sprintf("scope %q has been destroyed", scope),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Typed reports whether err, or anything it wraps, belongs to this taxonomy.
func Typed(err error) bool {
	var e *Error
	return goerrors.As(err, &e)
}
