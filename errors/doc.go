// Package errors provides structured error types for the module loader.
//
// Errors are categorized by Phase (where in the load pipeline the error
// occurred) and Kind (error category). The Error type carries the module id or
// URL, the load chain for cycle errors, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindCircularLoad).
//		Chain("/a.js", "/b.js", "/a.js").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.DuplicateRegistration("/lib/math.js")
//	err := errors.Network("https://cdn.example.com/x.js", cause)
//
// Sentinels such as ErrCircularLoad match any error of the same Kind:
//
//	if errors.Is(err, modloaderrors.ErrCircularLoad) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
