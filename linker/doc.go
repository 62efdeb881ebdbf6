// Package linker registers, loads and memoizes modules.
//
// # Main Types
//
//   - Linker: shared collaborators (resolver, fetcher, sandbox) and the Global scope
//   - Scope: an isolated registry and load cache
//   - Descriptor: a registered module, optionally carrying its export
//   - Handle: undoes a single Register call
//
// # Thread Safety
//
// Linker, Scope and Handle are safe for concurrent use. No fetch, wait or
// script execution happens while a scope lock is held.
//
// # Lookup Order
//
//  1. Descriptor registered in the scope
//  2. Descriptor registered in Global (child scopes only)
//  3. A new {id, url} descriptor, stored in the scope
//
// Whichever descriptor is found, the load runs and is memoized in the scope
// that asked for it.
//
// # Loads
//
// Each id has at most one load per scope. Concurrent callers share it, and a
// settled load is reused until the id is unregistered, failures included.
// Loads that fail because of a circular dependency are the exception: they
// are dropped so that a later load can succeed once the cycle is broken.
//
// # Example
//
//	l, _ := linker.New(linker.Options{Resolver: r, Fetcher: f, Sandbox: sb})
//	scope := l.NewScope("page")
//	defer scope.Destroy()
//	v, err := scope.Load(ctx, "lib/config#server.port")
package linker
