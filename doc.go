// Package modload loads JavaScript and WebAssembly modules by identifier,
// with declared dependencies, per-scope caching and cycle detection.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	modload/
//	├── runtime/         High-level API: Runtime, host modules, options
//	├── linker/          Scopes, registry, load cache and the loader
//	├── resolve/         Identifier normalization and anchor splitting
//	├── drill/           Anchor path lookup into export values
//	├── task/            Shared single-assignment load results
//	├── fetch/           Module text retrieval and URL formatting
//	├── sandbox/         Execution contract and engine chain
//	│   ├── jsvm/        JavaScript engine (define, module.exports, return)
//	│   └── wasmvm/      WebAssembly engine
//	├── manifest/        YAML descriptor lists
//	├── errors/          Structured error types for debugging
//	└── cmd/modload/     Command line loader and REPL
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, runtime.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	v, err := rt.Load(ctx, "app/main.js#handlers.index")
//
// # Identifiers
//
// An identifier is a path or URL with optional trailing anchors:
//
//	./util.js            relative to the referring module
//	/lib/add.wasm        relative to the origin
//	https://cdn/x.js     absolute
//	config#server.port   drill into the export after loading
//
// Identifiers are case-insensitive. Two spellings that resolve to the same
// lower-cased path name the same module.
//
// # Loading
//
// Each scope loads a module at most once. Concurrent requests for the same
// id share one result, failures included. A dependency cycle fails every
// load on it with a circular_load error carrying the chain, and is not
// cached, so a later load succeeds once the cycle is broken.
//
// # Thread Safety
//
// Runtime, Scope and Handle are safe for concurrent use. Script execution is
// serialized per Runtime.
package modload
