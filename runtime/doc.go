// Package runtime provides the high-level API for loading modules.
//
// # Quick Start
//
//	ctx := context.Background()
//	opts := runtime.DefaultOptions()
//	opts.Origin = "https://app.example.com"
//	rt, err := runtime.New(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	port, err := rt.Load(ctx, "config/server#listen.port")
//
// # Module Conventions
//
// Module text is executed once per scope and follows one of three conventions:
//
//	define(deps, factory)   - declared dependencies, loaded before factory runs
//	module.exports / return - the body's own export
//	\0asm binary            - a WebAssembly module; its exports become Go funcs
//
// # Scopes
//
// Global is the fallback for every scope created with NewScope. Descriptors
// registered in Global are visible to all scopes, but each scope runs and
// caches its own loads:
//
//	page := rt.NewScope("page")
//	defer page.Destroy()
//	v, err := page.Load(ctx, "widgets/table")
//
// # Host Modules
//
// Go functions can be exposed as modules:
//
//	rt.RegisterFuncs("host/clock", map[string]any{
//	    "now": func() int64 { return time.Now().Unix() },
//	})
//
//	// Or implement the Host interface for a full module
//	rt.RegisterHost(myHost)
//
// # Thread Safety
//
// Runtime and scopes are safe for concurrent use. Script execution is
// serialized on one JavaScript VM per Runtime.
package runtime
