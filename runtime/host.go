package runtime

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/wippyai/modload/errors"
	"github.com/wippyai/modload/linker"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Module) become functions of the module's
// export object, named in lowerCamelCase.
type Host interface {
	// Module returns the identifier the host is registered under.
	Module() string
}

// ExplicitRegistrar allows hosts to provide exact export names when the
// automatic PascalCase-to-camelCase conversion doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

// RegisterHost registers h in Global as a module whose export is a map of
// its methods. Modules load it like any other dependency.
func (r *Runtime) RegisterHost(h Host) (*linker.Handle, error) {
	id := h.Module()
	if strings.TrimSpace(id) == "" {
		return nil, errors.New(errors.PhaseRegister, errors.KindInvalidIdentifier).
			Detail("host module id cannot be empty").
			Build()
	}
	return r.RegisterFuncs(id, hostFuncs(h))
}

// RegisterFuncs registers a module in Global whose export is funcs.
// Every value must be a function.
func (r *Runtime) RegisterFuncs(id string, funcs map[string]any) (*linker.Handle, error) {
	exports := make(map[string]any, len(funcs))
	for name, fn := range funcs {
		if name == "" {
			return nil, errors.New(errors.PhaseRegister, errors.KindInvalidFactory).
				ID(id).
				Detail("function name cannot be empty").
				Build()
		}
		if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
			return nil, errors.New(errors.PhaseRegister, errors.KindInvalidFactory).
				ID(id).
				Detail("%s: handler must be a function, got %T", name, fn).
				Build()
		}
		exports[name] = fn
	}
	return r.Register(linker.Descriptor{ID: id, Exports: exports})
}

func hostFuncs(h Host) map[string]any {
	if er, ok := h.(ExplicitRegistrar); ok {
		return er.Register()
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()

	funcs := make(map[string]any)
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Module" {
			continue
		}
		funcs[toCamelCase(method.Name)] = rv.Method(i).Interface()
	}
	return funcs
}

// toCamelCase converts PascalCase to lowerCamelCase.
// Handles acronyms: GetHTTPClient -> getHttpClient, URLFor -> urlFor
func toCamelCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if !unicode.IsUpper(r) {
			result.WriteRune(r)
			continue
		}

		acronymEnd := i + 1
		for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
			acronymEnd++
		}
		if acronymEnd > i+1 {
			// Last uppercase before lowercase starts next word, not part of acronym
			if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
				acronymEnd--
			}
		}

		for j := i; j < acronymEnd; j++ {
			c := unicode.ToLower(runes[j])
			if j == i && i > 0 {
				c = unicode.ToUpper(c)
			}
			result.WriteRune(c)
		}
		i = acronymEnd - 1 // -1 because loop will increment
	}
	return result.String()
}
