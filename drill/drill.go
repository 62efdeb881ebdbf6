// Package drill extracts nested values from loaded module exports.
//
// An identifier such as "lib/config#server.port" asks for the export of
// "lib/config" drilled to server.port. Several anchors ("#a.b#c") produce a
// map keyed by the raw anchor text.
package drill

import (
	"reflect"
	"strings"
)

// Lookup reads a named property from v. It reports false when v has no such
// property or cannot carry properties at all.
type Lookup func(v any, name string) (any, bool)

// Drill applies anchors to v using Property for property access.
func Drill(v any, anchors []string) any {
	return DrillWith(Property, v, anchors)
}

// DrillWith applies anchors to v using get for property access.
//
//   - no anchors: v unchanged
//   - one anchor: the dotted walk of that anchor
//   - several anchors: map from anchor text to its dotted walk
func DrillWith(get Lookup, v any, anchors []string) any {
	switch len(anchors) {
	case 0:
		return v
	case 1:
		return Walk(get, v, anchors[0])
	}

	out := make(map[string]any, len(anchors))
	for _, a := range anchors {
		out[a] = Walk(get, v, a)
	}
	return out
}

// Walk follows a dot-separated property path from v. It returns nil as soon
// as an intermediate value is nil or lacks the next property.
func Walk(get Lookup, v any, path string) any {
	if path == "" {
		return v
	}
	cur := v
	for _, name := range strings.Split(path, ".") {
		if isNil(cur) {
			return nil
		}
		next, ok := get(cur, name)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// Property is the default Lookup. It understands map[string]any, any map with
// string keys, and exported struct fields (by field name or `json` tag).
func Property(v any, name string) (any, bool) {
	if m, ok := v.(map[string]any); ok {
		x, found := m[name]
		return x, found
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		x := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !x.IsValid() {
			return nil, false
		}
		return x.Interface(), true
	case reflect.Struct:
		return structField(rv, name)
	}
	return nil, false
}

func structField(rv reflect.Value, name string) (any, bool) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if f.Name == name || (tag != "" && tag == name) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Slice, reflect.Func:
		return rv.IsNil()
	}
	return false
}
