package main

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"go.yaml.in/yaml/v3"

	"github.com/wippyai/modload/sandbox/wasmvm"
)

// printable replaces values that have no text form, such as functions and
// wasm memories, with short descriptions.
func printable(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = printable(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = printable(e)
		}
		return out
	case *wasmvm.Memory:
		return fmt.Sprintf("<memory %d bytes>", x.Size())
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Func:
		return "<function>"
	case reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("<%T>", v)
	}
	return v
}

func writeValue(w io.Writer, format string, v any) error {
	v = printable(v)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// summary renders v on one line for the interactive view.
func summary(v any) string {
	data, err := json.Marshal(printable(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
