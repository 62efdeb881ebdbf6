package drill

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDrill(t *testing.T) {
	nested := map[string]any{
		"a": map[string]any{"b": 5},
		"c": 7,
	}

	tests := []struct {
		name    string
		value   any
		anchors []string
		want    any
	}{
		{"no anchors", nested, nil, nested},
		{"single dotted", nested, []string{"a.b"}, 5},
		{"single top-level", nested, []string{"c"}, 7},
		{"missing leaf", nested, []string{"a.x"}, nil},
		{"nil intermediate", map[string]any{"a": nil}, []string{"a.b.c"}, nil},
		{"scalar intermediate", nested, []string{"c.d"}, nil},
		{"multiple", nested, []string{"a.b", "c"}, map[string]any{"a.b": 5, "c": 7}},
		{"multiple with miss", nested, []string{"a.b", "z"}, map[string]any{"a.b": 5, "z": nil}},
		{"nil value", nil, []string{"a"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Drill(tt.value, tt.anchors)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Drill(%v, %q) mismatch (-want +got):\n%s", tt.value, tt.anchors, diff)
			}
		})
	}
}

func TestDrill_Identity(t *testing.T) {
	values := []any{42, "text", []int{1, 2}, map[string]any{"k": "v"}, nil}
	for _, v := range values {
		if diff := cmp.Diff(v, Drill(v, []string{})); diff != "" {
			t.Errorf("Drill(%v, []) changed the value:\n%s", v, diff)
		}
	}
}

func TestProperty_Reflection(t *testing.T) {
	type server struct {
		Port   int    `json:"port"`
		Host   string `json:"host,omitempty"`
		secret string
	}
	cfg := map[string]any{
		"server": &server{Port: 8080, Host: "localhost", secret: "x"},
		"labels": map[string]string{"env": "prod"},
	}

	tests := []struct {
		path string
		want any
	}{
		{"server.port", 8080},
		{"server.Port", 8080},
		{"server.host", "localhost"},
		{"server.secret", nil},
		{"labels.env", "prod"},
		{"labels.missing", nil},
	}

	for _, tt := range tests {
		got := Walk(Property, cfg, tt.path)
		if got != tt.want {
			t.Errorf("Walk(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDrillWith_CustomLookup(t *testing.T) {
	calls := 0
	upper := func(v any, name string) (any, bool) {
		calls++
		return name + "!", true
	}

	got := DrillWith(upper, "root", []string{"a.b"})
	if got != "b!" {
		t.Errorf("DrillWith = %v, want %q", got, "b!")
	}
	if calls != 2 {
		t.Errorf("lookup called %d times, want 2", calls)
	}
}
