package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseExecute,
				Kind:   KindExecution,
				URL:    "https://cdn.example.com/lib/a.js",
				Detail: "factory threw",
			},
			contains: []string{"[execute]", "execution", "https://cdn.example.com/lib/a.js", "factory threw"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseFetch,
				Kind:  KindNetwork,
			},
			contains: []string{"[fetch]", "network"},
		},
		{
			name:     "chain",
			err:      CircularLoad([]string{"/a.js", "/b.js", "/a.js"}),
			contains: []string{"[load]", "circular_load", "/a.js -> /b.js -> /a.js"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseFetch,
				Kind:   KindNetwork,
				Detail: "dial failed",
				Cause:  errors.New("connection refused"),
			},
			contains: []string{"[fetch]", "network", "dial failed", "caused by", "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Execution(PhaseFactory, "/a.js", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause through Unwrap")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseExecute,
		Kind:  KindInvalidFactory,
		URL:   "/a.js",
	}

	if !err.Is(&Error{Phase: PhaseExecute, Kind: KindInvalidFactory}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseFactory, Kind: KindInvalidFactory}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseExecute, Kind: KindExecution}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, ErrInvalidFactory) {
		t.Error("errors.Is should match the phaseless sentinel")
	}
	if errors.Is(err, ErrExecution) {
		t.Error("errors.Is should not match a different sentinel")
	}
}

func TestSentinelsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("load lib: %w", CircularLoad([]string{"/a.js", "/a.js"}))

	if !errors.Is(wrapped, ErrCircularLoad) {
		t.Fatal("errors.Is should see through fmt wrapping")
	}

	var e *Error
	if !errors.As(wrapped, &e) {
		t.Fatal("errors.As should find *Error")
	}
	if e.ID != "/a.js" {
		t.Errorf("ID = %q, want %q", e.ID, "/a.js")
	}
	if !Typed(wrapped) {
		t.Error("Typed should report wrapped taxonomy errors")
	}
	if Typed(errors.New("plain")) {
		t.Error("Typed should not report plain errors")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseLoad, KindCircularLoad).
		ID("/b.js").
		URL("https://example.com/b.js").
		Chain("/a.js", "/b.js", "/a.js").
		Cause(cause).
		Detail("while loading %s", "/b.js").
		Build()

	if err.Phase != PhaseLoad {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseLoad)
	}
	if err.Kind != KindCircularLoad {
		t.Errorf("Kind = %v, want %v", err.Kind, KindCircularLoad)
	}
	if err.ID != "/b.js" {
		t.Errorf("ID = %v, want /b.js", err.ID)
	}
	if len(err.Chain) != 3 || err.Chain[1] != "/b.js" {
		t.Errorf("Chain = %v, want [/a.js /b.js /a.js]", err.Chain)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "while loading /b.js" {
		t.Errorf("Detail = %v, want 'while loading /b.js'", err.Detail)
	}
}

func TestCircularLoadCopiesChain(t *testing.T) {
	chain := []string{"/a.js", "/b.js", "/a.js"}
	err := CircularLoad(chain)
	chain[0] = "/mutated.js"

	if err.Chain[0] != "/a.js" {
		t.Errorf("Chain[0] = %q, want /a.js (chain must be copied)", err.Chain[0])
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidIdentifier", func(t *testing.T) {
		err := InvalidIdentifier("  ", "blank identifier")
		if err.Kind != KindInvalidIdentifier || err.Phase != PhaseResolve {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("DuplicateRegistration", func(t *testing.T) {
		err := DuplicateRegistration("/lib/a.js")
		if err.Kind != KindDuplicateRegistration {
			t.Errorf("Kind = %v, want %v", err.Kind, KindDuplicateRegistration)
		}
		if !strings.Contains(err.Detail, "/lib/a.js") {
			t.Errorf("Detail = %v, should contain id", err.Detail)
		}
	})

	t.Run("UnsupportedSyncRequire", func(t *testing.T) {
		err := UnsupportedSyncRequire("/a.js", "b")
		if err.Kind != KindUnsupportedSyncRequire {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupportedSyncRequire)
		}
	})

	t.Run("NetworkStatus", func(t *testing.T) {
		err := NetworkStatus("https://example.com/a.js", 404)
		if err.Kind != KindNetwork {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNetwork)
		}
		if !strings.Contains(err.Error(), "404") {
			t.Errorf("Error() = %v, should contain status", err.Error())
		}
	})

	t.Run("ScopeDestroyed", func(t *testing.T) {
		err := ScopeDestroyed("tenant-a")
		if !errors.Is(err, ErrScopeDestroyed) {
			t.Errorf("ScopeDestroyed should match ErrScopeDestroyed")
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(PhaseFactory, KindExecution, cause, "factory")
		if !errors.Is(err, cause) {
			t.Error("Wrap should keep the cause")
		}
	})
}
