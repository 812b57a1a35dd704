package netsim

import (
	"errors"
	"testing"
)

func TestMust0(t *testing.T) {
	t.Run("nil error is a no-op", func(t *testing.T) {
		Must0(nil)
	})

	t.Run("non-nil error panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()
		Must0(errors.New("boom"))
	})
}

func TestMust1(t *testing.T) {
	t.Run("returns the value on success", func(t *testing.T) {
		if got := Must1(42, nil); got != 42 {
			t.Fatalf("got %d, want 42", got)
		}
	})

	t.Run("panics and discards the value on error", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()
		Must1(0, errors.New("boom"))
	})
}

func TestMust2(t *testing.T) {
	t.Run("returns both values on success", func(t *testing.T) {
		a, b := Must2(1, "x", nil)
		if a != 1 || b != "x" {
			t.Fatalf("got %d,%q, want 1,x", a, b)
		}
	})

	t.Run("panics on error", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()
		Must2(1, "x", errors.New("boom"))
	})
}
