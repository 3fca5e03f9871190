package value

import (
	"math"
	"testing"

	"luacore/pkg/gc"
)

// expectPanic mirrors the teacher's helper in pkg/vm/value_test.go.
func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected a panic, got none")
		}
	}()
	fn()
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", Nil, false},
		{"false", False, false},
		{"true", True, true},
		{"zero", Number(0), true},
		{"nan", Number(math.NaN()), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.Truthy(); got != c.want {
				t.Errorf("Truthy() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestRawEqualNumbers(t *testing.T) {
	if !RawEqual(Number(0), Number(-0.0)) {
		t.Errorf("0 and -0 should be raw-equal")
	}
	nan := Number(math.NaN())
	if RawEqual(nan, nan) {
		t.Errorf("NaN must never be raw-equal to itself")
	}
}

func TestRawEqualCrossType(t *testing.T) {
	if RawEqual(Number(0), False) {
		t.Errorf("values of different tags must never be raw-equal")
	}
}

func TestInterningIdentity(t *testing.T) {
	gcc := gc.NewCollector(gc.DefaultConfig())
	in := NewInterner(gcc)

	a := in.InternString("hello")
	b := in.InternString("hello")
	if a.AsStringObject() != b.AsStringObject() {
		t.Fatalf("two interned strings with identical bytes must share a handle (I7)")
	}
	if !RawEqual(a, b) {
		t.Errorf("raw_equal must hold for identical interned strings")
	}

	c := in.InternString("world")
	if RawEqual(a, c) {
		t.Errorf("distinct strings must not be raw-equal")
	}
}

func TestAccessorsFailOnWrongTag(t *testing.T) {
	expectPanic(t, func() { Nil.AsNumber() })
	expectPanic(t, func() { Number(1).AsBool() })
	expectPanic(t, func() { True.AsStringObject() })
}

func TestBoolSingletons(t *testing.T) {
	if !Bool(true).AsBool() {
		t.Errorf("Bool(true) should be truthy")
	}
	if Bool(false).AsBool() {
		t.Errorf("Bool(false) should be falsy")
	}
}
