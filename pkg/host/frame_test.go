package host

import (
	"testing"

	"luacore/pkg/value"
)

func TestCFunctionCheckNumberAddsArguments(t *testing.T) {
	s := New()
	s.RegisterC("add", func(f *Frame) (int, error) {
		a := f.CheckNumber(1)
		b := f.CheckNumber(2)
		f.Push(value.Number(a + b))
		return 1, nil
	})

	results, err := s.Call(s.GetGlobal("add"), value.Number(2), value.Number(3))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(results) != 1 || results[0].AsNumber() != 5 {
		t.Fatalf("results = %v, want [5]", results)
	}
}

func TestCFunctionCheckNumberRejectsWrongType(t *testing.T) {
	s := New()
	s.RegisterC("addBad", func(f *Frame) (int, error) {
		a := f.CheckNumber(1)
		f.Push(value.Number(a))
		return 1, nil
	})

	_, err := s.Call(s.GetGlobal("addBad"), s.NewString("not a number"))
	if err == nil {
		t.Fatalf("expected a TypeError, got nil")
	}
}

func TestFrameGetReturnsNilPastTop(t *testing.T) {
	s := New()
	var gotTop int
	var missing value.Value
	s.RegisterC("probe", func(f *Frame) (int, error) {
		gotTop = f.Top()
		missing = f.Get(5)
		return 0, nil
	})

	if _, err := s.Call(s.GetGlobal("probe"), value.Number(1)); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if gotTop != 1 {
		t.Errorf("Top() = %d, want 1", gotTop)
	}
	if !missing.IsNil() {
		t.Errorf("Get(5) on a 1-arg call = %v, want Nil", missing)
	}
}
