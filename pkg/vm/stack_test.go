package vm

import (
	"testing"

	"luacore/pkg/value"
)

func TestStackPushPopIsLIFO(t *testing.T) {
	var s Stack
	if err := s.Push(value.Number(1)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := s.Push(value.Number(2)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if got := s.Pop(); got.AsNumber() != 2 {
		t.Errorf("Pop() = %v, want 2", got)
	}
	if got := s.Pop(); got.AsNumber() != 1 {
		t.Errorf("Pop() = %v, want 1", got)
	}
	if s.Top() != 0 {
		t.Errorf("Top() = %d, want 0", s.Top())
	}
}

func TestStackSetTopGrowsAndShrinks(t *testing.T) {
	var s Stack
	s.Push(value.Number(1))
	s.Push(value.Number(2))

	s.SetTop(5)
	if s.Top() != 5 {
		t.Fatalf("Top() after growing SetTop(5) = %d, want 5", s.Top())
	}
	if !s.At(4).IsNil() {
		t.Errorf("newly exposed slot should be Nil")
	}

	s.SetTop(-1) // relative: drop the top slot
	if s.Top() != 4 {
		t.Fatalf("Top() after SetTop(-1) = %d, want 4", s.Top())
	}
}

func TestStackRemoveShiftsDown(t *testing.T) {
	var s Stack
	s.Push(value.Number(1))
	s.Push(value.Number(2))
	s.Push(value.Number(3))

	s.Remove(0) // absolute index of the first element
	if s.Top() != 2 {
		t.Fatalf("Top() after Remove = %d, want 2", s.Top())
	}
	if s.At(0).AsNumber() != 2 || s.At(1).AsNumber() != 3 {
		t.Errorf("Remove should shift later values down, got [%v %v]", *s.At(0), *s.At(1))
	}
}

func TestStackInsertShiftsUp(t *testing.T) {
	var s Stack
	s.Push(value.Number(1))
	s.Push(value.Number(3))

	if err := s.Insert(1, value.Number(2)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if s.Top() != 3 {
		t.Fatalf("Top() after Insert = %d, want 3", s.Top())
	}
	if s.At(0).AsNumber() != 1 || s.At(1).AsNumber() != 2 || s.At(2).AsNumber() != 3 {
		t.Errorf("Insert should shift values at/above idx up, got [%v %v %v]", *s.At(0), *s.At(1), *s.At(2))
	}
}

func TestStackReplaceOverwritesInPlace(t *testing.T) {
	var s Stack
	s.Push(value.Number(1))
	s.Push(value.Number(2))

	s.Replace(-1, value.Number(99))
	if s.Top() != 2 {
		t.Fatalf("Replace should not change stack size, got Top() = %d", s.Top())
	}
	if s.At(1).AsNumber() != 99 {
		t.Errorf("Replace(-1, 99) should overwrite the top slot, got %v", *s.At(1))
	}
}
