package vm

import (
	"math"
	"testing"

	"luacore/pkg/gc"
	"luacore/pkg/value"
)

func newTestTable(t *testing.T) (*TableObject, *gc.Collector) {
	t.Helper()
	gcc := gc.NewCollector(gc.DefaultConfig())
	return NewTable(gcc, 0, 0), gcc
}

func TestTableArrayFastPath(t *testing.T) {
	tab, _ := newTestTable(t)
	for i := 1; i <= 5; i++ {
		if err := tab.Set(value.Number(float64(i)), value.Number(float64(i*10))); err != nil {
			t.Fatalf("Set(%d): %v", i, err)
		}
	}
	if got := tab.Len(); got != 5 {
		t.Errorf("Len() = %d, want 5", got)
	}
	if got := tab.Get(value.Number(3)); got.AsNumber() != 30 {
		t.Errorf("Get(3) = %v, want 30", got)
	}
}

func TestTableHashPart(t *testing.T) {
	tab, gcc := newTestTable(t)
	in := value.NewInterner(gcc)
	k := in.InternString("name")
	if err := tab.Set(k, in.InternString("lua")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := tab.Get(k); got.AsStringObject().String() != "lua" {
		t.Errorf("Get(name) = %v, want lua", got)
	}
	if tab.Len() != 0 {
		t.Errorf("Len() should ignore hash-only entries, got %d", tab.Len())
	}
}

func TestTableNilKeyRejected(t *testing.T) {
	tab, _ := newTestTable(t)
	if err := tab.Set(value.Nil, value.Number(1)); err == nil {
		t.Errorf("Set(nil, ...) should error")
	}
}

// TestTableNaNKeyAsymmetry covers Open Question 3 (DESIGN.md): Get on a
// NaN key returns Nil without raising, Set on a NaN key raises.
func TestTableNaNKeyAsymmetry(t *testing.T) {
	tab, _ := newTestTable(t)
	nan := value.Number(math.NaN())
	if got := tab.Get(nan); !got.IsNil() {
		t.Errorf("Get(NaN) should return Nil, got %v", got)
	}
	if err := tab.Set(nan, value.Number(1)); err == nil {
		t.Errorf("Set(NaN, ...) should error")
	}
}

func TestTableDeleteByNilAssignment(t *testing.T) {
	tab, _ := newTestTable(t)
	gcc := gc.NewCollector(gc.DefaultConfig())
	in := value.NewInterner(gcc)
	k := in.InternString("k")
	tab.Set(k, value.Number(1))
	tab.Set(k, value.Nil)
	if got := tab.Get(k); !got.IsNil() {
		t.Errorf("key assigned nil should read back as Nil, got %v", got)
	}
}

func TestTableLenBorderSearchOverHashPart(t *testing.T) {
	tab, _ := newTestTable(t)
	// Put every integer key straight into the hash part. Going through Set
	// would not do it: a key that extends the array by one is appended to
	// the array part, which then pulls the following keys out of the hash.
	for _, i := range []int{3, 1, 2} {
		k := value.Number(float64(i))
		hk, _ := toHashKey(k)
		tab.hash[hk] = tableEntry{key: k, val: k}
	}
	if len(tab.array) != 0 {
		t.Fatalf("array part has %d slots, want the keys in the hash part only", len(tab.array))
	}
	if got := tab.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3 (border algorithm over a contiguous hash run)", got)
	}
}

func TestTableWeakValuesReclaimed(t *testing.T) {
	gcc := gc.NewCollector(gc.DefaultConfig())
	in := value.NewInterner(gcc)
	tab := NewTable(gcc, 0, 4)
	meta := NewTable(gcc, 0, 1)
	meta.Set(in.InternString("__mode"), in.InternString("v"))
	tab.SetMetatable(meta, in)

	held := NewTable(gcc, 0, 0) // the value under test; nothing else references it
	tab.Set(in.InternString("slot"), value.FromObject(value.TypeTable, ptrOf(held)))

	changed := tab.SweepWeak(func(o gc.Object) bool { return o == gc.Object(held) })
	if !changed {
		t.Fatalf("SweepWeak should report a change when the weak value is white")
	}
	if !tab.Get(in.InternString("slot")).IsNil() {
		t.Errorf("weak value should have been dropped")
	}
}

func TestTableNextVisitsEveryKeyOnce(t *testing.T) {
	tab, gcc := newTestTable(t)
	in := value.NewInterner(gcc)
	tab.Set(value.Number(1), value.Number(10))
	tab.Set(value.Number(2), value.Number(20))
	tab.Set(in.InternString("x"), in.InternString("y"))

	var visited []value.Value
	key := value.Nil
	for {
		k, _, ok := tab.Next(key)
		if !ok {
			break
		}
		for _, v := range visited {
			if value.RawEqual(v, k) {
				t.Fatalf("Next revisited key %v", k)
			}
		}
		visited = append(visited, k)
		key = k
		if len(visited) > 10 {
			t.Fatalf("Next did not terminate: possible infinite loop")
		}
	}
	if len(visited) != 3 {
		t.Errorf("Next should visit exactly 3 entries, visited %d", len(visited))
	}
}
