package vm

import (
	"sort"

	"luacore/pkg/gc"
	"luacore/pkg/value"
)

// Upvalue is the open/closed duality of §3.3: while open it aliases a
// live stack slot (so writes through any closure sharing it are visible
// to every other sharer and to the frame's own locals); once closed it
// owns a private copy. Grounded on the teacher's Upvalue (pkg/vm/function.go)
// — Location/Closed fields and the Close/Resolve pair — generalized here
// so Location is an absolute Stack index rather than a raw *Value, since
// this runtime's coroutines (not a single VM-wide stack) each own their
// register file.
//
// Upvalue itself is an ordinary Go-GC'd heap object — it is reachable
// only through real Go pointers (ClosureObject.Upvalues,
// UpvalueManager.open), never through an unsafe.Pointer-erased Value, so
// Go's own collector keeps it alive correctly. Only the value.Value it
// carries needs the custom collector's attention, which is why
// ClosureObject.Trace walks uv.Get() directly rather than registering
// Upvalue itself as a gc.Object.
type Upvalue struct {
	stack    *Stack
	index    int // absolute index into stack.values; meaningful only while open
	closed   value.Value
	isClosed bool
	gcc      *gc.Collector // for Set's write barrier; nil-safe (no-op) if unset
}

// Get reads the upvalue's current value, open or closed.
func (u *Upvalue) Get() value.Value {
	if u.isClosed {
		return u.closed
	}
	return *u.stack.At(u.index)
}

// Set writes through the upvalue, open or closed, firing the write
// barrier spec.md §4.D names explicitly ("upvalue write when closed" —
// applied here uniformly to both states, since an open upvalue aliasing
// a live register is exactly as reachable from an already-black closure
// as a closed one). ClosureObject.Trace only walks Get() once, at the
// gray->black dequeue; without this barrier, a SETUPVAL after that point
// could point a black closure at a fresh white object with nothing left
// to ever mark it, letting the collector sweep something still live.
func (u *Upvalue) Set(v value.Value) {
	if u.isClosed {
		u.closed = v
	} else {
		*u.stack.At(u.index) = v
	}
	u.barrier(v)
}

// barrier grays v's underlying heap object, if any, via the collector's
// always-fire BarrierWrite (see gc.BarrierWrite's doc for why a plain
// BarrierForward/parent-object pairing doesn't fit a value that can be
// shared by several ClosureObjects).
func (u *Upvalue) barrier(v value.Value) {
	if u.gcc == nil || !v.IsGCObject() {
		return
	}
	if o, ok := value.AsGCObject(v); ok {
		u.gcc.BarrierWrite(o)
	}
}

// close converts this upvalue from open to closed, copying out the
// current stack value (§3.3 "Closing: copy the current value out").
func (u *Upvalue) close() {
	if u.isClosed {
		return
	}
	u.closed = *u.stack.At(u.index)
	u.isClosed = true
	u.stack = nil
}

// UpvalueManager tracks every currently-open upvalue for one coroutine,
// grounded on the teacher's vm.openUpvalues []*Upvalue list
// (pkg/vm/vm.go) plus captureUpvalue/closeUpvalues (pkg/vm/vm.go),
// generalized to the explicit sorted-list + binary-search shape spec
// §4.C names for its O(k)/O(m) guarantee (I3/I4): kept sorted by
// descending stack index so CloseTo can binary-search the closing
// boundary instead of scanning the whole list.
type UpvalueManager struct {
	open []*Upvalue // sorted by descending index
}

// FindOrCreateOpen returns the open upvalue aliasing stack slot index,
// creating one if none exists yet — this is what makes two closures
// created from the same enclosing call share one upvalue (§8.3 scenario
// 1), since OpClosure looks the slot up here rather than allocating
// unconditionally. gcc is stashed on a newly-created Upvalue so its Set
// can fire the write barrier; passing nil is safe (Set's barrier is a
// no-op) but only appropriate outside a live collector.
func (m *UpvalueManager) FindOrCreateOpen(stack *Stack, index int, gcc *gc.Collector) *Upvalue {
	// Binary search for index in the descending-sorted list.
	i := sort.Search(len(m.open), func(i int) bool { return m.open[i].index <= index })
	if i < len(m.open) && m.open[i].index == index {
		return m.open[i]
	}
	uv := &Upvalue{stack: stack, index: index, gcc: gcc}
	m.open = append(m.open, nil)
	copy(m.open[i+1:], m.open[i:])
	m.open[i] = uv
	return uv
}

// CloseTo closes every open upvalue at or above the given stack index
// (the slots a returning or tail-calling frame is about to give back),
// and drops them from the open list — §3.3 "Closing happens newest
// first", which the descending sort makes a simple prefix operation.
func (m *UpvalueManager) CloseTo(index int) {
	i := sort.Search(len(m.open), func(i int) bool { return m.open[i].index < index })
	for j := 0; j < i; j++ {
		m.open[j].close()
	}
	m.open = m.open[i:]
}

// Len reports the number of currently open upvalues (test/diagnostic use).
func (m *UpvalueManager) Len() int { return len(m.open) }
