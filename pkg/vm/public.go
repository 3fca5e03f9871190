package vm

import (
	"unsafe"

	"luacore/pkg/gc"
	"luacore/pkg/value"
)

// PointerOf exposes ptrOf to other packages (luacore/host) that need to
// wrap a freshly built heap object as a Value without duplicating the
// unsafe.Pointer conversion site.
func PointerOf[T any](p *T) unsafe.Pointer { return ptrOf(p) }

// AsTable reinterprets a Table-tagged Value as its TableObject, the
// table-specific counterpart to AsClosure.
func AsTable(v value.Value) *TableObject {
	if !v.IsTable() {
		panic("vm: AsTable() called on non-table Value")
	}
	return (*TableObject)(v.Pointer())
}

// AsCoroutine reinterprets a Thread-tagged Value as its CoroutineObject.
func AsCoroutine(v value.Value) *CoroutineObject {
	if !v.IsThread() {
		panic("vm: AsCoroutine() called on non-thread Value")
	}
	return (*CoroutineObject)(v.Pointer())
}

// CreateCoroutine implements coroutine.create (§4.G): wraps body as a
// fresh suspended coroutine and registers it as a GC root so the
// collector's root walk (Interp.roots) keeps it alive independent of
// whether any Lua-visible register or table still references it — the
// same reasoning reference Lua's lua_newthread documents for "anchored"
// threads.
func (i *Interp) CreateCoroutine(body value.Value) value.Value {
	c := NewCoroutine(i.gcc, body)
	i.registerCoroutine(c)
	return value.FromObject(value.TypeThread, ptrOf(c))
}

// GCStatsView re-exports gc.Stats under the vm package so embedders
// (luacore/host) need not import luacore/gc directly for diagnostics.
type GCStatsView = gc.Stats

// GCStatsView returns the collector's cycle statistics (§6.3 "GC control
// passthrough").
func (i *Interp) GCStatsView() GCStatsView { return i.gcc.Stats() }
