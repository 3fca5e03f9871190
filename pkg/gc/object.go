// Package gc implements the tri-color incremental mark-and-sweep
// collector described in spec §4.D (component D). It is a leaf package:
// every heap object type in the rest of the core (strings, tables,
// closures, coroutines, userdata) embeds gc.Header and is registered with
// a *gc.Collector at allocation time. Upvalues do not: they are plain Go
// values reached through the closures that hold them.
//
// There is no third-party mark-sweep library in the Go ecosystem to
// ground this on (the language's own runtime GC makes that a vanishingly
// rare thing to publish as a reusable package); the algorithm here is
// grounded instead on original_source's src/memory/garbage_collector.{h,cpp}
// and src/memory/memory_manager.{h,cpp} (the C++ reference this spec was
// distilled from), translated into the teacher's idiom: small structs,
// explicit state machines, no reflection.
package gc

// Color is a heap object's tri-color mark state (§3.2, I1).
type Color uint8

const (
	// WhiteA and WhiteB alternate between cycles: "survivors of the
	// current cycle" vs "known garbage of the previous cycle" (§3.2).
	WhiteA Color = iota
	WhiteB
	Gray
	Black
)

// Object is implemented by every heap-allocated, GC-participating type.
// Embedding Header satisfies it automatically.
type Object interface {
	gcHeader() *Header
	// Kind returns a short, human-readable tag for diagnostics
	// (e.g. "string", "table", "closure"). Used only for Stats/Trace.
	Kind() string
	// Trace invokes visit for every Value-typed field that may hold a
	// GC reference, i.e. the object's outgoing edges in the reachability
	// graph. Trace must not recurse into referents itself — the
	// collector's Propagate phase drives traversal via the gray worklist
	// (popped last-in, first-out) to bound per-step work (§4.D).
	Trace(visit func(Object))
}

// Header is the fixed per-object state every heap object carries (§3.2):
// { type_tag, gc_color, next_in_allocation_list }. type_tag is supplied
// by Kind() instead of a stored field, since Go's type switch already
// gives static objects their tag for free; storing it again here would be
// redundant state two different code paths could disagree on.
type Header struct {
	color Color
	next  Object // intrusive singly-linked allocation list
	// finalizable marks objects passed to Collector.RegisterFinalizable;
	// consulted by the object sweep (sweepObjectsStep), which queues such
	// an object for finalization instead of freeing it (§4.D).
	finalizable bool
	finalized   bool
}

func (h *Header) gcHeader() *Header { return h }

func (h *Header) Color() Color      { return h.color }
func (h *Header) setColor(c Color)  { h.color = c }
func (h *Header) IsFinalizable() bool { return h.finalizable }
func (h *Header) MarkFinalizable()    { h.finalizable = true }
func (h *Header) IsFinalized() bool   { return h.finalized }
