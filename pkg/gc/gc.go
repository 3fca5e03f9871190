package gc

// State is a GC cycle state (§4.D): Pause → Propagate → Atomic →
// SweepStrings → SweepObjects → Finalize → Pause.
type State uint8

const (
	Pause State = iota
	Propagate
	Atomic
	SweepStrings
	SweepObjects
	Finalize
)

func (s State) String() string {
	switch s {
	case Pause:
		return "pause"
	case Propagate:
		return "propagate"
	case Atomic:
		return "atomic"
	case SweepStrings:
		return "sweep-strings"
	case SweepObjects:
		return "sweep-objects"
	case Finalize:
		return "finalize"
	default:
		return "?"
	}
}

// RootProvider enumerates the VM roots the Propagate phase must mark:
// interpreter-state globals/registry, every live coroutine's stack and
// frames, open upvalues, and the string interner as a weak source (§4.D).
// The vm package supplies this at State construction time; gc never
// imports vm (it is the leaf component D depends on by everyone else).
type RootProvider func() []Object

// WeakContainer is implemented by objects that hold weakly-referenced
// entries (tables with __mode set). SweepWeak removes entries whose
// weak-per-mode component is unmarked and reports whether any change was
// made, so the Atomic phase can iterate to an ephemeron fixpoint for
// __mode="k" (§4.D).
type WeakContainer interface {
	Object
	SweepWeak(isWhite func(Object) bool) (changed bool)
}

// Finalizable is implemented by objects that may carry a __gc metamethod.
// RunFinalizer invokes it; errors are caught by the collector and
// discarded per §4.D/§7.
type Finalizable interface {
	Object
	RunFinalizer() error
}

// Stats is the cumulative diagnostic record supplementing §4.D with the
// introspection original_source's garbage_collector.cpp exposes to
// embedders (SPEC_FULL.md "Supplemented from original_source"). Every
// field accumulates across the collector's lifetime; see CycleSummary
// for a per-cycle breakdown.
type Stats struct {
	Cycles         int
	BytesMarked    int64
	BytesSwept     int64
	ObjectsSwept   int
	StringsSwept   int
	LastPauseState State
}

// CycleSummary is one entry of the collector's diagnostic cycle log
// (SPEC_FULL.md "a diagnostic log of the last N cycle summaries"): the
// work done by exactly one Propagate→...→Finalize cycle, as opposed to
// Stats' running totals.
type CycleSummary struct {
	BytesMarked  int64
	BytesSwept   int64
	ObjectsSwept int
	StringsSwept int
}

// maxCycleLog bounds the diagnostic log so a long-running process
// doesn't grow it without bound; recent cycles matter for diagnostics,
// not the full history.
const maxCycleLog = 20

// Config holds the tuning knobs of §4.D.
type Config struct {
	PauseRatio     int // percent, default 200
	StepMultiplier int // percent, default 200
}

func DefaultConfig() Config {
	return Config{PauseRatio: 200, StepMultiplier: 200}
}

// Collector is the Interpreter State's tri-color mark-sweep engine.
// One Collector per state (§2, "two states share no mutable data").
type Collector struct {
	cfg Config

	state        State
	currentWhite Color // WhiteA or WhiteB: "this cycle's survivor" color
	gray         []Object

	allocHead Object // head of the intrusive allocation linked list
	allocTail Object

	bytesAllocated  int64 // since the last cycle boundary (reset in finishCycle)
	bytesSinceCycle int64
	liveBytes       int64 // estimate as of the end of the last cycle
	threshold       int64 // liveBytes * pauseRatio/100, when exceeded starts a cycle

	roots RootProvider

	weak []WeakContainer

	finalizeQueue []Finalizable
	stopped       bool // set by Stop(); Restart() clears it

	stats      Stats
	cycleLog   []CycleSummary // most recent cycle last; capped at maxCycleLog
	prevStats  Stats          // snapshot of stats at the start of the current cycle, for computing the next log entry's deltas
	stringHead Object // separate allocation chain for strings (swept first)
	stringTail Object
}

func NewCollector(cfg Config) *Collector {
	return &Collector{
		cfg:          cfg,
		state:        Pause,
		currentWhite: WhiteA,
	}
}

func (c *Collector) SetRootProvider(rp RootProvider) { c.roots = rp }

func (c *Collector) otherWhite() Color {
	if c.currentWhite == WhiteA {
		return WhiteB
	}
	return WhiteA
}

// isDead reports whether o is still colored this cycle's white, i.e.
// never marked gray/black during Propagate/Atomic, hence unreachable and
// eligible for sweeping. Must compare against currentWhite, not
// otherWhite: currentWhite only flips in finishCycle, after sweeping
// completes, so throughout the entire Propagate->Atomic->Sweep->Finalize
// run every surviving allocation-time white is still currentWhite.
func (c *Collector) isDead(o Object) bool {
	return o.gcHeader().Color() == c.currentWhite
}

// IsWhite reports whether o carries either white (WhiteA or WhiteB), i.e.
// is neither gray nor black. Weak-table sweeps do not use it; they are
// given isCurrentWhite.
func (c *Collector) IsWhite(o Object) bool {
	col := o.gcHeader().Color()
	return col == WhiteA || col == WhiteB
}

func (c *Collector) isCurrentWhite(o Object) bool {
	return o.gcHeader().Color() == c.currentWhite
}

// RegisterString allocates o onto the string sub-chain (strings are swept
// before other objects per §4.D so object-held string handles are safe to
// traverse during the object sweep pass).
func (c *Collector) RegisterString(o Object, size int) {
	h := o.gcHeader()
	h.setColor(c.currentWhite)
	if c.stringHead == nil {
		c.stringHead = o
	} else {
		c.stringTail.gcHeader().next = o
	}
	c.stringTail = o
	c.bytesAllocated += int64(size)
	c.bytesSinceCycle += int64(size)
	c.maybeStartCycle()
}

// Register allocates a non-string heap object.
func (c *Collector) Register(o Object, size int) {
	h := o.gcHeader()
	h.setColor(c.currentWhite)
	if c.allocHead == nil {
		c.allocHead = o
	} else {
		c.allocTail.gcHeader().next = o
	}
	c.allocTail = o
	c.bytesAllocated += int64(size)
	c.bytesSinceCycle += int64(size)
	if cont, ok := o.(WeakContainer); ok {
		// Only tables register themselves as weak containers lazily (when
		// __mode is set); see vm/table.go SetMetatable.
		_ = cont
	}
	c.maybeStartCycle()
}

// RegisterWeak enrolls a weak-mode table for Atomic-phase sweeping.
func (c *Collector) RegisterWeak(w WeakContainer) {
	c.weak = append(c.weak, w)
}

// RegisterFinalizable marks o finalizable; it does not queue it. When the
// object sweep later finds o unreachable, it queues o for finalization
// instead of freeing it (§4.D Finalize).
func (c *Collector) RegisterFinalizable(o Finalizable) {
	o.gcHeader().MarkFinalizable()
}

func (c *Collector) maybeStartCycle() {
	if c.stopped || c.state != Pause {
		return
	}
	if c.bytesAllocated >= c.threshold {
		c.state = Propagate
		c.seedRoots()
	}
}

func (c *Collector) seedRoots() {
	if c.roots == nil {
		return
	}
	for _, r := range c.roots() {
		c.markGray(r)
	}
}

// markGray transitions a white object to gray and enqueues it for
// scanning (the "mark" half of mark-and-sweep). No-op for already
// gray/black objects.
func (c *Collector) markGray(o Object) {
	if o == nil {
		return
	}
	h := o.gcHeader()
	if h.Color() == Gray || h.Color() == Black {
		return
	}
	h.setColor(Gray)
	c.gray = append(c.gray, o)
}

// --- Write barrier (§4.D "Write barrier") ---

// BarrierForward marks a white referent gray when a black object gains a
// reference to it. Nothing in pkg/vm calls it: tables use BarrierBackward
// and Upvalue.Set uses BarrierWrite.
func (c *Collector) BarrierForward(parent, child Object) {
	if c.state != Propagate && c.state != Atomic {
		return
	}
	if parent == nil || child == nil {
		return
	}
	if parent.gcHeader().Color() != Black {
		return
	}
	if c.isCurrentWhite(child) {
		c.markGray(child)
	}
}

// BarrierWrite unconditionally grays child if it is still this cycle's
// white, with no parent-color check. BarrierForward needs a single
// parent object whose blackness gates the barrier; an open/closed
// Upvalue (pkg/vm/upvalue.go) is deliberately not a gc.Object and may be
// shared by several ClosureObjects at once (§8.3 "two closures share one
// upvalue"), so no single parent reliably stands in for "has any holder
// of this upvalue already been traced black this cycle". Always marking
// the new referent is the conservative, always-correct version of the
// same I2 requirement for exactly that shared-ownership case.
func (c *Collector) BarrierWrite(child Object) {
	if c.state != Propagate && c.state != Atomic {
		return
	}
	if child == nil {
		return
	}
	if c.isCurrentWhite(child) {
		c.markGray(child)
	}
}

// BarrierBackward flips a black object back to gray and re-enqueues it.
// Used for tables, which mutate frequently enough that eagerly marking
// every new child (forward barrier) would be wasteful (§4.D).
func (c *Collector) BarrierBackward(parent Object) {
	if c.state != Propagate && c.state != Atomic {
		return
	}
	if parent == nil {
		return
	}
	h := parent.gcHeader()
	if h.Color() == Black {
		h.setColor(Gray)
		c.gray = append(c.gray, parent)
	}
}

// --- Incremental stepping ---

// Step performs at most maxWork bytes (approximated as "objects traced ×
// per-object weight 1") of traversal work and returns the work actually
// performed. Called opportunistically at allocation points and via the
// explicit `step` control operation (§4.D).
func (c *Collector) Step(maxWork int) int {
	done := 0
	for done < maxWork {
		switch c.state {
		case Pause:
			return done
		case Propagate:
			if len(c.gray) == 0 {
				c.state = Atomic
				continue
			}
			o := c.gray[len(c.gray)-1]
			c.gray = c.gray[:len(c.gray)-1]
			o.gcHeader().setColor(Black)
			c.stats.BytesMarked += objectSize(o)
			o.Trace(func(child Object) {
				if child == nil {
					return
				}
				if c.isCurrentWhite(child) {
					c.markGray(child)
				}
			})
			done++
		case Atomic:
			c.runAtomic()
			done++
		case SweepStrings:
			c.sweepStringsStep()
			done++
		case SweepObjects:
			more := c.sweepObjectsStep()
			done++
			if !more {
				c.state = Finalize
			}
		case Finalize:
			more := c.finalizeStep()
			done++
			if !more {
				c.finishCycle()
				return done
			}
		}
	}
	return done
}

// runAtomic is the single uninterruptible pass of §4.D: remark
// everything left gray (mutations since the last incremental step may
// have re-grayed black objects via the backward barrier) and mark weak
// tables' surviving entries to a fixpoint. Finalizable garbage is queued
// later, by sweepObjectsStep.
func (c *Collector) runAtomic() {
	// Drain any remaining gray objects synchronously (atomic = uninterruptible).
	for len(c.gray) > 0 {
		o := c.gray[len(c.gray)-1]
		c.gray = c.gray[:len(c.gray)-1]
		o.gcHeader().setColor(Black)
		c.stats.BytesMarked += objectSize(o)
		o.Trace(func(child Object) {
			if child != nil && c.isCurrentWhite(child) {
				c.markGray(child)
			}
		})
	}

	// Ephemeron fixpoint over weak containers: repeat until no container
	// reports a change (§4.D "Ephemeron semantics ... require a fixpoint").
	for {
		changed := false
		for _, w := range c.weak {
			if w.SweepWeak(c.isCurrentWhite) {
				changed = true
			}
			// A weak sweep may have marked previously-white values/keys
			// gray (e.g. __mode="k" newly-reachable-through-value keys);
			// drain again before re-checking containers.
			for len(c.gray) > 0 {
				o := c.gray[len(c.gray)-1]
				c.gray = c.gray[:len(c.gray)-1]
				o.gcHeader().setColor(Black)
				c.stats.BytesMarked += objectSize(o)
				o.Trace(func(child Object) {
					if child != nil && c.isCurrentWhite(child) {
						c.markGray(child)
					}
				})
			}
		}
		if !changed {
			break
		}
	}

	c.state = SweepStrings
}

func (c *Collector) sweepStringsStep() {
	// Strings have no outgoing GC references, so the whole chain can be
	// swept in one step; incrementality matters most for large object
	// graphs, which strings are not.
	var newHead, newTail Object
	var prevCursor Object
	cursor := c.stringHead
	_ = prevCursor
	swept := 0
	for cursor != nil {
		next := cursor.gcHeader().next
		if c.isDead(cursor) {
			swept++
			cursor.gcHeader().next = nil
		} else {
			cursor.gcHeader().setColor(c.otherWhite()) // flip to new white
			cursor.gcHeader().next = nil
			if newHead == nil {
				newHead = cursor
			} else {
				newTail.gcHeader().next = cursor
			}
			newTail = cursor
		}
		cursor = next
	}
	c.stringHead, c.stringTail = newHead, newTail
	c.stats.StringsSwept += swept
	c.state = SweepObjects
}

// sweepObjectsStep walks the entire allocation list in one call, so the
// object sweep is not split across steps; it returns false once the whole
// list has been processed, which is every call.
func (c *Collector) sweepObjectsStep() bool {
	var newHead, newTail Object
	cursor := c.allocHead
	swept := 0
	var freedBytes int64
	for cursor != nil {
		next := cursor.gcHeader().next
		if c.isDead(cursor) {
			if fz, ok := cursor.(Finalizable); ok && fz.gcHeader().IsFinalizable() && !fz.gcHeader().IsFinalized() {
				// Resurrect for one finalization pass instead of freeing now.
				cursor.gcHeader().next = nil
				c.finalizeQueue = append(c.finalizeQueue, fz)
			} else {
				swept++
				freedBytes += objectSize(cursor)
			}
		} else {
			cursor.gcHeader().setColor(c.otherWhite())
			cursor.gcHeader().next = nil
			if newHead == nil {
				newHead = cursor
			} else {
				newTail.gcHeader().next = cursor
			}
			newTail = cursor
		}
		cursor = next
	}
	c.allocHead, c.allocTail = newHead, newTail
	c.stats.ObjectsSwept += swept
	c.stats.BytesSwept += freedBytes
	return false
}

// finalizeStep invokes one __gc metamethod per call, reverse registration
// order, per §4.D Finalize. Errors are caught and discarded (§7).
func (c *Collector) finalizeStep() bool {
	if len(c.finalizeQueue) == 0 {
		return false
	}
	last := len(c.finalizeQueue) - 1
	obj := c.finalizeQueue[last]
	c.finalizeQueue = c.finalizeQueue[:last]
	func() {
		defer func() { recover() }() // a misbehaving finalizer must not crash the collector
		_ = obj.RunFinalizer()
	}()
	obj.gcHeader().finalized = true
	// Re-link the resurrected object back onto the allocation list, now
	// colored as live (new white) so the next cycle can reclaim it for
	// real unless something marks it reachable again.
	obj.gcHeader().setColor(c.otherWhite())
	if c.allocHead == nil {
		c.allocHead = obj
	} else {
		c.allocTail.gcHeader().next = obj
	}
	c.allocTail = obj
	return len(c.finalizeQueue) > 0
}

func (c *Collector) finishCycle() {
	c.currentWhite = c.otherWhite()
	c.liveBytes = c.bytesAllocated - c.stats.BytesSwept
	if c.liveBytes < 0 {
		c.liveBytes = 0
	}
	c.threshold = c.liveBytes * int64(c.cfg.PauseRatio) / 100
	if c.threshold <= 0 {
		c.threshold = 1
	}
	c.bytesAllocated = 0
	c.bytesSinceCycle = 0
	c.stats.Cycles++
	c.stats.LastPauseState = Pause
	c.state = Pause

	c.cycleLog = append(c.cycleLog, CycleSummary{
		BytesMarked:  c.stats.BytesMarked - c.prevStats.BytesMarked,
		BytesSwept:   c.stats.BytesSwept - c.prevStats.BytesSwept,
		ObjectsSwept: c.stats.ObjectsSwept - c.prevStats.ObjectsSwept,
		StringsSwept: c.stats.StringsSwept - c.prevStats.StringsSwept,
	})
	if len(c.cycleLog) > maxCycleLog {
		c.cycleLog = c.cycleLog[len(c.cycleLog)-maxCycleLog:]
	}
	c.prevStats = c.stats
}

// CycleLog returns a diagnostic summary of the most recent cycles
// (oldest first, capped at maxCycleLog entries) for embedders and test
// assertions (SPEC_FULL.md "a diagnostic log of the last N cycle
// summaries", mirroring original_source's garbage_collector.cpp stats
// struct).
func (c *Collector) CycleLog() []CycleSummary {
	return append([]CycleSummary(nil), c.cycleLog...)
}

// Collect runs a full cycle to completion synchronously (the `collect`
// control operation of §4.D).
func (c *Collector) Collect() {
	if c.state == Pause {
		c.state = Propagate
		c.seedRoots()
	}
	for c.state != Pause {
		c.Step(1 << 20)
	}
}

func (c *Collector) Stop()    { c.stopped = true }
func (c *Collector) Restart() { c.stopped = false }

func (c *Collector) Count() (liveBytes int64, allocatedSinceLastCycle int64) {
	return c.liveBytes, c.bytesAllocated
}

func (c *Collector) SetPause(percent int)      { c.cfg.PauseRatio = percent }
func (c *Collector) SetStepMul(percent int)    { c.cfg.StepMultiplier = percent }
func (c *Collector) StepMultiplier() int       { return c.cfg.StepMultiplier }
func (c *Collector) Stats() Stats              { return c.stats }
func (c *Collector) StateName() string         { return c.state.String() }
func (c *Collector) BytesAllocated() int64     { return c.bytesAllocated }
func (c *Collector) LiveBytes() int64          { return c.liveBytes }

// objectSize is a best-effort accounting hook; objects that implement
// Sized report their own size (mirrors original_source's memory_manager
// per-block accounting), others are charged a fixed per-object overhead.
type Sized interface{ Size() int }

func objectSize(o Object) int64 {
	if s, ok := o.(Sized); ok {
		return int64(s.Size())
	}
	return 32
}
