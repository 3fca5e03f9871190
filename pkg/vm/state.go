package vm

import (
	"fmt"
	"os"

	"luacore/pkg/bytecode"
	"luacore/pkg/gc"
	"luacore/pkg/value"
	"luacore/pkg/vmerr"
)

// Config carries the ambient, non-domain knobs named in SPEC_FULL.md's
// AMBIENT STACK section: tracing flags and the collector's pacing
// parameters, set via functional options grounded on the teacher's
// driver.RunOptions construction style (cmd/paserati, pkg/driver).
type Config struct {
	TraceDispatch bool
	TraceGC       bool
	GCPauseRatio  int
	GCStepMul     int
	MaxCallDepth  int
}

// Option configures a Config; see WithMaxCallDepth, WithGCPauseRatio, etc.
type Option func(*Config)

func WithTraceDispatch(v bool) Option { return func(c *Config) { c.TraceDispatch = v } }
func WithTraceGC(v bool) Option       { return func(c *Config) { c.TraceGC = v } }
func WithGCPauseRatio(p int) Option   { return func(c *Config) { c.GCPauseRatio = p } }
func WithGCStepMul(p int) Option      { return func(c *Config) { c.GCStepMul = p } }
func WithMaxCallDepth(n int) Option   { return func(c *Config) { c.MaxCallDepth = n } }

func defaultConfig() Config {
	dc := gc.DefaultConfig()
	return Config{GCPauseRatio: dc.PauseRatio, GCStepMul: dc.StepMultiplier, MaxCallDepth: MaxFrames}
}

// MaxMetamethodChainDepth bounds __index/__newindex/__call metamethod
// recursion (Open Question resolution recorded in SPEC_FULL.md).
const MaxMetamethodChainDepth = 2000

// Interp is the Interpreter State (§3.2 "State", the composition root):
// it owns the collector, the global table, the string interner, and the
// set of live coroutines the collector's RootProvider walks. Grounded on
// the teacher's VM struct (pkg/vm/vm.go) — frames/registerStack/heap/
// GlobalObject all live on one struct there too — split here across
// Interp (cross-coroutine state) and CoroutineObject (per-coroutine call
// stack) because §4.G coroutines each need their own register file.
type Interp struct {
	cfg      Config
	gcc      *gc.Collector
	interner *value.Interner
	globals  *TableObject
	registry *TableObject // the C registry equivalent (§6.3), for host-held references

	main    *CoroutineObject
	current *CoroutineObject

	coroutines []*CoroutineObject // every coroutine ever created, for root tracing

	constCache map[*bytecode.FunctionPrototype][]value.Value // memoized per-prototype constant resolution
}

// NewInterp constructs a fresh Interpreter State (§4.A "lua_open").
func NewInterp(opts ...Option) *Interp {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.MaxCallDepth > MaxFrames {
		// co.frames/Stack are both sized off the fixed MaxFrames array
		// bound (stack.go) so that *Frame pointers held across a nested
		// append never see a reallocation; MaxCallDepth can lower that
		// ceiling but never raise it.
		cfg.MaxCallDepth = MaxFrames
	}
	gcc := gc.NewCollector(gc.Config{PauseRatio: cfg.GCPauseRatio, StepMultiplier: cfg.GCStepMul})
	in := &Interp{
		cfg:      cfg,
		gcc:      gcc,
		interner: value.NewInterner(gcc),
	}
	in.globals = NewTable(gcc, 0, 32)
	in.registry = NewTable(gcc, 0, 8)
	in.constCache = make(map[*bytecode.FunctionPrototype][]value.Value)
	in.main = &CoroutineObject{Status: StatusRunning, frames: make([]Frame, 0, MaxFrames)}
	gcc.Register(in.main, in.main.Size())
	in.current = in.main
	in.coroutines = []*CoroutineObject{in.main}
	gcc.SetRootProvider(in.roots)
	return in
}

// roots is the gc.RootProvider this state supplies to its collector
// (§4.A's "RootProvider callback" dependency-inversion pattern, named
// explicitly in DESIGN.md to keep pkg/gc free of any pkg/vm import).
func (i *Interp) roots() []gc.Object {
	out := make([]gc.Object, 0, len(i.coroutines)+2)
	out = append(out, i.globals, i.registry)
	for _, co := range i.coroutines {
		out = append(out, co)
	}
	return out
}

// Interner exposes the string interner for loaders and host bindings.
func (i *Interp) Interner() *value.Interner { return i.interner }

// Globals returns the global table (§4.A "_G").
func (i *Interp) Globals() *TableObject { return i.globals }

// Collector exposes the underlying GC collector (diagnostics, manual
// Collect() calls from host code, §6.3).
func (i *Interp) Collector() *gc.Collector { return i.gcc }

// NewTable is a convenience wrapping vm.NewTable with this state's
// collector, for host code building tables outside of bytecode.
func (i *Interp) NewTable(nArray, nHash int) *TableObject {
	return NewTable(i.gcc, nArray, nHash)
}

// Trace emits a diagnostic line when the matching Config flag is set —
// grounded on the teacher's `if debugVM { fmt.Printf(...) }` convention
// (pkg/vm/vm.go) rather than a structured logging library, since no pack
// example reaches for one in VM-core code (see SPEC_FULL.md Ambient
// Stack / Logging).
func (i *Interp) Trace(enabled bool, format string, args ...any) {
	if enabled {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// GCStats exposes collector statistics for embedders and tests
// (supplemented from original_source's memory-manager diagnostics
// surface, per SPEC_FULL.md).
func (i *Interp) GCStats() gc.Stats { return i.gcc.Stats() }

// registerCoroutine tracks c so the root provider walks it; called when
// coroutine.create produces a new thread.
func (i *Interp) registerCoroutine(c *CoroutineObject) {
	i.coroutines = append(i.coroutines, c)
}

// checkMetamethodDepth is consulted by the __index/__newindex/__call
// dispatch paths (call.go, op_table.go) before following another
// link in the metamethod chain.
func checkMetamethodDepth(depth int) error {
	if depth > MaxMetamethodChainDepth {
		return vmerr.NewInternalInvariantViolationError("metamethod chain exceeded depth %d", MaxMetamethodChainDepth)
	}
	return nil
}
