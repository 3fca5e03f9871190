// Package host implements the embedder-facing surface of §6.2/§6.3: the
// host-function contract for registering Go functions as callable Lua
// values, and the session-level operations an embedding program uses to
// load chunks, invoke them, and manage global/table state.
//
// Grounded on the teacher's pkg/driver.Paserati (driver.go): a thin
// session struct wrapping the VM instance, exposing RunString/Compile-
// style entry points plus a native-registration API (native_module.go)
// for handing Go functions to scripts. This package plays the same role
// for luacore/vm.Interp that driver.Paserati plays for vm.VM, adapted
// from paserati's declarative module builder to Lua's simpler "register a
// function under a name in a table" idiom.
package host

import (
	"luacore/pkg/bytecode"
	"luacore/pkg/value"
	"luacore/pkg/vm"
	"luacore/pkg/vmerr"
)

// Function is the host-function contract of §6.2: identical in shape to
// vm.NativeFunc (the type a ClosureObject with no Proto wraps), restated
// here as the package embedders are expected to import when writing
// bindings, keeping luacore/vm's internal calling convention and
// luacore/host's public contract nominally distinct even though they
// unify structurally.
type Function = vm.NativeFunc

// Session is a persistent interpreter session (§6.3 "state create/
// destroy" — destruction here is just letting the Session become
// unreachable; there is no separate teardown step. The collector is
// Go-GC'd, but the goroutine of a coroutine left suspended stays blocked
// waiting for a resume and does not exit when the Session is dropped),
// grounded on driver.Paserati's role as
// the long-lived object a host program keeps across many evaluations.
type Session struct {
	interp *vm.Interp
}

// New creates a fresh session (§4.A "lua_open").
func New(opts ...vm.Option) *Session {
	return &Session{interp: vm.NewInterp(opts...)}
}

// Interp exposes the underlying Interpreter State for callers that need
// lower-level access (e.g. writing additional op_*.go-style extensions).
func (s *Session) Interp() *vm.Interp { return s.interp }

// Load resolves a compiler-produced prototype into a callable chunk
// closure (§6.1 "loader"), ready for Call.
func (s *Session) Load(proto *bytecode.FunctionPrototype) value.Value {
	cl := s.interp.Load(proto)
	return value.FromObject(value.TypeFunction, vm.PointerOf(cl))
}

// Call invokes fn with args to completion, propagating any error
// unprotected (§6.3 "unprotected invoke").
func (s *Session) Call(fn value.Value, args ...value.Value) ([]value.Value, error) {
	return s.interp.Call(fn, args)
}

// PCall invokes fn protected: a runtime error is reported as (false,
// [errValue]) instead of propagating as a Go error (§6.3 "protected
// invoke", §4.D pcall).
func (s *Session) PCall(fn value.Value, args ...value.Value) (bool, []value.Value) {
	return s.interp.PCall(fn, args)
}

// RunChunk loads and calls a top-level chunk in one step, the common case
// for a host program executing a whole script (mirrors driver.RunString's
// "compile, then run" convenience, minus the compiler stage this core
// doesn't own).
func (s *Session) RunChunk(proto *bytecode.FunctionPrototype, args ...value.Value) ([]value.Value, error) {
	return s.Call(s.Load(proto), args...)
}

// Register installs fn as a global named name, wrapped as a Lua-callable
// Function value (§6.2 "registering a host function").
func (s *Session) Register(name string, fn Function) {
	cl := vm.NewNativeClosure(s.interp.Collector(), name, fn)
	wrapped := value.FromObject(value.TypeFunction, vm.PointerOf(cl))
	s.interp.Globals().Set(s.interp.Interner().InternString(name), wrapped)
}

// RegisterC installs fn, a C-API-style CFunction, as a global named name
// (§6.2). Prefer this over Register when the binding wants the
// luaL_checkXxx-style Frame helpers instead of hand-parsing a []Value.
func (s *Session) RegisterC(name string, fn CFunction) {
	s.Register(name, asCFunction(fn))
}

// SetGlobal/GetGlobal give direct access to the global table (§4.A "_G"),
// for embedders seeding configuration values before a script runs.
func (s *Session) SetGlobal(name string, v value.Value) error {
	return s.interp.Globals().Set(s.interp.Interner().InternString(name), v)
}

func (s *Session) GetGlobal(name string) value.Value {
	return s.interp.Globals().Get(s.interp.Interner().InternString(name))
}

// NewTable constructs a fresh table for host-side table building
// (§6.3 "table construction").
func (s *Session) NewTable(nArray, nHash int) value.Value {
	t := s.interp.NewTable(nArray, nHash)
	return value.FromObject(value.TypeTable, vm.PointerOf(t))
}

// NewString interns a Go string as a Lua String value.
func (s *Session) NewString(str string) value.Value {
	return s.interp.Interner().InternString(str)
}

// NewCoroutine wraps body (a Function value) as a suspended coroutine
// (§4.G coroutine.create), registering it as a GC root so the embedder
// can hold and resume it independently of any script-visible reference.
func (s *Session) NewCoroutine(body value.Value) value.Value {
	return s.interp.CreateCoroutine(body)
}

// Resume implements coroutine.resume for embedder-driven coroutines
// (§6.3 "coroutine control").
func (s *Session) Resume(co value.Value, args ...value.Value) ([]value.Value, error) {
	if !co.IsThread() {
		return nil, vmerr.NewTypeError("attempt to resume a %s value", co.TypeName())
	}
	return s.interp.Resume(vm.AsCoroutine(co), args)
}

// Collect forces a full GC cycle (§6.3 "GC control passthrough", §4.D
// "collect").
func (s *Session) Collect() { s.interp.Collector().Collect() }

// GCStats exposes collector diagnostics (§6.3 "GC control passthrough").
func (s *Session) GCStats() vm.GCStatsView { return s.interp.GCStatsView() }

// Next implements the embedder-facing table iteration of §6.3
// ("table construction/next iteration"): given the previous key (Nil to
// start), returns the next key/value pair in an unspecified but stable
// (for the duration of no intervening writes) order, or ok=false when
// iteration is exhausted.
func (s *Session) Next(t value.Value, key value.Value) (nextKey, nextVal value.Value, ok bool) {
	if !t.IsTable() {
		return value.Nil, value.Nil, false
	}
	return vm.AsTable(t).Next(key)
}
