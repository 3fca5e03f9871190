package vm

import (
	"luacore/pkg/bytecode"
	"luacore/pkg/gc"
	"luacore/pkg/value"
)

// Frame is one activation record of the call stack (§3.4, §GLOSSARY
// "Frame"), grounded on the teacher's CallFrame (pkg/vm/vm.go): a
// closure, an instruction pointer local to that closure's code, and a
// register window sliced from the shared Stack.
type Frame struct {
	Closure    *ClosureObject
	PC         int // index into Closure.Proto.Code
	Registers  []value.Value
	Base       int           // absolute Stack index Registers[0] corresponds to
	IsTailCall bool          // this frame was entered via a tail call that reused the slot (§4.D L1)
	Varargs    []value.Value // extra arguments beyond Proto.NumParams, when Proto.IsVararg

	// Top is the logical stack top (an index into Registers, exclusive)
	// left behind by the most recent multret-producing instruction — a
	// CALL with C==0, or a VARARG with B==0 (§4.F). A B==0
	// operand on the very next instruction (CALL/TAILCALL's argument
	// count, RETURN, or SETLIST's field count) reads up to here rather
	// than to a fixed register-file extent, mirroring the reference
	// VM's floating L->top. TopValid guards against a stale read when no
	// such producer ran immediately before — the compiler only ever
	// emits B==0/C==0 directly after a multret producer, so a false
	// TopValid here means the loaded bytecode violated that invariant.
	Top      int
	TopValid bool
}

// NativeFunc is the host (native) function contract of §6.2: a Go
// function taking the calling Interp and its argument vector, returning
// a result vector or an error. A ClosureObject with a non-nil Native and
// a nil Proto wraps one — both Lua-compiled and host functions present
// identically as TypeFunction to the rest of the runtime, matching
// §3.1's requirement that Function have no visible internal split.
type NativeFunc func(i *Interp, args []value.Value) ([]value.Value, error)

// ClosureObject pairs an immutable FunctionPrototype with the vector of
// upvalues it closed over (§3.2 "Closure"). Distinct closures built from
// the same prototype (e.g. one per call to an enclosing function) hold
// distinct Upvalue slices — this is what makes each instantiation
// capture its own copy of the enclosing locals (§8.3 scenario 1).
type ClosureObject struct {
	gcHeaderMixin
	Proto    *bytecode.FunctionPrototype
	Upvalues []*Upvalue
	Constant []value.Value // Proto.Constants, resolved+interned once by the loader
	Native   NativeFunc
	Name     string // for error messages and stack traces; optional
}

// IsNative reports whether this closure wraps a host function rather
// than a compiled prototype.
func (c *ClosureObject) IsNative() bool { return c.Native != nil }

func (c *ClosureObject) Kind() string { return "function" }

// Trace visits every upvalue's current value and every constant pool
// entry: both can hold GC object references that root tracing (§4.A)
// needs to follow, grounded on the teacher's GC write-barrier walk over
// ClosureObject.Upvalues (pkg/vm/value_types.go).
func (c *ClosureObject) Trace(visit func(gc.Object)) {
	for _, uv := range c.Upvalues {
		traceValue(uv.Get(), visit)
	}
	for _, k := range c.Constant {
		traceValue(k, visit)
	}
}

func (c *ClosureObject) Size() int { return 32 + len(c.Upvalues)*8 }

// NewNativeClosure wraps fn as a callable Function value (§6.2).
func NewNativeClosure(gcc *gc.Collector, name string, fn NativeFunc) *ClosureObject {
	c := &ClosureObject{Native: fn, Name: name}
	gcc.Register(c, c.Size())
	return c
}

// traceValue visits v's underlying GC object, if it has one. Shared by
// every heap object's Trace implementation in this package.
func traceValue(v value.Value, visit func(gc.Object)) {
	if !v.IsGCObject() {
		return
	}
	if o, ok := value.AsGCObject(v); ok {
		visit(o)
	}
}
