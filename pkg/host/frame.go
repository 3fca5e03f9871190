package host

import (
	"fmt"

	"luacore/pkg/value"
	"luacore/pkg/vm"
	"luacore/pkg/vmerr"
)

// Frame is the C-API-style view over one host-function invocation
// (§6.2): positional argument/result access plus the luaL_checkXxx-style
// argument-validation helpers the Lua 5.1 C API gives bindings, so a
// CFunction doesn't have to hand-roll a type switch over a raw []Value
// the way a plain vm.NativeFunc does.
//
// Grounded on vm.NativeFunc's existing (args []value.Value) convention —
// Frame wraps exactly that args slice plus an accumulating results slice
// and a sticky error, rather than introducing a second incompatible
// calling convention; CFunction (below) adapts to and from vm.NativeFunc
// so both styles of host function can be registered on the same Session.
type Frame struct {
	interp  *vm.Interp
	args    []value.Value
	err     error
	results []value.Value
}

// Interp exposes the owning interpreter, for bindings that need to
// allocate tables/strings or call back into Lua.
func (f *Frame) Interp() *vm.Interp { return f.interp }

// Top reports the number of arguments passed to this invocation (§4.B
// C-API "top").
func (f *Frame) Top() int { return len(f.args) }

// argIndex resolves a 1-based C-API argument index (negative counts
// back from the last argument, -1 being the last one) to a 0-based
// index into f.args.
func (f *Frame) argIndex(idx int) int {
	if idx < 0 {
		return len(f.args) + idx
	}
	return idx - 1
}

// Get reads argument idx, or Nil if idx is out of range — Lua treats a
// missing argument as nil rather than an error (§4.B C-API "get").
func (f *Frame) Get(idx int) value.Value {
	i := f.argIndex(idx)
	if i < 0 || i >= len(f.args) {
		return value.Nil
	}
	return f.args[i]
}

// Set overwrites argument idx, extending the argument list with Nils if
// necessary (§4.B C-API "set").
func (f *Frame) Set(idx int, v value.Value) {
	i := f.argIndex(idx)
	if i < 0 {
		return
	}
	for i >= len(f.args) {
		f.args = append(f.args, value.Nil)
	}
	f.args[i] = v
}

// Push appends v to this invocation's result list (§4.B C-API "push").
func (f *Frame) Push(v value.Value) { f.results = append(f.results, v) }

// Pop removes and returns the last pushed result, or Nil if none remain
// (§4.B C-API "pop").
func (f *Frame) Pop() value.Value {
	if len(f.results) == 0 {
		return value.Nil
	}
	v := f.results[len(f.results)-1]
	f.results = f.results[:len(f.results)-1]
	return v
}

// Error records msg as this invocation's failure (luaL_error's role,
// minus the C API's longjmp — this runtime surfaces errors as ordinary
// Go error returns throughout, per the call protocol's pcall/xpcall
// design) and returns Nil so a CheckXxx call site can return immediately
// with it, e.g. `return f.Error("...")`.
func (f *Frame) Error(format string, args ...any) value.Value {
	f.err = vmerr.NewRuntimeError(value.Nil, fmt.Sprintf(format, args...))
	return value.Nil
}

// CheckType raises a TypeError unless argument idx has type t, mirroring
// luaL_checktype (§6.2).
func (f *Frame) CheckType(idx int, t value.Type) value.Value {
	v := f.Get(idx)
	if v.Type() != t {
		f.err = vmerr.NewTypeError("bad argument #%d (%s expected, got %s)", idx, t, v.TypeName())
		return value.Nil
	}
	return v
}

// CheckNumber returns argument idx as a float64, raising a TypeError if
// it isn't a number — luaL_checknumber (§6.2).
func (f *Frame) CheckNumber(idx int) float64 {
	v := f.Get(idx)
	if !v.IsNumber() {
		f.err = vmerr.NewTypeError("bad argument #%d (number expected, got %s)", idx, v.TypeName())
		return 0
	}
	return v.AsNumber()
}

// CheckString returns argument idx as a Go string, raising a TypeError
// if it isn't a Lua string — luaL_checkstring (§6.2).
func (f *Frame) CheckString(idx int) string {
	v := f.Get(idx)
	if !v.IsString() {
		f.err = vmerr.NewTypeError("bad argument #%d (string expected, got %s)", idx, v.TypeName())
		return ""
	}
	return v.AsStringObject().String()
}

// CFunction is the §6.2 host-function contract: a Go function given a
// Frame view over its own call (arguments in, results and an optional
// error out), returning how many of the values it Pushed are the actual
// results. Adapted onto vm.NativeFunc by asCFunction below so it can be
// registered and called exactly like any other Lua-callable Function.
type CFunction func(f *Frame) (int, error)

// asCFunction adapts fn to the vm.NativeFunc convention every ClosureObject
// actually dispatches through, so a CFunction-style binding composes with
// the rest of this runtime's call protocol (pcall, __call chains,
// coroutines) with no special-casing. The Interp a call runs under is
// supplied per-invocation by the dispatcher, not fixed at registration
// time, since a Function value can be called from any coroutine's frame.
func asCFunction(fn CFunction) vm.NativeFunc {
	return func(ii *vm.Interp, args []value.Value) ([]value.Value, error) {
		f := &Frame{interp: ii, args: args}
		n, err := fn(f)
		if err != nil {
			return nil, err
		}
		if f.err != nil {
			return nil, f.err
		}
		if n < 0 || n > len(f.results) {
			n = len(f.results)
		}
		return f.results[len(f.results)-n:], nil
	}
}
