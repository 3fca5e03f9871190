package vm

import (
	"luacore/pkg/value"
	"luacore/pkg/vmerr"
)

// AsClosure reinterprets a Function-tagged Value as its ClosureObject.
// Panics (caller bug) if v is not a Function, matching pkg/value's own
// AsXxx accessor convention.
func AsClosure(v value.Value) *ClosureObject {
	if !v.IsFunction() {
		panic("vm: AsClosure() called on non-function Value")
	}
	return (*ClosureObject)(v.Pointer())
}

// metatableOf returns v's metatable for the types that can carry one
// (§4.A "metatable slot exists on Table and Userdata only" — other
// types have no metatable, matching reference Lua 5.1's scope).
func metatableOf(v value.Value) *TableObject {
	switch v.Type() {
	case value.TypeTable:
		return (*TableObject)(v.Pointer()).Metatable()
	case value.TypeUserdata:
		return (*UserdataObject)(v.Pointer()).Metatable()
	default:
		return nil
	}
}

// callValue implements the call protocol of §4.D/§6.2: calling a
// Function directly, or falling back through a chain of __call
// metamethods for any other callable-via-metamethod value, bounded by
// MaxMetamethodChainDepth the same way __index/__newindex are.
func (i *Interp) callValue(co *CoroutineObject, fn value.Value, args []value.Value) ([]value.Value, error) {
	for depth := 0; ; depth++ {
		if err := checkMetamethodDepth(depth); err != nil {
			return nil, err
		}
		if fn.IsFunction() {
			break
		}
		mt := metatableOf(fn)
		if mt == nil {
			return nil, vmerr.NewTypeError("attempt to call a %s value", fn.TypeName())
		}
		callMM := mt.Get(i.interner.InternString("__call"))
		if callMM.IsNil() {
			return nil, vmerr.NewTypeError("attempt to call a %s value", fn.TypeName())
		}
		newArgs := make([]value.Value, 0, len(args)+1)
		newArgs = append(newArgs, fn)
		newArgs = append(newArgs, args...)
		fn, args = callMM, newArgs
	}

	cl := AsClosure(fn)
	if cl.IsNative() {
		co.inHostCall++
		res, err := cl.Native(i, args)
		co.inHostCall--
		return res, err
	}
	return i.callClosure(co, cl, args)
}

// callClosure pushes a fresh Frame for cl on co and runs it to
// completion (§4.B "push_frame"/"pop_frame", §4.D non-tail CALL). The
// caller's requested result count, if any, is applied by the caller
// itself (e.g. execCall's placeResults) against whatever callClosure
// returns — it is not threaded through the call.
func (i *Interp) callClosure(co *CoroutineObject, cl *ClosureObject, args []value.Value) ([]value.Value, error) {
	if len(co.frames) >= i.cfg.MaxCallDepth {
		return nil, vmerr.NewStackOverflowError("stack overflow\n" + co.CaptureStackTrace())
	}
	frame, err := i.setupFrame(co, cl, args)
	if err != nil {
		return nil, err
	}
	co.frames = append(co.frames, frame)
	return i.run(co)
}

// setupFrame reserves a register window for cl and copies in args,
// splitting fixed parameters from the vararg tail (§4.F OpVararg,
// §3.2 "Prototype.IsVararg").
func (i *Interp) setupFrame(co *CoroutineObject, cl *ClosureObject, args []value.Value) (Frame, error) {
	size := cl.Proto.MaxStackSize
	if size < cl.Proto.NumParams {
		size = cl.Proto.NumParams
	}
	base := co.stack.Top()
	regs, err := co.stack.Reserve(size)
	if err != nil {
		return Frame{}, err
	}
	for idx := range regs {
		regs[idx] = value.Nil
	}
	n := cl.Proto.NumParams
	for idx := 0; idx < n && idx < len(args); idx++ {
		regs[idx] = args[idx]
	}
	var extra []value.Value
	if cl.Proto.IsVararg && len(args) > n {
		extra = append(extra, args[n:]...)
	}
	return Frame{
		Closure:   cl,
		PC:        0,
		Registers: regs,
		Base:      base,
		Varargs:   extra,
	}, nil
}

// tailCallInto replaces the top frame of co in place with a fresh
// activation of cl (§4.D L1: tail calls never grow the frame stack),
// closing upvalues into the outgoing frame first since its registers
// are about to be reused for the callee.
func (i *Interp) tailCallInto(co *CoroutineObject, cl *ClosureObject, args []value.Value) error {
	top := &co.frames[len(co.frames)-1]
	co.upvalues.CloseTo(top.Base)
	co.stack.Release(len(top.Registers))

	frame, err := i.setupFrame(co, cl, args)
	if err != nil {
		return err
	}
	frame.IsTailCall = true
	co.frames[len(co.frames)-1] = frame
	return nil
}

// Call is the embedder-facing entry point (§6.3): run fn with args on
// the currently-selected coroutine, to completion, returning however
// many results it produced.
func (i *Interp) Call(fn value.Value, args []value.Value) ([]value.Value, error) {
	return i.callValue(i.current, fn, args)
}

// PCall implements protected calls (§4.D pcall): every error raised by fn
// is caught instead of propagating. A recoverable vmerr.Error is reported
// as (false, its AsValue()); a non-recoverable one (such as
// InternalInvariantViolation) or a non-vmerr error is reported as (false,
// its message string), and PCall does not end the state for it.
func (i *Interp) PCall(fn value.Value, args []value.Value) (bool, []value.Value) {
	results, err := i.Call(fn, args)
	if err == nil {
		return true, results
	}
	verr, ok := err.(vmerr.Error)
	if !ok || !verr.Recoverable() {
		// Non-recoverable: re-surface as a single-element error result
		// rather than crashing the host, since pcall is the only
		// mechanism spec §4.D exposes for this.
		return false, []value.Value{i.interner.InternString(err.Error())}
	}
	return false, []value.Value{verr.AsValue()}
}

// XPCall implements protected calls with a message handler (§4.D
// xpcall): the handler runs (once) with the error value before control
// returns to the caller, and its own result becomes the reported error.
func (i *Interp) XPCall(fn value.Value, handler value.Value, args []value.Value) (bool, []value.Value) {
	results, err := i.Call(fn, args)
	if err == nil {
		return true, results
	}
	var errVal value.Value
	if verr, ok := err.(vmerr.Error); ok {
		errVal = verr.AsValue()
	} else {
		errVal = i.interner.InternString(err.Error())
	}
	handled, herr := i.Call(handler, []value.Value{errVal})
	if herr != nil {
		return false, []value.Value{i.interner.InternString(herr.Error())}
	}
	return false, handled
}

// Error raises a Lua error carrying an arbitrary value (§4.D error()).
func Error(v value.Value) error {
	return vmerr.NewRuntimeError(v, errorMessage(v))
}

func errorMessage(v value.Value) string {
	if v.IsString() {
		return v.AsStringObject().String()
	}
	return v.TypeName() + " value"
}
