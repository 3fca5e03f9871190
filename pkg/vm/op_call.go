package vm

import (
	"unsafe"

	"luacore/pkg/bytecode"
	"luacore/pkg/value"
)

// ptrOf is the one place this package converts a concrete heap object
// pointer into the unsafe.Pointer a Value carries, matching the
// teacher's own Value{typ, obj: unsafe.Pointer(x)} construction sites.
func ptrOf[T any](p *T) unsafe.Pointer { return unsafe.Pointer(p) }

// callArgs reads argCount values starting at funcReg+1 out of frame's
// registers for a CALL/TAILCALL instruction (§4.F), resolving a B==0
// "multret" argument count against frame.Top — the register extent the
// immediately preceding multret-producing instruction (a CALL with C==0
// or a VARARG with B==0) left behind, mirroring the reference VM's
// floating L->top rather than this register file's fixed extent.
func callArgs(frame *Frame, funcReg, argCount int) []value.Value {
	if argCount == 0 {
		top := frame.Top
		if !frame.TopValid || top < funcReg+1 {
			top = funcReg + 1 // no preceding multret producer: treat as zero args
		}
		frame.TopValid = false
		return append([]value.Value(nil), frame.Registers[funcReg+1:top]...)
	}
	return append([]value.Value(nil), frame.Registers[funcReg+1:funcReg+argCount]...)
}

// execCall implements non-tail CALL (§4.F OpCall): push a new activation
// for the callee, run it via the recursive run()/callValue path, and
// write its results into this frame's registers.
func (i *Interp) execCall(co *CoroutineObject, frame *Frame, ins bytecode.Instruction) error {
	fn := frame.Registers[ins.A]
	args := callArgs(frame, ins.A, ins.B)
	nResults := ins.C - 1 // C==0 means "all"; encoded as -1 by this subtraction

	results, err := i.callValue(co, fn, args)
	if err != nil {
		return err
	}
	placeResults(frame, ins.A, nResults, results)
	if ins.C == 0 {
		frame.Top = ins.A + len(results)
		frame.TopValid = true
	}
	return nil
}

// execTailCall implements TAILCALL (§4.D L1, §4.F OpTailCall): when the
// callee is an ordinary Lua closure, the current frame is reused in
// place (reused=true, no results yet — the caller's run loop keeps
// executing the new activation). Otherwise (native function, or a
// __call-metamethod chain that bottoms out at one) there is no frame to
// reuse, so the call simply runs to completion and its results become
// this frame's results (reused=false).
func (i *Interp) execTailCall(co *CoroutineObject, frame *Frame, ins bytecode.Instruction) (reused bool, results []value.Value, err error) {
	fn := frame.Registers[ins.A]
	args := callArgs(frame, ins.A, ins.B)

	if fn.IsFunction() {
		cl := AsClosure(fn)
		if !cl.IsNative() {
			if err := i.tailCallInto(co, cl, args); err != nil {
				return false, nil, err
			}
			return true, nil, nil
		}
	}
	results, err = i.callValue(co, fn, args)
	return false, results, err
}

// execClosure implements CLOSURE (§4.F OpClosure, §3.3): builds a new
// ClosureObject from protoIdx's nested prototype, resolving each
// declared upvalue against either this frame's open-upvalue set (a
// capture from a local) or this frame's own closure's upvalues (a
// capture forwarded from further out).
func (i *Interp) execClosure(co *CoroutineObject, frame *Frame, protoIdx int) value.Value {
	childProto := frame.Closure.Proto.Protos[protoIdx]
	upvals := make([]*Upvalue, len(childProto.Upvalues))
	for idx, desc := range childProto.Upvalues {
		if desc.FromParentLocal {
			upvals[idx] = co.upvalues.FindOrCreateOpen(&co.stack, frame.Base+desc.ParentIndex, i.gcc)
		} else {
			upvals[idx] = frame.Closure.Upvalues[desc.ParentIndex]
		}
	}
	cl := i.loadClosure(childProto, upvals)
	return value.FromObject(value.TypeFunction, ptrOf(cl))
}
