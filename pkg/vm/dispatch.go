package vm

import (
	"luacore/pkg/bytecode"
	"luacore/pkg/value"
	"luacore/pkg/vmerr"
)

// run drives exactly one call-stack level of co — the frame that was on
// top of co.frames when run was invoked — to completion, and pops it
// before returning (§4.B push_frame/pop_frame). A non-tail CALL
// recurses through execCall into callClosure, which appends a new frame
// and calls run again; that nested run pops its own frame and hands
// results back to execCall, which writes them into *this* frame's
// registers and the for loop simply continues. A tail call instead
// replaces this frame in place via tailCallInto and the loop continues
// without recursing (§4.D L1: unbounded tail recursion costs no Go
// stack and no extra Frame slot).
//
// Grounded on the teacher's central `for { switch instr.Op { ... } }`
// loop (pkg/vm/vm.go), generalized from paserati's object-model opcodes
// to Lua 5.1's 38 register-machine opcodes (§4.F).
func (i *Interp) run(co *CoroutineObject) ([]value.Value, error) {
	myDepth := len(co.frames)

	for {
		frame := &co.frames[myDepth-1]
		proto := frame.Closure.Proto
		if frame.PC >= len(proto.Code) {
			return i.finishFrame(co, myDepth, nil)
		}
		ins := proto.Code[frame.PC]
		frame.PC++

		if i.cfg.TraceDispatch {
			i.Trace(true, "[vm] depth=%d pc=%d op=%s a=%d b=%d c=%d\n", myDepth, frame.PC-1, ins.Op, ins.A, ins.B, ins.C)
		}

		var err error
		switch ins.Op {
		case bytecode.OpMove:
			frame.Registers[ins.A] = frame.Registers[ins.B]
		case bytecode.OpLoadK:
			frame.Registers[ins.A] = frame.Closure.Constant[ins.Bx()]
		case bytecode.OpLoadBool:
			frame.Registers[ins.A] = value.Bool(ins.B != 0)
			if ins.C != 0 {
				frame.PC++
			}
		case bytecode.OpLoadNil:
			for r := ins.A; r <= ins.B; r++ {
				frame.Registers[r] = value.Nil
			}
		case bytecode.OpGetUpval:
			frame.Registers[ins.A] = frame.Closure.Upvalues[ins.B].Get()
		case bytecode.OpSetUpval:
			frame.Closure.Upvalues[ins.B].Set(frame.Registers[ins.A])
		case bytecode.OpGetGlobal:
			key := frame.Closure.Constant[ins.Bx()]
			frame.Registers[ins.A] = i.globals.Get(key)
		case bytecode.OpSetGlobal:
			key := frame.Closure.Constant[ins.Bx()]
			err = i.globals.Set(key, frame.Registers[ins.A])

		case bytecode.OpNewTable:
			frame.Registers[ins.A] = value.FromObject(value.TypeTable, ptrOf(NewTable(i.gcc, ins.B, ins.C)))
		case bytecode.OpGetTable:
			var v value.Value
			v, err = i.index(frame.Registers[ins.B], rk(frame, ins.C))
			if err == nil {
				frame.Registers[ins.A] = v
			}
		case bytecode.OpSetTable:
			err = i.newindex(frame.Registers[ins.A], rk(frame, ins.B), rk(frame, ins.C))
		case bytecode.OpSelf:
			obj := frame.Registers[ins.B]
			frame.Registers[ins.A+1] = obj
			var v value.Value
			v, err = i.index(obj, rk(frame, ins.C))
			if err == nil {
				frame.Registers[ins.A] = v
			}

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod, bytecode.OpPow:
			var v value.Value
			v, err = i.arith(ins.Op, rk(frame, ins.B), rk(frame, ins.C))
			if err == nil {
				frame.Registers[ins.A] = v
			}
		case bytecode.OpUnm:
			var v value.Value
			v, err = i.arith(bytecode.OpUnm, frame.Registers[ins.B], frame.Registers[ins.B])
			if err == nil {
				frame.Registers[ins.A] = v
			}
		case bytecode.OpNot:
			frame.Registers[ins.A] = value.Bool(!frame.Registers[ins.B].Truthy())
		case bytecode.OpLen:
			var v value.Value
			v, err = i.length(frame.Registers[ins.B])
			if err == nil {
				frame.Registers[ins.A] = v
			}
		case bytecode.OpConcat:
			var v value.Value
			v, err = i.concat(frame.Registers[ins.B : ins.C+1])
			if err == nil {
				frame.Registers[ins.A] = v
			}

		case bytecode.OpJmp:
			frame.PC += ins.SBx()
		case bytecode.OpEq:
			var eq bool
			eq, err = i.equals(rk(frame, ins.B), rk(frame, ins.C))
			if err == nil && eq != (ins.A != 0) {
				frame.PC++
			}
		case bytecode.OpLt:
			var lt bool
			lt, err = i.less(rk(frame, ins.B), rk(frame, ins.C))
			if err == nil && lt != (ins.A != 0) {
				frame.PC++
			}
		case bytecode.OpLe:
			var le bool
			le, err = i.lessEqual(rk(frame, ins.B), rk(frame, ins.C))
			if err == nil && le != (ins.A != 0) {
				frame.PC++
			}
		case bytecode.OpTest:
			if frame.Registers[ins.A].Truthy() != (ins.C != 0) {
				frame.PC++
			}
		case bytecode.OpTestSet:
			v := frame.Registers[ins.B]
			if v.Truthy() == (ins.C != 0) {
				frame.Registers[ins.A] = v
			} else {
				frame.PC++
			}

		case bytecode.OpCall:
			err = i.execCall(co, frame, ins)
		case bytecode.OpTailCall:
			var reused bool
			var results []value.Value
			reused, results, err = i.execTailCall(co, frame, ins)
			if err != nil {
				return i.unwindFrame(co, myDepth, err)
			}
			if reused {
				continue // frame slot now holds a fresh activation; re-fetch and keep running
			}
			return i.finishFrame(co, myDepth, results)
		case bytecode.OpReturn:
			results := collectRange(frame, ins.A, ins.B)
			return i.finishFrame(co, myDepth, results)

		case bytecode.OpForPrep:
			err = execForPrep(frame, ins)
			if err == nil {
				frame.PC += ins.SBx()
			}
		case bytecode.OpForLoop:
			var branch bool
			branch, err = execForLoop(frame, ins)
			if err == nil && branch {
				frame.PC += ins.SBx()
			}
		case bytecode.OpTForLoop:
			err = i.execTForLoop(co, frame, ins)

		case bytecode.OpSetList:
			execSetList(frame, ins)
		case bytecode.OpClose:
			co.upvalues.CloseTo(frame.Base + ins.A)
		case bytecode.OpClosure:
			frame.Registers[ins.A] = i.execClosure(co, frame, ins.Bx())
		case bytecode.OpVararg:
			execVararg(frame, ins)

		default:
			err = vmerr.NewInternalInvariantViolationError("unimplemented opcode %s", ins.Op)
		}

		if err != nil {
			return i.unwindFrame(co, myDepth, err)
		}
	}
}

// finishFrame closes upvalues into the frame at myDepth, reclaims its
// register window, and pops it — the common tail of every normal return
// path (including a tail call's eventual OpReturn, which by then has
// already overwritten the slot at myDepth in place).
func (i *Interp) finishFrame(co *CoroutineObject, myDepth int, results []value.Value) ([]value.Value, error) {
	frame := co.frames[myDepth-1]
	co.upvalues.CloseTo(frame.Base)
	co.stack.Release(len(frame.Registers))
	co.frames = co.frames[:myDepth-1]
	return results, nil
}

// unwindFrame is finishFrame's error path: same cleanup, propagating err.
func (i *Interp) unwindFrame(co *CoroutineObject, myDepth int, err error) ([]value.Value, error) {
	frame := co.frames[myDepth-1]
	co.upvalues.CloseTo(frame.Base)
	co.stack.Release(len(frame.Registers))
	co.frames = co.frames[:myDepth-1]
	return nil, err
}

// rk resolves an RK operand (§4.F): either a register or a constant
// pool slot, discriminated by the high bit RKConstant sets.
func rk(frame *Frame, operand int) value.Value {
	if bytecode.IsConstant(operand) {
		return frame.Closure.Constant[bytecode.ConstantIndex(operand)]
	}
	return frame.Registers[operand]
}

// collectRange gathers a contiguous register range as a result vector
// for OpReturn (§4.F "B==0 means up to the top of the register file
// currently in use, for forwarding a preceding multret call's results"):
// B==0 reads up to frame.Top, the extent the immediately preceding
// multret producer (a CALL with C==0 or a VARARG with B==0) left behind.
func collectRange(frame *Frame, a, b int) []value.Value {
	regs := frame.Registers
	if b == 0 {
		top := frame.Top
		if !frame.TopValid || top < a {
			top = a // no preceding multret producer: treat as zero results
		}
		frame.TopValid = false
		return append([]value.Value(nil), regs[a:top]...)
	}
	return append([]value.Value(nil), regs[a:a+b-1]...)
}

// placeResults writes results into frame's registers starting at reg:
// exactly count values if count >= 0 (Lua pads short results with nil
// and truncates long ones), or all of results when count < 0 (the CALL
// C==0 "multret" convention, §4.F).
func placeResults(frame *Frame, reg, count int, results []value.Value) {
	if count < 0 {
		count = len(results)
	}
	for idx := 0; idx < count; idx++ {
		if reg+idx >= len(frame.Registers) {
			break
		}
		if idx < len(results) {
			frame.Registers[reg+idx] = results[idx]
		} else {
			frame.Registers[reg+idx] = value.Nil
		}
	}
}
