package vm

import (
	"luacore/pkg/bytecode"
	"luacore/pkg/value"
	"luacore/pkg/vmerr"
)

// execForPrep implements FORPREP (§4.F): R(A) -= R(A+2), then the caller
// applies sBx to jump straight to the matching FORLOOP, which performs
// the first bounds check before ever running the loop body — so a loop
// whose body should run zero times never does.
func execForPrep(frame *Frame, ins bytecode.Instruction) error {
	init, ok := toNumber(frame.Registers[ins.A])
	if !ok {
		return vmerr.NewTypeError("'for' initial value must be a number")
	}
	step, ok := toNumber(frame.Registers[ins.A+2])
	if !ok {
		return vmerr.NewTypeError("'for' step must be a number")
	}
	if _, ok := toNumber(frame.Registers[ins.A+1]); !ok {
		return vmerr.NewTypeError("'for' limit must be a number")
	}
	frame.Registers[ins.A] = value.Number(init - step)
	return nil
}

// execForLoop implements FORLOOP (§4.F): advance by step, check against
// the limit (direction-sensitive per step's sign), and if still within
// range, publish the loop variable and report that the caller should
// take the backward branch.
func execForLoop(frame *Frame, ins bytecode.Instruction) (bool, error) {
	cur, _ := toNumber(frame.Registers[ins.A])
	limit, _ := toNumber(frame.Registers[ins.A+1])
	step, _ := toNumber(frame.Registers[ins.A+2])
	next := cur + step
	within := (step > 0 && next <= limit) || (step <= 0 && next >= limit)
	if !within {
		return false, nil
	}
	frame.Registers[ins.A] = value.Number(next)
	frame.Registers[ins.A+3] = value.Number(next)
	return true, nil
}

// execTForLoop implements TFORLOOP (§4.F generic for): calls the
// iterator function R(A) with (state R(A+1), control R(A+2)), writes up
// to C results starting at R(A+3), and either advances the control
// variable (first result non-nil) or signals loop exit by letting the
// dispatch loop's pc++ skip the trailing JMP back to the loop head.
func (i *Interp) execTForLoop(co *CoroutineObject, frame *Frame, ins bytecode.Instruction) error {
	fn := frame.Registers[ins.A]
	args := []value.Value{frame.Registers[ins.A+1], frame.Registers[ins.A+2]}
	results, err := i.callValue(co, fn, args)
	if err != nil {
		return err
	}
	nresults := ins.C
	if nresults <= 0 {
		nresults = 1
	}
	placeResults(frame, ins.A+3, nresults, results)
	if frame.Registers[ins.A+3].IsNil() {
		frame.PC++ // skip the JMP back to the loop head: iteration is over
	} else {
		frame.Registers[ins.A+2] = frame.Registers[ins.A+3]
	}
	return nil
}

// execSetList implements SETLIST (§4.F, §GLOSSARY FieldsPerFlush): bulk
// table-constructor assignment, batched by FieldsPerFlush so a table
// literal with thousands of array entries doesn't need a B wide enough
// to address them all in one instruction. B==0 means "as many fields as
// a preceding multret producer left on frame.Top" (§4.F CALL/VARARG);
// C==0 means the batch index doesn't fit in C's width and instead
// follows as a second code word (spec.md:207), which this runtime
// encodes as a plain Instruction whose Bx carries the index — it is
// never itself dispatched, only consumed here and skipped over.
func execSetList(frame *Frame, ins bytecode.Instruction) {
	t := (*TableObject)(frame.Registers[ins.A].Pointer())
	count := ins.B
	if count == 0 {
		top := frame.Top
		if !frame.TopValid || top < ins.A+1 {
			top = ins.A + 1
		}
		frame.TopValid = false
		count = top - ins.A - 1
	}
	batch := ins.C
	if batch == 0 {
		extra := frame.Closure.Proto.Code[frame.PC]
		frame.PC++
		batch = extra.Bx()
	}
	base := (batch - 1) * bytecode.FieldsPerFlush
	for idx := 1; idx <= count; idx++ {
		t.Set(value.Number(float64(base+idx)), frame.Registers[ins.A+idx])
	}
}

// execVararg implements VARARG (§4.F): copies the calling frame's extra
// arguments (set aside by setupFrame when Proto.IsVararg) into registers
// starting at A, B-1 of them (B==0: all of them, which also leaves
// frame.Top set for a following B==0/C==0 consumer to read).
func execVararg(frame *Frame, ins bytecode.Instruction) {
	count := ins.B - 1
	if ins.B == 0 {
		count = len(frame.Varargs)
	}
	for idx := 0; idx < count; idx++ {
		if ins.A+idx >= len(frame.Registers) {
			break
		}
		if idx < len(frame.Varargs) {
			frame.Registers[ins.A+idx] = frame.Varargs[idx]
		} else {
			frame.Registers[ins.A+idx] = value.Nil
		}
	}
	if ins.B == 0 {
		frame.Top = ins.A + count
		frame.TopValid = true
	}
}
