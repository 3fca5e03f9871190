package vm

import (
	"testing"

	"luacore/pkg/bytecode"
	"luacore/pkg/value"
)

// buildNumericForSumProto builds the register-machine equivalent of:
//
//	local sum = 0
//	for i = 1, 5 do sum = sum + i end
//	return sum
//
// exercising FORPREP's "check bounds before ever running the body" rule
// and FORLOOP's direction-sensitive advance (§4.F).
func buildNumericForSumProto() *bytecode.FunctionPrototype {
	return &bytecode.FunctionPrototype{
		MaxStackSize: 5,
		Constants: []bytecode.Constant{
			bytecode.Number(1), // 0: init/step
			bytecode.Number(5), // 1: limit
			bytecode.Number(0), // 2: sum's initial value
		},
		Code: []bytecode.Instruction{
			bytecode.NewABx(bytecode.OpLoadK, 0, 0),                                          // 0: R0 = 1 (init)
			bytecode.NewABx(bytecode.OpLoadK, 1, 1),                                          // 1: R1 = 5 (limit)
			bytecode.NewABx(bytecode.OpLoadK, 2, 0),                                          // 2: R2 = 1 (step)
			bytecode.NewABx(bytecode.OpLoadK, 4, 2),                                          // 3: R4 = 0 (sum)
			bytecode.NewAsBx(bytecode.OpForPrep, 0, 1),                                       // 4: -> idx 6 (FORLOOP)
			bytecode.NewABC(bytecode.OpAdd, 4, bytecode.RKRegister(4), bytecode.RKRegister(3)), // 5: sum += i
			bytecode.NewAsBx(bytecode.OpForLoop, 0, -2),                                      // 6: -> idx 5 if in range
			bytecode.NewABC(bytecode.OpReturn, 4, 2, 0),                                      // 7: return sum
		},
	}
}

func TestNumericForLoop(t *testing.T) {
	i := NewInterp()
	cl := i.Load(buildNumericForSumProto())
	results, err := i.Call(closureValue(cl), nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(results) != 1 || results[0].AsNumber() != 15 {
		t.Fatalf("results = %v, want [15] (1+2+3+4+5)", results)
	}
}

// buildGenericForSumProto builds the register-machine equivalent of:
//
//	local sum = 0
//	for k, v in inext, t, 0 do sum = sum + v end
//	return sum
//
// where inext is a registered native iterator mimicking ipairs' stepping
// function, exercising TFORLOOP's call-iterator/advance-or-exit protocol
// (§4.F, §8.3 "ipairs-style generic for").
func buildGenericForSumProto() *bytecode.FunctionPrototype {
	return &bytecode.FunctionPrototype{
		MaxStackSize: 6,
		Constants: []bytecode.Constant{
			bytecode.Str("inext"), // 0
			bytecode.Str("t"),     // 1
			bytecode.Number(0),    // 2: initial control value and sum
		},
		Code: []bytecode.Instruction{
			bytecode.NewABx(bytecode.OpGetGlobal, 0, 0),                                      // 0: R0 = inext
			bytecode.NewABx(bytecode.OpGetGlobal, 1, 1),                                      // 1: R1 = t
			bytecode.NewABx(bytecode.OpLoadK, 2, 2),                                          // 2: R2 = 0 (control)
			bytecode.NewABx(bytecode.OpLoadK, 5, 2),                                          // 3: R5 = 0 (sum)
			bytecode.NewAsBx(bytecode.OpJmp, 0, 1),                                           // 4: -> idx 6 (TFORLOOP)
			bytecode.NewABC(bytecode.OpAdd, 5, bytecode.RKRegister(5), bytecode.RKRegister(4)), // 5: sum += v
			bytecode.NewABC(bytecode.OpTForLoop, 0, 0, 2),                                    // 6: k,v := inext(t, control)
			bytecode.NewAsBx(bytecode.OpJmp, 0, -3),                                          // 7: -> idx 5 while not exhausted
			bytecode.NewABC(bytecode.OpReturn, 5, 2, 0),                                      // 8: return sum
		},
	}
}

func TestGenericForLoopOverTable(t *testing.T) {
	i := NewInterp()
	inext := closureValue(NewNativeClosure(i.Collector(), "inext", func(ii *Interp, args []value.Value) ([]value.Value, error) {
		tbl := AsTable(args[0])
		next := args[1].AsNumber() + 1
		v := tbl.Get(value.Number(next))
		if v.IsNil() {
			return nil, nil
		}
		return []value.Value{value.Number(next), v}, nil
	}))
	if err := i.Globals().Set(i.Interner().InternString("inext"), inext); err != nil {
		t.Fatalf("Set global inext: %v", err)
	}

	tbl := i.NewTable(3, 0)
	for idx, v := range []float64{10, 20, 30} {
		if err := tbl.Set(value.Number(float64(idx+1)), value.Number(v)); err != nil {
			t.Fatalf("Set t[%d]: %v", idx+1, err)
		}
	}
	if err := i.Globals().Set(i.Interner().InternString("t"), value.FromObject(value.TypeTable, ptrOf(tbl))); err != nil {
		t.Fatalf("Set global t: %v", err)
	}

	cl := i.Load(buildGenericForSumProto())
	results, err := i.Call(closureValue(cl), nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(results) != 1 || results[0].AsNumber() != 60 {
		t.Fatalf("results = %v, want [60] (10+20+30)", results)
	}
}
