package vm

import (
	"testing"

	"luacore/pkg/bytecode"
	"luacore/pkg/value"
)

// buildYieldingBody builds the register-machine equivalent of:
//
//	function body()
//	  yield(1)
//	  yield(2)
//	  yield(3)
//	  return "done"
//	end
//
// where yield is a registered global native function forwarding to
// Interp.Yield, exercising the full coroutine.resume/yield round trip
// (§4.G, §8.3 "coroutine yielding 1, 2, 3").
func buildYieldingBody() *bytecode.FunctionPrototype {
	return &bytecode.FunctionPrototype{
		MaxStackSize: 2,
		Constants: []bytecode.Constant{
			bytecode.Str("yield"),
			bytecode.Number(1),
			bytecode.Number(2),
			bytecode.Number(3),
			bytecode.Str("done"),
		},
		Code: []bytecode.Instruction{
			bytecode.NewABx(bytecode.OpGetGlobal, 0, 0),
			bytecode.NewABx(bytecode.OpLoadK, 1, 1),
			bytecode.NewABC(bytecode.OpCall, 0, 2, 1),
			bytecode.NewABx(bytecode.OpGetGlobal, 0, 0),
			bytecode.NewABx(bytecode.OpLoadK, 1, 2),
			bytecode.NewABC(bytecode.OpCall, 0, 2, 1),
			bytecode.NewABx(bytecode.OpGetGlobal, 0, 0),
			bytecode.NewABx(bytecode.OpLoadK, 1, 3),
			bytecode.NewABC(bytecode.OpCall, 0, 2, 1),
			bytecode.NewABx(bytecode.OpLoadK, 0, 4),
			bytecode.NewABC(bytecode.OpReturn, 0, 2, 0),
		},
	}
}

func TestCoroutineYieldsThenReturns(t *testing.T) {
	i := NewInterp()
	yieldFn := closureValue(NewNativeClosure(i.Collector(), "yield",
		func(ii *Interp, args []value.Value) ([]value.Value, error) { return ii.Yield(args) }))
	if err := i.Globals().Set(i.Interner().InternString("yield"), yieldFn); err != nil {
		t.Fatalf("Set global yield: %v", err)
	}

	bodyCl := i.Load(buildYieldingBody())
	coVal := i.CreateCoroutine(closureValue(bodyCl))
	co := AsCoroutine(coVal)

	for want := 1.0; want <= 3.0; want++ {
		results, err := i.Resume(co, nil)
		if err != nil {
			t.Fatalf("Resume (yield %v): %v", want, err)
		}
		if co.Status != StatusSuspended {
			t.Fatalf("after yielding %v, status = %v, want suspended", want, co.Status)
		}
		if len(results) != 1 || results[0].AsNumber() != want {
			t.Fatalf("Resume results = %v, want [%v]", results, want)
		}
	}

	results, err := i.Resume(co, nil)
	if err != nil {
		t.Fatalf("final Resume: %v", err)
	}
	if co.Status != StatusDead {
		t.Fatalf("after returning, status = %v, want dead", co.Status)
	}
	if len(results) != 1 || results[0].AsStringObject().String() != "done" {
		t.Fatalf("final Resume results = %v, want [\"done\"]", results)
	}

	if _, err := i.Resume(co, nil); err == nil {
		t.Fatalf("resuming a dead coroutine should error")
	}
}
