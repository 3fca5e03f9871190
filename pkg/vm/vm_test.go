package vm

import (
	"testing"

	"luacore/pkg/bytecode"
	"luacore/pkg/value"
	"luacore/pkg/vmerr"
)

func closureValue(cl *ClosureObject) value.Value {
	return value.FromObject(value.TypeFunction, ptrOf(cl))
}

// TestArithSmoke exercises the simplest possible chunk: `return 1 + 2`,
// with both operands taken straight from the constant pool via RK
// operands (no LOADK needed).
func TestArithSmoke(t *testing.T) {
	i := NewInterp()
	proto := &bytecode.FunctionPrototype{
		MaxStackSize: 1,
		Constants:    []bytecode.Constant{bytecode.Number(1), bytecode.Number(2)},
		Code: []bytecode.Instruction{
			bytecode.NewABC(bytecode.OpAdd, 0, bytecode.RKConstant(0), bytecode.RKConstant(1)),
			bytecode.NewABC(bytecode.OpReturn, 0, 2, 0),
		},
	}
	cl := i.Load(proto)
	results, err := i.Call(closureValue(cl), nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(results) != 1 || results[0].AsNumber() != 3 {
		t.Fatalf("results = %v, want [3]", results)
	}
}

// buildTailSumProto builds the register-machine equivalent of:
//
//	function sum(n, acc)
//	  if n == 0 then return acc end
//	  return sum(n - 1, acc + n)
//	end
//
// entirely via TAILCALL, so law L1 (tail calls never grow co.frames)
// determines whether this runs at all for large n without overflowing
// MaxCallDepth.
func buildTailSumProto() *bytecode.FunctionPrototype {
	return &bytecode.FunctionPrototype{
		NumParams:    2,
		MaxStackSize: 7,
		Constants: []bytecode.Constant{
			bytecode.Number(0),  // 0: base-case comparand
			bytecode.Number(1),  // 1: decrement
			bytecode.Str("sum"), // 2: self-reference global name
		},
		Code: []bytecode.Instruction{
			bytecode.NewABC(bytecode.OpEq, 1, bytecode.RKRegister(0), bytecode.RKConstant(0)), // 0: if n == 0 is false, skip the JMP
			bytecode.NewAsBx(bytecode.OpJmp, 0, 4),                                            // 1: -> idx 6 (return acc)
			bytecode.NewABx(bytecode.OpGetGlobal, 4, 2),                                       // 2: R4 := sum
			bytecode.NewABC(bytecode.OpSub, 5, bytecode.RKRegister(0), bytecode.RKConstant(1)), // 3: R5 := n - 1
			bytecode.NewABC(bytecode.OpAdd, 6, bytecode.RKRegister(1), bytecode.RKRegister(0)), // 4: R6 := acc + n
			bytecode.NewABC(bytecode.OpTailCall, 4, 3, 0),                                      // 5: tailcall R4(R5, R6)
			bytecode.NewABC(bytecode.OpReturn, 1, 2, 0),                                        // 6: return acc
		},
	}
}

func TestTailRecursiveSum(t *testing.T) {
	i := NewInterp()
	cl := i.Load(buildTailSumProto())
	name := i.Interner().InternString("sum")
	if err := i.Globals().Set(name, closureValue(cl)); err != nil {
		t.Fatalf("Set global: %v", err)
	}

	const n = 100000 // far beyond MaxFrames if this recursed through Go's call stack
	results, err := i.Call(closureValue(cl), []value.Value{value.Number(n), value.Number(0)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	want := float64(n) * (n + 1) / 2
	if len(results) != 1 || results[0].AsNumber() != want {
		t.Fatalf("sum(%d, 0) = %v, want %v", n, results, want)
	}
}

// buildCounterProtos builds the register-machine equivalent of:
//
//	function counter()
//	  local count = 0
//	  local function inc() count = count + 1 end
//	  local function get() return count end
//	  return inc, get
//	end
//
// inc and get are both instantiated from the same activation of counter,
// so they must share one Upvalue (§8.3 scenario 1). The test calls them
// only after counter has returned, so it checks that sharing once
// counter's frame has closed the Upvalue.
func buildCounterProtos() *bytecode.FunctionPrototype {
	incProto := &bytecode.FunctionPrototype{
		MaxStackSize: 1,
		Upvalues:     []bytecode.UpvalueDesc{{FromParentLocal: true, ParentIndex: 0}},
		Constants:    []bytecode.Constant{bytecode.Number(1)},
		Code: []bytecode.Instruction{
			bytecode.NewABC(bytecode.OpGetUpval, 0, 0, 0),
			bytecode.NewABC(bytecode.OpAdd, 0, bytecode.RKRegister(0), bytecode.RKConstant(0)),
			bytecode.NewABC(bytecode.OpSetUpval, 0, 0, 0),
			bytecode.NewABC(bytecode.OpReturn, 0, 1, 0),
		},
	}
	getProto := &bytecode.FunctionPrototype{
		MaxStackSize: 1,
		Upvalues:     []bytecode.UpvalueDesc{{FromParentLocal: true, ParentIndex: 0}},
		Code: []bytecode.Instruction{
			bytecode.NewABC(bytecode.OpGetUpval, 0, 0, 0),
			bytecode.NewABC(bytecode.OpReturn, 0, 2, 0),
		},
	}
	return &bytecode.FunctionPrototype{
		MaxStackSize: 3,
		Constants:    []bytecode.Constant{bytecode.Number(0)},
		Protos:       []*bytecode.FunctionPrototype{incProto, getProto},
		Code: []bytecode.Instruction{
			bytecode.NewABx(bytecode.OpLoadK, 0, 0),
			bytecode.NewABx(bytecode.OpClosure, 1, 0),
			bytecode.NewABx(bytecode.OpClosure, 2, 1),
			bytecode.NewABC(bytecode.OpReturn, 1, 3, 0),
		},
	}
}

func TestCounterClosuresShareUpvalue(t *testing.T) {
	i := NewInterp()
	cl := i.Load(buildCounterProtos())

	results, err := i.Call(closureValue(cl), nil)
	if err != nil {
		t.Fatalf("Call counter(): %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("counter() returned %d results, want 2", len(results))
	}
	inc, get := results[0], results[1]

	mustGet := func() float64 {
		t.Helper()
		r, err := i.Call(get, nil)
		if err != nil {
			t.Fatalf("Call get(): %v", err)
		}
		if len(r) != 1 {
			t.Fatalf("get() returned %d results, want 1", len(r))
		}
		return r[0].AsNumber()
	}

	if got := mustGet(); got != 0 {
		t.Fatalf("get() before any inc() = %v, want 0", got)
	}
	// Both inc and get share one Upvalue while counter's frame is long
	// since returned (and thus closed); a write through inc must be
	// visible through get.
	if _, err := i.Call(inc, nil); err != nil {
		t.Fatalf("Call inc(): %v", err)
	}
	if _, err := i.Call(inc, nil); err != nil {
		t.Fatalf("Call inc(): %v", err)
	}
	if got := mustGet(); got != 2 {
		t.Fatalf("get() after two inc() = %v, want 2", got)
	}
}

// TestPCallCatchesNativeError bypasses bytecode entirely: a native
// closure raises a RuntimeError, and PCall must report it as (false,
// [errValue]) rather than propagating.
func TestPCallCatchesNativeError(t *testing.T) {
	i := NewInterp()
	boom := NewNativeClosure(i.Collector(), "boom", func(ii *Interp, args []value.Value) ([]value.Value, error) {
		return nil, vmerr.NewRuntimeError(ii.Interner().InternString("boom"), "boom")
	})

	ok, results := i.PCall(closureValue(boom), nil)
	if ok {
		t.Fatalf("PCall should report failure")
	}
	if len(results) != 1 || results[0].AsStringObject().String() != "boom" {
		t.Fatalf("PCall error results = %v, want [\"boom\"]", results)
	}
}

// TestCallNonCallableIsTypeError checks that calling a plain number
// raises a recoverable TypeError rather than panicking.
func TestCallNonCallableIsTypeError(t *testing.T) {
	i := NewInterp()
	_, err := i.Call(value.Number(5), nil)
	if err == nil {
		t.Fatalf("Call on a number should error")
	}
	verr, ok := err.(vmerr.Error)
	if !ok || verr.Kind() != "TypeError" {
		t.Fatalf("err = %v, want a TypeError", err)
	}
}
