package vm

import (
	"strings"
	"testing"

	"luacore/pkg/bytecode"
	"luacore/pkg/value"
)

func TestCaptureStackTraceEmptyStack(t *testing.T) {
	i := NewInterp()
	if got := i.main.CaptureStackTrace(); !strings.Contains(got, "no active frames") {
		t.Errorf("CaptureStackTrace on an idle coroutine = %q, want a no-frames message", got)
	}
}

// buildGreetProto builds a three-instruction function (fetch the "capture"
// global, call it, return) that the test names "greet"; the call into the
// registered "capture" native lets the test observe CaptureStackTrace's
// output while greet's frame is still live.
func buildGreetProto() *bytecode.FunctionPrototype {
	return &bytecode.FunctionPrototype{
		Source:       "chunk.lua",
		MaxStackSize: 1,
		LineInfo:     []int32{11, 11, 11},
		Constants:    []bytecode.Constant{bytecode.Str("capture")},
		Code: []bytecode.Instruction{
			bytecode.NewABx(bytecode.OpGetGlobal, 0, 0),
			bytecode.NewABC(bytecode.OpCall, 0, 1, 1),
			bytecode.NewABC(bytecode.OpReturn, 0, 1, 0),
		},
	}
}

func TestCaptureStackTraceNamesFrameAndLine(t *testing.T) {
	i := NewInterp()

	var captured string
	capture := closureValue(NewNativeClosure(i.Collector(), "capture",
		func(ii *Interp, args []value.Value) ([]value.Value, error) {
			captured = ii.current.CaptureStackTrace()
			return nil, nil
		}))
	if err := i.Globals().Set(i.Interner().InternString("capture"), capture); err != nil {
		t.Fatalf("Set global capture: %v", err)
	}

	cl := i.Load(buildGreetProto())
	cl.Name = "greet"
	if _, err := i.Call(closureValue(cl), nil); err != nil {
		t.Fatalf("Call: %v", err)
	}

	if !strings.Contains(captured, "greet") {
		t.Errorf("trace = %q, want it to mention frame name %q", captured, "greet")
	}
	if !strings.Contains(captured, "chunk.lua:11") {
		t.Errorf("trace = %q, want it to mention source:line %q", captured, "chunk.lua:11")
	}
}
