package bytecode

import "testing"

func sampleProto() *FunctionPrototype {
	return &FunctionPrototype{
		Source:          "=test",
		LineDefined:     0,
		LastLineDefined: 10,
		NumParams:       1,
		NumUpvalues:     1,
		IsVararg:        false,
		MaxStackSize:    4,
		Code: []Instruction{
			NewABx(OpLoadK, 0, 0),
			NewABC(OpAdd, 1, RKRegister(0), RKConstant(0)),
			NewAsBx(OpJmp, 0, -1),
			NewABC(OpReturn, 1, 2, 0),
		},
		Constants: []Constant{
			Number(3.5),
			Str("hello"),
			Bool(true),
			Nil(),
		},
		Protos: []*FunctionPrototype{
			{
				Source:       "=inner",
				MaxStackSize: 2,
				Code:         []Instruction{NewABC(OpReturn, 0, 1, 0)},
				Upvalues:     []UpvalueDesc{{FromParentLocal: true, ParentIndex: 0}},
			},
		},
		LineInfo:     []int32{1, 2, 3, 4},
		LocVars:      []LocVar{{Name: "x", StartPC: 0, EndPC: 4}},
		UpvalueNames: []string{"up1"},
	}
}

func TestRoundTrip(t *testing.T) {
	orig := sampleProto()
	b, err := DumpToBytes(orig)
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	got, err := LoadFromBytes(b)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	b2, err := DumpToBytes(got)
	if err != nil {
		t.Fatalf("re-Dump failed: %v", err)
	}
	if len(b) != len(b2) {
		t.Fatalf("round-trip length mismatch: %d vs %d", len(b), len(b2))
	}
	for i := range b {
		if b[i] != b2[i] {
			t.Fatalf("round-trip byte mismatch at %d (L5)", i)
		}
	}

	if got.Source != orig.Source || got.MaxStackSize != orig.MaxStackSize {
		t.Errorf("header fields did not survive round trip")
	}
	if len(got.Code) != len(orig.Code) {
		t.Fatalf("code length mismatch")
	}
	for i, ins := range orig.Code {
		if got.Code[i] != ins {
			t.Errorf("instruction %d mismatch: got %+v want %+v", i, got.Code[i], ins)
		}
	}
	if len(got.Protos) != 1 || got.Protos[0].Source != "=inner" {
		t.Errorf("nested prototype did not survive round trip")
	}
	if len(got.Protos[0].Upvalues) != 1 || !got.Protos[0].Upvalues[0].FromParentLocal {
		t.Errorf("nested prototype's upvalue descriptor did not survive round trip")
	}
}

func TestRejectsBadSignature(t *testing.T) {
	b, _ := DumpToBytes(sampleProto())
	b[0] = 0x00
	if _, err := LoadFromBytes(b); err != ErrBadHeader {
		t.Errorf("expected ErrBadHeader for corrupted signature, got %v", err)
	}
}

func TestRejectsMismatchedSizes(t *testing.T) {
	b, _ := DumpToBytes(sampleProto())
	// instruction-size byte lives right after int/size_t size bytes in
	// the header; corrupt it to simulate a cross-build chunk.
	b[9] = 8
	if _, err := LoadFromBytes(b); err != ErrBadHeader {
		t.Errorf("expected ErrBadHeader for mismatched instruction size, got %v", err)
	}
}

func TestRKEncoding(t *testing.T) {
	if IsConstant(RKRegister(5)) {
		t.Errorf("RKRegister must not set the constant bit")
	}
	if !IsConstant(RKConstant(5)) {
		t.Errorf("RKConstant must set the constant bit")
	}
	if ConstantIndex(RKConstant(17)) != 17 {
		t.Errorf("ConstantIndex round trip failed")
	}
}
