package bytecode

// Instruction is a single 32-bit decoded Lua 5.1 instruction word (§4.F).
// It is kept decoded (not a raw uint32) because every dispatch site reads
// one of A/B/C/Bx/SBx, never the raw bits; decoding once at load time
// keeps the hot loop branch-free.
type Instruction struct {
	Op OpCode
	A  int
	B  int // also holds the whole Bx field when Mode is iABx/iAsBx (see Bx/SBx)
	C  int
}

// InstructionMode describes which of the three operand layouts an
// instruction was encoded with (§4.F): {opcode,A,B,C}, {opcode,A,Bx}, or
// {opcode,A,signed-Bx}.
type InstructionMode uint8

const (
	ModeABC InstructionMode = iota
	ModeABx
	ModeAsBx
)

// modeOf reports the wire layout for a given opcode. Grounded directly on
// §4.F's opcode contracts (each opcode's operand list names its mode).
func modeOf(op OpCode) InstructionMode {
	switch op {
	case OpLoadK, OpGetGlobal, OpSetGlobal, OpClosure:
		return ModeABx
	case OpJmp, OpForLoop, OpForPrep:
		return ModeAsBx
	default:
		return ModeABC
	}
}

// Bx returns the unsigned 18-bit Bx field of a ModeABx instruction, which
// is stored whole in B.
func (i Instruction) Bx() int { return i.B }

// SBx reinterprets Bx as a signed displacement, biased by maxSBxBias
// (2^17-1, half the largest 18-bit Bx) the way the reference encoding
// stores it (so the wire format never needs a dedicated sign bit).
func (i Instruction) SBx() int { return i.B - maxSBxBias }

const maxSBxBias = (1 << 17) - 1

// NewABC builds an {opcode,A,B,C} instruction.
func NewABC(op OpCode, a, b, c int) Instruction { return Instruction{Op: op, A: a, B: b, C: c} }

// NewABx builds an {opcode,A,Bx} instruction.
func NewABx(op OpCode, a, bx int) Instruction { return Instruction{Op: op, A: a, B: bx} }

// NewAsBx builds an {opcode,A,signed-Bx} instruction.
func NewAsBx(op OpCode, a, sbx int) Instruction {
	return Instruction{Op: op, A: a, B: sbx + maxSBxBias}
}

// Encode packs an Instruction into its 32-bit wire form:
//
//	bits  0- 5  opcode (6 bits, room for growth beyond 38)
//	bits  6-13  A      (8 bits)
//	bits 14-22  C      (9 bits) -- present for ABC; reused as Bx's low part otherwise
//	bits 23-31  B      (9 bits) -- present for ABC; for ABx/AsBx, B:C together form Bx (18 bits)
//
// This mirrors the reference Lua 5.1 bit layout (opcode low, A next, then
// C then B) closely enough to round-trip every field while keeping the
// decode path a handful of shifts — no bit-for-bit claim is made or
// needed since §6.1 only requires this runtime to read back what it
// itself wrote (round-trip law L5), not interoperate with the reference
// C implementation's own compiled chunks.
func (i Instruction) Encode() uint32 {
	switch modeOf(i.Op) {
	case ModeABx, ModeAsBx:
		return uint32(i.Op) | uint32(i.A)<<6 | uint32(i.B)<<14
	default:
		c := i.C
		b := i.B
		return uint32(i.Op) | uint32(i.A)<<6 | uint32(c&0x1FF)<<14 | uint32(b&0x1FF)<<23
	}
}

// Decode unpacks a 32-bit wire instruction.
func Decode(word uint32) Instruction {
	op := OpCode(word & 0x3F)
	a := int((word >> 6) & 0xFF)
	switch modeOf(op) {
	case ModeABx, ModeAsBx:
		bx := int(word >> 14)
		return Instruction{Op: op, A: a, B: bx}
	default:
		c := int((word >> 14) & 0x1FF)
		b := int((word >> 23) & 0x1FF)
		return Instruction{Op: op, A: a, B: b, C: c}
	}
}
