// Package bytecode defines the wire format and in-memory instruction
// encoding consumed from the external compiler (§6.1) — the boundary
// contract named by spec.md §1 as the lexer/parser/compiler's output.
// This package does not compile Lua source; it only decodes and
// re-encodes what a compiler produced.
//
// Style grounded on the teacher's pkg/bytecode/bytecode.go: an iota
// OpCode enum, a String() method via switch for disassembly/diagnostics,
// and a doc comment on each opcode naming its operand layout.
package bytecode

// OpCode is one of the 38 Lua 5.1 opcodes (§4.F).
type OpCode uint8

const (
	OpMove       OpCode = iota // A B: R(A) := R(B)
	OpLoadK                    // A Bx: R(A) := K(Bx)
	OpLoadBool                 // A B C: R(A) := bool(B); if C != 0 then skip next instruction
	OpLoadNil                  // A B: R(A), ..., R(B) := nil
	OpGetUpval                 // A B: R(A) := Upvalue[B]
	OpGetGlobal                // A Bx: R(A) := Globals[K(Bx)]
	OpGetTable                 // A B C: R(A) := R(B)[RK(C)]
	OpSetGlobal                // A Bx: Globals[K(Bx)] := R(A)
	OpSetUpval                 // A B: Upvalue[B] := R(A)
	OpSetTable                 // A B C: R(A)[RK(B)] := RK(C)
	OpNewTable                 // A B C: R(A) := new table sized by B (array hint), C (hash hint)
	OpSelf                     // A B C: R(A+1) := R(B); R(A) := R(B)[RK(C)]
	OpAdd                      // A B C: R(A) := RK(B) + RK(C)
	OpSub                      // A B C: R(A) := RK(B) - RK(C)
	OpMul                      // A B C: R(A) := RK(B) * RK(C)
	OpDiv                      // A B C: R(A) := RK(B) / RK(C)
	OpMod                      // A B C: R(A) := RK(B) mod RK(C)
	OpPow                      // A B C: R(A) := RK(B) ^ RK(C)
	OpUnm                      // A B: R(A) := -R(B)
	OpNot                      // A B: R(A) := not R(B)
	OpLen                      // A B: R(A) := #R(B)
	OpConcat                   // A B C: R(A) := R(B).. ... ..R(C)
	OpJmp                      // sBx: pc += sBx
	OpEq                       // A B C: if (RK(B) == RK(C)) != bool(A) then pc++
	OpLt                       // A B C: if (RK(B) <  RK(C)) != bool(A) then pc++
	OpLe                       // A B C: if (RK(B) <= RK(C)) != bool(A) then pc++
	OpTest                     // A C: if bool(R(A)) != bool(C) then pc++
	OpTestSet                  // A B C: if bool(R(B)) == bool(C) then R(A) := R(B) else pc++
	OpCall                     // A B C: call R(A) with B-1 args (0 = all up to top); C-1 results (0 = all)
	OpTailCall                 // A B C: tail-call R(A) with B-1 args, reusing the current frame
	OpReturn                   // A B: return R(A), ..., R(A+B-2) (B=0: through stack top)
	OpForLoop                  // A sBx: R(A) += R(A+2); if within limit, R(A+3) := R(A), pc += sBx
	OpForPrep                  // A sBx: R(A) -= R(A+2); pc += sBx
	OpTForLoop                 // A C: call R(A)(R(A+1), R(A+2)); if R(A+3) ~= nil then R(A+2):=R(A+3) else pc++
	OpSetList                  // A B C: R(A)[(C-1)*FPF+i] := R(A+i), 1<=i<=B
	OpClose                    // A: close all upvalues with stack index >= base+A
	OpClosure                  // A Bx: R(A) := closure(KPROTO[Bx]); captures come from KPROTO[Bx].Upvalues, no pseudo-instructions follow
	OpVararg                   // A B: R(A), ..., R(A+B-2) := varargs (B=0: all, adjust top)
)

// opNames indexes directly by OpCode; kept as a plain slice (not a
// switch) because there are no gaps in the enum and disassembly is a
// hot-ish diagnostic path when TraceDispatch is enabled.
var opNames = [...]string{
	"MOVE", "LOADK", "LOADBOOL", "LOADNIL", "GETUPVAL", "GETGLOBAL",
	"GETTABLE", "SETGLOBAL", "SETUPVAL", "SETTABLE", "NEWTABLE", "SELF",
	"ADD", "SUB", "MUL", "DIV", "MOD", "POW", "UNM", "NOT", "LEN",
	"CONCAT", "JMP", "EQ", "LT", "LE", "TEST", "TESTSET", "CALL",
	"TAILCALL", "RETURN", "FORLOOP", "FORPREP", "TFORLOOP", "SETLIST",
	"CLOSE", "CLOSURE", "VARARG",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "UNKNOWN"
}

// NumOpCodes is the count of defined opcodes (38, per §4.F).
const NumOpCodes = int(OpVararg) + 1

// FieldsPerFlush is FPF, the SETLIST batch size (§GLOSSARY).
const FieldsPerFlush = 50

// MaxRegisters is the number of registers an 8-bit A/B/C operand slot can
// address (indices 0..255).
const MaxRegisters = 256

// rkConstantBit, when set on a 9-bit B or C operand, selects the constant
// pool instead of a register (the "RK operand", §GLOSSARY).
const rkConstantBit = 1 << 8

// IsConstant reports whether an RK-encoded operand names a constant-pool
// entry rather than a register.
func IsConstant(rk int) bool { return rk&rkConstantBit != 0 }

// ConstantIndex extracts the constant-pool index from an RK operand for
// which IsConstant is true.
func ConstantIndex(rk int) int { return rk &^ rkConstantBit }

// RKRegister encodes a plain register index as an RK operand.
func RKRegister(reg int) int { return reg &^ rkConstantBit }

// RKConstant encodes a constant-pool index as an RK operand.
func RKConstant(idx int) int { return idx | rkConstantBit }
