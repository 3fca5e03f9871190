package bytecode

// FunctionPrototype is the immutable compiled representation of one Lua
// function (§3.2, §GLOSSARY "Prototype"). It is produced by the external
// compiler and consumed — never mutated — by the VM; a Closure pairs one
// FunctionPrototype with a vector of upvalue handles (§3.2 "Closure").
type FunctionPrototype struct {
	Source         string
	LineDefined    int
	LastLineDefined int
	NumParams      int
	NumUpvalues    int
	IsVararg       bool
	MaxStackSize   int // the compiler's declared max register count (§3.4 I5)

	Code      []Instruction
	Constants []Constant
	Protos    []*FunctionPrototype

	// Upvalues describes how each of this prototype's upvalues is
	// captured (§3.3, §4.F OpClosure): from a local register of the
	// immediately enclosing function, or from one of the enclosing
	// function's own upvalues. Index parallels UpvalueNames when debug
	// info is present. This runtime records capture descriptors
	// directly on the child prototype rather than via the reference
	// implementation's MOVE/GETUPVAL pseudo-instructions following
	// CLOSURE — an equivalent encoding under round-trip law L5, simpler
	// for a hand-rolled loader to consume.
	Upvalues []UpvalueDesc

	// Debug info, all optional per §6.1 ("modulo optional debug info").
	LineInfo     []int32 // one entry per instruction
	LocVars      []LocVar
	UpvalueNames []string
}

// UpvalueDesc is one entry of FunctionPrototype.Upvalues.
type UpvalueDesc struct {
	FromParentLocal bool // true: capture parent's register ParentIndex; false: capture parent's upvalue ParentIndex
	ParentIndex     int
}

// LocVar is one entry of the local-variable debug table (§6.1).
type LocVar struct {
	Name    string
	StartPC int32
	EndPC   int32
}

// ConstantTag discriminates the payload kind of a Constant. Lua 5.1's
// constant pool only ever holds Nil, Boolean, Number, or String (§3.1) —
// never a Table/Function/Thread/Userdata; those are built at runtime.
type ConstantTag uint8

const (
	ConstNil ConstantTag = iota
	ConstBool
	ConstNumber
	ConstString
)

// Constant is a persisted constant-pool entry. It intentionally does not
// reference pkg/value.Value: the bytecode package has no Interpreter
// State to intern strings against, and a FunctionPrototype may be shared
// across closures loaded into different states (§3.2 "Ownership: unique
// (shared by closures)"). The VM's loader (pkg/vm/loader.go) resolves
// each Constant into a state-local value.Value — interning strings —
// exactly once per load.
type Constant struct {
	Tag ConstantTag
	B   bool
	N   float64
	S   string
}

func Nil() Constant           { return Constant{Tag: ConstNil} }
func Bool(b bool) Constant    { return Constant{Tag: ConstBool, B: b} }
func Number(n float64) Constant { return Constant{Tag: ConstNumber, N: n} }
func Str(s string) Constant   { return Constant{Tag: ConstString, S: s} }
