package vm

import (
	"luacore/pkg/bytecode"
	"luacore/pkg/value"
)

// Load resolves a compiler-produced FunctionPrototype into a top-level
// Closure ready to run (§6.1's loader half of "chunk in, FunctionPrototype
// out", completed here by turning constants into state-local interned
// Values — the resolution step pkg/bytecode.Constant's doc comment
// defers to this package). The top-level closure has no upvalues: Lua
// 5.1 top-level code reaches globals through OpGetGlobal/OpSetGlobal
// directly, not through a captured _ENV (that's a 5.2+ redesign, out of
// scope per §1).
func (i *Interp) Load(proto *bytecode.FunctionPrototype) *ClosureObject {
	return i.loadClosure(proto, nil)
}

// loadClosure builds a closure over proto, reusing a memoized constant
// resolution per prototype (every instantiation of the same prototype —
// e.g. one per call to its enclosing function — shares identical
// resolved constants; only Upvalues differs per instantiation).
func (i *Interp) loadClosure(proto *bytecode.FunctionPrototype, upvalues []*Upvalue) *ClosureObject {
	consts, ok := i.constCache[proto]
	if !ok {
		consts = make([]value.Value, len(proto.Constants))
		for idx, k := range proto.Constants {
			consts[idx] = i.resolveConstant(k)
		}
		i.constCache[proto] = consts
	}
	cl := &ClosureObject{Proto: proto, Upvalues: upvalues, Constant: consts}
	i.gcc.Register(cl, cl.Size())
	return cl
}

func (i *Interp) resolveConstant(k bytecode.Constant) value.Value {
	switch k.Tag {
	case bytecode.ConstNil:
		return value.Nil
	case bytecode.ConstBool:
		return value.Bool(k.B)
	case bytecode.ConstNumber:
		return value.Number(k.N)
	case bytecode.ConstString:
		return i.interner.InternString(k.S)
	default:
		return value.Nil
	}
}
