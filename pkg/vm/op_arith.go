package vm

import (
	"math"
	"strconv"
	"strings"

	"luacore/pkg/bytecode"
	"luacore/pkg/value"
	"luacore/pkg/vmerr"
)

// toNumber implements §4.F's "string-to-number coercion when both
// operands are numeric strings" for arithmetic: a Number passes through
// unchanged, a String is parsed per Lua's numeric-literal grammar
// (decimal or 0x-hex, optional sign/fraction/exponent), anything else
// fails.
func toNumber(v value.Value) (float64, bool) {
	switch v.Type() {
	case value.TypeNumber:
		return v.AsNumber(), true
	case value.TypeString:
		s := strings.TrimSpace(v.AsStringObject().String())
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return n, true
		}
		if i, err := strconv.ParseInt(s, 0, 64); err == nil {
			return float64(i), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// arithMetaName maps an arithmetic opcode to the metamethod name
// consulted when plain numeric coercion fails (§4.A metatable, §4.F
// "otherwise consult __add/... metamethods").
func arithMetaName(op bytecode.OpCode) string {
	switch op {
	case bytecode.OpAdd:
		return "__add"
	case bytecode.OpSub:
		return "__sub"
	case bytecode.OpMul:
		return "__mul"
	case bytecode.OpDiv:
		return "__div"
	case bytecode.OpMod:
		return "__mod"
	case bytecode.OpPow:
		return "__pow"
	case bytecode.OpUnm:
		return "__unm"
	default:
		return ""
	}
}

// arith implements ADD/SUB/MUL/DIV/MOD/POW/UNM (§4.F "Arithmetic"): plain
// float64 math when both operands coerce to numbers, else a single
// metamethod lookup on either operand (reference Lua 5.1 tries the first
// operand's metatable, then the second's).
func (i *Interp) arith(op bytecode.OpCode, a, b value.Value) (value.Value, error) {
	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			return value.Number(applyArith(op, an, bn)), nil
		}
	}
	name := arithMetaName(op)
	if mm, ok := i.lookupBinMeta(a, b, name); ok {
		results, err := i.callValue(i.current, mm, []value.Value{a, b})
		if err != nil {
			return value.Nil, err
		}
		return firstOrNil(results), nil
	}
	bad := a
	if _, ok := toNumber(a); ok {
		bad = b
	}
	return value.Nil, vmerr.NewTypeError("attempt to perform arithmetic on a %s value", bad.TypeName())
}

func applyArith(op bytecode.OpCode, a, b float64) float64 {
	switch op {
	case bytecode.OpAdd:
		return a + b
	case bytecode.OpSub:
		return a - b
	case bytecode.OpMul:
		return a * b
	case bytecode.OpDiv:
		return a / b
	case bytecode.OpMod:
		return a - math.Floor(a/b)*b
	case bytecode.OpPow:
		return math.Pow(a, b)
	case bytecode.OpUnm:
		return -a
	default:
		return 0
	}
}

// length implements LEN (§4.F "#"): Table uses the border algorithm
// (table.go Len), String uses byte length, everything else consults
// __len or raises.
func (i *Interp) length(v value.Value) (value.Value, error) {
	switch v.Type() {
	case value.TypeString:
		return value.Number(float64(v.AsStringObject().Len())), nil
	case value.TypeTable:
		t := (*TableObject)(v.Pointer())
		if mt := t.Metatable(); mt != nil {
			if mm := mt.Get(i.interner.InternString("__len")); !mm.IsNil() {
				results, err := i.callValue(i.current, mm, []value.Value{v})
				if err != nil {
					return value.Nil, err
				}
				return firstOrNil(results), nil
			}
		}
		return value.Number(float64(t.Len())), nil
	default:
		if mt := metatableOf(v); mt != nil {
			if mm := mt.Get(i.interner.InternString("__len")); !mm.IsNil() {
				results, err := i.callValue(i.current, mm, []value.Value{v})
				if err != nil {
					return value.Nil, err
				}
				return firstOrNil(results), nil
			}
		}
		return value.Nil, vmerr.NewTypeError("attempt to get length of a %s value", v.TypeName())
	}
}

// concat implements CONCAT (§4.F "String"): left-to-right concatenation
// of a contiguous register range, coercing numbers to their string form,
// falling back to a chain of __concat metamethod calls for any
// non-string/non-number operand, per reference Lua's right-to-left
// metamethod-invocation order (folding pairwise from the right preserves
// left-to-right textual order in the common all-coercible case).
func (i *Interp) concat(slice []value.Value) (value.Value, error) {
	if len(slice) == 0 {
		return i.interner.InternString(""), nil
	}
	acc := slice[len(slice)-1]
	for idx := len(slice) - 2; idx >= 0; idx-- {
		left := slice[idx]
		v, err := i.concat2(left, acc)
		if err != nil {
			return value.Nil, err
		}
		acc = v
	}
	return acc, nil
}

func (i *Interp) concat2(a, b value.Value) (value.Value, error) {
	as, aok := coerceConcatString(a)
	bs, bok := coerceConcatString(b)
	if aok && bok {
		return i.interner.InternString(as + bs), nil
	}
	if mm, ok := i.lookupBinMeta(a, b, "__concat"); ok {
		results, err := i.callValue(i.current, mm, []value.Value{a, b})
		if err != nil {
			return value.Nil, err
		}
		return firstOrNil(results), nil
	}
	bad := a
	if aok {
		bad = b
	}
	return value.Nil, vmerr.NewTypeError("attempt to concatenate a %s value", bad.TypeName())
}

func coerceConcatString(v value.Value) (string, bool) {
	switch v.Type() {
	case value.TypeString:
		return v.AsStringObject().String(), true
	case value.TypeNumber:
		return formatNumber(v.AsNumber()), true
	default:
		return "", false
	}
}

// formatNumber renders a Lua number the way tostring/concat does:
// integral values print without a decimal point (Lua 5.1 has one numeric
// type, but %.14g-style formatting is what the reference interpreter's
// LUAI_NUMFMT produces for whole floats too).
func formatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', 14, 64)
}

// equals implements EQ (§4.F): raw_equal for any tag mismatch or
// non-table/non-userdata operand; __eq only applies "if both operands
// are tables/userdata with __eq metamethod of the same type" (reference
// Lua 5.1 additionally requires the same metamethod on both sides to
// even be consulted — we use the first operand's, matching the common
// single-metatable-per-type case).
func (i *Interp) equals(a, b value.Value) (bool, error) {
	if value.RawEqual(a, b) {
		return true, nil
	}
	if a.Type() != b.Type() || (a.Type() != value.TypeTable && a.Type() != value.TypeUserdata) {
		return false, nil
	}
	mm, ok := i.lookupBinMeta(a, b, "__eq")
	if !ok {
		return false, nil
	}
	results, err := i.callValue(i.current, mm, []value.Value{a, b})
	if err != nil {
		return false, err
	}
	return firstOrNil(results).Truthy(), nil
}

// less/lessEqual implement LT/LE (§4.F): numeric/string ordering directly,
// else a __lt/__le metamethod chain.
func (i *Interp) less(a, b value.Value) (bool, error) {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() < b.AsNumber(), nil
	}
	if a.IsString() && b.IsString() {
		return a.AsStringObject().String() < b.AsStringObject().String(), nil
	}
	if mm, ok := i.lookupBinMeta(a, b, "__lt"); ok {
		results, err := i.callValue(i.current, mm, []value.Value{a, b})
		if err != nil {
			return false, err
		}
		return firstOrNil(results).Truthy(), nil
	}
	return false, vmerr.NewTypeError("attempt to compare two %s values", a.TypeName())
}

func (i *Interp) lessEqual(a, b value.Value) (bool, error) {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() <= b.AsNumber(), nil
	}
	if a.IsString() && b.IsString() {
		return a.AsStringObject().String() <= b.AsStringObject().String(), nil
	}
	if mm, ok := i.lookupBinMeta(a, b, "__le"); ok {
		results, err := i.callValue(i.current, mm, []value.Value{a, b})
		if err != nil {
			return false, err
		}
		return firstOrNil(results).Truthy(), nil
	}
	return false, vmerr.NewTypeError("attempt to compare two %s values", a.TypeName())
}

// lookupBinMeta consults a's metatable then b's for name, the reference
// Lua order for binary-operator metamethod resolution.
func (i *Interp) lookupBinMeta(a, b value.Value, name string) (value.Value, bool) {
	key := i.interner.InternString(name)
	if mt := metatableOf(a); mt != nil {
		if mm := mt.Get(key); !mm.IsNil() {
			return mm, true
		}
	}
	if mt := metatableOf(b); mt != nil {
		if mm := mt.Get(key); !mm.IsNil() {
			return mm, true
		}
	}
	return value.Nil, false
}

func firstOrNil(vs []value.Value) value.Value {
	if len(vs) == 0 {
		return value.Nil
	}
	return vs[0]
}
