// Package value implements the Lua 5.1 tagged value union (component A of
// the core: §3.1, §4.A of the spec).
//
// The representation follows the teacher's pattern in pkg/vm/value.go of
// nooga-paserati: a small fixed-size struct carrying a type tag plus an
// unsafe.Pointer payload for heap-allocated variants, and a float64 field
// for the numeric variant so numbers never allocate.
package value

import (
	"math"
	"unsafe"

	"luacore/pkg/gc"
)

// Type is the tag discriminating a Value's active variant.
type Type uint8

const (
	TypeNil Type = iota
	TypeBoolean
	TypeNumber
	TypeString
	TypeTable
	TypeFunction
	TypeUserdata
	TypeThread
	TypeLightUserdata
)

func (t Type) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	case TypeUserdata:
		return "userdata"
	case TypeThread:
		return "thread"
	case TypeLightUserdata:
		return "userdata"
	default:
		return "<unknown type>"
	}
}

// Value is the tagged union described by spec §3.1. Booleans and numbers
// are stored inline (num/b) so the empty string and true/false never
// allocate on the heap; every reference-identity variant stores an
// unsafe.Pointer to its heap object (or, for LightUserdata, a raw host
// pointer that is not itself GC-managed).
type Value struct {
	typ Type
	num float64
	b   bool
	obj unsafe.Pointer
}

// Nil is the singleton nil value.
var Nil = Value{typ: TypeNil}

// True and False are the two boolean values.
var (
	True  = Value{typ: TypeBoolean, b: true}
	False = Value{typ: TypeBoolean, b: false}
)

// Bool returns True or False for the given bool without allocating.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Number constructs a Number value.
func Number(n float64) Value {
	return Value{typ: TypeNumber, num: n}
}

// FromString constructs a String value from an already-interned handle.
// Callers outside this package obtain interned strings through an
// Interner (interner.go), never by constructing the payload directly.
func FromString(s *StringObject) Value {
	return Value{typ: TypeString, obj: unsafe.Pointer(s)}
}

// FromObject wraps an arbitrary heap object pointer with the given tag.
// Used by the vm/table/closure/coroutine packages, which own the concrete
// object types but depend on this package for the Value envelope.
func FromObject(typ Type, obj unsafe.Pointer) Value {
	return Value{typ: typ, obj: obj}
}

// LightUserdata wraps a raw host pointer that is not tracked by the GC.
func LightUserdata(p unsafe.Pointer) Value {
	return Value{typ: TypeLightUserdata, obj: p}
}

func (v Value) Type() Type { return v.typ }

func (v Value) IsNil() bool            { return v.typ == TypeNil }
func (v Value) IsBoolean() bool        { return v.typ == TypeBoolean }
func (v Value) IsNumber() bool         { return v.typ == TypeNumber }
func (v Value) IsString() bool         { return v.typ == TypeString }
func (v Value) IsTable() bool          { return v.typ == TypeTable }
func (v Value) IsFunction() bool       { return v.typ == TypeFunction }
func (v Value) IsUserdata() bool       { return v.typ == TypeUserdata }
func (v Value) IsThread() bool         { return v.typ == TypeThread }
func (v Value) IsLightUserdata() bool  { return v.typ == TypeLightUserdata }
func (v Value) IsGCObject() bool {
	switch v.typ {
	case TypeString, TypeTable, TypeFunction, TypeUserdata, TypeThread:
		return true
	default:
		return false
	}
}

// Pointer returns the raw object pointer for heap-object variants. Panics
// (a caller bug, per §4.A "all access is through typed accessors") if the
// value is not heap-backed.
func (v Value) Pointer() unsafe.Pointer {
	if !v.IsGCObject() && v.typ != TypeLightUserdata {
		panic("value: Pointer() called on non-object Value of type " + v.typ.String())
	}
	return v.obj
}

// AsBool returns the boolean payload. Panics if the tag doesn't match
// (§4.A: "typed accessors that fail with TypeError when tag does not
// match" — this package has no error type of its own, so it panics; the
// vm package wraps these in vmerr.TypeError at dispatch sites).
func (v Value) AsBool() bool {
	if v.typ != TypeBoolean {
		panic("value: AsBool() called on non-boolean Value")
	}
	return v.b
}

func (v Value) AsNumber() float64 {
	if v.typ != TypeNumber {
		panic("value: AsNumber() called on non-number Value")
	}
	return v.num
}

func (v Value) AsStringObject() *StringObject {
	if v.typ != TypeString {
		panic("value: AsStringObject() called on non-string Value")
	}
	return (*StringObject)(v.obj)
}

// Truthy implements Lua's truthiness rule (§3.1): only nil and false are
// falsy; everything else, including 0 and the empty string, is truthy.
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeNil:
		return false
	case TypeBoolean:
		return v.b
	default:
		return true
	}
}

// TypeName returns the Lua-visible type name (as consumed by type() and
// error messages).
func (v Value) TypeName() string { return v.typ.String() }

// RawEqual implements §4.A's raw_equal: tag match plus payload match by
// the identity rule of §3.1. NaN is never equal to itself; -0 and 0
// compare equal (ordinary float equality, no normalization needed since
// Go's == on float64 already treats -0 == 0).
func RawEqual(a, b Value) bool {
	if a.typ != b.typ {
		// Lua additionally allows no cross-tag equality; mirrors spec.
		return false
	}
	switch a.typ {
	case TypeNil:
		return true
	case TypeBoolean:
		return a.b == b.b
	case TypeNumber:
		if math.IsNaN(a.num) || math.IsNaN(b.num) {
			return false
		}
		return a.num == b.num
	case TypeString:
		// Interning guarantees pointer equality iff byte-equality (§4.A, I7).
		return a.obj == b.obj
	default:
		// Reference types: identity by handle.
		return a.obj == b.obj
	}
}

// objectCasters lets the vm package's heap object types (TableObject,
// ClosureObject, CoroutineObject, UserdataObject) register how to turn
// their Type tag's raw pointer back into a gc.Object, without this
// package importing vm (which would be a cycle: vm already imports
// value). Each concrete type registers itself via RegisterObjectCaster
// in an init() in the package that defines it.
var objectCasters [TypeLightUserdata + 1]func(unsafe.Pointer) gc.Object

// RegisterObjectCaster installs the gc.Object conversion for t. Called
// from vm package init()s and from this package's own init for strings.
func RegisterObjectCaster(t Type, caster func(unsafe.Pointer) gc.Object) {
	objectCasters[t] = caster
}

// AsGCObject returns v's underlying heap object as a gc.Object, for GC
// tracing (§4.A). Returns false for non-heap values or for a heap type
// whose owning package hasn't registered a caster yet.
func AsGCObject(v Value) (gc.Object, bool) {
	if !v.IsGCObject() {
		return nil, false
	}
	caster := objectCasters[v.typ]
	if caster == nil {
		return nil, false
	}
	return caster(v.obj), true
}

func init() {
	RegisterObjectCaster(TypeString, func(p unsafe.Pointer) gc.Object { return (*StringObject)(p) })
}

// StringObject is the heap object backing a String value: immutable
// bytes, cached length, cached hash (§3.2). It embeds gc.Header so the
// collector can manage it like any other heap object; strings have no
// outgoing GC references, so Trace is a no-op.
type StringObject struct {
	gc.Header
	Bytes []byte
	hash  uint64
}

func (s *StringObject) String() string { return string(s.Bytes) }
func (s *StringObject) Len() int        { return len(s.Bytes) }
func (s *StringObject) Hash() uint64    { return s.hash }
func (s *StringObject) Kind() string    { return "string" }
func (s *StringObject) Trace(func(gc.Object)) {}
func (s *StringObject) Size() int       { return 24 + len(s.Bytes) }

// newRawStringObject is used only by the interner (interner.go) to build
// the canonical object for a byte sequence before interning it.
func newRawStringObject(b []byte) *StringObject {
	return &StringObject{Bytes: b, hash: fnv1a(b)}
}

func fnv1a(b []byte) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= prime64
	}
	return h
}
