package vm

import (
	"math"
	"sort"

	"luacore/pkg/gc"
	"luacore/pkg/value"
	"luacore/pkg/vmerr"
)

// tableEntry keeps the original key Value alongside its value, since
// hashKey (below) erases reference-typed keys down to a bare pointer for
// Go map comparability — Next, Trace, and the weak-table sweep all need
// the real key back.
type tableEntry struct {
	key value.Value
	val value.Value
}

// TableObject is the Lua table (§3.2, §4.E): a hybrid of a dense array
// part (1-based, for the common sequence use) and a hash part for
// everything else. Grounded on the teacher's PlainObject
// (pkg/vm/object.go) for the general shape of "reference-identity heap
// object wrapping Go-native storage plus a metatable slot", generalized
// here to Lua's array+hash hybrid and raw-value keying (PlainObject keys
// by string/symbol property name; a Lua table keys by any non-nil,
// non-NaN value).
type TableObject struct {
	gcHeaderMixin
	array []value.Value
	hash  map[hashKey]tableEntry
	meta  *TableObject

	mode weakMode
	gcc  *gc.Collector
}

type weakMode uint8

const (
	weakNone weakMode = iota
	weakKeys
	weakValues
	weakBoth
)

func (t *TableObject) Kind() string { return "table" }

// Trace marks the table's strongly-held references: in weak mode, the
// weak side (key and/or value, per §4.D) is excluded from strong
// tracing and left to SweepWeak instead; a key surviving only because
// some *other* strong path reaches it is fine — that's exactly what
// ephemeron semantics require.
func (t *TableObject) Trace(visit func(gc.Object)) {
	traceKeys := t.mode != weakKeys && t.mode != weakBoth
	traceVals := t.mode != weakValues && t.mode != weakBoth

	for _, v := range t.array {
		traceValue(v, visit)
	}
	for _, e := range t.hash {
		if traceKeys {
			traceValue(e.key, visit)
		}
		if traceVals {
			traceValue(e.val, visit)
		}
	}
	if t.meta != nil {
		visit(t.meta)
	}
}

func (t *TableObject) Size() int {
	return 48 + len(t.array)*16 + len(t.hash)*40
}

// NewTable allocates and registers an empty table with the collector
// (§4.E "Construction: NewTable(nArray, nHash hints)").
func NewTable(gcc *gc.Collector, nArray, nHash int) *TableObject {
	t := &TableObject{
		hash: make(map[hashKey]tableEntry, nHash),
		gcc:  gcc,
	}
	if nArray > 0 {
		t.array = make([]value.Value, 0, nArray)
	}
	gcc.Register(t, t.Size())
	return t
}

// hashKey is a comparable projection of a Value suitable as a Go map
// key. Numbers are stored as bit patterns so NaN (never equal to
// itself under raw_equal) simply has no valid key at all, matching
// §4.E's "NaN as table key: rawget returns nil, rawset errors".
type hashKey struct {
	typ value.Type
	num uint64
	b   bool
	obj uintptr
}

func toHashKey(v value.Value) (hashKey, bool) {
	switch v.Type() {
	case value.TypeNumber:
		n := v.AsNumber()
		if math.IsNaN(n) {
			return hashKey{}, false
		}
		if n == 0 {
			n = 0 // normalizes -0's distinct bit pattern to +0's
		}
		return hashKey{typ: value.TypeNumber, num: math.Float64bits(n)}, true
	case value.TypeBoolean:
		return hashKey{typ: value.TypeBoolean, b: v.AsBool()}, true
	case value.TypeNil:
		return hashKey{}, false
	default:
		return hashKey{typ: v.Type(), obj: uintptr(v.Pointer())}, true
	}
}

// arrayIndex reports the 1-based array slot a key denotes, if it is a
// positive integer-valued number — the condition under which Lua
// prefers the array part over the hash part (§4.E "Growth policy").
func arrayIndex(v value.Value) (int, bool) {
	if v.Type() != value.TypeNumber {
		return 0, false
	}
	n := v.AsNumber()
	i := int(n)
	if float64(i) != n || i < 1 {
		return 0, false
	}
	return i, true
}

// Get implements raw table indexing (no metamethods; §4.E rawget).
func (t *TableObject) Get(key value.Value) value.Value {
	if i, ok := arrayIndex(key); ok && i <= len(t.array) {
		return t.array[i-1]
	}
	hk, ok := toHashKey(key)
	if !ok {
		return value.Nil
	}
	if e, found := t.hash[hk]; found {
		return e.val
	}
	return value.Nil
}

// Set implements raw table assignment (rawset). Assigning nil removes
// the key entirely — Lua tables have no concept of a present-but-nil
// entry.
func (t *TableObject) Set(key value.Value, val value.Value) error {
	if key.IsNil() {
		return vmerr.NewTypeError("table index is nil")
	}
	if key.Type() == value.TypeNumber && math.IsNaN(key.AsNumber()) {
		return vmerr.NewTypeError("table index is NaN")
	}

	if i, ok := arrayIndex(key); ok {
		switch {
		case i <= len(t.array):
			t.array[i-1] = val
			if val.IsNil() && i == len(t.array) {
				t.shrinkArrayTail()
			}
			return t.barrier()
		case i == len(t.array)+1 && !val.IsNil():
			t.array = append(t.array, val)
			t.migrateFromHash()
			return t.barrier()
		}
	}

	hk, ok := toHashKey(key)
	if !ok {
		return vmerr.NewTypeError("invalid table key")
	}
	if val.IsNil() {
		delete(t.hash, hk)
		return nil
	}
	t.hash[hk] = tableEntry{key: key, val: val}
	return t.barrier()
}

func (t *TableObject) barrier() error {
	if t.gcc != nil {
		t.gcc.BarrierBackward(t)
	}
	return nil
}

// shrinkArrayTail drops trailing nils so Len's border search below never
// has to skip over them; called only right after a nil lands at the
// current array tail.
func (t *TableObject) shrinkArrayTail() {
	n := len(t.array)
	for n > 0 && t.array[n-1].IsNil() {
		n--
	}
	t.array = t.array[:n]
}

// migrateFromHash pulls any hash-part entries that now extend the array
// contiguously — the growth policy named in §4.E.
func (t *TableObject) migrateFromHash() {
	for {
		next := len(t.array) + 1
		hk, _ := toHashKey(value.Number(float64(next)))
		e, found := t.hash[hk]
		if !found {
			return
		}
		delete(t.hash, hk)
		t.array = append(t.array, e.val)
	}
}

// Len implements the `#` border operator (§4.E): any n where t[n]~=nil
// and t[n+1]==nil. The array part's own length is always such a border
// once shrinkArrayTail has run, so the hash-part probe below only
// matters for tables built entirely through hash-part integer keys
// (e.g. ones the compiler didn't route through SETLIST).
func (t *TableObject) Len() int {
	if len(t.array) > 0 {
		return len(t.array)
	}
	if len(t.hash) == 0 {
		return 0
	}
	i, j := 0, 1
	for {
		hk, _ := toHashKey(value.Number(float64(j)))
		if _, found := t.hash[hk]; !found {
			break
		}
		i = j
		j *= 2
		if j > 1<<30 {
			break
		}
	}
	for j-i > 1 {
		m := (i + j) / 2
		hk, _ := toHashKey(value.Number(float64(m)))
		if _, found := t.hash[hk]; found {
			i = m
		} else {
			j = m
		}
	}
	return i
}

// Next implements the host-facing `next` iterator (§6.3 "table
// construction/next iteration"): pass value.Nil to start, the previously
// returned key to continue. Traversal order is a deterministic function
// of the table's current key set (array indices first, then hash-part
// keys sorted by a total order over hashKey's fields) rather than Go's
// randomized map iteration, so repeated Next calls over an unmodified
// table visit every key exactly once — the guarantee reference Lua's
// `next` documents, without requiring this table to remember iterator
// state between calls.
func (t *TableObject) Next(key value.Value) (value.Value, value.Value, bool) {
	type kv struct{ k, v value.Value }
	order := make([]kv, 0, len(t.array)+len(t.hash))
	for idx, v := range t.array {
		if v.IsNil() {
			continue
		}
		order = append(order, kv{value.Number(float64(idx + 1)), v})
	}
	hkeys := make([]hashKey, 0, len(t.hash))
	for hk := range t.hash {
		hkeys = append(hkeys, hk)
	}
	sort.Slice(hkeys, func(i, j int) bool { return lessHashKey(hkeys[i], hkeys[j]) })
	for _, hk := range hkeys {
		e := t.hash[hk]
		order = append(order, kv{e.key, e.val})
	}

	if key.IsNil() {
		if len(order) == 0 {
			return value.Nil, value.Nil, false
		}
		return order[0].k, order[0].v, true
	}
	for idx, e := range order {
		if value.RawEqual(e.k, key) {
			if idx+1 < len(order) {
				return order[idx+1].k, order[idx+1].v, true
			}
			return value.Nil, value.Nil, false
		}
	}
	return value.Nil, value.Nil, false
}

// lessHashKey imposes an arbitrary but total order over hashKey so Next's
// hash-part traversal order is stable across calls regardless of Go's
// randomized map iteration order.
func lessHashKey(a, b hashKey) bool {
	if a.typ != b.typ {
		return a.typ < b.typ
	}
	if a.num != b.num {
		return a.num < b.num
	}
	if a.b != b.b {
		return !a.b
	}
	return a.obj < b.obj
}

// Metatable returns the table's metatable, or nil.
func (t *TableObject) Metatable() *TableObject { return t.meta }

// SetMetatable installs m as the table's metatable and, if m sets a
// __mode field, reconfigures this table's weakness (§4.D) and registers
// it with the collector as a gc.WeakContainer.
func (t *TableObject) SetMetatable(m *TableObject, interner *value.Interner) {
	t.meta = m
	t.mode = weakNone
	if m == nil {
		return
	}
	modeVal := m.Get(interner.InternString("__mode"))
	if !modeVal.IsString() {
		return
	}
	switch modeVal.AsStringObject().String() {
	case "k":
		t.mode = weakKeys
	case "v":
		t.mode = weakValues
	case "kv":
		t.mode = weakBoth
	}
	if t.mode != weakNone && t.gcc != nil {
		t.gcc.RegisterWeak(t)
	}
}

// SweepWeak implements gc.WeakContainer (§4.D): entries whose weak-mode
// side is unreachable (still "white" as of this sweep) are dropped. The
// collector calls this repeatedly during the atomic phase to reach the
// ephemeron fixpoint required for __mode="k" tables — removing one
// table's dead entry can be exactly what makes some other weak table's
// value collectible in turn.
func (t *TableObject) SweepWeak(isWhite func(gc.Object) bool) (changed bool) {
	if t.mode == weakNone {
		return false
	}
	checkKeys := t.mode == weakKeys || t.mode == weakBoth
	checkVals := t.mode == weakValues || t.mode == weakBoth

	for hk, e := range t.hash {
		dead := false
		if checkKeys {
			if o, ok := value.AsGCObject(e.key); ok && isWhite(o) {
				dead = true
			}
		}
		if !dead && checkVals {
			if o, ok := value.AsGCObject(e.val); ok && isWhite(o) {
				dead = true
			}
		}
		if dead {
			delete(t.hash, hk)
			changed = true
		}
	}
	return changed
}
