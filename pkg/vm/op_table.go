package vm

import (
	"luacore/pkg/value"
	"luacore/pkg/vmerr"
)

// index implements GETTABLE/SELF's table_index (§4.F): a direct raw Get
// on a Table that holds the key, else a chase through __index (a table,
// recursed into, or a function, called with (obj, key)), bounded by
// MaxMetamethodChainDepth the same way __call is (§4.F "bounded to
// prevent infinite loops").
func (i *Interp) index(obj, key value.Value) (value.Value, error) {
	for depth := 0; ; depth++ {
		if err := checkMetamethodDepth(depth); err != nil {
			return value.Nil, err
		}
		if obj.IsTable() {
			t := (*TableObject)(obj.Pointer())
			if v := t.Get(key); !v.IsNil() {
				return v, nil
			}
			mt := t.Metatable()
			if mt == nil {
				return value.Nil, nil
			}
			idx := mt.Get(i.interner.InternString("__index"))
			if idx.IsNil() {
				return value.Nil, nil
			}
			if idx.IsFunction() {
				results, err := i.callValue(i.current, idx, []value.Value{obj, key})
				if err != nil {
					return value.Nil, err
				}
				return firstOrNil(results), nil
			}
			obj = idx
			continue
		}
		mt := metatableOf(obj)
		if mt == nil {
			return value.Nil, vmerr.NewTypeError("attempt to index a %s value", obj.TypeName())
		}
		idx := mt.Get(i.interner.InternString("__index"))
		if idx.IsNil() {
			return value.Nil, vmerr.NewTypeError("attempt to index a %s value", obj.TypeName())
		}
		if idx.IsFunction() {
			results, err := i.callValue(i.current, idx, []value.Value{obj, key})
			if err != nil {
				return value.Nil, err
			}
			return firstOrNil(results), nil
		}
		obj = idx
	}
}

// newindex implements SETTABLE (§4.F): a direct raw Set when the table
// already holds key or carries no __newindex, else a chase through
// __newindex (a table, recursed into, or a function called with
// (obj, key, val)), bounded the same way index is.
func (i *Interp) newindex(obj, key, val value.Value) error {
	for depth := 0; ; depth++ {
		if err := checkMetamethodDepth(depth); err != nil {
			return err
		}
		if obj.IsTable() {
			t := (*TableObject)(obj.Pointer())
			if !t.Get(key).IsNil() {
				return t.Set(key, val)
			}
			mt := t.Metatable()
			if mt == nil {
				return t.Set(key, val)
			}
			ni := mt.Get(i.interner.InternString("__newindex"))
			if ni.IsNil() {
				return t.Set(key, val)
			}
			if ni.IsFunction() {
				_, err := i.callValue(i.current, ni, []value.Value{obj, key, val})
				return err
			}
			obj = ni
			continue
		}
		mt := metatableOf(obj)
		if mt == nil {
			return vmerr.NewTypeError("attempt to index a %s value", obj.TypeName())
		}
		ni := mt.Get(i.interner.InternString("__newindex"))
		if ni.IsNil() {
			return vmerr.NewTypeError("attempt to index a %s value", obj.TypeName())
		}
		if ni.IsFunction() {
			_, err := i.callValue(i.current, ni, []value.Value{obj, key, val})
			return err
		}
		obj = ni
	}
}
