package vm

import (
	"unsafe"

	"luacore/pkg/gc"
	"luacore/pkg/value"
)

// init wires this package's heap object types into value.AsGCObject's
// caster registry (see pkg/value/value.go) so GC tracing can recover a
// gc.Object from a Value's raw pointer without pkg/value importing vm
// (which would cycle back through vm's own import of value).
func init() {
	value.RegisterObjectCaster(value.TypeTable, func(p unsafe.Pointer) gc.Object { return (*TableObject)(p) })
	value.RegisterObjectCaster(value.TypeFunction, func(p unsafe.Pointer) gc.Object { return (*ClosureObject)(p) })
	value.RegisterObjectCaster(value.TypeUserdata, func(p unsafe.Pointer) gc.Object { return (*UserdataObject)(p) })
	value.RegisterObjectCaster(value.TypeThread, func(p unsafe.Pointer) gc.Object { return (*CoroutineObject)(p) })
}
