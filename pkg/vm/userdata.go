package vm

import (
	"luacore/pkg/gc"
)

// UserdataObject wraps an opaque host-owned payload (§3.2 "Userdata",
// §6.2 host contract): the VM never inspects Data, only threads it
// through and attaches a metatable for operator overloading. Once passed
// to Collector.RegisterFinalizable (NewUserdata does not do this), its
// Finalizer (if set) is run by the GC under the one-time-reprieve rule
// (§4.D, §GLOSSARY "Finalizer").
type UserdataObject struct {
	gcHeaderMixin
	Data      any
	meta      *TableObject
	Finalizer func(*UserdataObject) error
}

func NewUserdata(gcc *gc.Collector, data any) *UserdataObject {
	u := &UserdataObject{Data: data}
	gcc.Register(u, u.Size())
	return u
}

func (u *UserdataObject) Kind() string { return "userdata" }
func (u *UserdataObject) Size() int    { return 16 }

func (u *UserdataObject) Trace(visit func(gc.Object)) {
	if u.meta != nil {
		visit(u.meta)
	}
}

func (u *UserdataObject) Metatable() *TableObject    { return u.meta }
func (u *UserdataObject) SetMetatable(m *TableObject) { u.meta = m }

// RunFinalizer implements gc.Finalizable (§4.D "Finalizers"): errors
// raised by the finalizer are caught and discarded, matching the
// conservative resolution recorded for the Open Question on finalizer
// resurrection.
func (u *UserdataObject) RunFinalizer() error {
	if u.Finalizer == nil {
		return nil
	}
	return u.Finalizer(u)
}
