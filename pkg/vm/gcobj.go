package vm

import "luacore/pkg/gc"

// gcHeaderMixin embeds the collector's header into every heap object
// type this package defines (ClosureObject, TableObject, CoroutineObject,
// UserdataObject), the same dependency-inversion shape pkg/value uses for
// StringObject: pkg/gc stays a leaf package, and every GC-managed type
// here satisfies gc.Object by embedding gc.Header directly.
type gcHeaderMixin struct {
	gc.Header
}
