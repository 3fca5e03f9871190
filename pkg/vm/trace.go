package vm

import (
	"fmt"
	"strings"
)

// CaptureStackTrace renders the coroutine's current call stack as a
// human-readable multi-line dump, innermost frame first, grounded on the
// teacher's vm.CaptureStackTrace() (called from call.go's stack-overflow
// paths and from the builtin error constructors to populate an Error's
// "stack" field). The definition itself wasn't present in the retrieved
// snapshot, only its call sites and output usage ("Stack: %s", embedded
// in a "=== VM Stack (overflow) ===" banner) — this reproduces that
// shape against this runtime's own Frame/FunctionPrototype fields.
func (c *CoroutineObject) CaptureStackTrace() string {
	if len(c.frames) == 0 {
		return "\t(no active frames)"
	}
	var b strings.Builder
	for idx := len(c.frames) - 1; idx >= 0; idx-- {
		f := c.frames[idx]
		name := "?"
		source := "?"
		line := 0
		if f.Closure != nil {
			if f.Closure.Name != "" {
				name = f.Closure.Name
			}
			if f.Closure.IsNative() {
				source = "[native code]"
			} else if p := f.Closure.Proto; p != nil {
				if p.Source != "" {
					source = p.Source
				}
				if f.PC >= 0 && f.PC < len(p.LineInfo) {
					line = int(p.LineInfo[f.PC])
				}
			}
		}
		tail := ""
		if f.IsTailCall {
			tail = " (tail call)"
		}
		fmt.Fprintf(&b, "\tat %s (%s:%d)%s\n", name, source, line, tail)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
