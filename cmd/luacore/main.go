// Command luacore runs a precompiled Lua 5.1 bytecode chunk (§6.1) on
// the core runtime. It owns no lexer/parser/compiler — that boundary is
// explicitly out of scope (§1) — so its only input is a chunk file in
// this package's own Dump/Load wire format (bytecode.Dump/bytecode.Load).
//
// Grounded on the teacher's cmd/paserati/main.go: a flag.Parse() front
// end over a driver-style session object, here luacore/host.Session in
// place of driver.Paserati.
package main

import (
	"flag"
	"fmt"
	"os"

	"luacore/pkg/bytecode"
	"luacore/pkg/host"
	"luacore/pkg/value"
	"luacore/pkg/vm"
)

func main() {
	traceDispatch := flag.Bool("trace-dispatch", false, "log every dispatched instruction to stderr")
	traceGC := flag.Bool("trace-gc", false, "set vm.Config.TraceGC (no GC code reads it; nothing is logged)")
	gcPause := flag.Int("gc-pause", 200, "GC pause ratio, percent (§4.D default 200)")
	gcStepMul := flag.Int("gc-stepmul", 200, "GC step multiplier, percent (§4.D default 200)")
	gcStats := flag.Bool("gc-stats", false, "print GC statistics after execution")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: luacore [flags] <chunk-file>\n")
		os.Exit(64)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "luacore: %v\n", err)
		os.Exit(66)
	}
	defer f.Close()

	proto, err := bytecode.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "luacore: malformed chunk: %v\n", err)
		os.Exit(65)
	}

	sess := host.New(
		vm.WithTraceDispatch(*traceDispatch),
		vm.WithTraceGC(*traceGC),
		vm.WithGCPauseRatio(*gcPause),
		vm.WithGCStepMul(*gcStepMul),
	)

	results, err := sess.RunChunk(proto)
	if err != nil {
		fmt.Fprintf(os.Stderr, "luacore: %v\n", err)
		os.Exit(1)
	}

	for _, v := range results {
		fmt.Println(inspect(v))
	}

	if *gcStats {
		stats := sess.GCStats()
		fmt.Fprintf(os.Stderr, "gc: cycles=%d marked=%d swept=%d\n", stats.Cycles, stats.BytesMarked, stats.BytesSwept)
	}
}

// inspect renders a top-level result value for the CLI's stdout, the one
// piece of "printing a Value" this command needs without depending on a
// full tostring()/stdlib implementation (out of scope, §1).
func inspect(v value.Value) string {
	switch v.Type() {
	case value.TypeNil:
		return "nil"
	case value.TypeBoolean:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case value.TypeNumber:
		return fmt.Sprintf("%g", v.AsNumber())
	case value.TypeString:
		return v.AsStringObject().String()
	default:
		return fmt.Sprintf("%s: %p", v.TypeName(), v.Pointer())
	}
}
