package vm

import (
	"luacore/pkg/gc"
	"luacore/pkg/value"
	"luacore/pkg/vmerr"
)

// CoroutineStatus is the four-state machine of §4.G ("suspended",
// "running", "normal", "dead").
type CoroutineStatus uint8

const (
	StatusSuspended CoroutineStatus = iota
	StatusRunning
	StatusNormal
	StatusDead
)

func (s CoroutineStatus) String() string {
	switch s {
	case StatusSuspended:
		return "suspended"
	case StatusRunning:
		return "running"
	case StatusNormal:
		return "normal"
	default:
		return "dead"
	}
}

// resumeMsg/yieldMsg cross the goroutine boundary that backs a coroutine
// (below). Grounded on the teacher's BytecodeCall channel pattern
// (pkg/vm/vm.go CallFrame.nativeReturnCh/nativeYieldCh) for letting one
// goroutine hand control to another and block until it hands it back —
// generalized here from "native call re-entering bytecode" to "coroutine
// resume/yield", which is the same handoff shape.
type resumeMsg struct {
	args []value.Value
}

type yieldMsg struct {
	values []value.Value
	done   bool       // true on normal return or error, false on an actual yield
	err    vmerr.Error // set iff the coroutine body errored
}

// CoroutineObject is a Lua thread (§3.2 "Thread", §4.G). Each coroutine
// gets its own Stack and call-frame vector — a fresh register file and
// upvalue manager, never shared with its resumer — and runs on its own
// goroutine so that a yield deep inside nested Go calls can suspend
// without unwinding the host Go stack, which a pure state-machine
// encoding of the Lua call stack would otherwise require.
type CoroutineObject struct {
	gcHeaderMixin
	Status CoroutineStatus

	stack     Stack
	frames    []Frame
	upvalues  UpvalueManager
	resumedBy *CoroutineObject // who resumed us, for "normal" status + yield-target routing

	body  value.Value // the closure this coroutine runs (nil for the main coroutine)
	resCh chan resumeMsg
	yldCh chan yieldMsg

	// inHostCall counts host (native) call frames currently on this
	// coroutine's Go call stack. Yield is itself a native call, so yield
	// is rejected while > 1 (another host call lies beneath it), the
	// "C-call boundary" restriction of §4.G.
	inHostCall int

	started bool
}

func (c *CoroutineObject) Kind() string { return "thread" }
func (c *CoroutineObject) Size() int    { return 64 }

func (c *CoroutineObject) Trace(visit func(gc.Object)) {
	if !c.body.IsNil() {
		traceValue(c.body, visit)
	}
	for i := range c.frames {
		if cl := c.frames[i].Closure; cl != nil {
			visit(cl)
		}
	}
	top := c.stack.Top()
	for i := 0; i < top; i++ {
		traceValue(*c.stack.At(i), visit)
	}
}

// NewCoroutine creates a suspended coroutine wrapping body (§4.G
// coroutine.create).
func NewCoroutine(gcc *gc.Collector, body value.Value) *CoroutineObject {
	c := &CoroutineObject{
		Status: StatusSuspended,
		frames: make([]Frame, 0, MaxFrames),
		body:   body,
		resCh:  make(chan resumeMsg),
		yldCh:  make(chan yieldMsg),
	}
	gcc.Register(c, c.Size())
	return c
}

// Resume implements coroutine.resume (§4.G): transfers control to c,
// blocking the calling coroutine (marked "normal" for the duration)
// until c either yields, returns, or errors.
func (i *Interp) Resume(c *CoroutineObject, args []value.Value) ([]value.Value, error) {
	if c.Status == StatusDead {
		return nil, vmerr.NewRuntimeError(value.Nil, "cannot resume dead coroutine")
	}
	if c.Status != StatusSuspended {
		return nil, vmerr.NewRuntimeError(value.Nil, "cannot resume non-suspended coroutine")
	}

	caller := i.current
	if caller != nil {
		caller.Status = StatusNormal
	}
	c.resumedBy = caller
	c.Status = StatusRunning
	prev := i.current
	i.current = c

	if !c.started {
		c.started = true
		go i.runCoroutine(c)
	}

	c.resCh <- resumeMsg{args: args}
	msg := <-c.yldCh

	i.current = prev
	if caller != nil {
		caller.Status = StatusRunning
	}
	if msg.done {
		c.Status = StatusDead
	} else {
		c.Status = StatusSuspended
	}
	if msg.err != nil {
		return nil, msg.err
	}
	return msg.values, nil
}

// Yield implements coroutine.yield (§4.G): suspends the currently
// running coroutine and hands values back to its resumer.
//
// Yield is itself invoked as a NativeFunc, so callValue has already
// incremented c.inHostCall by 1 for this very call before Native() runs
// — that single increment is yield's own frame, not an intervening C
// boundary, so it must not itself trip the check. Only a *second* host
// frame still on the stack (some other native function that called back
// into Lua, which called yield) represents the real C-call boundary
// §4.G forbids yielding across.
func (i *Interp) Yield(values []value.Value) ([]value.Value, error) {
	c := i.current
	if c == nil || c == i.main {
		return nil, vmerr.NewRuntimeError(value.Nil, "attempt to yield from outside a coroutine")
	}
	if c.inHostCall > 1 {
		return nil, vmerr.NewCannotYieldAcrossHostBoundaryError()
	}
	c.yldCh <- yieldMsg{values: values}
	msg := <-c.resCh
	return msg.args, nil
}

// runCoroutine is the goroutine body driving one coroutine's bytecode
// execution to completion, translating a normal return or a propagated
// error into the final (done=true) yieldMsg that unblocks Resume.
func (i *Interp) runCoroutine(c *CoroutineObject) {
	first := <-c.resCh
	results, err := i.callValue(c, c.body, first.args)
	var verr vmerr.Error
	if err != nil {
		var ok bool
		verr, ok = err.(vmerr.Error)
		if !ok {
			verr = vmerr.NewInternalInvariantViolationError("%v", err)
		}
	}
	c.yldCh <- yieldMsg{values: results, done: true, err: verr}
}
