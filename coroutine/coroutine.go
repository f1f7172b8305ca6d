// Package coroutine implements the fiber-based coroutine machinery of
// spec §6: a resumable computation driven by a small command protocol
// (next/throw/return/kill) that can suspend mid-expression via yield.
//
// Spec §9's own design note sanctions the substitution this package
// makes: rather than real OS/green-thread fibers with a saved machine
// stack, each Fiber is a goroutine blocked on a pair of unbuffered,
// rendezvous channels. A goroutine's stack already grows and shrinks
// like the source's fiber stack would, and a channel send/receive pair
// is exactly the suspend/resume handshake the command protocol
// describes — Go just doesn't require this module to manage the stack
// memory itself.
package coroutine

import (
	"sync"

	"jsrt/except"
	"jsrt/value"
)

// Command is the resume-side operation of spec §6's protocol: I(nit) is
// implicit in starting the goroutine, so only N/T/R/K are modelled here.
type Command uint8

const (
	CmdNext Command = iota
	CmdThrow
	CmdReturn
	CmdKill
)

// State is the coroutine lifecycle state spec §6 names.
type State uint8

const (
	StateSuspendedStart State = iota
	StateSuspendedYield
	StateRunning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateSuspendedStart:
		return "suspended-start"
	case StateSuspendedYield:
		return "suspended-yield"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Body is the fiber's computation. It receives a Yielder used to
// suspend, and returns the coroutine's final value (or error, for an
// uncaught throw/body failure).
type Body func(y *Yielder) (value.Value, error)

type resumeMsg struct {
	cmd Command
	val value.Value
}

type yieldMsg struct {
	val  value.Value
	done bool
	err  error
}

// killSignal unwinds the fiber goroutine via panic/recover when a Kill
// command arrives; it never reaches Body as a catchable error, matching
// spec §6 "kill tears down the fiber unconditionally."
type killSignal struct{}

// returnSignal unwinds Body early with a value, the way a generator's
// `.return(v)` forces completion from inside a suspended yield.
type returnSignal struct{ val value.Value }

// ThrownValue is the error Yield returns when the resumer calls Throw:
// Body sees it as an ordinary Go error and may recover by returning a
// value instead (the JS equivalent of a try/catch wrapping the yield
// expression). If Body lets it propagate, the fiber completes with this
// error, matching an uncaught generator throw.
type ThrownValue struct{ Val value.Value }

func (t *ThrownValue) Error() string { return "coroutine: uncaught thrown value" }

// Fiber is one resumable computation. The zero value is not usable;
// construct with New.
type Fiber struct {
	mu    sync.Mutex
	state State

	resumeCh chan resumeMsg
	yieldCh  chan yieldMsg
	once     sync.Once
	body     Body

	pending value.Value // last value crossing the suspend boundary, kept for root scanning
}

// New constructs a fiber in the suspended-start state; body does not
// begin running until the first Next/Throw/Return/Kill call.
func New(body Body) *Fiber {
	return &Fiber{
		state:    StateSuspendedStart,
		resumeCh: make(chan resumeMsg),
		yieldCh:  make(chan yieldMsg),
		body:     body,
		pending:  value.VUndefined,
	}
}

// Yielder is the capability Body uses to suspend itself; it is only
// valid for the lifetime of one Fiber's run.
type Yielder struct{ fiber *Fiber }

// Yield suspends the fiber, handing v to whoever resumes it, and blocks
// until the next resume command. A Throw resume surfaces as a
// *ThrownValue error; a Return resume unwinds Body immediately (deferred
// cleanup in Body still runs, like a Go defer); a Kill resume unwinds
// unconditionally with no value Body can observe.
func (y *Yielder) Yield(v value.Value) (value.Value, error) {
	f := y.fiber
	f.pending = v
	f.yieldCh <- yieldMsg{val: v}
	msg := <-f.resumeCh
	switch msg.cmd {
	case CmdKill:
		panic(killSignal{})
	case CmdReturn:
		panic(returnSignal{val: msg.val})
	case CmdThrow:
		return value.Value(0), &ThrownValue{Val: msg.val}
	default:
		f.pending = msg.val
		return msg.val, nil
	}
}

// YieldFrom implements `yield*` delegation (spec §6): every next/throw
// value the delegate produces passes through to the enclosing fiber's
// resumer, and the resumer's reply drives the delegate's next step.
// next mirrors the (value, done, error) shape Fiber.Next/Throw/Return
// already return, so a coroutine can delegate to another Fiber or to
// any other iterator adapter that exposes the same shape.
func (y *Yielder) YieldFrom(next func(value.Value) (value.Value, bool, error), initial value.Value) (value.Value, error) {
	in := initial
	for {
		v, done, err := next(in)
		if err != nil {
			return value.Value(0), err
		}
		if done {
			return v, nil
		}
		out, yerr := y.Yield(v)
		if yerr != nil {
			return value.Value(0), yerr
		}
		in = out
	}
}

func (f *Fiber) ensureStarted() {
	f.once.Do(func() {
		go f.run()
	})
}

func (f *Fiber) run() {
	defer func() {
		if r := recover(); r != nil {
			switch sig := r.(type) {
			case killSignal:
				f.yieldCh <- yieldMsg{val: value.VUndefined, done: true}
			case returnSignal:
				f.yieldCh <- yieldMsg{val: sig.val, done: true}
			default:
				panic(r)
			}
		}
	}()

	first := <-f.resumeCh
	switch first.cmd {
	case CmdKill:
		f.yieldCh <- yieldMsg{val: value.VUndefined, done: true}
		return
	case CmdReturn:
		f.yieldCh <- yieldMsg{val: first.val, done: true}
		return
	case CmdThrow:
		f.yieldCh <- yieldMsg{done: true, err: &ThrownValue{Val: first.val}}
		return
	}

	y := &Yielder{fiber: f}
	result, err := f.body(y)
	f.yieldCh <- yieldMsg{val: result, done: true, err: err}
}

func (f *Fiber) resume(cmd Command, val value.Value) (value.Value, bool, error) {
	f.mu.Lock()
	switch f.state {
	case StateDone:
		f.mu.Unlock()
		return value.VUndefined, true, except.New(except.TypeErrorUnsupportedOp, "coroutine is already done")
	case StateRunning:
		f.mu.Unlock()
		return value.Value(0), false, except.New(except.TypeErrorCoroutineAlreadyResumed, "coroutine is already running")
	}
	f.state = StateRunning
	f.mu.Unlock()

	f.ensureStarted()
	f.resumeCh <- resumeMsg{cmd: cmd, val: val}
	msg := <-f.yieldCh

	f.mu.Lock()
	if msg.done {
		f.state = StateDone
	} else {
		f.state = StateSuspendedYield
	}
	f.pending = msg.val
	f.mu.Unlock()
	return msg.val, msg.done, msg.err
}

// Next implements the `N` command: resumes with val as the result of
// the suspended yield expression.
func (f *Fiber) Next(val value.Value) (value.Value, bool, error) { return f.resume(CmdNext, val) }

// Throw implements the `T` command.
func (f *Fiber) Throw(val value.Value) (value.Value, bool, error) { return f.resume(CmdThrow, val) }

// Return implements the `R` command.
func (f *Fiber) Return(val value.Value) (value.Value, bool, error) { return f.resume(CmdReturn, val) }

// Kill implements the `K` command: tears the fiber down without
// observing a result. Safe to call on an already-done fiber.
func (f *Fiber) Kill() {
	f.mu.Lock()
	if f.state == StateDone {
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.resume(CmdKill, value.VUndefined)
}

// State reports the fiber's current lifecycle state.
func (f *Fiber) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// ScanRoots contributes this fiber's only GC-visible state outside of
// its own Go call stack (which the host Go runtime already scans): the
// single value crossing the suspend boundary right now. Implements
// gc.RootScanner so a Group of fibers can be folded into a collector's
// root set.
func (f *Fiber) ScanRoots() []value.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateDone {
		return nil
	}
	return []value.Value{f.pending}
}

// Group tracks every live fiber an environment has created, so the
// collector's root scan (spec §4.5 "every coroutine fiber's own stack")
// can fold them all in with a single ScanRoots call.
type Group struct {
	mu     sync.Mutex
	fibers map[*Fiber]struct{}
}

func NewGroup() *Group { return &Group{fibers: make(map[*Fiber]struct{})} }

func (g *Group) Track(f *Fiber) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fibers[f] = struct{}{}
}

func (g *Group) Untrack(f *Fiber) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.fibers, f)
}

// ScanRoots implements gc.RootScanner.
func (g *Group) ScanRoots() []value.Value {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []value.Value
	for f := range g.fibers {
		out = append(out, f.ScanRoots()...)
	}
	return out
}
