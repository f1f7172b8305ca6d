// Package vm ties every lower layer together into the process-wide
// Environment spec §3 describes: the global and shadow objects, the
// prototype set, the call stack, the try-handler chain, `new.target`,
// the coroutine-context list, and the cached collaborators (caller,
// interner, GC) that the value/prop/conv/iterator packages take as
// injected seams rather than importing directly.
package vm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"jsrt/bigint"
	"jsrt/coroutine"
	"jsrt/except"
	"jsrt/gc"
	"jsrt/intern"
	"jsrt/object"
	"jsrt/prop"
	"jsrt/shape"
	"jsrt/value"
)

// primRegistry keeps the Go-side *intern.Ident / bigint.Int a minted
// primitive value.Value's 44-bit payload points at reachable, the same
// role package prop's descriptor registry plays for boxed descriptors
// (spec §3 "Non-interned identifiers... owned by the value that holds
// them and tracked by the GC" — here "tracked" means "kept in this
// map," since a bare uintptr payload is invisible to the host Go
// collector). Interned identifiers don't need an entry: intern.Set's
// own table already keeps them alive for the life of the process.
type primRegistry struct {
	mu      sync.Mutex
	next    uintptr
	idents  map[uintptr]*intern.Ident
	bigints map[uintptr]bigint.Int
	canon   map[*intern.Ident]value.Value // interned ident -> the one value minted for it
}

func newPrimRegistry() *primRegistry {
	return &primRegistry{idents: make(map[uintptr]*intern.Ident), bigints: make(map[uintptr]bigint.Int), canon: make(map[*intern.Ident]value.Value)}
}

func (r *primRegistry) mintIdent(id *intern.Ident) value.Value {
	kind := value.PrimString
	if id.Subtype == intern.SubtypeSymbol {
		kind = value.PrimSymbol
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	interned := id.InInterningSet()
	if v, ok := r.canon[id]; ok && interned {
		return v
	}
	r.next++
	key := r.next
	r.idents[key] = id
	v := value.Primitive(kind, key)
	if interned {
		r.canon[id] = v
	}
	return v
}

func (r *primRegistry) mintBigint(b bigint.Int) value.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	key := r.next
	r.bigints[key] = b
	return value.Primitive(value.PrimBigint, key)
}

func (r *primRegistry) identOf(v value.Value) (*intern.Ident, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.idents[v.Pointer()]
	return id, ok
}

func (r *primRegistry) bigintOf(v value.Value) (bigint.Int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bigints[v.Pointer()]
	return b, ok
}

// wellKnownSymbolNames are the fixed `@@`-named symbols spec §3's
// Environment carries ("well-known symbol values") and §6's property
// protocol dispatches on by name (`@@iterator`, `@@toPrimitive`,
// `@@unscopables`).
var wellKnownSymbolNames = []string{
	"@@iterator", "@@asyncIterator", "@@toPrimitive", "@@toStringTag",
	"@@hasInstance", "@@unscopables", "@@species",
}

// Environment is the process-wide structure spec §3 describes. Unlike
// the source's single process-global, this repo passes *Environment as
// the first parameter to every entry point that needs it (spec §9
// design note "Global mutable state... pass it as a first parameter to
// every core entry; that already matches the source's API shape").
type Environment struct {
	Config Config
	Logger *zap.Logger

	GC         *gc.Collector
	Interner   *intern.Set
	Stack      *Stack
	Coroutines *coroutine.Group
	prims      *primRegistry

	// EmptyShape is the shape every fresh ordinary object and every
	// non-constructor function's `this` starts from (spec §3
	// "empty-shape root").
	EmptyShape *shape.Shape

	Global *object.Ordinary // the global object, reachable via unqualified references
	Shadow *object.Ordinary // internal namespace, never exposed to user code directly

	protoMu    sync.RWMutex
	prototypes map[string]object.Object // "Object","Array","Function","String","Number","Boolean","Symbol","BigInt","Error"

	WellKnown map[string]value.Value

	// FastArrProto records the Array prototype at construction. Nothing
	// in this module reads or zeroes it: the array fast path in package
	// prop does not compare an array's prototype with it, and an integer
	// key set on Object.prototype or Array.prototype leaves it unchanged.
	FastArrProto object.Object

	currentTry *TryHandler
	newTarget  value.Value

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a fully wired Environment: string/shape/object/
// descriptor/function/stack/num/big/arr bootstrap order mirrors spec §6
// `init`'s own sequencing, modulo steps ("str-2", "obj-2") that belong to
// the upper standard-library layer this repo doesn't implement.
func New(cfg Config, logger *zap.Logger) *Environment {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Environment{
		Config:     cfg,
		Logger:     logger,
		Interner:   intern.NewSet(),
		Coroutines: coroutine.NewGroup(),
		prims:      newPrimRegistry(),
		prototypes: make(map[string]object.Object),
		WellKnown:  make(map[string]value.Value),
		newTarget:  value.VUndefined,
	}
	e.Stack = newStack(cfg.StackBlockSize)
	e.EmptyShape = shape.Root()
	e.GC = gc.New(logger, gc.Config{Threshold: cfg.GCThreshold, PollInterval: cfg.GCPollInterval})

	e.bootstrapPrototypes()
	e.bootstrapWellKnownSymbols()

	e.Global = object.NewOrdinary(e.objectProto(), e.EmptyShape)
	e.GC.Manage(e.Global)
	e.Shadow = object.NewOrdinary(e.objectProto(), e.EmptyShape)
	e.GC.Manage(e.Shadow)

	e.FastArrProto = e.arrayProto()
	e.installShadowHelpers()
	e.InstallMath()
	return e
}

// Start launches the GC worker goroutine, unlocking the concurrent
// mark-sweep cycle (spec §5 "One dedicated worker thread"). Call once,
// after New, mirroring spec §6 `init3`'s "unlocks non-strict-function
// declarations" moment where the runtime becomes fully live.
func (e *Environment) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.ctx, e.cancel = ctx, cancel
	e.GC.Start(ctx, e)
}

// Stop cancels the Environment's context and tears the GC worker down.
// Coroutine fibers that are still suspended are left as they are; Stop
// does not kill them.
func (e *Environment) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.GC.Stop()
}

func (e *Environment) bootstrapPrototypes() {
	names := []string{"Object", "Function", "Array", "String", "Number", "Boolean", "Symbol", "BigInt", "Error"}
	// Object.prototype has no prototype of its own; every other
	// prototype chains to it (spec §3 "prototype objects for every
	// primitive kind").
	objProto := object.NewOrdinary(nil, e.EmptyShape)
	e.GC.Manage(objProto)
	e.prototypes["Object"] = objProto
	for _, n := range names {
		if n == "Object" {
			continue
		}
		p := object.NewOrdinary(objProto, e.EmptyShape)
		e.GC.Manage(p)
		e.prototypes[n] = p
	}
}

func (e *Environment) bootstrapWellKnownSymbols() {
	for _, name := range wellKnownSymbolNames {
		id := intern.NewStatic(intern.SubtypeSymbol, name)
		canonical := e.Interner.Intern(id)
		e.WellKnown[name] = e.prims.mintIdent(canonical)
	}
}

func (e *Environment) objectProto() object.Object { return e.Prototype("Object") }
func (e *Environment) arrayProto() object.Object  { return e.Prototype("Array") }

// Prototype returns the built-in prototype registered under name (spec
// §3 "prototype objects for every primitive kind").
func (e *Environment) Prototype(name string) object.Object {
	e.protoMu.RLock()
	defer e.protoMu.RUnlock()
	return e.prototypes[name]
}

// SetPrototype installs (or replaces) the built-in prototype under name.
func (e *Environment) SetPrototype(name string, obj object.Object) {
	e.protoMu.Lock()
	defer e.protoMu.Unlock()
	e.prototypes[name] = obj
}

// NewTarget reports the constructor currently executing, or
// value.VUndefined outside of any `new` dispatch (spec §3 "the current
// new.target").
func (e *Environment) NewTarget() value.Value { return e.newTarget }

// --- collaborator seams -----------------------------------------------
//
// These methods let *Environment satisfy conv.ObjectOps, prop.Caller,
// prop.IdentSource, and iterator.Resolver without those packages
// importing jsrt/vm (which would cycle back through object/shape/gc).

// Resolve implements iterator.Resolver (and is the general-purpose
// object.Object lookup every other package needs).
func (e *Environment) Resolve(v value.Value) (object.Object, bool) { return e.GC.Resolve(v) }

// IdentOf implements prop.IdentSource.
func (e *Environment) IdentOf(v value.Value) (*intern.Ident, bool) { return e.prims.identOf(v) }

// StringOf implements conv.ObjectOps.
func (e *Environment) StringOf(v value.Value) string {
	if id, ok := e.prims.identOf(v); ok {
		return id.String()
	}
	return ""
}

// BigintOf implements conv.ObjectOps.
func (e *Environment) BigintOf(v value.Value) bigint.Int {
	b, _ := e.prims.bigintOf(v)
	return b
}

// MakeString implements conv.ObjectOps: mints a transient (non-interned)
// string primitive. Callers that know the string is going to be used as
// a property key should intern it themselves via InternString instead.
func (e *Environment) MakeString(s string) value.Value {
	return e.prims.mintIdent(intern.NewTransient(intern.SubtypeString, s))
}

// InternString mints (or recovers) the canonical string primitive for s,
// the value-level counterpart of intern.Set.InternString.
func (e *Environment) InternString(s string) value.Value {
	return e.prims.mintIdent(e.Interner.InternString(s))
}

// MakeSymbol mints a fresh, never-equal-to-another symbol primitive
// (spec §4.1 "Symbol"), unless name collides with a well-known symbol,
// in which case that canonical instance is returned.
func (e *Environment) MakeSymbol(description string) value.Value {
	if v, ok := e.WellKnown[description]; ok {
		return v
	}
	return e.prims.mintIdent(intern.NewTransient(intern.SubtypeSymbol, description))
}

// MakeBigint mints a bigint primitive wrapping b.
func (e *Environment) MakeBigint(b bigint.Int) value.Value { return e.prims.mintBigint(b) }

// GetMethod implements conv.ObjectOps: fetches obj[name] and requires it
// be callable or undefined.
func (e *Environment) GetMethod(obj value.Value, name string) (value.Value, error) {
	receiver, ok := e.Resolve(obj)
	if !ok {
		return value.VUndefined, except.New(except.TypeErrorExpectedObject, "value has no properties")
	}
	key := e.Interner.InternString(name)
	v, err := prop.GetProp(e.PropContext(), receiver, key, nil)
	if err != nil {
		return value.Value(0), err
	}
	if v.IsUndefined() || v.IsNull() {
		return value.VUndefined, nil
	}
	if _, ok := e.Resolve(v); !ok {
		return value.Value(0), except.New(except.TypeErrorExpectedFunction, "property %q is not callable", name)
	}
	return v, nil
}

// PropContext bundles this Environment's collaborators into the
// *prop.Context the property protocol needs.
func (e *Environment) PropContext() *prop.Context {
	return &prop.Context{Caller: e, Ops: e, Interner: e.Interner, Idents: e}
}

// ScanRoots implements gc.RootScanner (spec §4.5 "Root scan"): every
// live try-handler's throw value, new.target, every stack-link value,
// and every coroutine fiber's own pending value. Conservative native
// register/stack scanning (spec step 4) has no analogue here — the host
// Go runtime already scans its own stacks and registers precisely, so
// nothing in this repo's managed heap can be reachable only from there.
func (e *Environment) ScanRoots() []value.Value {
	var out []value.Value
	for h := e.currentTry; h != nil; h = h.prev {
		if !h.throwVal.IsUninitialized() {
			out = append(out, h.throwVal)
		}
	}
	if !e.newTarget.IsUndefined() {
		out = append(out, e.newTarget)
	}
	out = append(out, e.Stack.Values()...)
	out = append(out, e.Coroutines.ScanRoots()...)
	out = append(out, e.Global.Self, e.Shadow.Self)
	return out
}

// resetArgumentsAndCaller implements the per-frame reset spec §4.6 names
// ("on return or throw, they revert to null"): a non-strict function's
// materialised `arguments`/`caller` own properties are overwritten with
// null so the frame reads as "not currently executing."
func (e *Environment) resetArgumentsAndCaller(fn *object.Function) {
	if fn.Strict {
		return
	}
	ctx := e.PropContext()
	argsKey := e.Interner.InternString("arguments")
	callerKey := e.Interner.InternString("caller")
	_ = prop.SetProp(ctx, fn, argsKey, value.VNull, nil)
	_ = prop.SetProp(ctx, fn, callerKey, value.VNull, nil)
}

// materializeArguments installs the non-strict `arguments`/`caller` own
// data descriptors spec §4.6 describes: non-enumerable, non-configurable,
// writable-only.
func (e *Environment) materializeArguments(fn *object.Function, args []value.Value, caller value.Value) {
	if fn.Strict {
		return
	}
	restShape := e.EmptyShape
	arr := object.NewArray(e.arrayProto(), restShape)
	for _, a := range args {
		prop.ArraySet(arr, arr.Length, a)
	}
	argsVal := e.GC.Manage(arr)

	argsKey := e.Interner.InternString("arguments")
	callerKey := e.Interner.InternString("caller")
	_ = prop.DefineProperty(fn, argsKey, &prop.Descriptor{Value: argsVal, Writable: true})
	_ = prop.DefineProperty(fn, callerKey, &prop.Descriptor{Value: caller, Writable: true})
}

// Throw* helpers (spec §7 "shadow helpers"): construct and raise an
// Exception through the current try chain. Since this port propagates
// exceptions as Go errors (spec §9 design note (a)) rather than
// longjmp'ing, "raise" here means "return the error" — Throw itself
// (vm/try.go) does the stack-unwind side of the job for a *value.Value*
// thrown by `throw expr`; ThrowKind is the equivalent for an internal
// Exception, letting a caller treat both uniformly once wrapped in a
// user-level Error object by the shadow surface (out of scope here, spec
// §1 "user-level Error types are assumed to be defined by the higher
// layer").
func (e *Environment) ThrowKind(kind except.Kind, format string, args ...interface{}) error {
	return except.New(kind, format, args...)
}

func (e *Environment) String() string {
	return fmt.Sprintf("Environment{live=%d, stack=%d}", e.GC.LiveCount(), e.Stack.Depth())
}
