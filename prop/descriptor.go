package prop

import (
	"sync"

	"jsrt/value"
)

// Descriptor is the two-word record spec §3 (GLOSSARY) describes: either
// a writable data value or a getter/setter pair, plus the three ES
// attribute flags.
type Descriptor struct {
	IsAccessor bool
	Value      value.Value // meaningful when !IsAccessor
	Get        value.Value // meaningful when IsAccessor; VUndefined if absent
	Set        value.Value // meaningful when IsAccessor; VUndefined if absent
	Writable   bool         // meaningful when !IsAccessor
	Enumerable bool
	Configurable bool
}

// registry backs the "flagged pointer" encoding of a descriptor slot:
// rather than truncating a live Go pointer into the 44-bit payload and
// hoping nothing moves it, descriptors are interned here and referenced
// by registry key, which IS what gets packed into the payload bits. A
// strong reference lives in the map until Unregister drops it; the
// collector (package gc) follows boxed descriptors while marking but
// does not remove registry entries.
var registry = struct {
	mu   sync.Mutex
	next uintptr
	m    map[uintptr]*Descriptor
}{m: make(map[uintptr]*Descriptor)}

// Box wraps d into a flagged-pointer Value suitable for storing in an
// object's value slot (spec §3 "flagged pointer... marks... property
// descriptors").
func Box(d *Descriptor) value.Value {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.next++
	key := registry.next
	registry.m[key] = d
	return value.FlaggedPointer(key)
}

// Unbox retrieves the descriptor a flagged-pointer value refers to.
func Unbox(v value.Value) (*Descriptor, bool) {
	if v.Kind() != value.KindFlaggedPointer {
		return nil, false
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	d, ok := registry.m[uintptr(v.Pointer())]
	return d, ok
}

// Unregister drops the descriptor v refers to from the registry. This
// package calls it when a boxed slot is overwritten, deleted or
// truncated away; the collector's sweep does not call it.
func Unregister(v value.Value) {
	if v.Kind() != value.KindFlaggedPointer {
		return
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.m, uintptr(v.Pointer()))
}

// IsCanonicalDataDescriptor reports whether d is exactly
// {value, writable:true, enumerable:true, configurable:true} — the
// combination spec §4.3.5 says should collapse back to a plain value
// rather than stay boxed as a descriptor object.
func IsCanonicalDataDescriptor(d *Descriptor) bool {
	return !d.IsAccessor && d.Writable && d.Enumerable && d.Configurable
}
