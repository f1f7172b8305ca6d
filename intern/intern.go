// Package intern implements the identifier records behind string and
// symbol primitive references (spec §3 "String/symbol/bigint
// identifiers") and the process-wide interning set that guarantees
// pointer equality for canonically-equal keys (spec §4.1 `intern`).
package intern

import (
	"sync"
	"sync/atomic"

	"github.com/dolthub/swiss"
)

// Subtype distinguishes a string identifier from a symbol identifier.
type Subtype uint8

const (
	SubtypeString Subtype = iota
	SubtypeSymbol
)

// Flag bits, stored atomically so `in-interning-set` can be set without
// taking the set's lock (spec §4.1 "sets `in-interning-set` atomically").
const (
	FlagInInterningSet uint32 = 1 << iota
	FlagIsStatic
)

// Ident is an immutable identifier record: a string or symbol payload
// plus ownership flags (spec §3). Two Idents are the same identifier
// iff their pointers are equal (spec testable property 2) — callers
// must never construct a fresh Ident for a key that should be shared;
// use Set.Intern instead.
type Ident struct {
	Bytes   []byte // the identifier text as UTF-8 bytes
	Subtype Subtype
	flags   uint32
}

// NewStatic constructs an Ident owned by compiled code: the runtime may
// read it but must never free it, and the only flag transition it is
// allowed is atomically setting FlagInInterningSet on first use as a
// property key (spec §4.1 "a static identifier is never freed").
func NewStatic(subtype Subtype, text string) *Ident {
	return &Ident{Bytes: []byte(text), Subtype: subtype, flags: FlagIsStatic}
}

// NewTransient constructs a non-interned Ident — e.g. the result of a
// fresh substring or concatenation — owned by whatever value holds it
// and tracked by the GC (spec §3 "non-interned").
func NewTransient(subtype Subtype, text string) *Ident {
	return &Ident{Bytes: []byte(text), Subtype: subtype}
}

func (id *Ident) String() string { return string(id.Bytes) }

// IsStatic reports whether id was constructed by NewStatic. The flag is
// immutable once set, matching the spec's invariant.
func (id *Ident) IsStatic() bool { return atomic.LoadUint32(&id.flags)&FlagIsStatic != 0 }

// InInterningSet reports whether id currently belongs to some Set.
func (id *Ident) InInterningSet() bool {
	return atomic.LoadUint32(&id.flags)&FlagInInterningSet != 0
}

type identKey struct {
	subtype Subtype
	text    string
}

// Set is the global string/symbol interning set (spec §3 "Interned
// identifiers are owned by the global string interning set... immortal
// for the life of the process"). It is mutated only by the mutator
// thread (spec §5 "Shared resources"); the GC worker reads idents'
// bytes but never interns.
type Set struct {
	mu    sync.Mutex
	table *swiss.Map[identKey, *Ident]
}

// NewSet constructs an empty interning set.
func NewSet() *Set {
	return &Set{table: swiss.NewMap[identKey, *Ident](64)}
}

// Intern performs the atomic "get-or-put" described in spec §4.1: if an
// identifier with the same subtype and text already exists, its
// canonical pointer is returned; otherwise id is inserted and becomes
// canonical, with FlagInInterningSet set atomically. id's ownership
// transfers to the set on first insertion, unless it is already static
// (static identifiers are never freed regardless of set membership, but
// they still participate in interning so subsequent lookups by value
// return the same pointer).
func (s *Set) Intern(id *Ident) *Ident {
	key := identKey{subtype: id.Subtype, text: string(id.Bytes)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.table.Get(key); ok {
		return existing
	}
	s.table.Put(key, id)
	setInInterningSet(id)
	return id
}

// InternString is a convenience wrapper over Intern for plain strings.
func (s *Set) InternString(text string) *Ident {
	return s.Intern(NewTransient(SubtypeString, text))
}

// Lookup returns the canonical identifier for (subtype, text) without
// inserting a new one, and reports whether it was found.
func (s *Set) Lookup(subtype Subtype, text string) (*Ident, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Get(identKey{subtype: subtype, text: text})
}

// Len reports how many identifiers are currently interned.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Count()
}

func setInInterningSet(id *Ident) {
	for {
		old := atomic.LoadUint32(&id.flags)
		if old&FlagInInterningSet != 0 {
			return
		}
		if atomic.CompareAndSwapUint32(&id.flags, old, old|FlagInInterningSet) {
			return
		}
	}
}
