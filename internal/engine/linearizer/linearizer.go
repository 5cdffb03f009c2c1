// Package linearizer computes, for every declared type, the ordered ancestry
// used for member lookup: own methods, flattened trait methods, the parent
// class chain, then reachable interfaces.
package linearizer

import (
	"protoscope/internal/engine/hierarchy"
)

// Via records how a slot became visible on a type.
type Via int

const (
	ViaOwn Via = iota
	ViaTrait
	ViaParent
	ViaInterface
)

func (v Via) String() string {
	switch v {
	case ViaOwn:
		return "own"
	case ViaTrait:
		return "trait"
	case ViaParent:
		return "parent"
	case ViaInterface:
		return "interface"
	default:
		return "unknown"
	}
}

// Entry is one candidate slot for a method name. Declaring is the hierarchy
// node carrying the slot: for trait imports it is the using type, since
// traits contribute slots but not ancestry.
type Entry struct {
	Declaring *hierarchy.DeclaredType
	Slot      *hierarchy.MethodSlot
	Via       Via
}

// Trait returns the trait a slot was imported from, or nil.
func (e Entry) Trait() *hierarchy.DeclaredType {
	if e.Slot == nil || !e.Slot.Owner().IsTrait() {
		return nil
	}
	return e.Slot.Owner()
}

// IsClassChain reports whether the entry came from the type itself, its
// traits, or its parent class chain.
func (e Entry) IsClassChain() bool {
	return e.Via != ViaInterface
}

func (e Entry) String() string {
	if e.Declaring == nil || e.Slot == nil {
		return ""
	}
	return e.Declaring.Name() + "::" + e.Slot.Name()
}

func (e Entry) same(other Entry) bool {
	return e.Slot == other.Slot && e.Declaring == other.Declaring
}

// Linearization is the immutable member-lookup view of one type.
type Linearization struct {
	typ     *hierarchy.DeclaredType
	names   []string
	entries map[string][]Entry
	severed map[string]bool
}

func (l *Linearization) Type() *hierarchy.DeclaredType { return l.typ }

// Names returns the method keys in first-seen order.
func (l *Linearization) Names() []string {
	return append([]string(nil), l.names...)
}

// Candidates returns every entry for name in lookup order.
func (l *Linearization) Candidates(name string) []Entry {
	return append([]Entry(nil), l.entries[hierarchy.Key(name)]...)
}

// Severed reports whether a private ancestor slot cut the class chain for name.
func (l *Linearization) Severed(name string) bool {
	return l.severed[hierarchy.Key(name)]
}

// Declaring returns the slot answering name on this type: the nearest
// non-abstract class-chain slot, else the nearest abstract one, else the
// first interface requirement.
func (l *Linearization) Declaring(name string) (Entry, bool) {
	entries := l.entries[hierarchy.Key(name)]
	if len(entries) == 0 {
		return Entry{}, false
	}
	for _, e := range entries {
		if e.IsClassChain() && !e.Slot.IsAbstract() {
			return e, true
		}
	}
	return entries[0], true
}

// IndexOf returns the position of e among the candidates for its name.
func (l *Linearization) IndexOf(e Entry) int {
	for i, candidate := range l.entries[e.Slot.Key()] {
		if candidate.same(e) {
			return i
		}
	}
	return -1
}

// EntryFor finds the entry carrying slot on this type.
func (l *Linearization) EntryFor(slot *hierarchy.MethodSlot) (Entry, bool) {
	for _, candidate := range l.entries[slot.Key()] {
		if candidate.Slot == slot && candidate.Declaring == l.typ {
			return candidate, true
		}
	}
	for _, candidate := range l.entries[slot.Key()] {
		if candidate.Slot == slot {
			return candidate, true
		}
	}
	return Entry{}, false
}

func (l *Linearization) add(e Entry) {
	key := e.Slot.Key()
	list, seen := l.entries[key]
	if !seen {
		l.names = append(l.names, key)
	}
	for _, existing := range list {
		if existing.Slot == e.Slot {
			return
		}
	}
	l.entries[key] = append(list, e)
}

func (l *Linearization) has(key string) bool {
	return len(l.entries[key]) > 0
}

// Linearizer precomputes linearizations for every type in a store. After New
// returns it is read-only and safe for concurrent use.
type Linearizer struct {
	store  *hierarchy.Store
	byType map[*hierarchy.DeclaredType]*Linearization
}

func New(store *hierarchy.Store) *Linearizer {
	lz := &Linearizer{
		store:  store,
		byType: make(map[*hierarchy.DeclaredType]*Linearization, store.Len()),
	}
	for _, t := range store.Types() {
		lz.linearize(t)
	}
	return lz
}

func (lz *Linearizer) Store() *hierarchy.Store { return lz.store }

// Of returns the linearization of a declared type from the same store.
func (lz *Linearizer) Of(t *hierarchy.DeclaredType) *Linearization {
	if t == nil {
		return nil
	}
	return lz.byType[t]
}

// Lookup returns the linearization of a type by name.
func (lz *Linearizer) Lookup(name string) (*Linearization, bool) {
	t, ok := lz.store.Lookup(name)
	if !ok {
		return nil, false
	}
	return lz.byType[t], true
}

// linearize relies on the store being acyclic, which the Builder guarantees.
func (lz *Linearizer) linearize(t *hierarchy.DeclaredType) *Linearization {
	if l, ok := lz.byType[t]; ok {
		return l
	}

	l := &Linearization{
		typ:     t,
		entries: make(map[string][]Entry),
		severed: make(map[string]bool),
	}

	for _, slot := range t.Methods() {
		l.add(Entry{Declaring: t, Slot: slot, Via: ViaOwn})
	}

	for _, slot := range lz.traitSlots(t.Traits(), map[*hierarchy.DeclaredType]bool{}) {
		if l.has(slot.Key()) {
			continue
		}
		l.add(Entry{Declaring: t, Slot: slot, Via: ViaTrait})
	}

	// cut holds the names whose parent slot is private. Interfaces the
	// parent carries for such a name sit above the private slot.
	cut := make(map[string]bool)
	if parent := t.Parent(); parent != nil {
		pl := lz.linearize(parent)
		for _, key := range pl.names {
			chain := make([]Entry, 0, len(pl.entries[key]))
			for _, e := range pl.entries[key] {
				if e.IsClassChain() {
					chain = append(chain, e)
				}
			}
			if len(chain) > 0 && chain[0].Slot.IsPrivate() {
				l.severed[key] = true
				cut[key] = true
				continue
			}
			if len(chain) == 0 && pl.severed[key] {
				l.severed[key] = true
			}
			for _, e := range chain {
				l.add(Entry{Declaring: e.Declaring, Slot: e.Slot, Via: ViaParent})
			}
		}
	}

	// Own interfaces first, depth-first in declaration order, then the ones
	// inherited through the parent unless its slot for the name is private.
	// The parent's list already excludes interfaces above any private slot
	// further up. add() coalesces diamonds.
	for _, iface := range t.Interfaces() {
		il := lz.linearize(iface)
		for _, key := range il.names {
			for _, e := range il.entries[key] {
				l.add(Entry{Declaring: e.Declaring, Slot: e.Slot, Via: ViaInterface})
			}
		}
	}
	if parent := t.Parent(); parent != nil {
		pl := lz.linearize(parent)
		for _, key := range pl.names {
			for _, e := range pl.entries[key] {
				if e.Via == ViaInterface && !cut[key] {
					l.add(e)
				}
			}
		}
	}

	lz.byType[t] = l
	return l
}

// traitSlots flattens the slots of the given traits in trait-use order. A
// trait's own methods shadow those of traits it uses, and earlier traits win
// over later ones.
func (lz *Linearizer) traitSlots(traits []*hierarchy.DeclaredType, visiting map[*hierarchy.DeclaredType]bool) []*hierarchy.MethodSlot {
	var out []*hierarchy.MethodSlot
	seen := make(map[string]bool)
	for _, tr := range traits {
		if visiting[tr] {
			continue
		}
		visiting[tr] = true
		slots := tr.Methods()
		slots = append(slots, lz.traitSlots(tr.Traits(), visiting)...)
		visiting[tr] = false
		for _, slot := range slots {
			if seen[slot.Key()] {
				continue
			}
			seen[slot.Key()] = true
			out = append(out, slot)
		}
	}
	return out
}
