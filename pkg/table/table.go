// Package table implements the open-addressed hash table used throughout
// the Lox runtime: the interned-string table, the VM's globals, every
// class's method table, and every instance's field table are all a Table.
//
// Grounded on the globals map (map[string]interface{}) in the teacher's
// pkg/vm/vm.go, generalized into the bespoke structure spec.md §3/§4.6
// requires: a plain Go map cannot express weak keys pruned by the garbage
// collector (remove_white), tombstone-aware deletion that keeps probe
// chains intact, or content-addressed string lookup (find_string) without
// a second index. Those three properties are why this table is hand-rolled
// rather than sourced from a map type, third-party or otherwise.
package table

import "github.com/kristofer/lox/pkg/value"

// Key is anything usable as a table key: an interned string. It is defined
// as an interface, rather than a concrete *object.String, so this package
// has no dependency on pkg/object (which in turn depends on this package
// for Class.Methods / Instance.Fields) — this keeps the two packages from
// forming an import cycle.
type Key interface {
	value.Object
	// Hash returns the key's precomputed FNV-1a hash.
	Hash() uint32
	// Content returns the key's raw bytes, for content-addressed lookup.
	Content() string
}

type entry struct {
	key   Key
	value value.Value
}

// maxLoad is the load-factor ceiling before the table grows; spec.md §3.
const maxLoad = 0.75

// initialCapacity is the capacity of the first non-empty table; spec.md §3.
const initialCapacity = 8

// Table is an open-addressed hash map with linear probing, power-of-two
// capacities, and tombstone-based deletion.
type Table struct {
	count    int // live entries, including tombstones
	entries  []entry
}

// New returns an empty Table. The backing array is allocated lazily on the
// first Set, matching spec.md's "capacity doubles from an initial 8".
func New() *Table {
	return &Table{}
}

// Count returns the number of live (non-tombstone) entries.
func (t *Table) Count() int {
	live := 0
	for _, e := range t.entries {
		if e.key != nil && !isTombstone(e) {
			live++
		}
	}
	return live
}

func isTombstone(e entry) bool {
	return e.key == nil && e.value.IsBool() && e.value.AsBool()
}

func isEmpty(e entry) bool {
	return e.key == nil && e.value.IsNil()
}

// findEntry probes entries (linear, power-of-two mask) for key, returning
// the slot that would hold it: an existing match, the first tombstone seen
// (so insertion reuses it), or the first truly empty slot.
func findEntry(entries []entry, key Key) *entry {
	mask := uint32(len(entries) - 1)
	idx := key.Hash() & mask
	var tombstone *entry
	for {
		e := &entries[idx]
		if e.key == nil {
			if isEmpty(*e) {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			// tombstone
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		idx = (idx + 1) & mask
	}
}

// Get returns the value stored for key, if any.
func (t *Table) Get(key Key) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.NilValue, false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return value.NilValue, false
	}
	return e.value, true
}

// Set stores val under key, growing the table first if the load factor
// would be exceeded. It returns true if key was not already present.
func (t *Table) Set(key Key, val value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow()
	}
	e := findEntry(t.entries, key)
	isNew := e.key == nil
	if isNew && isEmpty(*e) {
		t.count++
	}
	e.key = key
	e.value = val
	return isNew
}

// Delete removes key, leaving a tombstone so later probes still find
// entries that hashed past it.
func (t *Table) Delete(key Key) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = value.BoolValue(true) // tombstone marker
	return true
}

func (t *Table) grow() {
	newCap := initialCapacity
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	newEntries := make([]entry, newCap)
	count := 0
	for _, e := range t.entries {
		if e.key == nil {
			continue // drop tombstones on growth
		}
		dst := findEntry(newEntries, e.key)
		dst.key = e.key
		dst.value = e.value
		count++
	}
	t.entries = newEntries
	t.count = count
}

// FindString looks up an interned string by content rather than by
// pointer identity, for use by the interning table when deciding whether a
// freshly-lexed or freshly-concatenated string already has an interned
// instance. Returns nil if no matching string is interned.
func (t *Table) FindString(chars string, hash uint32) Key {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if isEmpty(*e) {
				return nil
			}
			// tombstone: keep probing
		} else if e.key.Hash() == hash && e.key.Content() == chars {
			return e.key
		}
		idx = (idx + 1) & mask
	}
}

// RemoveWhite deletes every entry whose key the garbage collector did not
// mark this cycle. The intern table holds weak references to strings: it
// must never be the reason an otherwise-unreachable string survives a
// collection. Called by the GC before the sweep phase.
func (t *Table) RemoveWhite() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.IsMarked() {
			t.Delete(e.key)
		}
	}
}

// Each calls f for every live entry. Used by the garbage collector to gray
// a table's keys and values (globals, class method tables, instance field
// tables) during the mark phase.
func (t *Table) Each(f func(key Key, val value.Value)) {
	for _, e := range t.entries {
		if e.key != nil && !isTombstone(e) {
			f(e.key, e.value)
		}
	}
}
