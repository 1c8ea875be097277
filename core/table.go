/*
Copyright (C) 2026  MemCP Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package core

import (
	"bytes"
	"sync/atomic"
	"time"
)

// NS is a namespace entry (spec.md §3): a key-prefix class routed to a
// dedicated dictionary.
type NS struct {
	Prefix  string
	Metas   []*Meta // all Metas retained for this namespace, oldest first
	Default *Meta   // most recently trained Meta; encode routes here
}

// Table is an immutable routing snapshot (spec.md §3/§4.C). It is built
// once by the trainer or by manifest reload and never mutated afterwards;
// a new Table is built and swapped in atomically. This mirrors
// storage/shard.go's rebuild()-produces-a-fresh-struct-and-swaps-a-pointer
// idea and storage/transaction.go's snapshot-epoch idea, generalized from
// "one shard's delta storage" to "the whole dictionary routing table".
type Table struct {
	ns          []NS
	byID        [int(DictIDMax) + 1]*Meta // sparse, index 0 unused (DictIDNone has no Meta)
	onlyDefault bool
	defaultMeta *Meta

	readers   atomic.Int64 // live reader refcount, drained before reclamation
	retiredAt atomic.Int64 // UnixNano when pushed to the GC; 0 while current
}

// newTable builds an empty Table with no namespaces and no default.
func newTable() *Table {
	return &Table{}
}

// Acquire bumps the reader refcount; callers MUST call Release when done.
// This is the "reader count... around iteration" mechanism of spec.md §4.C.
func (t *Table) Acquire() { t.readers.Add(1) }

// Release drops the reader refcount acquired via Acquire.
func (t *Table) Release() { t.readers.Add(-1) }

func (t *Table) readerCount() int64 { return t.readers.Load() }

// MarkRetired stamps the Table with its retirement time, idempotently.
func (t *Table) MarkRetired(now time.Time) {
	t.retiredAt.CompareAndSwap(0, now.UnixNano())
}

// RetiredSince reports how long ago the Table was retired, or false if it
// is still the current table.
func (t *Table) RetiredSince(now time.Time) (time.Duration, bool) {
	ns := t.retiredAt.Load()
	if ns == 0 {
		return 0, false
	}
	return now.Sub(time.Unix(0, ns)), true
}

// LookupByPrefix implements spec.md §4.C's exact-"startswith" longest-
// prefix-wins rule, with insertion order as the stable tie-break (§4.D).
func (t *Table) LookupByPrefix(key []byte) *Meta {
	if t.onlyDefault {
		return t.defaultMeta
	}
	var best *Meta
	bestLen := -1
	for i := range t.ns {
		e := &t.ns[i]
		if len(e.Prefix) > bestLen && bytes.HasPrefix(key, []byte(e.Prefix)) {
			best = e.Default
			bestLen = len(e.Prefix)
		}
	}
	if best == nil {
		return t.defaultMeta
	}
	return best
}

// LookupByID implements spec.md §4.C's id lookup. Returns nil for
// DictIDNone (the caller must special-case "no dictionary" before calling)
// and for any id outside the live table, which the engine reports as
// ErrDictMiss.
func (t *Table) LookupByID(id uint16) *Meta {
	if id == 0 || id > DictIDMax {
		return nil
	}
	return t.byID[id]
}

// Namespaces returns the ordered prefixes currently registered, backing
// list_namespaces().
func (t *Table) Namespaces() []string {
	out := make([]string, len(t.ns))
	for i := range t.ns {
		out[i] = t.ns[i].Prefix
	}
	return out
}

// DictExists reports whether id is live in this Table.
func (t *Table) DictExists(id uint16) bool {
	return t.LookupByID(id) != nil
}

// tableBuilder assembles a new Table incrementally; used by the trainer
// (F) and by manifest reload (J).
type tableBuilder struct {
	tbl *Table
	// index by prefix for O(1) "does this NS already exist" during build
	idx map[string]int
	// overflowMetas accumulates Metas evicted by the retention cap during
	// build, so the caller can route them to the GC after publication.
	overflowMetas []*Meta
	// counted tracks which Meta ids have already had their Table refcount
	// bumped for this build, so a Meta serving several prefixes is only
	// counted once per Table (gc.go decrements exactly once per Table on
	// reclaim).
	counted map[uint16]bool
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{tbl: newTable(), idx: make(map[string]int), counted: make(map[uint16]bool)}
}

// addMeta registers meta's id in the id array and appends it to every
// namespace it serves, creating NS entries as needed. The last meta added
// for a given prefix becomes that NS's Default, matching "most recently
// trained Meta" (spec.md §3).
func (b *tableBuilder) addMeta(meta *Meta, retainMax int) {
	if meta.ID != 0 && meta.ID <= DictIDMax {
		b.tbl.byID[meta.ID] = meta
	}
	if !b.counted[meta.ID] {
		b.counted[meta.ID] = true
		meta.refs.Add(1)
	}
	for _, prefix := range meta.Prefixes {
		i, ok := b.idx[prefix]
		if !ok {
			i = len(b.tbl.ns)
			b.idx[prefix] = i
			b.tbl.ns = append(b.tbl.ns, NS{Prefix: prefix})
		}
		e := &b.tbl.ns[i]
		e.Metas = append(e.Metas, meta)
		e.Default = meta
		if retainMax > 0 && len(e.Metas) > retainMax {
			// retire the oldest retained Metas beyond the cap (§4.F step 5);
			// the caller collects these via overflow() to hand to the GC.
			overflow := len(e.Metas) - retainMax
			b.overflowMetas = append(b.overflowMetas, e.Metas[:overflow]...)
			e.Metas = append([]*Meta{}, e.Metas[overflow:]...)
		}
	}
}

// overflow returns and clears the Metas evicted by the retention cap
// during build.
func (b *tableBuilder) overflow() []*Meta {
	out := b.overflowMetas
	b.overflowMetas = nil
	return out
}

func (b *tableBuilder) setDefault(meta *Meta) {
	b.tbl.defaultMeta = meta
}

func (b *tableBuilder) finish() *Table {
	b.tbl.onlyDefault = len(b.tbl.ns) == 0
	return b.tbl
}
