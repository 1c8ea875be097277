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
	"sync/atomic"

	nlrm "github.com/launix-de/NonLockingReadMap"
)

// NamespaceStats is the atomic counter bundle kept per namespace prefix
// (spec.md §4.H). It satisfies NonLockingReadMap's KeyGetter so the whole
// registry can be published the same way the routing Table is: build a
// fresh snapshot, CAS it in, let old readers drain.
type NamespaceStats struct {
	Prefix string

	EncodedTotal    atomic.Int64
	DecodedTotal    atomic.Int64
	BytesIn         atomic.Int64
	BytesOut        atomic.Int64
	SkippedMinSize  atomic.Int64
	SkippedMaxSize  atomic.Int64
	SkippedIncompr  atomic.Int64
	SkippedNotSmall atomic.Int64
	SkippedDisabled atomic.Int64
	SkippedReplay   atomic.Int64
	DictMisses      atomic.Int64
}

// GetKey implements NonLockingReadMap.KeyGetter.
func (s *NamespaceStats) GetKey() string { return s.Prefix }

// ComputeSize implements NonLockingReadMap.Sizable. The estimate need not be
// exact; it exists so the registry's own footprint can be reported the same
// way the teacher's map-backed structures report theirs.
func (s *NamespaceStats) ComputeSize() uint {
	return uint(len(s.Prefix)) + 11*8
}

func newNamespaceStats(prefix string) *NamespaceStats {
	return &NamespaceStats{Prefix: prefix}
}

// recordSkip bumps the counter matching reason.
func (s *NamespaceStats) recordSkip(reason SkipReason) {
	switch reason {
	case SkipMinSize:
		s.SkippedMinSize.Add(1)
	case SkipMaxSize:
		s.SkippedMaxSize.Add(1)
	case SkipIncompressible:
		s.SkippedIncompr.Add(1)
	case SkipNotSmaller:
		s.SkippedNotSmall.Add(1)
	case SkipDisabled:
		s.SkippedDisabled.Add(1)
	case SkipReplay:
		s.SkippedReplay.Add(1)
	}
}

// Snapshot is a point-in-time copy of NamespaceStats safe to hand to a
// caller (e.g. the admin CLI's JSON dump or the SQL exporter) without exposing
// the live atomics.
type Snapshot struct {
	Prefix          string `json:"prefix"`
	EncodedTotal    int64  `json:"encoded_total"`
	DecodedTotal    int64  `json:"decoded_total"`
	BytesIn         int64  `json:"bytes_in"`
	BytesOut        int64  `json:"bytes_out"`
	SkippedMinSize  int64  `json:"skipped_comp_min_size"`
	SkippedMaxSize  int64  `json:"skipped_comp_max_size"`
	SkippedIncompr  int64  `json:"skipped_comp_incompressible"`
	SkippedNotSmall int64  `json:"skipped_comp_not_smaller"`
	SkippedDisabled int64  `json:"skipped_comp_disabled"`
	SkippedReplay   int64  `json:"skipped_comp_replay"`
	DictMisses      int64  `json:"dict_misses"`
}

func (s *NamespaceStats) snapshot() Snapshot {
	return Snapshot{
		Prefix:          s.Prefix,
		EncodedTotal:    s.EncodedTotal.Load(),
		DecodedTotal:    s.DecodedTotal.Load(),
		BytesIn:         s.BytesIn.Load(),
		BytesOut:        s.BytesOut.Load(),
		SkippedMinSize:  s.SkippedMinSize.Load(),
		SkippedMaxSize:  s.SkippedMaxSize.Load(),
		SkippedIncompr:  s.SkippedIncompr.Load(),
		SkippedNotSmall: s.SkippedNotSmall.Load(),
		SkippedDisabled: s.SkippedDisabled.Load(),
		SkippedReplay:   s.SkippedReplay.Load(),
		DictMisses:      s.DictMisses.Load(),
	}
}

// StatsRegistry is the namespace -> NamespaceStats table (spec.md §4.H),
// backed directly by the vendored read-optimized map: reads happen on
// every encode/decode call and must never block, writes (a brand-new
// namespace showing up) are rare.
type StatsRegistry struct {
	m nlrm.NonLockingReadMap[NamespaceStats, string]
}

func newStatsRegistry() *StatsRegistry {
	return &StatsRegistry{m: nlrm.New[NamespaceStats, string]()}
}

// forPrefix returns the NamespaceStats for prefix, creating and publishing
// one on first use. The race between two goroutines both creating the same
// prefix is resolved by NonLockingReadMap.Set itself: the loser's Set call
// still succeeds (it is a plain insert-or-replace), so in the rare case of
// a concurrent first-touch one side's increment could land on a discarded
// copy; callers tolerate this the same way the teacher's own best-effort
// counters do, since these are diagnostic counters, not accounting ledgers.
func (r *StatsRegistry) forPrefix(prefix string) *NamespaceStats {
	if s := r.m.Get(prefix); s != nil {
		return s
	}
	s := newNamespaceStats(prefix)
	if existing := r.m.Set(s); existing != nil {
		return existing
	}
	return s
}

// All returns a snapshot of every namespace currently tracked.
func (r *StatsRegistry) All() []Snapshot {
	items := r.m.GetAll()
	out := make([]Snapshot, 0, len(items))
	for _, s := range items {
		out = append(out, s.snapshot())
	}
	return out
}

// PruneTo drops every tracked namespace's counters except those listed in
// keep, called after a manifest reload rebuilds the routing Table with a
// possibly different namespace set (spec.md §4.H "Rebuild", §8 invariant 8:
// "rebuild preserves counters for retained namespaces and resets counters
// for newly added namespaces"). A namespace in keep that PruneTo has never
// seen needs no action: forPrefix already starts any namespace at zero the
// first time it is touched, so "reset" falls out of the existing lazy
// creation rather than needing an explicit zeroing step here.
func (r *StatsRegistry) PruneTo(keep []string) {
	keepSet := make(map[string]bool, len(keep))
	for _, prefix := range keep {
		keepSet[prefix] = true
	}
	for _, s := range r.m.GetAll() {
		if !keepSet[s.Prefix] {
			r.m.Remove(s.Prefix)
		}
	}
}
