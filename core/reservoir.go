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
	"math/rand"
	"sync"
	"time"

	"github.com/google/btree"
)

// sampleEntry is one value admitted to the training sample (spec.md §4.E).
type sampleEntry struct {
	seq   uint64 // insertion order, the btree's tie-break
	at    time.Time
	key   []byte
	value []byte
}

func sampleLess(a, b *sampleEntry) bool {
	if !a.at.Equal(b.at) {
		return a.at.Before(b.at)
	}
	return a.seq < b.seq
}

// Reservoir implements spec.md §4.E: a Bernoulli-gated Algorithm R reservoir
// sample per namespace, bounded both by item count and total byte size, with
// a time-ordered index (adapted from storage/index.go's btree.BTreeG delta
// index) so entries older than sample_window can be dropped in bulk.
type Reservoir struct {
	cfg *Config

	mu      sync.Mutex
	byNS    map[string]*nsReservoir
	rng     *rand.Rand
}

type nsReservoir struct {
	items   []*sampleEntry
	byTime  *btree.BTreeG[*sampleEntry]
	seen    uint64
	seq     uint64
	byteLen int64
}

func newReservoir(cfg *Config) *Reservoir {
	return &Reservoir{
		cfg:  cfg,
		byNS: make(map[string]*nsReservoir),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Reservoir) nsFor(ns string) *nsReservoir {
	s, ok := r.byNS[ns]
	if !ok {
		s = &nsReservoir{byTime: btree.NewG(16, sampleLess)}
		r.byNS[ns] = s
	}
	return s
}

// Offer admits value into ns's reservoir sample, applying the Bernoulli
// gate and then Algorithm R (spec.md §4.E). ns is the namespace prefix the
// engine already resolved for key.
func (r *Reservoir) Offer(ns string, key, value []byte) {
	if !r.cfg.EnableSampling || r.cfg.SampleP <= 0 {
		return
	}
	if r.rng.Float64() >= r.cfg.SampleP {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.nsFor(ns)
	now := time.Now()
	entry := &sampleEntry{seq: s.seq, at: now, key: append([]byte(nil), key...), value: append([]byte(nil), value...)}
	s.seq++
	s.seen++

	k := int(r.cfg.MinTrainingSize)
	if k <= 0 {
		k = 1
	}
	switch {
	case len(s.items) < k:
		s.items = append(s.items, entry)
		s.byTime.ReplaceOrInsert(entry)
		s.byteLen += int64(len(value))
	default:
		j := r.rng.Int63n(int64(s.seen))
		if j < int64(k) {
			old := s.items[j]
			s.byTime.Delete(old)
			s.byteLen -= int64(len(old.value))
			s.items[j] = entry
			s.byTime.ReplaceOrInsert(entry)
			s.byteLen += int64(len(value))
		}
	}

	r.enforceByteCap(s)
	r.pruneNSExpired(s, now)
}

// enforceByteCap evicts the oldest sample entries while the namespace's
// total sampled bytes exceeds spool_max_bytes's share, keeping the
// reservoir within its configured memory budget (spec.md §4.E).
func (r *Reservoir) enforceByteCap(s *nsReservoir) {
	cap := r.cfg.SpoolMaxBytes
	if cap <= 0 {
		return
	}
	for s.byteLen > cap && len(s.items) > 0 {
		oldest, ok := s.byTime.Min()
		if !ok {
			return
		}
		s.byTime.Delete(oldest)
		s.byteLen -= int64(len(oldest.value))
		for i, e := range s.items {
			if e == oldest {
				s.items = append(s.items[:i], s.items[i+1:]...)
				break
			}
		}
	}
}

func (r *Reservoir) pruneExpired(now time.Time) {
	for _, s := range r.byNS {
		r.pruneNSExpired(s, now)
	}
}

func (r *Reservoir) pruneNSExpired(s *nsReservoir, now time.Time) {
	if r.cfg.SampleWindowDuration <= 0 {
		return
	}
	cutoff := now.Add(-r.cfg.SampleWindowDuration)
	for {
		oldest, ok := s.byTime.Min()
		if !ok || oldest.at.After(cutoff) {
			return
		}
		s.byTime.Delete(oldest)
		s.byteLen -= int64(len(oldest.value))
		for i, e := range s.items {
			if e == oldest {
				s.items = append(s.items[:i], s.items[i+1:]...)
				break
			}
		}
	}
}

// Snapshot returns a copy of ns's current sample values, for the trainer to
// consume without holding the reservoir lock during training.
func (r *Reservoir) Snapshot(ns string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byNS[ns]
	if !ok {
		return nil
	}
	out := make([][]byte, len(s.items))
	for i, e := range s.items {
		out[i] = e.value
	}
	return out
}

// Namespaces lists every namespace with at least one sampled value.
func (r *Reservoir) Namespaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.byNS))
	for ns := range r.byNS {
		out = append(out, ns)
	}
	return out
}

// Size returns the current item count and byte length for ns.
func (r *Reservoir) Size(ns string) (int, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byNS[ns]
	if !ok {
		return 0, 0
	}
	return len(s.items), s.byteLen
}
