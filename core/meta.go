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
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Meta is a dictionary's identity, handles and paths (spec.md §3). Id is
// immutable once assigned; Encoder/Decoder live for the Meta's full
// lifetime and are only released when the GC (G) reclaims it.
type Meta struct {
	ID        uint16
	Signature uint64 // stable hash of the dictionary bytes
	Trace     uuid.UUID

	DictPath     string
	ManifestPath string
	Prefixes     []string // namespace prefixes this dictionary serves

	Bytes []byte // raw dictionary content, referenced (not copied) by codecs

	encoder *zstd.Encoder // dictionary-bound, shared across callers (D)
	decoder *zstd.Decoder

	retiredAt atomic.Int64 // UnixNano, 0 while live
	refs      atomic.Int32 // live Table references (see gc.go)
}

// RetiredAt returns the retirement timestamp, or the zero Time if still live.
func (m *Meta) RetiredAt() time.Time {
	ns := m.retiredAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// MarkRetired stamps the Meta with its retirement time exactly once.
func (m *Meta) MarkRetired(now time.Time) {
	m.retiredAt.CompareAndSwap(0, now.UnixNano())
}

func (m *Meta) IsRetired() bool { return m.retiredAt.Load() != 0 }

// Release frees the dictionary-bound codec handles. Only the GC (G) may
// call this, and only after the reclamation-ordering invariant (spec.md §8
// invariant 6) has been satisfied.
func (m *Meta) Release() {
	if m.encoder != nil {
		m.encoder.Close()
		m.encoder = nil
	}
	if m.decoder != nil {
		m.decoder.Close()
		m.decoder = nil
	}
	m.Bytes = nil
}

// idAllocator hands out unique dictionary ids in [DictIDMin, DictIDMax],
// mixing a monotonic counter with a timestamp the same way fast_uuid.go's
// newUUID does, to spread ids and make accidental collisions with a
// recently-retired id unlikely even across process restarts that reuse the
// dict_dir.
type idAllocator struct {
	counter atomic.Uint64
	seed    uint64
}

func newIDAllocator() *idAllocator {
	return &idAllocator{seed: uint64(time.Now().UnixNano())}
}

// next returns a candidate id; callers must still verify it is not live in
// the current Table (spec.md §4.F step 3) before assigning it.
func (a *idAllocator) next() uint16 {
	ctr := a.counter.Add(1)
	mixed := ctr ^ a.seed ^ (a.seed << 17)
	span := uint64(DictIDMax-DictIDMin) + 1
	return DictIDMin + uint16(mixed%span)
}

// newTraceID produces a low-entropy but unique uuid for manifest tracing,
// reusing fast_uuid.go's counter-mixing trick instead of crypto/rand so
// manifest writes never stall on entropy.
func newTraceID(counter *atomic.Uint64) uuid.UUID {
	ctr := counter.Add(1)
	now := uint64(time.Now().UnixNano())
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], ctr)
	binary.LittleEndian.PutUint64(b[8:16], ctr^now^(now<<17))
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b)
}

// fnvSignature computes a stable 64-bit hash of dictionary bytes, used as
// Meta.Signature. FNV-1a is allocation-free and deterministic, which is all
// the signature needs to be (it is a diagnostic/dedup aid, not a security
// boundary).
func fnvSignature(b []byte) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= prime64
	}
	return h
}
