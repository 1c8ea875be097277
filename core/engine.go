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

	"github.com/klauspost/compress/zstd"
)

// Engine implements the maybe_encode / maybe_decode / decoded_size
// collaborator surface of spec.md §4.D. It holds the current routing
// Table behind a single atomic pointer, swapped by the trainer (F) and by
// manifest reload (J); this is the RCU publication mechanism of spec.md §5.
type Engine struct {
	cfg   *Config
	log   *Logger
	stats *StatsRegistry
	gc    *GC

	current atomic.Pointer[Table]
	reserv  *Reservoir
	drift   *DriftDetector
	trainer *Trainer // set once via SetTrainer during wiring

	noDictEnc *zstd.Encoder // dictionaryless codec, built once at startup
	noDictDec *zstd.Decoder

	budget *DictBudget // optional: tracks live dictionary memory usage
}

// SetBudget wires the memory-budget tracker (cachemanager.go); every
// successful dictionary use touches it so its LRU ordering reflects actual
// traffic rather than training recency alone.
func (e *Engine) SetBudget(b *DictBudget) { e.budget = b }

func newEngine(cfg *Config, log *Logger, stats *StatsRegistry, gc *GC, reserv *Reservoir) (*Engine, error) {
	enc, dec, err := newDictCodec(nil, cfg.ZstdLevel)
	if err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, log: log, stats: stats, gc: gc, reserv: reserv, drift: newDriftDetector(cfg), noDictEnc: enc, noDictDec: dec}
	e.current.Store(newTable())
	return e, nil
}

// tableSnapshot acquires the current Table for the duration of one call.
// Callers MUST call Release on the returned Table when done.
func (e *Engine) tableSnapshot() *Table {
	t := e.current.Load()
	t.Acquire()
	return t
}

// publish swaps in next and retires prev through the GC, draining readers
// before prev's Metas become eligible for reclamation (spec.md §4.G).
func (e *Engine) publish(next *Table) {
	prev := e.current.Swap(next)
	if prev != nil {
		e.gc.enqueueRetired(prev)
	}
}

// MaybeEncode implements spec.md §4.D's encode path: probe, route, compress,
// emit header, and fall back to the raw frame on any disqualification.
func (e *Engine) MaybeEncode(key, value []byte) []byte {
	t := e.tableSnapshot()
	defer t.Release()

	prefix := ""
	if m := t.LookupByPrefix(key); m != nil && len(m.Prefixes) > 0 {
		prefix = m.Prefixes[0]
	}
	stats := e.stats.forPrefix(prefix)

	if !e.cfg.EnableComp {
		stats.recordSkip(SkipDisabled)
		e.maybeSample(prefix, key, value)
		return rawFrame(value)
	}
	n := len(value)
	if int64(n) < e.cfg.MinCompSize {
		stats.recordSkip(SkipMinSize)
		e.maybeSample(prefix, key, value)
		return rawFrame(value)
	}
	if e.cfg.MaxCompSize > 0 && int64(n) > e.cfg.MaxCompSize {
		stats.recordSkip(SkipMaxSize)
		e.maybeSample(prefix, key, value)
		return rawFrame(value)
	}
	if probeIncompressibility(value, trialCompress) == probeIncompressible {
		stats.recordSkip(SkipIncompressible)
		e.maybeSample(prefix, key, value)
		return rawFrame(value)
	}

	var meta *Meta
	if e.cfg.EnableDict {
		meta = t.LookupByPrefix(key)
		if meta != nil && e.budget != nil {
			e.budget.Touch(prefix)
		}
	}

	frame, ok := e.compressWith(meta, value)
	if !ok {
		stats.recordSkip(SkipNotSmaller)
		e.maybeSample(prefix, key, value)
		return rawFrame(value)
	}

	stats.EncodedTotal.Add(1)
	stats.BytesIn.Add(int64(n))
	stats.BytesOut.Add(int64(len(frame)))
	e.reportRatio(prefix, n, len(frame))
	e.maybeSample(prefix, key, value)
	return frame
}

// compressWith compresses value using meta's dictionary-bound encoder, or
// the dictionaryless encoder when meta is nil, and enforces spec.md §4.D's
// "must be strictly smaller than raw, including the header" rule.
func (e *Engine) compressWith(meta *Meta, value []byte) ([]byte, bool) {
	enc := e.noDictEnc
	id := DictIDNone
	if meta != nil && meta.encoder != nil {
		enc = meta.encoder
		id = meta.ID
	}

	s := acquireScratch()
	defer releaseScratch(s)
	s.buf = s.buf[:HeaderSize]
	putHeader(s.buf, id)
	s.buf = enc.EncodeAll(value, s.buf)

	if len(s.buf) >= len(value) {
		return nil, false
	}
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out, true
}

// MaybeDecode implements spec.md §4.D's decode path.
func (e *Engine) MaybeDecode(frame []byte) ([]byte, error) {
	if len(frame) < HeaderSize {
		return nil, ErrShortFrame
	}
	id := readHeader(frame)
	payload := frame[HeaderSize:]

	if id == DictIDRaw {
		out := make([]byte, len(payload))
		copy(out, payload)
		e.stats.forPrefix("").DecodedTotal.Add(1)
		return out, nil
	}

	if id == DictIDNone {
		out, err := e.noDictDec.DecodeAll(payload, nil)
		if err != nil {
			return nil, ErrDecompress
		}
		e.stats.forPrefix("").DecodedTotal.Add(1)
		return out, nil
	}

	t := e.tableSnapshot()
	defer t.Release()
	meta := t.LookupByID(id)
	if meta == nil || meta.decoder == nil {
		e.stats.forPrefix("").DictMisses.Add(1)
		return nil, ErrDictMiss
	}
	out, err := meta.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, ErrDecompress
	}
	prefix := ""
	if len(meta.Prefixes) > 0 {
		prefix = meta.Prefixes[0]
	}
	e.stats.forPrefix(prefix).DecodedTotal.Add(1)
	return out, nil
}

// DecodedSize reports the decompressed length of frame, for callers that
// only need a size estimate rather than the payload itself.
func (e *Engine) DecodedSize(frame []byte) (int, error) {
	out, err := e.MaybeDecode(frame)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

// DictExists reports whether id is live in the current Table, backing the
// dict_exists() collaborator call.
func (e *Engine) DictExists(id uint16) bool {
	t := e.tableSnapshot()
	defer t.Release()
	return t.DictExists(id)
}

// ListNamespaces backs list_namespaces().
func (e *Engine) ListNamespaces() []string {
	t := e.tableSnapshot()
	defer t.Release()
	return t.Namespaces()
}

func (e *Engine) maybeSample(prefix string, key, value []byte) {
	if e.reserv != nil {
		e.reserv.Offer(prefix, key, value)
	}
}

// reportRatio feeds one encode outcome to the drift detector and, if the
// namespace has drifted past the configured threshold, asks the trainer
// to retrain it out-of-band (spec.md §4.I -> §4.F).
func (e *Engine) reportRatio(prefix string, rawLen, compLen int) {
	if e.drift == nil {
		return
	}
	if e.drift.Observe(prefix, rawLen, compLen) && e.trainer != nil {
		e.trainer.RequestRetrain(prefix)
	}
}

// SetTrainer wires the trainer the drift detector notifies. Called once
// during startup wiring, after both the Engine and Trainer exist.
func (e *Engine) SetTrainer(t *Trainer) { e.trainer = t }

func rawFrame(value []byte) []byte {
	out := make([]byte, HeaderSize+len(value))
	putHeader(out, DictIDRaw)
	copy(out[HeaderSize:], value)
	return out
}
