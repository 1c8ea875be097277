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
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jtolds/gls"
)

// Trainer implements spec.md §4.F: the background goroutine that watches
// per-namespace sample growth and drift signals, and when a namespace
// qualifies, trains a fresh dictionary and publishes a new routing Table.
// The publish step rebuilds the whole Table rather than mutating the live
// one in place, the same copy-on-write idea as storage/shard.go's
// rebuild(): the old Table (and the old struct's "next" link, here the GC's
// retired-stack push) stays valid for any reader still iterating it.
type Trainer struct {
	cfg    *Config
	log    *Logger
	engine *Engine
	reserv *Reservoir
	spool  *Spool
	ids    *idAllocator

	mu          sync.Mutex
	lastTrained map[string]time.Time
	retrainReq  map[string]bool

	events  *EventFeed
	persist func() error // optional: persists the manifest after a publish
	budget  *DictBudget

	stopCh chan struct{}
	doneCh chan struct{}
}

// SetEvents attaches the admin event feed; retrains broadcast once this is
// set. Optional: a Trainer with no feed attached simply trains silently.
func (tr *Trainer) SetEvents(f *EventFeed) { tr.events = f }

// SetPersist attaches a callback invoked after every successful publish, so
// the manifest on disk (or on a remote backend) never falls behind the live
// routing Table for more than one training tick.
func (tr *Trainer) SetPersist(fn func() error) { tr.persist = fn }

// SetBudget wires the memory-budget tracker; every freshly trained
// dictionary registers its size so the budget's LRU eviction has something
// to track from the moment it is published.
func (tr *Trainer) SetBudget(b *DictBudget) { tr.budget = b }

func newTrainer(cfg *Config, log *Logger, engine *Engine, reserv *Reservoir, spool *Spool) *Trainer {
	return &Trainer{
		cfg:         cfg,
		log:         log,
		engine:      engine,
		reserv:      reserv,
		spool:       spool,
		ids:         newIDAllocator(),
		lastTrained: make(map[string]time.Time),
		retrainReq:  make(map[string]bool),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// RequestRetrain marks ns for retraining at the next tick, called by the
// drift detector (I) when a namespace's compression ratio has drifted past
// retrain_drop.
func (tr *Trainer) RequestRetrain(ns string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.retrainReq[ns] = true
}

// Start launches the periodic training loop on a gls.Go goroutine, like
// gc.go's sweep loop; tick recovers a panic mid-training and logs it
// rather than taking down the process.
func (tr *Trainer) Start() {
	if !tr.cfg.EnableTraining {
		close(tr.doneCh)
		return
	}
	gls.Go(func() {
		defer close(tr.doneCh)
		interval := time.Duration(tr.cfg.RetrainingIntervalS) * time.Second
		if interval <= 0 {
			interval = time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-tr.stopCh:
				return
			case <-ticker.C:
				tr.tick(time.Now())
			}
		}
	})
}

func (tr *Trainer) Stop() {
	close(tr.stopCh)
	<-tr.doneCh
}

// tick evaluates every namespace whose sample holds at least
// min_training_size bytes and retrains the ones that either never had a
// dictionary, were explicitly flagged (by drift or a budget eviction), or
// were last trained at least training_window_duration ago (spec.md §4.F
// steps 1-2).
func (tr *Trainer) tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			tr.log.Errorf("trainer tick panic: %v\n%s", r, debug.Stack())
		}
	}()

	due := tr.duePrefixes(now)
	if len(due) == 0 {
		return
	}

	builder := newTableBuilder()
	prev := tr.engine.current.Load()
	prev.Acquire()
	defer prev.Release()

	// carry forward every existing namespace's current Metas untouched,
	// then overwrite/add the ones due for retraining.
	for i := range prev.ns {
		for _, m := range prev.ns[i].Metas {
			builder.addMeta(m, tr.cfg.DictRetainMax)
		}
	}

	assigned := make(map[uint16]bool)
	for _, ns := range due {
		samples := tr.corpusFor(ns)
		if len(samples) == 0 {
			continue
		}
		mode, _ := parseTrainMode(tr.cfg.TrainMode)
		content := buildDictionary(samples, int(tr.cfg.DictSize), mode)
		if len(content) == 0 {
			continue
		}
		meta, err := tr.materialize(ns, content, assigned)
		if err != nil {
			tr.log.Errorf("train %s: %v", ns, err)
			continue
		}
		assigned[meta.ID] = true
		builder.addMeta(meta, tr.cfg.DictRetainMax)
		builder.setDefault(meta)
		if tr.budget != nil {
			tr.budget.Track(ns, int64(len(content)), func(evictedNS string) {
				tr.RequestRetrain(evictedNS)
			})
		}
		tr.mu.Lock()
		tr.lastTrained[ns] = now
		delete(tr.retrainReq, ns)
		tr.mu.Unlock()
		tr.engine.drift.ResetBaseline(ns)
		if tr.events != nil {
			tr.events.Broadcast("retrain", ns, fmtDetail("dict id %d trained from %d bytes", meta.ID, len(content)))
		}
	}

	next := builder.finish()
	tr.engine.publish(next)
	for _, m := range builder.overflow() {
		tr.engine.gc.enqueueRetired(singleMetaTable(m))
	}
	if tr.persist != nil {
		if err := tr.persist(); err != nil {
			tr.log.Errorf("persist manifest: %v", err)
		}
	}
}

// duePrefixes decides which namespaces qualify for (re)training this tick.
func (tr *Trainer) duePrefixes(now time.Time) []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, ns := range tr.reserv.Namespaces() {
		if seen[ns] {
			continue
		}
		_, bytes := tr.reserv.Size(ns)
		if bytes < tr.cfg.MinTrainingSize {
			continue
		}
		last, trained := tr.lastTrained[ns]
		if tr.retrainReq[ns] || !trained || now.Sub(last) >= tr.cfg.TrainingWindowDuration {
			seen[ns] = true
			out = append(out, ns)
		}
	}
	return out
}

// corpusFor gathers ns's in-memory reservoir sample plus anything spooled
// to disk, giving the dictionary builder the fullest corpus available.
func (tr *Trainer) corpusFor(ns string) [][]byte {
	samples := tr.reserv.Snapshot(ns)
	if tr.spool != nil {
		if spilled, err := tr.spool.Replay(ns); err == nil {
			samples = append(samples, spilled...)
		}
	}
	return samples
}

// materialize writes content to disk, builds its codec pair, and returns a
// fresh Meta with a newly allocated id (spec.md §4.F step 3: allocate an id
// not currently live in the Table). assigned carries every id already
// handed out earlier in this same tick's due-namespace loop, so two
// namespaces trained in one tick can never collide even if their candidate
// ids happen to coincide (invariant 4: pairwise-distinct ids in a published
// Table) -- checking the live Table alone isn't enough, since a sibling
// namespace's Meta from this tick hasn't been published yet.
func (tr *Trainer) materialize(ns string, content []byte, assigned map[uint16]bool) (*Meta, error) {
	var id uint16
	for {
		candidate := tr.ids.next()
		t := tr.engine.current.Load()
		if !t.DictExists(candidate) && !assigned[candidate] {
			id = candidate
			break
		}
	}

	path := ""
	if tr.cfg.DictDir != "" {
		if err := os.MkdirAll(tr.cfg.DictDir, 0750); err != nil {
			return nil, err
		}
		path = filepath.Join(tr.cfg.DictDir, ProcessSpoolName(ns)+".dict")
		if err := writeFileAtomic(path, content); err != nil {
			return nil, err
		}
	}

	enc, dec, err := newDictCodec(content, tr.cfg.ZstdLevel)
	if err != nil {
		return nil, err
	}

	m := &Meta{
		ID:        id,
		Signature: fnvSignature(content),
		Trace:     newTraceID(&trainerTraceCounter),
		DictPath:  path,
		Prefixes:  []string{ns},
		Bytes:     content,
	}
	m.encoder = enc
	m.decoder = dec
	return m, nil
}

// trainerTraceCounter feeds newTraceID's counter-mixing trick (meta.go);
// one shared counter is enough since it only needs to vary between calls,
// not to be private per Trainer instance.
var trainerTraceCounter atomic.Uint64

// writeFileAtomic writes data to a temp file and renames it into place,
// the same crash-safe publish pattern as persistence-files.go's
// schema.json write (write, then atomically replace).
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// singleMetaTable wraps one overflow Meta in a minimal Table so the GC can
// track and reclaim it through the same retirement path as a whole
// generation's Table, without special-casing a lone Meta.
func singleMetaTable(m *Meta) *Table {
	b := newTableBuilder()
	b.addMeta(m, 0)
	return b.finish()
}
