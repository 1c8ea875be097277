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
	"bufio"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jtolds/gls"
	"github.com/ulikunitz/xz"
)

// retiredNode is one entry of the MPSC retired-table stack (spec.md §4.G):
// many goroutines publish retirements concurrently (the trainer on
// retrain, manifest reload on restore), one background goroutine drains
// them.
type retiredNode struct {
	table *Table
	next  *retiredNode
}

// GC reclaims retired Tables and their evicted Metas once it is safe: all
// readers that acquired the Table before it was retired must have released
// it (the refcount drain), and a configurable cool-off plus quarantine
// period must elapse, mirroring the caution blob-refcount.go applies before
// ever deleting a blob whose refcount could still be nonzero.
type GC struct {
	cfg *Config
	log *Logger

	head atomic.Pointer[retiredNode] // MPSC stack top

	dmu     sync.Mutex
	pending []pendingDeletion // Metas whose quarantine_period hasn't elapsed yet

	stopCh chan struct{}
	doneCh chan struct{}
}

// pendingDeletion is a reclaimed Meta whose on-disk file deletion is
// deferred until quarantine_period has elapsed since the Meta's own
// retired_at (spec.md §4.G, §8 invariant 6, scenario 5).
type pendingDeletion struct {
	meta *Meta
	path string
}

func newGC(cfg *Config, log *Logger) *GC {
	return &GC{cfg: cfg, log: log, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

// enqueueRetired pushes a just-retired Table onto the MPSC stack. Safe to
// call from any goroutine without additional locking: classic
// lock-free-stack CAS push.
func (g *GC) enqueueRetired(t *Table) {
	t.MarkRetired(time.Now())
	n := &retiredNode{table: t}
	for {
		old := g.head.Load()
		n.next = old
		if g.head.CompareAndSwap(old, n) {
			return
		}
	}
}

func (g *GC) drainAll() []*Table {
	old := g.head.Swap(nil)
	var out []*Table
	for n := old; n != nil; n = n.next {
		out = append(out, n.table)
	}
	return out
}

// Start launches the background sweep loop. It is spawned with gls.Go the
// same way storage/scan_order.go launches its parallel scan goroutine, so a
// panic inside the sweep is caught and logged instead of crashing the
// process.
func (g *GC) Start() {
	gls.Go(func() {
		defer close(g.doneCh)
		ticker := time.NewTicker(g.sweepInterval())
		defer ticker.Stop()
		for {
			select {
			case <-g.stopCh:
				return
			case <-ticker.C:
				g.sweepOnce(time.Now())
			}
		}
	})
}

func (g *GC) sweepInterval() time.Duration {
	if g.cfg.GCCoolPeriod > 0 && g.cfg.GCCoolPeriod < time.Second {
		return g.cfg.GCCoolPeriod
	}
	return time.Second
}

func (g *GC) Stop() {
	close(g.stopCh)
	<-g.doneCh
}

// sweepOnce re-queues every pending retired Table, reclaiming the ones past
// their cool-off period with zero live readers, and requeuing the rest.
func (g *GC) sweepOnce(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Errorf("gc sweep panic: %v\n%s", r, debug.Stack())
		}
	}()

	pending := g.drainAll()
	var keep []*Table
	for _, t := range pending {
		age, retired := t.RetiredSince(now)
		if !retired {
			continue
		}
		if age < g.cfg.GCCoolPeriod {
			keep = append(keep, t)
			continue
		}
		if t.readerCount() > 0 {
			// still has live readers past the cool-off window; keep polling
			keep = append(keep, t)
			continue
		}
		g.reclaim(t, now)
	}
	for _, t := range keep {
		g.enqueueKeep(t)
	}
	g.sweepPendingDeletions(now)
}

// sweepPendingDeletions deletes (archiving first) every quarantined Meta's
// dictionary file whose quarantine_period has elapsed since the Meta's own
// retired_at, and re-defers the rest (spec.md §4.G: "if the Meta's
// retired_at is zero or quarantine_period has not elapsed -> defer file
// deletion").
func (g *GC) sweepPendingDeletions(now time.Time) {
	g.dmu.Lock()
	var due, keep []pendingDeletion
	for _, pd := range g.pending {
		if now.Sub(pd.meta.RetiredAt()) >= g.cfg.GCQuarantinePeriod {
			due = append(due, pd)
		} else {
			keep = append(keep, pd)
		}
	}
	g.pending = keep
	g.dmu.Unlock()

	for _, pd := range due {
		if err := g.archiveAndRemove(pd.path); err != nil {
			g.log.Errorf("gc quarantine %s: %v", pd.path, err)
		}
	}
}

// enqueueKeep re-pushes a Table that wasn't ready for reclamation, without
// re-stamping its retirement time.
func (g *GC) enqueueKeep(t *Table) {
	n := &retiredNode{table: t}
	for {
		old := g.head.Load()
		n.next = old
		if g.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// reclaim releases every Meta that is no longer referenced by any live
// Table (refcount dropped to zero) and quarantines its dictionary file
// before eventually deleting it, per spec.md §8 invariant 6: "a dictionary
// file is never deleted before every Meta referencing it has been
// released".
func (g *GC) reclaim(t *Table, now time.Time) {
	seen := make(map[uint16]bool)
	for i := range t.ns {
		for _, m := range t.ns[i].Metas {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			if m.refs.Add(-1) > 0 {
				continue // still referenced by a newer Table that shares this Meta
			}
			g.reclaimMeta(m, now)
		}
	}
}

// reclaimMeta frees m's codec handles immediately (safe: refs already hit
// zero in reclaim) but only queues its dictionary file for deletion -- the
// file itself is deleted (or deferred again) by sweepPendingDeletions once
// m's own retired_at is at least quarantine_period in the past.
func (g *GC) reclaimMeta(m *Meta, now time.Time) {
	m.MarkRetired(now)
	path := m.DictPath
	m.Release()
	if path == "" {
		return
	}
	if g.cfg.GCQuarantinePeriod <= 0 {
		os.Remove(path)
		return
	}
	g.dmu.Lock()
	g.pending = append(g.pending, pendingDeletion{meta: m, path: path})
	g.dmu.Unlock()
}

// archiveAndRemove xz-compresses path into path+".xz" and removes the
// original, the same pipeline as scm/streams.go's "xz" builtin, generalized
// from an interactive stream transform to a one-shot forensic archival step
// run before a quarantined dictionary is finally discarded.
func (g *GC) archiveAndRemove(path string) error {
	in, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	out, err := os.Create(path + ".xz")
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(out, 16*1024)
	zw, err := xz.NewWriter(bw)
	if err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}
