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

import "context"

// Context wires components A-K into the single collaborator surface a host
// cache embeds (spec.md §6): maybe_encode, maybe_decode, decoded_size,
// sample, reload_dictionaries, snapshot_stats, list_namespaces, dict_exists.
// Constructing one Context is the only thing a caller needs to do; every
// background goroutine (trainer, GC, optional exporter) is started and
// stopped alongside it.
type Context struct {
	Config *Config
	Log    *Logger

	engine  *Engine
	stats   *StatsRegistry
	reserv  *Reservoir
	spool   *Spool
	gc      *GC
	trainer *Trainer
	budget  *DictBudget
	events  *EventFeed
	backend ManifestBackend
	pool    *Pool
	watcher *dictDirWatcher

	exporter *StatsExporter
}

// NewContext builds and wires a full Context from cfg, loading any
// existing manifest so a restarted process picks its dictionaries back up
// immediately rather than starting cold.
func NewContext(cfg Config) (*Context, error) {
	log := NewLogger(cfg.Verbose)
	stats := newStatsRegistry()
	gc := newGC(&cfg, log)
	reserv := newReservoir(&cfg)
	spool := newSpool(&cfg, log)

	engine, err := newEngine(&cfg, log, stats, gc, reserv)
	if err != nil {
		return nil, err
	}
	trainer := newTrainer(&cfg, log, engine, reserv, spool)
	engine.SetTrainer(trainer)
	events := newEventFeed()
	trainer.SetEvents(events)
	budget := newDictBudget(cfg.DictMemoryBudgetBytes)
	engine.SetBudget(budget)
	trainer.SetBudget(budget)

	c := &Context{
		Config:  &cfg,
		Log:     log,
		engine:  engine,
		stats:   stats,
		reserv:  reserv,
		spool:   spool,
		gc:      gc,
		trainer: trainer,
		budget:  budget,
		events:  events,
		backend: newManifestBackendFor(&cfg),
		pool:    newPool(&cfg),
	}
	trainer.SetPersist(c.saveManifest)

	if err := c.loadManifest(); err != nil {
		log.Errorf("load manifest: %v", err)
	}

	// only the local file backend has a directory worth watching; S3/Ceph
	// backends are reloaded explicitly via ReloadDictionaries instead.
	if cfg.ManifestBackendType == "" || cfg.ManifestBackendType == "file" {
		watcher, err := newDictDirWatcher(cfg.DictDir, log, func() {
			if err := c.ReloadDictionaries(); err != nil {
				log.Errorf("dict dir watch reload: %v", err)
			}
		})
		if err != nil {
			log.Errorf("watch dict dir %s: %v", cfg.DictDir, err)
		} else {
			c.watcher = watcher
		}
	}

	RegisterShutdownHooks(c.Stop)
	gc.Start()
	trainer.Start()
	return c, nil
}

// newManifestBackendFor picks the ManifestBackend selected by
// cfg.ManifestBackendType, falling back to the local file backend for an
// empty or unrecognized value.
func newManifestBackendFor(cfg *Config) ManifestBackend {
	switch cfg.ManifestBackendType {
	case "s3":
		if cfg.S3Backend != nil {
			return newS3ManifestBackend(*cfg.S3Backend)
		}
	case "ceph":
		if cfg.CephBackend != nil {
			return newCephManifestBackend(*cfg.CephBackend)
		}
	}
	return newFileManifestBackend(cfg.DictDir)
}

func (c *Context) loadManifest() error {
	m, err := LoadManifest(c.backend)
	if err != nil {
		return err
	}
	t, err := m.BuildTable(c.backend, c.Config, c.Config.DictRetainMax)
	if err != nil {
		return err
	}
	c.engine.publish(t)
	c.stats.PruneTo(t.Namespaces())
	return nil
}

// saveManifest serializes the current Table and writes it through the
// backend, called after every successful retrain.
func (c *Context) saveManifest() error {
	t := c.engine.tableSnapshot()
	defer t.Release()

	m := &Manifest{}
	seen := make(map[uint16]bool)
	for i := range t.ns {
		for _, meta := range t.ns[i].Metas {
			if seen[meta.ID] {
				continue
			}
			seen[meta.ID] = true
			m.Entries = append(m.Entries, ManifestEntry{
				ID:        meta.ID,
				Signature: meta.Signature,
				Trace:     meta.Trace.String(),
				Prefixes:  meta.Prefixes,
				DictPath:  meta.DictPath,
			})
		}
	}
	return m.Save(c.backend)
}

// MaybeEncode is the encode collaborator call (spec.md §6).
func (c *Context) MaybeEncode(key, value []byte) []byte {
	return c.engine.MaybeEncode(key, value)
}

// MaybeDecode is the decode collaborator call (spec.md §6).
func (c *Context) MaybeDecode(frame []byte) ([]byte, error) {
	return c.engine.MaybeDecode(frame)
}

// DecodedSize is the decoded_size collaborator call (spec.md §6).
func (c *Context) DecodedSize(frame []byte) (int, error) {
	return c.engine.DecodedSize(frame)
}

// MaybeEncodeAsync runs MaybeEncode on a pool worker (component K), honoring
// async_cmd_enabled / async_block_on_full / async_queue_size, and delivers
// the resulting frame to cb once the worker finishes. Returns
// ErrPoolOverflow immediately if the pool is full and non-blocking.
func (c *Context) MaybeEncodeAsync(ctx context.Context, key, value []byte, cb func([]byte)) error {
	return c.pool.Submit(ctx, func() {
		cb(c.engine.MaybeEncode(key, value))
	})
}

// Sample manually offers a key/value pair to the training sample, backing
// an explicit sample() collaborator call distinct from the automatic
// sampling maybe_encode already performs on every value it handles.
func (c *Context) Sample(namespace string, key, value []byte) {
	c.reserv.Offer(namespace, key, value)
}

// ReloadDictionaries re-reads the manifest and publishes a fresh Table,
// backing reload_dictionaries() (spec.md §6).
func (c *Context) ReloadDictionaries() error {
	if err := c.loadManifest(); err != nil {
		return err
	}
	c.events.Broadcast("reload", "", "dictionaries reloaded from manifest")
	return nil
}

// SnapshotStats returns every namespace's current counters, backing
// snapshot_stats() (spec.md §6).
func (c *Context) SnapshotStats() []Snapshot {
	return c.stats.All()
}

// ListNamespaces backs list_namespaces() (spec.md §6).
func (c *Context) ListNamespaces() []string {
	return c.engine.ListNamespaces()
}

// DictExists backs dict_exists() (spec.md §6).
func (c *Context) DictExists(id uint16) bool {
	return c.engine.DictExists(id)
}

// Events exposes the websocket admin feed's HTTP handler for callers that
// want to mount it (e.g. alongside their own admin HTTP server).
func (c *Context) Events() *EventFeed { return c.events }

// Stop halts every background goroutine and flushes the spool. Registered
// automatically as a shutdown hook via RegisterShutdownHooks.
func (c *Context) Stop() {
	c.trainer.Stop()
	c.gc.Stop()
	c.watcher.Stop()
	c.spool.Close()
	if c.exporter != nil {
		c.exporter.Stop()
	}
	c.events.Close()
}

// EnableStatsExport starts the optional SQL stats exporter (spec.md §10
// domain-stack supplement). Call at most once.
func (c *Context) EnableStatsExport(cfg ExporterConfig) error {
	exp, err := newStatsExporter(cfg, c.stats, c.Log)
	if err != nil {
		return err
	}
	c.exporter = exp
	exp.Start()
	return nil
}
