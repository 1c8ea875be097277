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
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// ManifestEntry describes one dictionary on disk (spec.md §4.J): enough to
// rebuild a Table from the manifest alone, without re-reading the trainer's
// in-memory state.
type ManifestEntry struct {
	ID         uint16    `json:"id"`
	Signature  uint64    `json:"signature"`
	Trace      string    `json:"trace"`
	Prefixes   []string  `json:"prefixes"`
	DictPath   string    `json:"dict_path"`
	TrainedAt  time.Time `json:"trained_at"`
}

// Manifest is the on-disk record of every live dictionary, persisted as
// JSON the same way storage/persistence-files.go treats schema.json: a
// full-file rewrite guarded by an atomic rename, with a ".old" backup kept
// around in case the new write is ever found truncated or corrupt.
type Manifest struct {
	Entries []ManifestEntry `json:"entries"`
}

// ManifestBackend is the pluggable persistence surface for the manifest and
// its dictionary files (spec.md §4.J "remote replication is optional"),
// mirroring storage/persistence.go's PersistenceEngine interface:
// one small interface, several concrete backends (local files, S3, Ceph).
type ManifestBackend interface {
	ReadManifest() ([]byte, error)
	WriteManifest(data []byte) error
	ReadDict(name string) ([]byte, error)
	WriteDict(name string, data []byte) error
	RemoveDict(name string) error
}

// LoadManifest reads and parses the manifest from backend, tolerating a
// missing manifest (first run) by returning an empty one.
func LoadManifest(backend ManifestBackend) (*Manifest, error) {
	data, err := backend.ReadManifest()
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return &Manifest{}, nil
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save serializes m and writes it through backend.
func (m *Manifest) Save(backend ManifestBackend) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return backend.WriteManifest(data)
}

// BuildTable reconstructs a routing Table from the manifest's entries,
// reading each dictionary's bytes through backend and rebuilding its
// codec pair, for startup and for admin-triggered reload_dictionaries()
// (spec.md §6).
func (m *Manifest) BuildTable(backend ManifestBackend, cfg *Config, retainMax int) (*Table, error) {
	builder := newTableBuilder()
	for _, e := range m.Entries {
		content, err := backend.ReadDict(filepath.Base(e.DictPath))
		if err != nil {
			continue // a missing dictionary file drops that entry rather than failing the whole reload
		}
		enc, dec, err := newDictCodec(content, cfg.ZstdLevel)
		if err != nil {
			continue
		}
		meta := &Meta{
			ID:        e.ID,
			Signature: e.Signature,
			DictPath:  e.DictPath,
			Prefixes:  e.Prefixes,
			Bytes:     content,
		}
		meta.encoder = enc
		meta.decoder = dec
		builder.addMeta(meta, retainMax)
		builder.setDefault(meta)
	}
	return builder.finish(), nil
}

// fileManifestBackend is the default backend: one directory on local disk
// holding manifest.json and every *.dict file, with atomic
// write-then-rename the same way persistence-files.go writes schema.json.
type fileManifestBackend struct {
	dir string
}

func newFileManifestBackend(dir string) *fileManifestBackend {
	return &fileManifestBackend{dir: dir}
}

func (b *fileManifestBackend) manifestPath() string { return filepath.Join(b.dir, "manifest.json") }

func (b *fileManifestBackend) ReadManifest() ([]byte, error) {
	data, err := os.ReadFile(b.manifestPath())
	if err != nil && os.IsNotExist(err) {
		return nil, err
	}
	return data, err
}

func (b *fileManifestBackend) WriteManifest(data []byte) error {
	if err := os.MkdirAll(b.dir, 0750); err != nil {
		return err
	}
	path := b.manifestPath()
	if stat, err := os.Stat(path); err == nil && stat.Size() > 0 {
		os.Rename(path, path+".old")
	}
	return writeFileAtomic(path, data)
}

func (b *fileManifestBackend) ReadDict(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(b.dir, name))
}

func (b *fileManifestBackend) WriteDict(name string, data []byte) error {
	if err := os.MkdirAll(b.dir, 0750); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(b.dir, name), data)
}

func (b *fileManifestBackend) RemoveDict(name string) error {
	return os.Remove(filepath.Join(b.dir, name))
}
