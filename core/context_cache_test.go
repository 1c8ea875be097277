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
	"testing"
)

func contextTestConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DictDir = t.TempDir()
	cfg.SpoolDir = ""
	cfg.EnableTraining = false // keep the background tick loop quiet for these tests
	cfg.DictMemoryBudgetBytes = 0
	cfg.MinCompSize = 8
	return cfg
}

func TestNewContextMaybeEncodeDecodeRoundTrip(t *testing.T) {
	c, err := NewContext(contextTestConfig(t))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer c.Stop()

	value := bytes.Repeat([]byte("cacheable payload bytes "), 10)
	frame := c.MaybeEncode([]byte("users/1"), value)
	out, err := c.MaybeDecode(frame)
	if err != nil {
		t.Fatalf("MaybeDecode: %v", err)
	}
	if !bytes.Equal(out, value) {
		t.Fatal("round trip through Context did not reproduce original value")
	}
}

func TestNewContextEmptyManifestStartsWithNoNamespaces(t *testing.T) {
	c, err := NewContext(contextTestConfig(t))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer c.Stop()

	if got := c.ListNamespaces(); len(got) != 0 {
		t.Fatalf("expected no namespaces on a fresh dict dir, got %v", got)
	}
	if c.DictExists(1) {
		t.Fatal("expected no dictionary ids to exist on a fresh dict dir")
	}
}

func TestNewContextSampleFeedsReservoir(t *testing.T) {
	cfg := contextTestConfig(t)
	cfg.SampleP = 1 // always admit, so one Sample call is enough
	c, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer c.Stop()

	c.Sample("ns", []byte("k"), []byte("v"))
	n, _ := c.reserv.Size("ns")
	if n != 1 {
		t.Fatalf("expected Sample to land one entry in the reservoir, got %d", n)
	}
}

func TestNewContextReloadDictionariesAfterManifestSave(t *testing.T) {
	cfg := contextTestConfig(t)
	c, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer c.Stop()

	content := []byte("dictionary content")
	if err := c.backend.WriteDict("9.dict", content); err != nil {
		t.Fatalf("WriteDict: %v", err)
	}
	enc, dec, err := newDictCodec(content, cfg.ZstdLevel)
	if err != nil {
		t.Fatalf("newDictCodec: %v", err)
	}
	meta := &Meta{ID: 9, Prefixes: []string{"x/"}, DictPath: "9.dict"}
	meta.encoder, meta.decoder = enc, dec
	b := newTableBuilder()
	b.addMeta(meta, 0)
	c.engine.publish(b.finish())
	if err := c.saveManifest(); err != nil {
		t.Fatalf("saveManifest: %v", err)
	}

	// a second context over the same DictDir must pick the persisted
	// dictionary back up on construction, then ReloadDictionaries must
	// keep working against the same manifest.
	c2, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer c2.Stop()
	if !c2.DictExists(9) {
		t.Fatal("expected the persisted dictionary to be restored on startup")
	}
	if err := c2.ReloadDictionaries(); err != nil {
		t.Fatalf("ReloadDictionaries: %v", err)
	}
}

func TestNewContextSnapshotStatsAfterEncode(t *testing.T) {
	c, err := NewContext(contextTestConfig(t))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer c.Stop()

	c.MaybeEncode([]byte("k"), bytes.Repeat([]byte("z"), 200))
	snaps := c.SnapshotStats()
	if len(snaps) == 0 {
		t.Fatal("expected at least one namespace snapshot after an encode call")
	}
}
