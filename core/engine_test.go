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

func engineTestConfig() *Config {
	return &Config{
		EnableComp:  true,
		EnableDict:  true,
		ZstdLevel:   3,
		MinCompSize: 8,
		MaxCompSize: 1 << 20,
		EWMAAlpha:   0.1,
		RetrainDrop: 0.5,
	}
}

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	e, err := newEngine(cfg, NewLogger(false), newStatsRegistry(), newGC(cfg, NewLogger(false)), newReservoir(cfg))
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	return e
}

func TestMaybeEncodeDecodeRoundTripDictionaryless(t *testing.T) {
	cfg := engineTestConfig()
	cfg.EnableDict = false
	e := newTestEngine(t, cfg)

	value := bytes.Repeat([]byte("highly compressible payload data "), 20)
	frame := e.MaybeEncode([]byte("k"), value)

	out, err := e.MaybeDecode(frame)
	if err != nil {
		t.Fatalf("MaybeDecode: %v", err)
	}
	if !bytes.Equal(out, value) {
		t.Fatal("round trip did not reproduce original value")
	}
}

func TestMaybeEncodeFallsBackToRawBelowMinSize(t *testing.T) {
	cfg := engineTestConfig()
	e := newTestEngine(t, cfg)

	value := []byte("tiny")
	frame := e.MaybeEncode([]byte("k"), value)
	if !IsRawFrame(frame) {
		t.Fatal("expected a raw frame for a value below MinCompSize")
	}
	out, err := e.MaybeDecode(frame)
	if err != nil || !bytes.Equal(out, value) {
		t.Fatalf("raw round trip failed: out=%v err=%v", out, err)
	}
}

func TestMaybeEncodeFallsBackToRawWhenDisabled(t *testing.T) {
	cfg := engineTestConfig()
	cfg.EnableComp = false
	e := newTestEngine(t, cfg)

	value := bytes.Repeat([]byte("x"), 500)
	frame := e.MaybeEncode([]byte("k"), value)
	if !IsRawFrame(frame) {
		t.Fatal("expected a raw frame when compression is disabled")
	}
}

func TestMaybeEncodeFallsBackToRawForIncompressibleData(t *testing.T) {
	cfg := engineTestConfig()
	e := newTestEngine(t, cfg)

	// xorshift PRNG output is high-entropy, deterministic and reproducible,
	// unlike crypto/rand, matching probe_test.go's approach.
	var x uint32 = 88172645
	value := make([]byte, 4096)
	for i := range value {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		value[i] = byte(x)
	}
	frame := e.MaybeEncode([]byte("k"), value)
	if !IsRawFrame(frame) {
		t.Fatal("expected a raw frame for high-entropy data")
	}
}

func TestMaybeEncodeRoutesThroughDictionary(t *testing.T) {
	cfg := engineTestConfig()
	e := newTestEngine(t, cfg)

	content := bytes.Repeat([]byte("structured-namespace-payload-content "), 64)
	dict := buildDictionary([][]byte{content, content, content}, 512, trainFast)
	enc, dec, err := newDictCodec(dict, cfg.ZstdLevel)
	if err != nil {
		t.Fatalf("newDictCodec: %v", err)
	}
	meta := &Meta{ID: 7, Prefixes: []string{"users/"}, encoder: enc, decoder: dec}

	b := newTableBuilder()
	b.addMeta(meta, 0)
	b.setDefault(meta)
	e.publish(b.finish())

	frame := e.MaybeEncode([]byte("users/42"), content)
	if IsRawFrame(frame) {
		t.Fatal("expected value to route through the trained dictionary, not fall back to raw")
	}
	out, err := e.MaybeDecode(frame)
	if err != nil {
		t.Fatalf("MaybeDecode via dictionary: %v", err)
	}
	if !bytes.Equal(out, content) {
		t.Fatal("dictionary round trip did not reproduce original value")
	}
}

func TestMaybeDecodeIncrementsDecodedTotal(t *testing.T) {
	cfg := engineTestConfig()
	cfg.EnableDict = false
	e := newTestEngine(t, cfg)

	value := bytes.Repeat([]byte("abc"), 100)
	frame := e.MaybeEncode([]byte("k"), value)
	if _, err := e.MaybeDecode(frame); err != nil {
		t.Fatalf("MaybeDecode: %v", err)
	}

	snap := e.stats.forPrefix("").snapshot()
	if snap.DecodedTotal != 1 {
		t.Fatalf("expected DecodedTotal = 1 after one successful decode, got %d", snap.DecodedTotal)
	}

	if _, err := e.MaybeDecode(rawFrame([]byte("x"))); err != nil {
		t.Fatalf("MaybeDecode raw: %v", err)
	}
	if got := e.stats.forPrefix("").snapshot().DecodedTotal; got != 2 {
		t.Fatalf("expected DecodedTotal = 2 after a second successful decode, got %d", got)
	}
}

func TestMaybeDecodeShortFrame(t *testing.T) {
	e := newTestEngine(t, engineTestConfig())
	if _, err := e.MaybeDecode([]byte{0x01}); err != ErrShortFrame {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
}

func TestMaybeDecodeUnknownDictID(t *testing.T) {
	e := newTestEngine(t, engineTestConfig())
	frame := make([]byte, HeaderSize)
	putHeader(frame, 42)
	if _, err := e.MaybeDecode(frame); err != ErrDictMiss {
		t.Fatalf("expected ErrDictMiss for an id absent from the current table, got %v", err)
	}
}

func TestDecodedSizeMatchesDecodedLength(t *testing.T) {
	cfg := engineTestConfig()
	cfg.EnableDict = false
	e := newTestEngine(t, cfg)
	value := bytes.Repeat([]byte("abc"), 100)
	frame := e.MaybeEncode([]byte("k"), value)

	n, err := e.DecodedSize(frame)
	if err != nil {
		t.Fatalf("DecodedSize: %v", err)
	}
	if n != len(value) {
		t.Fatalf("DecodedSize = %d, want %d", n, len(value))
	}
}

func TestDictExistsAndListNamespaces(t *testing.T) {
	e := newTestEngine(t, engineTestConfig())
	meta := &Meta{ID: 3, Prefixes: []string{"a/"}}
	b := newTableBuilder()
	b.addMeta(meta, 0)
	e.publish(b.finish())

	if !e.DictExists(3) {
		t.Fatal("expected dict id 3 to exist in the published table")
	}
	if e.DictExists(9) {
		t.Fatal("expected dict id 9 to not exist")
	}
	ns := e.ListNamespaces()
	if len(ns) != 1 || ns[0] != "a/" {
		t.Fatalf("unexpected namespaces: %v", ns)
	}
}
