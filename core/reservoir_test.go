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
	"fmt"
	"testing"
	"time"
)

func reservoirTestConfig() *Config {
	return &Config{
		EnableSampling:  true,
		SampleP:         1, // always admit, so capacity behavior is deterministic
		MinTrainingSize: 4,
	}
}

func TestReservoirOfferFillsUpToCapacity(t *testing.T) {
	r := newReservoir(reservoirTestConfig())
	for i := 0; i < 4; i++ {
		r.Offer("ns", []byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i)))
	}
	n, _ := r.Size("ns")
	if n != 4 {
		t.Fatalf("expected reservoir to hold 4 items at capacity, got %d", n)
	}
}

func TestReservoirOfferNeverExceedsCapacity(t *testing.T) {
	r := newReservoir(reservoirTestConfig())
	for i := 0; i < 200; i++ {
		r.Offer("ns", []byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i)))
	}
	n, _ := r.Size("ns")
	if n != 4 {
		t.Fatalf("expected reservoir capacity to stay at 4, got %d", n)
	}
}

func TestReservoirDisabledSamplingNoOp(t *testing.T) {
	cfg := reservoirTestConfig()
	cfg.EnableSampling = false
	r := newReservoir(cfg)
	r.Offer("ns", []byte("k"), []byte("v"))
	n, _ := r.Size("ns")
	if n != 0 {
		t.Fatalf("expected no samples admitted while sampling disabled, got %d", n)
	}
}

func TestReservoirNamespacesAndSnapshot(t *testing.T) {
	r := newReservoir(reservoirTestConfig())
	r.Offer("a/", []byte("k"), []byte("v1"))
	r.Offer("b/", []byte("k"), []byte("v2"))

	namespaces := r.Namespaces()
	if len(namespaces) != 2 {
		t.Fatalf("expected 2 namespaces, got %d", len(namespaces))
	}
	snap := r.Snapshot("a/")
	if len(snap) != 1 || string(snap[0]) != "v1" {
		t.Fatalf("unexpected snapshot for a/: %v", snap)
	}
}

func TestReservoirEnforcesByteCap(t *testing.T) {
	cfg := reservoirTestConfig()
	cfg.SpoolMaxBytes = 10
	r := newReservoir(cfg)
	for i := 0; i < 4; i++ {
		r.Offer("ns", []byte("k"), []byte("0123456789")) // 10 bytes each
	}
	_, byteLen := r.Size("ns")
	if byteLen > 10 {
		t.Fatalf("expected byte cap to hold total size to <=10, got %d", byteLen)
	}
}

func TestReservoirPrunesExpiredByWindow(t *testing.T) {
	cfg := reservoirTestConfig()
	cfg.SampleWindowDuration = time.Nanosecond
	r := newReservoir(cfg)
	r.Offer("ns", []byte("k"), []byte("v"))
	time.Sleep(time.Millisecond)
	r.Offer("ns", []byte("k2"), []byte("v2"))
	n, _ := r.Size("ns")
	if n > 1 {
		t.Fatalf("expected expired entries to be pruned, got %d items", n)
	}
}
