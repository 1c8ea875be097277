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

func TestParseTrainMode(t *testing.T) {
	if m, ok := parseTrainMode("fast"); !ok || m != trainFast {
		t.Fatalf("parseTrainMode(fast) = %v,%v", m, ok)
	}
	if m, ok := parseTrainMode("optimize"); !ok || m != trainOptimize {
		t.Fatalf("parseTrainMode(optimize) = %v,%v", m, ok)
	}
	if _, ok := parseTrainMode("bogus"); ok {
		t.Fatal("parseTrainMode should reject unknown modes")
	}
}

func TestBuildDictionaryRespectsTargetSize(t *testing.T) {
	samples := make([][]byte, 0, 10)
	for i := 0; i < 10; i++ {
		samples = append(samples, bytes.Repeat([]byte("repeated-structure-in-every-sample "), 4))
	}
	dict := buildDictionary(samples, 64, trainFast)
	if len(dict) > 64 {
		t.Fatalf("dictionary exceeds target size: %d > 64", len(dict))
	}
	if len(dict) == 0 {
		t.Fatal("expected non-empty dictionary from repetitive samples")
	}
}

func TestBuildDictionaryEmptyInputs(t *testing.T) {
	if got := buildDictionary(nil, 64, trainFast); got != nil {
		t.Fatalf("expected nil dictionary for no samples, got %d bytes", len(got))
	}
	if got := buildDictionary([][]byte{[]byte("x")}, 0, trainFast); got != nil {
		t.Fatalf("expected nil dictionary for zero target size, got %d bytes", len(got))
	}
}

func TestBuildDictionaryOptimizeTriesMoreLengths(t *testing.T) {
	samples := [][]byte{bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyzABCDEFGH"), 10)}
	fast := buildDictionary(samples, 256, trainFast)
	optimize := buildDictionary(samples, 256, trainOptimize)
	if len(fast) == 0 || len(optimize) == 0 {
		t.Fatal("expected both modes to produce non-empty dictionaries from repetitive input")
	}
}

func TestCountChunksSlidesWithOverlap(t *testing.T) {
	counts := make(map[string]int)
	s := bytes.Repeat([]byte("0123456789abcdef"), 4) // 64 bytes, one 16-byte chunk repeated
	countChunks(s, 16, counts)
	if counts["0123456789abcdef"] < 2 {
		t.Fatalf("expected repeated 16-byte chunk to be counted multiple times, got %d", counts["0123456789abcdef"])
	}
}

func TestCountChunksShorterThanWindow(t *testing.T) {
	counts := make(map[string]int)
	countChunks([]byte("short"), 16, counts)
	if len(counts) != 0 {
		t.Fatalf("expected no chunks counted for input shorter than window, got %v", counts)
	}
}

func TestReverseBytes(t *testing.T) {
	b := []byte("abcdef")
	reverseBytes(b)
	if string(b) != "fedcba" {
		t.Fatalf("reverseBytes produced %q", b)
	}
	empty := []byte{}
	reverseBytes(empty) // must not panic
}
