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

func TestProcessSpoolNameSanitizesUnsafeCharacters(t *testing.T) {
	if got := ProcessSpoolName("users/accounts:42"); got != "users_accounts_42" {
		t.Fatalf("unexpected sanitized name: %q", got)
	}
	if got := ProcessSpoolName(""); got != "_default" {
		t.Fatalf("expected _default for an empty namespace, got %q", got)
	}
}

func TestProcessSpoolNameTruncatesLongNames(t *testing.T) {
	long := bytes.Repeat([]byte("a"), 200)
	got := ProcessSpoolName(string(long))
	if len(got) != 64 {
		t.Fatalf("expected truncation to 64 chars, got %d", len(got))
	}
}

func TestSpoolAppendAndReplayRoundTrip(t *testing.T) {
	cfg := &Config{SpoolDir: t.TempDir()}
	s := newSpool(cfg, NewLogger(false))
	s.Append("ns", []byte("first record"))
	s.Append("ns", []byte("second record"))
	s.Close()

	records, err := s.Replay("ns")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(records) != 2 || string(records[0]) != "first record" || string(records[1]) != "second record" {
		t.Fatalf("unexpected replayed records: %v", toStrings(records))
	}
}

func TestSpoolReplayMissingFileReturnsNoRecords(t *testing.T) {
	cfg := &Config{SpoolDir: t.TempDir()}
	s := newSpool(cfg, NewLogger(false))
	records, err := s.Replay("never-spooled")
	if err != nil {
		t.Fatalf("Replay on a namespace with no spool file must not error, got %v", err)
	}
	if records != nil {
		t.Fatalf("expected nil records, got %v", records)
	}
}

func TestSpoolAppendWithoutSpoolDirIsNoOp(t *testing.T) {
	s := newSpool(&Config{SpoolDir: ""}, NewLogger(false))
	s.Append("ns", []byte("value")) // must not panic or block
}

func toStrings(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}
