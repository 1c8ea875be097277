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

import "testing"

func TestStatsRegistryForPrefixCreatesOnce(t *testing.T) {
	r := newStatsRegistry()
	a := r.forPrefix("users/")
	b := r.forPrefix("users/")
	if a != b {
		t.Fatal("forPrefix must return the same NamespaceStats on repeat calls")
	}
}

func TestRecordSkipIncrementsMatchingCounter(t *testing.T) {
	s := newNamespaceStats("ns")
	s.recordSkip(SkipMinSize)
	s.recordSkip(SkipMaxSize)
	s.recordSkip(SkipNotSmaller)
	snap := s.snapshot()
	if snap.SkippedMinSize != 1 || snap.SkippedMaxSize != 1 || snap.SkippedNotSmall != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.SkippedIncompr != 0 || snap.SkippedDisabled != 0 {
		t.Fatalf("unrelated counters must stay zero: %+v", snap)
	}
}

func TestStatsRegistryAllIncludesEveryNamespace(t *testing.T) {
	r := newStatsRegistry()
	r.forPrefix("a/")
	r.forPrefix("b/")
	snaps := r.All()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 namespaces, got %d", len(snaps))
	}
}

func TestPruneToKeepsOnlyListedNamespaces(t *testing.T) {
	r := newStatsRegistry()
	a := r.forPrefix("a/")
	a.EncodedTotal.Add(5)
	r.forPrefix("b/")

	r.PruneTo([]string{"a/"})
	snaps := r.All()
	if len(snaps) != 1 {
		t.Fatalf("expected 1 preserved namespace, got %d", len(snaps))
	}
	if snaps[0].Prefix != "a/" || snaps[0].EncodedTotal != 5 {
		t.Fatalf("expected preserved counters for a/, got %+v", snaps[0])
	}
}

func TestPruneToLeavesUntrackedKeptNamespacesAloneForLazyCreation(t *testing.T) {
	r := newStatsRegistry()
	r.forPrefix("a/")

	r.PruneTo([]string{"a/", "c/"})
	if len(r.All()) != 1 {
		t.Fatalf("PruneTo must not create entries for namespaces it hasn't seen yet")
	}
}
