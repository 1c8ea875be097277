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

func driftTestConfig() *Config {
	return &Config{EWMAAlpha: 0.5, RetrainDrop: 0.2}
}

func TestDriftObserveFirstCallSetsBaseline(t *testing.T) {
	d := newDriftDetector(driftTestConfig())
	if d.Observe("ns", 100, 50) {
		t.Fatal("first observation must never report drift (no baseline yet)")
	}
	ratio, ok := d.Ratio("ns")
	if !ok || ratio != 0.5 {
		t.Fatalf("expected baseline ratio 0.5, got %v (ok=%v)", ratio, ok)
	}
}

func TestDriftObserveDetectsDegradation(t *testing.T) {
	d := newDriftDetector(driftTestConfig())
	d.Observe("ns", 100, 50) // baseline ratio 0.5

	var drifted bool
	for i := 0; i < 10; i++ {
		// ratio degrades to 0.9: compression barely helping anymore
		if d.Observe("ns", 100, 90) {
			drifted = true
			break
		}
	}
	if !drifted {
		t.Fatal("expected sustained ratio degradation to eventually trip drift detection")
	}
}

func TestDriftResetBaselineReanchors(t *testing.T) {
	d := newDriftDetector(driftTestConfig())
	d.Observe("ns", 100, 50)
	for i := 0; i < 5; i++ {
		d.Observe("ns", 100, 90)
	}
	d.ResetBaseline("ns")
	ratioBefore, _ := d.Ratio("ns")
	if d.Observe("ns", 100, 90) {
		t.Fatal("immediately after reset, the same ratio should not itself count as drift")
	}
	ratioAfter, _ := d.Ratio("ns")
	if ratioAfter < ratioBefore-0.01 {
		t.Fatalf("ratio should not regress sharply right after reset: before=%v after=%v", ratioBefore, ratioAfter)
	}
}

func TestDriftRatioUnknownNamespace(t *testing.T) {
	d := newDriftDetector(driftTestConfig())
	if _, ok := d.Ratio("never-seen"); ok {
		t.Fatal("expected ok=false for a namespace with no observations")
	}
}
