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
	"sync"
)

// driftState is one namespace's EWMA tracker over compression ratio
// (spec.md §4.I). baseline is set from the namespace's first sample, and
// re-anchored to the current EWMA by ResetBaseline after a retrain; later
// samples update the EWMA and compare it against baseline to decide whether
// a retrain should fire.
type driftState struct {
	mu       sync.Mutex
	ewma     float64
	baseline float64
	hasBase  bool
	samples  int64
}

// DriftDetector tracks per-namespace compression-ratio drift and decides
// when the observed ratio has moved far enough from baseline to justify
// retraining (spec.md §4.I). It is deliberately simple: one mutex-guarded
// float64 per namespace, since updates are infrequent relative to
// maybe_encode's hot path (only namespaces that actually compress report
// in) and a lock-free structure would buy nothing here.
type DriftDetector struct {
	cfg *Config

	mu     sync.Mutex
	byNS   map[string]*driftState
}

func newDriftDetector(cfg *Config) *DriftDetector {
	return &DriftDetector{cfg: cfg, byNS: make(map[string]*driftState)}
}

func (d *DriftDetector) stateFor(ns string) *driftState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.byNS[ns]
	if !ok {
		s = &driftState{}
		d.byNS[ns] = s
	}
	return s
}

// Observe records one compression outcome's ratio (compressed/raw) for ns
// and reports whether drift has crossed the retrain threshold (spec.md
// §4.I: EWMA deviates from baseline by more than retrain_drop fraction).
func (d *DriftDetector) Observe(ns string, rawLen, compLen int) bool {
	if rawLen <= 0 {
		return false
	}
	ratio := float64(compLen) / float64(rawLen)

	s := d.stateFor(ns)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples++
	if !s.hasBase {
		s.baseline = ratio
		s.ewma = ratio
		s.hasBase = true
		return false
	}
	alpha := d.cfg.EWMAAlpha
	s.ewma = alpha*ratio + (1-alpha)*s.ewma

	if s.baseline <= 0 {
		return false
	}
	drift := (s.ewma - s.baseline) / s.baseline
	return drift >= d.cfg.RetrainDrop || drift <= -d.cfg.RetrainDrop
}

// ResetBaseline re-anchors ns's baseline to its current EWMA, called after
// a retrain publishes a fresh dictionary for that namespace.
func (d *DriftDetector) ResetBaseline(ns string) {
	s := d.stateFor(ns)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = s.ewma
	s.hasBase = s.samples > 0
}

// Ratio returns the current EWMA ratio for ns and whether any sample has
// been observed yet, for diagnostics.
func (d *DriftDetector) Ratio(ns string) (float64, bool) {
	s := d.stateFor(ns)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ewma, s.hasBase
}
