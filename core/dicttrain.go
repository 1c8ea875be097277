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

import "sort"

// trainMode selects how hard buildDictionary works to find good content,
// matching the train_mode config knob (spec.md §6: "fast" | "optimize").
type trainMode int

const (
	trainFast trainMode = iota
	trainOptimize
)

func parseTrainMode(s string) (trainMode, bool) {
	switch s {
	case "fast":
		return trainFast, true
	case "optimize":
		return trainOptimize, true
	default:
		return trainFast, false
	}
}

// chunkCandidate is one substring considered for inclusion in the trained
// dictionary, scored by how much space it would save if shared across the
// sample corpus: (occurrences-1) * length, since the first occurrence gets
// no benefit from being in the dictionary.
type chunkCandidate struct {
	bytes string
	score int
}

// buildDictionary trains a "raw content" zstd dictionary from a sample
// corpus (spec.md §4.F). zstd's wire format treats any byte string as a
// valid dictionary -- the encoder/decoder simply prime their window with
// it -- so a frequency-ranked concatenation of common substrings is a
// legitimate dictionary even without running the COVER/fastCover training
// algorithm zstd's own CLI uses. See DESIGN.md for why this project favors
// that approach over calling an uncertain cgo training binding.
//
// fast mode samples a single chunk length; optimize mode tries several
// lengths and keeps the best-scoring candidates across all of them, at
// proportionally higher cost.
func buildDictionary(samples [][]byte, targetSize int, mode trainMode) []byte {
	if targetSize <= 0 || len(samples) == 0 {
		return nil
	}

	var lengths []int
	switch mode {
	case trainOptimize:
		lengths = []int{16, 32, 64, 128}
	default:
		lengths = []int{32}
	}

	counts := make(map[string]int)
	for _, length := range lengths {
		for _, s := range samples {
			countChunks(s, length, counts)
		}
	}

	candidates := make([]chunkCandidate, 0, len(counts))
	for chunk, n := range counts {
		if n < 2 {
			continue // a substring seen once saves nothing by being dictionary content
		}
		candidates = append(candidates, chunkCandidate{bytes: chunk, score: (n - 1) * len(chunk)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].bytes < candidates[j].bytes // stable, deterministic tie-break
	})

	picked := make([]string, 0, len(candidates))
	used := 0
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if used >= targetSize {
			break
		}
		if seen[c.bytes] {
			continue
		}
		seen[c.bytes] = true
		remaining := targetSize - used
		if remaining < len(c.bytes) {
			picked = append(picked, c.bytes[:remaining])
			used += remaining
			break
		}
		picked = append(picked, c.bytes)
		used += len(c.bytes)
	}

	// zstd favors dictionary content with the most useful material near the
	// end of the buffer (closest to the match window when encoding starts);
	// emit the chunks in reverse order so the highest-scoring chunks land last.
	out := make([]byte, 0, used)
	for i := len(picked) - 1; i >= 0; i-- {
		out = append(out, picked[i]...)
	}
	return out
}

// countChunks slides a window of the given length over s with 50% overlap,
// so a common substring is still found even if it straddles a non-overlapping
// boundary. length is always one of dicttrain.go's fixed constants (>=16),
// so stride (length/2) is always positive.
func countChunks(s []byte, length int, counts map[string]int) {
	if len(s) < length {
		return
	}
	stride := length / 2
	for i := 0; i+length <= len(s); i += stride {
		counts[string(s[i:i+length])]++
	}
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
