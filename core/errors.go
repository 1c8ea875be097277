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

import "errors"

// Sentinel errors for the hot path. Never exceptions: callers get one of
// these (possibly wrapped) plus a counter bump, never a panic.
var (
	ErrCompress      = errors.New("dictcache: compress failed")
	ErrDecompress    = errors.New("dictcache: decompress failed")
	ErrDictMiss      = errors.New("dictcache: dictionary id not present in current table")
	ErrTrainer       = errors.New("dictcache: training run failed")
	ErrIO            = errors.New("dictcache: filesystem error")
	ErrShortFrame    = errors.New("dictcache: encoded frame shorter than header")
	ErrAsyncTimeout  = errors.New("dictcache: async operation timed out")
	ErrPoolOverflow  = errors.New("dictcache: worker pool queue full")
	ErrBadID         = errors.New("dictcache: dictionary id out of range")
	ErrConfig        = errors.New("dictcache: invalid configuration")
)

// SkipReason enumerates the non-error pass-through reasons counted by the
// statistics registry (H). These are not errors: they are expected,
// counted outcomes of the incompressibility probe and size bounds.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipMinSize
	SkipMaxSize
	SkipIncompressible
	SkipNotSmaller
	SkipDisabled
	SkipReplay
)

func (r SkipReason) String() string {
	switch r {
	case SkipMinSize:
		return "skipped_comp_min_size"
	case SkipMaxSize:
		return "skipped_comp_max_size"
	case SkipIncompressible:
		return "skipped_comp_incomp"
	case SkipNotSmaller:
		return "skipped_comp_not_smaller"
	case SkipDisabled:
		return "skipped_comp_disabled"
	case SkipReplay:
		return "skipped_comp_replay"
	default:
		return "none"
	}
}
