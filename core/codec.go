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

	"github.com/klauspost/compress/zstd"
)

// codecScratch is the reusable encode scratch buffer a calling goroutine
// borrows for the duration of one compression attempt (§4.B); decoding
// does not use it. The dictionary-bound zstd.Encoder/Decoder
// themselves live on the Meta (§3 "encoder and decoder handles owned by
// the Meta") and are safe for concurrent use by any number of callers;
// what genuinely needs to be private per-caller is the scratch byte slice
// used as the EncodeAll destination, so repeat calls on the same
// goroutine don't reallocate.
//
// Go has no first-class thread-locals, and github.com/jtolds/gls (used
// elsewhere in this package, see trainer.go/gc.go) only tags goroutines it
// spawns itself via gls.Go -- it cannot intercept the host cache's own
// command-execution goroutines calling Encode/Decode synchronously
// (spec.md §5). sync.Pool is the idiomatic Go substitute: items are kept
// per-P, handed to whichever goroutine calls Get, and reclaimed by the GC
// when unused, which is close enough to "released at thread exit" for a
// scratch buffer that carries no identity.
type codecScratch struct {
	buf []byte
}

var scratchPool = sync.Pool{
	New: func() any { return &codecScratch{buf: make([]byte, 0, 4096)} },
}

func acquireScratch() *codecScratch {
	return scratchPool.Get().(*codecScratch)
}

func releaseScratch(s *codecScratch) {
	if cap(s.buf) > 1<<20 {
		// don't let one huge value bloat the pool forever
		s.buf = make([]byte, 0, 4096)
	} else {
		s.buf = s.buf[:0]
	}
	scratchPool.Put(s)
}

// newDictCodec builds the dictionary-bound encoder/decoder pair stored on
// a Meta. dict may be nil, meaning "compressed without a dictionary"
// (dict_id == DictIDNone).
func newDictCodec(dict []byte, level int) (*zstd.Encoder, *zstd.Decoder, error) {
	encOpts := []zstd.EOption{zstd.WithEncoderLevel(zstdLevel(level))}
	decOpts := []zstd.DOption{}
	if len(dict) > 0 {
		encOpts = append(encOpts, zstd.WithEncoderDict(dict))
		decOpts = append(decOpts, zstd.WithDecoderDicts(dict))
	}
	enc, err := zstd.NewWriter(nil, encOpts...)
	if err != nil {
		return nil, nil, err
	}
	dec, err := zstd.NewReader(nil, decOpts...)
	if err != nil {
		enc.Close()
		return nil, nil, err
	}
	return enc, dec, nil
}

// zstdLevel maps the 1..22 zstd_level config knob onto klauspost's coarse
// EncoderLevel enum, the same way the spec's zstd_level config knob maps
// onto a real codec's effort levels.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 6:
		return zstd.SpeedDefault
	case level <= 12:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

var trialEncoderPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil
		}
		return enc
	},
}

// trialCompress runs a cheap one-shot compression of a small sample to
// back the incompressibility probe's ambiguous-band fallback (§4.A). It
// uses the fastest level deliberately: this call exists purely to estimate
// compressibility, not to produce a usable frame.
func trialCompress(sample []byte) int {
	v := trialEncoderPool.Get()
	enc, _ := v.(*zstd.Encoder)
	if enc == nil {
		return -1
	}
	defer trialEncoderPool.Put(enc)
	s := acquireScratch()
	defer releaseScratch(s)
	s.buf = enc.EncodeAll(sample, s.buf[:0])
	return len(s.buf)
}
