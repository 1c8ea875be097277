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

import "encoding/binary"

// HeaderSize is the 2-byte big-endian dict_id prefix of every encoded frame.
const HeaderSize = 2

// DictIDRaw is the sentinel meaning "not compressed; payload is raw bytes".
// Capped below 0xFFFF per spec.md §9's redesign flag: ids are allocated in
// 1..DictIDMax so they never collide with the sentinel.
const DictIDRaw uint16 = 0xFFFF

// DictIDNone means "compressed without a dictionary".
const DictIDNone uint16 = 0x0000

// DictIDMax is the highest id the trainer may assign.
const DictIDMax uint16 = 0xFFFE

// DictIDMin is the lowest id the trainer may assign (0 is reserved for
// dictionaryless compression).
const DictIDMin uint16 = 0x0001

// putHeader writes a 2-byte big-endian dict_id into dst[0:2].
func putHeader(dst []byte, id uint16) {
	binary.BigEndian.PutUint16(dst, id)
}

// readHeader reads the 2-byte big-endian dict_id from the front of a frame.
// Callers must have already checked len(frame) >= HeaderSize.
func readHeader(frame []byte) uint16 {
	return binary.BigEndian.Uint16(frame)
}

// IsRawFrame reports whether frame's header is the raw sentinel, matching
// invariant 2 of spec.md §8: any frame whose first two bytes are 0xFFFF
// decodes to its remaining bytes verbatim.
func IsRawFrame(frame []byte) bool {
	return len(frame) >= HeaderSize && readHeader(frame) == DictIDRaw
}

// LooksCompressed checks only the 2-byte header: it rejects frames that are
// too short to carry a header, or whose header is the raw sentinel, and
// accepts every other id. It does not inspect the zstd frame magic or the
// content-size field of the payload.
func LooksCompressed(frame []byte) bool {
	if len(frame) < HeaderSize {
		return false
	}
	id := readHeader(frame)
	return id != DictIDRaw
}
