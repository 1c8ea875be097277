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
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// Spool is the optional on-disk overflow for the training sample (spec.md
// §4.E: "sample_window and spool_max_bytes bound memory; overflow may spill
// to spool_dir"). Each record is a 4-byte big-endian length prefix followed
// by the value, both written into one lz4 stream per namespace log file -- the same one-file-per-shard append style as
// storage/persistence-files.go's OpenLog/FileLogfile, generalized from SQL
// write-ahead logs to spooled training samples.
type Spool struct {
	cfg *Config
	log *Logger

	mu    sync.Mutex
	files map[string]*spoolFile
}

type spoolFile struct {
	mu sync.Mutex
	f  *os.File
	zw *lz4.Writer
}

func newSpool(cfg *Config, log *Logger) *Spool {
	return &Spool{cfg: cfg, log: log, files: make(map[string]*spoolFile)}
}

func (s *Spool) fileFor(ns string) (*spoolFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sf, ok := s.files[ns]; ok {
		return sf, nil
	}
	if s.cfg.SpoolDir == "" {
		return nil, ErrIO
	}
	if err := os.MkdirAll(s.cfg.SpoolDir, 0750); err != nil {
		return nil, err
	}
	path := filepath.Join(s.cfg.SpoolDir, ProcessSpoolName(ns)+".spool")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0640)
	if err != nil {
		return nil, err
	}
	sf := &spoolFile{f: f, zw: lz4.NewWriter(f)}
	s.files[ns] = sf
	return sf, nil
}

// ProcessSpoolName turns a namespace prefix into a filesystem-safe spool
// file stem, the same hashing-for-long-names idea as
// persistence-files.go's ProcessColumnName, generalized from "long column
// name" to "namespace prefix that may contain path-unsafe bytes".
func ProcessSpoolName(ns string) string {
	if ns == "" {
		return "_default"
	}
	safe := make([]rune, 0, len(ns))
	for _, r := range ns {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			safe = append(safe, r)
		} else {
			safe = append(safe, '_')
		}
	}
	if len(safe) > 64 {
		safe = safe[:64]
	}
	return string(safe)
}

// Append writes value to ns's spool file, length-prefixed and
// lz4-compressed. Spooling is best-effort: a write failure is logged and
// swallowed, since losing a training sample never corrupts live traffic.
func (s *Spool) Append(ns string, value []byte) {
	if s.cfg.SpoolDir == "" {
		return
	}
	sf, err := s.fileFor(ns)
	if err != nil {
		s.log.Errorf("spool open %s: %v", ns, err)
		return
	}
	sf.mu.Lock()
	defer sf.mu.Unlock()

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(value)))
	if _, err := sf.zw.Write(hdr[:]); err != nil {
		s.log.Errorf("spool write %s: %v", ns, err)
		return
	}
	if _, err := sf.zw.Write(value); err != nil {
		s.log.Errorf("spool write %s: %v", ns, err)
		return
	}
}

// Replay reads back every record spooled for ns, for the trainer to fold
// into a training corpus that exceeds what the in-memory reservoir holds.
func (s *Spool) Replay(ns string) ([][]byte, error) {
	path := filepath.Join(s.cfg.SpoolDir, ProcessSpoolName(ns)+".spool")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	zr := lz4.NewReader(f)
	var out [][]byte
	for {
		var hdr [4]byte
		if _, err := io.ReadFull(zr, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return out, err
		}
		n := binary.BigEndian.Uint32(hdr[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(zr, buf); err != nil {
			return out, fmt.Errorf("%w: truncated spool record", ErrIO)
		}
		out = append(out, buf)
	}
	return out, nil
}

// Close flushes and closes every open spool file.
func (s *Spool) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sf := range s.files {
		sf.mu.Lock()
		sf.zw.Close()
		sf.f.Close()
		sf.mu.Unlock()
	}
}
