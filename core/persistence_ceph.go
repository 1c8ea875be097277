//go:build ceph

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
	"path"
	"strings"
	"sync"

	"github.com/ceph/go-ceph/rados"
)

// CephManifestConfig configures a RADOS-backed manifest mirror, adapted
// from storage/persistence-ceph.go's CephFactory.
type CephManifestConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

type cephManifestBackend struct {
	cfg CephManifestConfig

	mu     sync.Mutex
	conn   *rados.Conn
	ioctx  *rados.IOContext
	opened bool
}

func newCephManifestBackend(cfg CephManifestConfig) *cephManifestBackend {
	return &cephManifestBackend{cfg: cfg}
}

func (s *cephManifestBackend) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}
	conn, err := rados.NewConnWithClusterAndUser(s.cfg.ClusterName, s.cfg.UserName)
	if err != nil {
		return err
	}
	if s.cfg.ConfFile != "" {
		if err := conn.ReadConfigFile(s.cfg.ConfFile); err != nil {
			return err
		}
	} else {
		_ = conn.ReadDefaultConfigFile()
	}
	if err := conn.Connect(); err != nil {
		return err
	}
	ioctx, err := conn.OpenIOContext(s.cfg.Pool)
	if err != nil {
		conn.Shutdown()
		return err
	}
	s.conn = conn
	s.ioctx = ioctx
	s.opened = true
	return nil
}

func (s *cephManifestBackend) obj(name string) string {
	return path.Join(strings.TrimSuffix(s.cfg.Prefix, "/"), name)
}

func (s *cephManifestBackend) get(name string) ([]byte, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	obj := s.obj(name)
	stat, err := s.ioctx.Stat(obj)
	if err != nil {
		return nil, err
	}
	data := make([]byte, stat.Size)
	n, err := s.ioctx.Read(obj, data, 0)
	if err != nil {
		return nil, err
	}
	return data[:n], nil
}

func (s *cephManifestBackend) put(name string, data []byte) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.ioctx.WriteFull(s.obj(name), data)
}

func (s *cephManifestBackend) ReadManifest() ([]byte, error)         { return s.get("manifest.json") }
func (s *cephManifestBackend) WriteManifest(data []byte) error       { return s.put("manifest.json", data) }
func (s *cephManifestBackend) ReadDict(name string) ([]byte, error)  { return s.get(name) }
func (s *cephManifestBackend) WriteDict(name string, data []byte) error { return s.put(name, data) }

func (s *cephManifestBackend) RemoveDict(name string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.ioctx.Delete(s.obj(name))
}
