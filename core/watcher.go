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
	"runtime/debug"

	"github.com/fsnotify/fsnotify"
	"github.com/jtolds/gls"
)

// dictDirWatcher watches a local manifest directory for dictionaries
// dropped in by an external process (e.g. another node's replication job
// writing directly into a shared volume instead of going through the S3/Ceph
// backends) and triggers a reload, the same "notice a new file, react"
// pattern as an inotify-backed config reloader. Only meaningful for the
// local file manifest backend; S3/Ceph backends are not watched or polled
// and are reloaded only by an explicit ReloadDictionaries call.
type dictDirWatcher struct {
	w    *fsnotify.Watcher
	log  *Logger
	stop chan struct{}
	done chan struct{}
}

// newDictDirWatcher starts watching dir, calling onChange once for every
// create, write, or rename event in dir (events are not debounced). Returns nil, nil if dir is empty (watching disabled).
func newDictDirWatcher(dir string, log *Logger, onChange func()) (*dictDirWatcher, error) {
	if dir == "" {
		return nil, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	dw := &dictDirWatcher{w: w, log: log, stop: make(chan struct{}), done: make(chan struct{})}
	gls.Go(func() {
		defer close(dw.done)
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("dict dir watcher panic: %v\n%s", r, debug.Stack())
			}
		}()
		for {
			select {
			case <-dw.stop:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Errorf("dict dir watch: %v", err)
			}
		}
	})
	return dw, nil
}

func (dw *dictDirWatcher) Stop() {
	if dw == nil {
		return
	}
	close(dw.stop)
	<-dw.done
	dw.w.Close()
}
