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
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Event is one admin-visible occurrence (a retrain firing or a manifest
// reload) broadcast to connected websocket clients.
type Event struct {
	Kind      string `json:"kind"`
	Namespace string `json:"namespace,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// EventFeed fans out Events to any number of connected admin websocket
// clients, adapted from scm/network.go's inline "websocket" builtin: the
// same upgrade-then-write-loop shape, generalized from a single Scheme
// callback connection into a broadcast hub serving any websocket observer
// (the dictcachectl CLI does not connect to it).
type EventFeed struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

func newEventFeed() *EventFeed {
	f := &EventFeed{
		clients: make(map[*websocket.Conn]chan Event),
	}
	f.upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	f.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	return f
}

// ServeHTTP upgrades the connection and streams Events until the client
// disconnects.
func (f *EventFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ch := make(chan Event, 32)
	f.mu.Lock()
	f.clients[ws] = ch
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.clients, ws)
		f.mu.Unlock()
		ws.Close()
	}()

	for ev := range ch {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// Broadcast publishes ev to every connected client, dropping it for any
// client whose outbound buffer is full rather than blocking the caller.
func (f *EventFeed) Broadcast(kind, namespace, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := Event{Kind: kind, Namespace: namespace, Detail: detail}
	for ws, ch := range f.clients {
		select {
		case ch <- ev:
		default:
			// slow client: drop rather than stall the publishing goroutine
			_ = ws
		}
	}
}

// Close shuts down every client channel, used at process shutdown.
func (f *EventFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ws, ch := range f.clients {
		close(ch)
		delete(f.clients, ws)
	}
}

func fmtDetail(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
