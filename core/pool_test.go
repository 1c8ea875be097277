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
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolSubmitRunsInlineWhenDisabled(t *testing.T) {
	p := newPool(&Config{AsyncCmdEnabled: false})
	var ran bool
	if err := p.Submit(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !ran {
		t.Fatal("expected fn to run synchronously when async is disabled")
	}
}

func TestPoolSubmitRunsOnWorkerWhenEnabled(t *testing.T) {
	p := newPool(&Config{AsyncCmdEnabled: true, AsyncThreadPoolSize: 2, AsyncQueueSize: 4})
	done := make(chan struct{})
	if err := p.Submit(context.Background(), func() { close(done) }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitted function never ran")
	}
}

func TestPoolSubmitOverflowsWithoutBlocking(t *testing.T) {
	p := newPool(&Config{AsyncCmdEnabled: true, AsyncThreadPoolSize: 1, AsyncQueueSize: 1, AsyncBlockOnFull: false})
	block := make(chan struct{})
	var inFlight atomic.Int32

	// saturate worker + queue capacity (1 + 1 = 2 concurrent submissions)
	for i := 0; i < 2; i++ {
		err := p.Submit(context.Background(), func() {
			inFlight.Add(1)
			<-block
		})
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	// give the workers a moment to actually acquire their slots
	deadline := time.Now().Add(time.Second)
	for inFlight.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond) // let the second goroutine reach its blocked sem.Acquire

	err := p.Submit(context.Background(), func() {})
	if err != ErrPoolOverflow {
		t.Fatalf("expected ErrPoolOverflow once pool+queue capacity is exhausted, got %v", err)
	}
	close(block)
}

func TestPoolSubmitBlocksOnFullUntilContextCanceled(t *testing.T) {
	p := newPool(&Config{AsyncCmdEnabled: true, AsyncThreadPoolSize: 1, AsyncQueueSize: 0, AsyncBlockOnFull: true})
	block := make(chan struct{})
	// a queue size of 0 falls back to the worker count, so fill
	// worker + queue capacity (1 + 1 = 2 concurrent submissions)
	for i := 0; i < 2; i++ {
		if err := p.Submit(context.Background(), func() { <-block }); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	if err != ErrAsyncTimeout {
		t.Fatalf("expected ErrAsyncTimeout once the blocking submit's context expires, got %v", err)
	}
	close(block)
}
