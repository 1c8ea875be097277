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

	"github.com/jtolds/gls"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many async compress/decompress commands run concurrently
// (spec.md §4.K: async_threadpool_size workers, async_queue_size pending,
// async_block_on_full decides whether Submit blocks or fails fast once the
// queue is full). golang.org/x/sync/semaphore gives a weighted, context-aware
// admission gate; the actual work still runs on its own goroutine started
// with gls.Go. No goroutine-local values are set on it, and a panic inside
// fn is not recovered.
type Pool struct {
	cfg  *Config
	sem  *semaphore.Weighted
	wait *semaphore.Weighted // bounds queued-but-not-yet-running submissions
}

func newPool(cfg *Config) *Pool {
	size := int64(cfg.AsyncThreadPoolSize)
	if size <= 0 {
		size = 1
	}
	queue := int64(cfg.AsyncQueueSize)
	if queue <= 0 {
		queue = size
	}
	return &Pool{
		cfg:  cfg,
		sem:  semaphore.NewWeighted(size),
		wait: semaphore.NewWeighted(size + queue),
	}
}

// Submit runs fn on a pool worker. If the pool (workers + queue) is already
// full: with async_block_on_full it blocks until ctx is done or room frees
// up; otherwise it returns ErrPoolOverflow immediately.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	if !p.cfg.AsyncCmdEnabled {
		fn()
		return nil
	}

	if p.cfg.AsyncBlockOnFull {
		if err := p.wait.Acquire(ctx, 1); err != nil {
			return ErrAsyncTimeout
		}
	} else {
		if !p.wait.TryAcquire(1) {
			return ErrPoolOverflow
		}
	}

	gls.Go(func() {
		defer p.wait.Release(1)
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		fn()
	})
	return nil
}
