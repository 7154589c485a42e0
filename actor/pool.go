/*
Copyright (C) 2026  Tau Contributors

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

package actor

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// idleSleep is the fixed interval a worker sleeps after a pass over every
// actor processed nothing, avoiding a busy spin (spec.md §4.I, "≈1 µs").
const idleSleep = time.Microsecond

// ActorSource lets the pool enumerate live actors without depending on
// the catalog package directly — ForEachActor must be called by the
// implementation under its own routing lock in shared mode, never while
// holding it exclusively, and never while blocked on a ResponseSlot.
type ActorSource interface {
	ForEachActor(func(*SeriesActor))
}

// Pool is a fixed-size worker pool draining mailboxes across every actor
// in an ActorSource (spec.md §4.I). It must not be constructed until the
// ActorSource (the catalog) is at its final memory address, since workers
// hold a reference to it for the lifetime of the pool.
type Pool struct {
	source ActorSource
	size   int

	messagesProcessed    atomic.Uint64
	workerIterations     atomic.Uint64
	workerIdleIterations atomic.Uint64
}

// NewPool constructs a pool of size workers (runtime.NumCPU() if size <= 0).
func NewPool(source ActorSource, size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{source: source, size: size}
}

// Run starts size workers and blocks until ctx is cancelled, at which
// point all workers exit and Run returns ctx.Err(). Workers are
// supervised by an errgroup so a worker panic (surfaced as an error,
// were one ever introduced) tears down the whole pool rather than
// leaking a half-alive one.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		g.Go(func() error {
			return p.workerLoop(gctx)
		})
	}
	return g.Wait()
}

func (p *Pool) workerLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		processedAny := false
		p.source.ForEachActor(func(a *SeriesActor) {
			if !a.IsAlive() {
				return
			}
			if a.ProcessOne() {
				processedAny = true
				p.messagesProcessed.Add(1)
			}
		})
		p.workerIterations.Add(1)

		if !processedAny {
			p.workerIdleIterations.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idleSleep):
			}
		}
	}
}

// MessagesProcessed returns the monotonic count of dispatched messages
// across all workers.
func (p *Pool) MessagesProcessed() uint64 { return p.messagesProcessed.Load() }

// WorkerIterations returns the monotonic count of full actor-table passes.
func (p *Pool) WorkerIterations() uint64 { return p.workerIterations.Load() }

// WorkerIdleIterations returns the monotonic count of passes that
// processed nothing.
func (p *Pool) WorkerIdleIterations() uint64 { return p.workerIdleIterations.Load() }
