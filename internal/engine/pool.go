package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultBlockingWorkers is the pool size used when none is configured.
const DefaultBlockingWorkers = 8

// WorkerPool runs blocking tool calls on their own goroutines, at most size at
// a time, so a slow blocking tool only ever occupies a pool slot.
type WorkerPool struct {
	sem   *semaphore.Weighted
	size  int64
	inUse atomic.Int64
}

// NewWorkerPool creates a pool with size slots. A non-positive size falls back
// to DefaultBlockingWorkers.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = DefaultBlockingWorkers
	}
	return &WorkerPool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}
}

// Size returns the number of slots.
func (p *WorkerPool) Size() int { return int(p.size) }

// InUse returns the number of calls currently holding a slot.
func (p *WorkerPool) InUse() int { return int(p.inUse.Load()) }

type callResult struct {
	out map[string]any
	err error
}

// Do waits for a free slot and runs fn on a pool goroutine. If ctx ends first
// Do returns ctx.Err(); a call that has already started keeps its slot until
// fn returns. fn must not panic.
func (p *WorkerPool) Do(ctx context.Context, fn func() (map[string]any, error)) (map[string]any, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire worker: %w", err)
	}
	blockingPoolInUse.Set(float64(p.inUse.Add(1)))

	done := make(chan callResult, 1)
	go func() {
		var res callResult
		defer func() {
			p.release()
			done <- res
		}()
		res.out, res.err = fn()
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *WorkerPool) release() {
	blockingPoolInUse.Set(float64(p.inUse.Add(-1)))
	p.sem.Release(1)
}
