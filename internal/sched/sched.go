// Package sched implements the process-wide Executor and per-tile
// dependency DAG that schedule Tier-1, DWT, and MCT work across workers
// (spec §4.8), generalizing the teacher's channel-and-WaitGroup
// code-block worker pool (encoder.go's parallel tile-encoding loop) into
// a reusable multi-stage scheduler, shaped after
// `_examples/original_source/src/lib/core/scheduling/Scheduler.h` and
// `ImageComponentFlow.h`'s ResFlow chain.
package sched

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Task is one unit of scheduled work: one codeblock, one wavelet row
// stripe, or one component's contribution to PrePostProc.
type Task func(ctx context.Context) error

// Executor is the process-wide, ref-counted worker pool bounding
// concurrent tasks across every in-flight tile (spec §5: "the executor
// is process-wide and ref-counted").
type Executor struct {
	sem *semaphore.Weighted
}

var (
	sharedExecutor *Executor
	sharedMu       sync.Mutex
	sharedRefs     int
)

// Acquire returns the process-wide Executor, creating it on first use
// with the given worker count (spec §4.8: "created on first use, bounded
// by a configured worker count"). Every Acquire must be matched by a
// Release once the caller is done scheduling tile work.
func Acquire(workers int) *Executor {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedExecutor == nil {
		if workers <= 0 {
			workers = 1
		}
		sharedExecutor = &Executor{sem: semaphore.NewWeighted(int64(workers))}
	}
	sharedRefs++
	return sharedExecutor
}

// Release decrements the executor's reference count; the last release
// drops the shared instance so a later Acquire can resize the pool.
func Release() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	sharedRefs--
	if sharedRefs <= 0 {
		sharedExecutor = nil
		sharedRefs = 0
	}
}

// ResFlow is one resolution's stage chain within a tile-component's
// pyramid (spec §4.8): Packets -> Blocks -> WaveletH -> WaveletV. The
// lowest resolution has no wavelet step, so its WaveletH/WaveletV are
// left nil.
type ResFlow struct {
	Packets  []Task
	Blocks   []Task
	WaveletH []Task
	WaveletV []Task
}

// ComponentFlow is one tile-component's chain of ResFlows from the
// lowest resolution upward; ResFlow[r].WaveletV gates ResFlow[r+1].Blocks
// (spec §4.8), which runComponent enforces simply by running the chain
// in order.
type ComponentFlow struct {
	Resolutions []ResFlow
}

// TileDAG is the full two-level dependency graph scheduled for one tile:
// every component's ResFlow chain in parallel, followed by a single
// PrePostProc node that gathers per-component outputs, applies the
// inverse/forward MCT, and notifies the strip cache or packet writer
// (spec §4.8).
type TileDAG struct {
	Components  []ComponentFlow
	PrePostProc Task
}

// ErrAborted is returned by Run when the tile's task graph was cancelled
// by an earlier task failure before PrePostProc could run.
var ErrAborted = fmt.Errorf("sched: tile aborted before PrePostProc")

// Run executes dag to completion or first failure (spec §4.8/§5's
// concurrency contract): the call blocks until every submitted task
// completes or the run aborts, and propagates the first task error.
// Cancellation is cooperative: on first failure an atomic flag is set,
// remaining stages fast-exit, and in-flight tasks are left to finish
// their current unit of work (no partial-result guarantee, per spec §5).
func (e *Executor) Run(ctx context.Context, dag TileDAG) error {
	var aborted atomic.Bool
	var g errgroup.Group

	for _, comp := range dag.Components {
		comp := comp
		g.Go(func() error {
			return e.runComponent(ctx, comp, &aborted)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if aborted.Load() {
		return ErrAborted
	}
	if dag.PrePostProc != nil {
		return dag.PrePostProc(ctx)
	}
	return nil
}

func (e *Executor) runComponent(ctx context.Context, comp ComponentFlow, aborted *atomic.Bool) error {
	for _, rf := range comp.Resolutions {
		if aborted.Load() {
			return nil
		}
		for _, stage := range [][]Task{rf.Packets, rf.Blocks, rf.WaveletH, rf.WaveletV} {
			if err := e.run(ctx, stage, aborted); err != nil {
				return err
			}
		}
	}
	return nil
}

// run executes tasks concurrently, bounded by e's worker semaphore,
// declining to start new tasks once aborted is set.
func (e *Executor) run(ctx context.Context, tasks []Task, aborted *atomic.Bool) error {
	if len(tasks) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		if aborted.Load() {
			break
		}
		if err := e.sem.Acquire(gctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer e.sem.Release(1)
			if aborted.Load() {
				return nil
			}
			if err := task(gctx); err != nil {
				aborted.Store(true)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
