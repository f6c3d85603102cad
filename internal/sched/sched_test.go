package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestExecutor_RunExecutesEveryTaskInOrderPerResolution(t *testing.T) {
	e := Acquire(4)
	defer Release()

	var order []int32
	var count atomic.Int32
	record := func(stage int32) Task {
		return func(ctx context.Context) error {
			count.Add(1)
			order = append(order, stage)
			return nil
		}
	}

	dag := TileDAG{
		Components: []ComponentFlow{
			{Resolutions: []ResFlow{
				{Packets: []Task{record(0)}, Blocks: []Task{record(1)}},
				{Packets: []Task{record(2)}, Blocks: []Task{record(3)}, WaveletH: []Task{record(4)}, WaveletV: []Task{record(5)}},
			}},
		},
	}

	var prePostRan bool
	dag.PrePostProc = func(ctx context.Context) error {
		prePostRan = true
		return nil
	}

	if err := e.Run(context.Background(), dag); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !prePostRan {
		t.Error("expected PrePostProc to run")
	}
	if count.Load() != 6 {
		t.Errorf("expected 6 tasks to run, got %d", count.Load())
	}
	for i := 0; i < len(order)-1; i++ {
		if order[i] > order[i+1] {
			t.Errorf("stage order violated: %v", order)
			break
		}
	}
}

func TestExecutor_RunPropagatesFirstError(t *testing.T) {
	e := Acquire(2)
	defer Release()

	wantErr := errors.New("block decode failed")
	var secondRan atomic.Bool

	dag := TileDAG{
		Components: []ComponentFlow{
			{Resolutions: []ResFlow{
				{Blocks: []Task{
					func(ctx context.Context) error { return wantErr },
				}},
			}},
		},
		PrePostProc: func(ctx context.Context) error {
			secondRan.Store(true)
			return nil
		},
	}

	err := e.Run(context.Background(), dag)
	if err == nil {
		t.Fatal("expected an error")
	}
	if secondRan.Load() {
		t.Error("PrePostProc should not run after an aborted tile")
	}
}

func TestExecutor_AcquireReleaseRefCounts(t *testing.T) {
	e1 := Acquire(3)
	e2 := Acquire(5)
	if e1 != e2 {
		t.Error("expected the same shared Executor across nested Acquire calls")
	}
	Release()
	Release()

	e3 := Acquire(1)
	if e3 == e1 {
		t.Error("expected a fresh Executor once all references were released")
	}
	Release()
}

func TestTileDAG_EmptyComponentsStillRunsPrePostProc(t *testing.T) {
	e := Acquire(2)
	defer Release()

	ran := false
	dag := TileDAG{PrePostProc: func(ctx context.Context) error {
		ran = true
		return nil
	}}
	if err := e.Run(context.Background(), dag); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("expected PrePostProc to run with no components")
	}
}
