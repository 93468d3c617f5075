package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/seantiz/graphrun/internal/model"
	"github.com/seantiz/graphrun/internal/store"
)

// Executor runs a graph against the run registered under runID.
type Executor interface {
	Execute(ctx context.Context, graphID string, initial map[string]any, runID string) (*model.Run, error)
}

// Compile-time interface satisfaction check.
var _ Executor = (*Engine)(nil)

// Scheduler starts graph runs on background goroutines.
type Scheduler struct {
	exec   Executor
	graphs store.GraphStore
	runs   *store.RunRegistry
	broker *LogBroker
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that hands runs to exec.
func NewScheduler(exec Executor, graphs store.GraphStore, runs *store.RunRegistry, broker *LogBroker, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		exec:   exec,
		graphs: graphs,
		runs:   runs,
		broker: broker,
		logger: logger.With("component", "scheduler"),
	}
}

// Start allocates a run id, registers a placeholder Run for it and launches
// execution in a goroutine. The placeholder is registered before Start
// returns, so the id is pollable immediately. An unknown graph is reported
// synchronously and nothing is registered.
func (s *Scheduler) Start(ctx context.Context, graphID string, initial map[string]any) (string, error) {
	if _, err := s.graphs.GetGraph(ctx, graphID); err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}

	runID := model.NewID()
	s.runs.Put(model.NewPlaceholderRun(runID, graphID, initial))
	s.runs.SetTask(runID, store.Task{StartedAt: time.Now().UTC()})

	initial = maps.Clone(initial)
	s.wg.Go(func() {
		s.execute(runID, graphID, initial)
	})

	s.logger.Info("run scheduled", "run_id", runID, "graph_id", graphID)
	return runID, nil
}

// Wait blocks until all background runs complete.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// execute runs one background run. Any error or panic escaping the executor
// is recorded on the run, which is then forced done.
func (s *Scheduler) execute(runID, graphID string, initial map[string]any) {
	var cancelled bool
	defer func() {
		if r := recover(); r != nil {
			s.fail(runID, fmt.Errorf("panic: %v", r))
		}
		s.runs.FinishTask(runID, cancelled)
	}()

	run, err := s.exec.Execute(context.Background(), graphID, initial, runID)
	if err != nil {
		cancelled = errors.Is(err, context.Canceled)
		s.fail(runID, err)
		return
	}
	if run != nil {
		s.runs.Put(run)
	}
}

// fail appends the background error to the run log and marks the run done.
func (s *Scheduler) fail(runID string, err error) {
	runsFinished.WithLabelValues(outcomeAborted).Inc()
	s.logger.Error("background run error", "run_id", runID, "error", err)

	run, gerr := s.runs.Get(runID)
	if gerr != nil {
		s.logger.Error("background run vanished from registry", "run_id", runID, "error", gerr)
		return
	}

	line := fmt.Sprintf("Background run error: %v", err)
	seq := run.AppendLog(line)
	s.broker.Publish(runID, LogEntry{Seq: seq, Line: line})
	run.MarkDone()
	s.broker.Close(runID)
}
