package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/seantiz/graphrun/internal/model"
	"github.com/seantiz/graphrun/internal/store"
	"github.com/seantiz/graphrun/internal/tool"
)

// MaxVisits is the hard ceiling on node visits per run.
const MaxVisits = 1000

// endOfRun names the missing successor in transition log entries.
const endOfRun = "END"

// ErrLoopGuard reports a run aborted after MaxVisits node visits.
var ErrLoopGuard = errors.New("loop guard tripped")

// Engine executes graphs against live Run records.
type Engine struct {
	graphs store.GraphStore
	runs   *store.RunRegistry
	tools  *tool.Registry
	pool   *WorkerPool
	broker *LogBroker
	logger *slog.Logger
}

// NewEngine creates a new execution engine.
func NewEngine(graphs store.GraphStore, runs *store.RunRegistry, tools *tool.Registry, pool *WorkerPool, logger *slog.Logger) *Engine {
	return &Engine{
		graphs: graphs,
		runs:   runs,
		tools:  tools,
		pool:   pool,
		broker: NewLogBroker(),
		logger: logger.With("component", "engine"),
	}
}

// Broker returns the engine's log broker for SSE subscription.
func (e *Engine) Broker() *LogBroker {
	return e.broker
}

// Execute runs graph graphID to completion and returns the final Run.
//
// The Run is registered before the first node executes and mutated in place,
// so holders of the record observe live progress. If runID names a pending
// placeholder for the same graph, that record is reused; an empty runID
// allocates a new one. An unknown graph fails before any Run is created. Node
// failures and loop-guard trips end the run but are not returned as errors:
// they are recorded in the run log.
func (e *Engine) Execute(ctx context.Context, graphID string, initial map[string]any, runID string) (*model.Run, error) {
	g, err := e.graphs.GetGraph(ctx, graphID)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", graphID, err)
	}

	if runID == "" {
		runID = model.NewID()
	}
	run := e.attach(runID, graphID, initial)

	runsStarted.Inc()
	activeRuns.Inc()
	defer activeRuns.Dec()

	logger := e.logger.With("run_id", runID, "graph_id", graphID)
	logger.Info("run started", "start_node", g.StartNode)

	err = e.walk(ctx, g, run, logger)
	switch {
	case err == nil:
		runsFinished.WithLabelValues(outcomeCompleted).Inc()
		logger.Info("run completed")
	case errors.Is(err, ErrLoopGuard):
		runsFinished.WithLabelValues(outcomeLoopGuard).Inc()
		loopGuardTrips.Inc()
		logger.Warn("run aborted by loop guard", "max_visits", MaxVisits)
	default:
		runsFinished.WithLabelValues(outcomeNodeError).Inc()
		logger.Warn("run failed", "error", err)
	}

	return run, nil
}

// attach returns the pending placeholder registered under runID, or creates
// and registers a fresh Run.
func (e *Engine) attach(runID, graphID string, initial map[string]any) *model.Run {
	if existing, err := e.runs.Get(runID); err == nil && existing.GraphID() == graphID && !existing.Done() {
		return existing
	}
	run := model.NewRun(runID, graphID, initial)
	e.runs.Put(run)
	return run
}

// walk is the step loop. Every exit clears the current node and marks the
// run done.
func (e *Engine) walk(ctx context.Context, g *model.Graph, run *model.Run, logger *slog.Logger) error {
	defer e.broker.Close(run.ID())
	defer run.Finish()

	current := g.StartNode
	for visits := 1; current != ""; visits++ {
		if visits > MaxVisits {
			e.appendLog(run, fmt.Sprintf("Loop guard activated after %d visits; aborting.", MaxVisits))
			return ErrLoopGuard
		}

		run.SetCurrent(current)

		node, ok := g.Node(current)
		if !ok {
			err := fmt.Errorf("node %q is not defined in the graph", current)
			e.appendLog(run, fmt.Sprintf("Node %s error: %v", current, err))
			return &NodeError{Node: current, Err: err}
		}

		logger.Debug("executing node", "node", current, "tool", node.Fn)
		result, err := e.dispatch(ctx, node, run.State())
		if err != nil {
			e.appendLog(run, fmt.Sprintf("Node %s error: %v", current, err))
			return &NodeError{Node: current, Err: err}
		}
		keys := run.Merge(result)
		e.appendLog(run, fmt.Sprintf("Node %s executed; updated keys: %v", current, keys))

		next := e.next(g, current, node, run)

		to := next
		if to == "" {
			to = endOfRun
		}
		e.appendLog(run, fmt.Sprintf("Transition: %s -> %s", current, to))

		if next == "" {
			return nil
		}
		current = next
		// Yield so pollers and other runs get scheduled between steps.
		runtime.Gosched()
	}
	return nil
}

// next resolves the successor of the current node. A loop_condition overrides
// the default edge: when it holds the run moves to on_success (or ends when
// that is unset), otherwise to on_failure, falling back to the current node.
// A condition that cannot be parsed or evaluated is logged and the default
// edge is kept.
func (e *Engine) next(g *model.Graph, current string, node model.Node, run *model.Run) string {
	next := g.Next(current)

	cond, ok, err := loopCondition(node.Params)
	if !ok {
		return next
	}

	var holds bool
	if err == nil {
		holds, err = cond.Eval(run.State())
	}
	if err != nil {
		var ce *ConditionError
		if errors.As(err, &ce) {
			e.appendLog(run, fmt.Sprintf("Invalid loop_condition %q: %s; continuing default path.", ce.Condition, ce.Reason))
		} else {
			e.appendLog(run, fmt.Sprintf("Invalid loop_condition: %v; continuing default path.", err))
		}
		return next
	}

	if holds {
		return stringParam(node.Params, model.ParamOnSuccess)
	}
	if target := stringParam(node.Params, model.ParamOnFailure); target != "" {
		return target
	}
	return current
}

// appendLog records a run log entry and publishes it to live subscribers.
func (e *Engine) appendLog(run *model.Run, line string) {
	seq := run.AppendLog(line)
	e.broker.Publish(run.ID(), LogEntry{Seq: seq, Line: line})
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}
