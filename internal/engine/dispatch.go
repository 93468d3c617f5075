package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/seantiz/graphrun/internal/model"
	"github.com/seantiz/graphrun/internal/tool"
)

// ErrToolPanic wraps a panic raised inside a tool call.
var ErrToolPanic = errors.New("tool panicked")

// NodeError is a failure while executing a node. It is fatal to the run.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// dispatch resolves the node's tool and calls it with a copy of state. Blocking
// tools go through the worker pool; cooperative tools run on the calling
// goroutine.
func (e *Engine) dispatch(ctx context.Context, node model.Node, state map[string]any) (map[string]any, error) {
	c, err := e.tools.Resolve(node.Fn)
	if err != nil {
		nodeExecutions.WithLabelValues(unregisteredTool, "unknown", "not_found").Inc()
		return nil, err
	}

	mode := tool.ModeOf(c)
	params := maps.Clone(node.Params)
	if params == nil {
		params = make(map[string]any)
	}

	start := time.Now()
	var result map[string]any
	switch mode {
	case tool.ModeBlocking:
		result, err = e.pool.Do(ctx, func() (map[string]any, error) {
			return callTool(ctx, node.Fn, c, state, params)
		})
	default:
		result, err = callTool(ctx, node.Fn, c, state, params)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	nodeExecutions.WithLabelValues(node.Fn, string(mode), status).Inc()
	nodeDuration.WithLabelValues(node.Fn, string(mode)).Observe(time.Since(start).Seconds())

	return result, err
}

// callTool invokes c, converting a panic into an error.
func callTool(ctx context.Context, name string, c tool.Capability, state, params map[string]any) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %s: %v", ErrToolPanic, name, r)
		}
	}()
	return c.Call(ctx, state, params)
}
