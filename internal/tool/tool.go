package tool

import "context"

// Mode describes how the engine must dispatch a capability.
type Mode string

// Execution modes.
const (
	ModeCooperative Mode = "cooperative"
	ModeBlocking    Mode = "blocking"
)

// Capability is the callable a node's fn resolves to. It receives a copy of
// the run's shared state and the node's params, and returns the keys to merge
// back into the state. Implementations must not retain or mutate either map.
type Capability interface {
	Call(ctx context.Context, state, params map[string]any) (map[string]any, error)
}

// Blocker is implemented by capabilities that must not run on the caller's
// goroutine.
type Blocker interface {
	Blocking() bool
}

// Func adapts a context-aware function into a cooperative capability.
type Func func(ctx context.Context, state, params map[string]any) (map[string]any, error)

// Call implements Capability.
func (f Func) Call(ctx context.Context, state, params map[string]any) (map[string]any, error) {
	return f(ctx, state, params)
}

// BlockingFunc adapts a plain function into a blocking capability. It has no
// context: once started it runs to completion.
type BlockingFunc func(state, params map[string]any) (map[string]any, error)

// Call implements Capability.
func (f BlockingFunc) Call(_ context.Context, state, params map[string]any) (map[string]any, error) {
	return f(state, params)
}

// Blocking implements Blocker.
func (BlockingFunc) Blocking() bool { return true }

// ModeOf reports the dispatch mode of c.
func ModeOf(c Capability) Mode {
	if b, ok := c.(Blocker); ok && b.Blocking() {
		return ModeBlocking
	}
	return ModeCooperative
}
