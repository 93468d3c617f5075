// Package engine walks graphs. Engine executes a graph from its start node to
// completion, dispatching each node's tool and merging the result into the
// run's shared state, and Scheduler runs that walk on a background goroutine
// behind a placeholder run that is pollable immediately.
package engine
