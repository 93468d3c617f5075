package model

import (
	"maps"
	"slices"
	"sync"

	json "github.com/goccy/go-json"
)

// LogScheduled is the first log entry of a run published before execution starts.
const LogScheduled = "Run scheduled; waiting to start."

// RunSnapshot is a point-in-time copy of a Run, safe to encode and share.
type RunSnapshot struct {
	RunID       string         `json:"run_id"`
	GraphID     string         `json:"graph_id"`
	CurrentNode *string        `json:"current_node"`
	State       map[string]any `json:"state"`
	Logs        []string       `json:"logs"`
	Done        bool           `json:"done"`
}

// Run is the live record of one graph execution. Only the engine step loop
// executing the run mutates it; any goroutine may read it.
type Run struct {
	mu      sync.RWMutex
	id      string
	graphID string
	current string
	state   map[string]any
	logs    []string
	done    bool
}

// NewRun creates a run whose state is a copy of initial.
func NewRun(id, graphID string, initial map[string]any) *Run {
	state := maps.Clone(initial)
	if state == nil {
		state = make(map[string]any)
	}
	return &Run{
		id:      id,
		graphID: graphID,
		state:   state,
		logs:    []string{},
	}
}

// NewPlaceholderRun creates the record published for a background run before
// the engine picks it up.
func NewPlaceholderRun(id, graphID string, initial map[string]any) *Run {
	r := NewRun(id, graphID, initial)
	r.logs = append(r.logs, LogScheduled)
	return r
}

func (r *Run) ID() string      { return r.id }
func (r *Run) GraphID() string { return r.graphID }

// SetCurrent records the node being entered. An empty name clears it.
func (r *Run) SetCurrent(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = node
}

// Current returns the node being executed, or "" when none.
func (r *Run) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// State returns a shallow copy of the shared state.
func (r *Run) State() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.state)
}

// Value returns a single state entry.
func (r *Run) Value(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.state[key]
	return v, ok
}

// Merge overwrites state keys with the entries of result in one critical
// section, so readers never see a partially merged result. It returns the
// updated keys in sorted order.
func (r *Run) Merge(result map[string]any) []string {
	r.mu.Lock()
	maps.Copy(r.state, result)
	r.mu.Unlock()
	return slices.Sorted(maps.Keys(result))
}

// AppendLog appends a human-readable entry to the run log and returns its
// zero-based position.
func (r *Run) AppendLog(line string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, line)
	return len(r.logs) - 1
}

// Logs returns a copy of the run log.
func (r *Run) Logs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.logs)
}

// Finish clears the current node and marks the run done.
func (r *Run) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = ""
	r.done = true
}

// MarkDone marks the run done without touching the current node.
func (r *Run) MarkDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
}

// Done reports whether the run has terminated.
func (r *Run) Done() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done
}

// Snapshot copies the run under its read lock.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := RunSnapshot{
		RunID:   r.id,
		GraphID: r.graphID,
		State:   maps.Clone(r.state),
		Logs:    slices.Clone(r.logs),
		Done:    r.done,
	}
	if r.current != "" {
		current := r.current
		snap.CurrentNode = &current
	}
	return snap
}

// MarshalJSON encodes a snapshot of the run.
func (r *Run) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Snapshot())
}
