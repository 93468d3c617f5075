package store

import (
	"sync"
	"time"

	"github.com/seantiz/graphrun/internal/model"
)

// Task is the status of the background goroutine executing a run.
type Task struct {
	Done       bool       `json:"done"`
	Cancelled  bool       `json:"cancelled"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunStats holds aggregate counts over every registered run.
type RunStats struct {
	Total   int            `json:"total"`
	Done    int            `json:"done"`
	Running int            `json:"running"`
	ByGraph map[string]int `json:"by_graph"`
}

// RunRegistry maps run ids to live Run records and their background task
// status. Entries are kept for the lifetime of the process.
type RunRegistry struct {
	mu    sync.RWMutex
	runs  map[string]*model.Run
	tasks map[string]Task
	// order holds run ids in first-insertion order.
	order []string
}

// NewRunRegistry creates an empty run registry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{
		runs:  make(map[string]*model.Run),
		tasks: make(map[string]Task),
	}
}

// Put registers run under its id, replacing any previous record with that id.
func (r *RunRegistry) Put(run *model.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID()]; !ok {
		r.order = append(r.order, run.ID())
	}
	r.runs[run.ID()] = run
}

// Get returns the live run registered under id.
func (r *RunRegistry) Get(id string) (*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// List returns a page of run snapshots, newest first, and the total count.
func (r *RunRegistry) List(limit, offset int) ([]model.RunSnapshot, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.order)
	var snaps []model.RunSnapshot
	for i := total - 1 - offset; i >= 0 && len(snaps) < limit; i-- {
		snaps = append(snaps, r.runs[r.order[i]].Snapshot())
	}
	return snaps, total
}

// SetTask records the background task status of a run.
func (r *RunRegistry) SetTask(id string, t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[id] = t
}

// Task returns the background task status of a run. Runs executed
// synchronously have none.
func (r *RunRegistry) Task(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// FinishTask marks the background task of a run as done.
func (r *RunRegistry) FinishTask(id string, cancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	t.Done = true
	t.Cancelled = cancelled
	t.FinishedAt = &now
	r.tasks[id] = t
}

// Stats counts runs by completion and by graph.
func (r *RunRegistry) Stats() RunStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RunStats{ByGraph: make(map[string]int)}
	for _, run := range r.runs {
		stats.Total++
		if run.Done() {
			stats.Done++
		} else {
			stats.Running++
		}
		stats.ByGraph[run.GraphID()]++
	}
	return stats
}
