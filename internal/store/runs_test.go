package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/graphrun/internal/model"
)

func TestRunRegistryPutGet(t *testing.T) {
	r := NewRunRegistry()
	run := model.NewRun("r1", "g1", map[string]any{"x": 1})
	r.Put(run)

	got, err := r.Get("r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != run {
		t.Error("Get returned a different record than was put")
	}
}

func TestRunRegistryGetNotFound(t *testing.T) {
	r := NewRunRegistry()
	if _, err := r.Get("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get error = %v, want ErrRunNotFound", err)
	}
}

func TestRunRegistryReplaceKeepsOrder(t *testing.T) {
	r := NewRunRegistry()
	r.Put(model.NewPlaceholderRun("r1", "g1", nil))
	r.Put(model.NewRun("r2", "g1", nil))

	replacement := model.NewRun("r1", "g1", nil)
	r.Put(replacement)

	got, _ := r.Get("r1")
	if got != replacement {
		t.Error("Put did not replace the record under the same id")
	}

	snaps, total := r.List(10, 0)
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if snaps[0].RunID != "r2" || snaps[1].RunID != "r1" {
		t.Errorf("order = %s, %s, want r2, r1", snaps[0].RunID, snaps[1].RunID)
	}
}

func TestRunRegistryListPagination(t *testing.T) {
	r := NewRunRegistry()
	for i := 0; i < 5; i++ {
		r.Put(model.NewRun(fmt.Sprintf("r%d", i), "g1", nil))
	}

	snaps, total := r.List(2, 1)
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(snaps) != 2 {
		t.Fatalf("len(snaps) = %d, want 2", len(snaps))
	}
	if snaps[0].RunID != "r3" || snaps[1].RunID != "r2" {
		t.Errorf("page = %s, %s, want r3, r2", snaps[0].RunID, snaps[1].RunID)
	}

	snaps, _ = r.List(10, 10)
	if len(snaps) != 0 {
		t.Errorf("len(snaps) past the end = %d, want 0", len(snaps))
	}
}

func TestRunRegistryTasks(t *testing.T) {
	r := NewRunRegistry()

	if _, ok := r.Task("r1"); ok {
		t.Error("Task reported a task for an unknown run")
	}

	r.SetTask("r1", Task{StartedAt: time.Now().UTC()})
	r.FinishTask("r1", false)

	task, ok := r.Task("r1")
	if !ok {
		t.Fatal("Task not found after SetTask")
	}
	if !task.Done || task.Cancelled {
		t.Errorf("task = %+v, want done and not cancelled", task)
	}
	if task.FinishedAt == nil {
		t.Error("FinishedAt is nil after FinishTask")
	}

	r.FinishTask("unknown", true)
	if _, ok := r.Task("unknown"); ok {
		t.Error("FinishTask created a task for an unknown run")
	}
}

func TestRunRegistryStats(t *testing.T) {
	r := NewRunRegistry()
	done := model.NewRun("r1", "g1", nil)
	done.Finish()
	r.Put(done)
	r.Put(model.NewRun("r2", "g1", nil))
	r.Put(model.NewRun("r3", "g2", nil))

	stats := r.Stats()
	if stats.Total != 3 || stats.Done != 1 || stats.Running != 2 {
		t.Errorf("stats = %+v, want total 3, done 1, running 2", stats)
	}
	if stats.ByGraph["g1"] != 2 || stats.ByGraph["g2"] != 1 {
		t.Errorf("ByGraph = %v, want g1:2 g2:1", stats.ByGraph)
	}
}

func TestRunRegistryConcurrentAccess(t *testing.T) {
	r := NewRunRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("r%d", i)
		wg.Go(func() {
			r.Put(model.NewRun(id, "g1", nil))
			r.SetTask(id, Task{StartedAt: time.Now()})
			if _, err := r.Get(id); err != nil {
				t.Errorf("Get(%s): %v", id, err)
			}
			r.Stats()
			r.List(5, 0)
		})
	}
	wg.Wait()

	if _, total := r.List(1, 0); total != 20 {
		t.Errorf("total = %d, want 20", total)
	}
}
