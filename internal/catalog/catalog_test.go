package catalog_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/graphrun/internal/catalog"
	"github.com/seantiz/graphrun/internal/engine"
	"github.com/seantiz/graphrun/internal/model"
	"github.com/seantiz/graphrun/internal/store"
	"github.com/seantiz/graphrun/internal/tool"
	"github.com/seantiz/graphrun/internal/tool/builtin"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadEmbedded(t *testing.T) {
	defs, err := catalog.LoadEmbedded()
	require.NoError(t, err)

	byID := make(map[string]*model.Graph)
	for _, d := range defs {
		byID[d.ID] = d.Graph
	}
	require.Contains(t, byID, "code_review_v1")
	require.Contains(t, byID, "async_demo_v1")

	review := byID["code_review_v1"]
	assert.Equal(t, "extract", review.StartNode)
	assert.Equal(t, map[string]string{
		"extract":    "complexity",
		"complexity": "detect",
		"detect":     "suggest",
	}, review.Edges)

	want := map[string]any{
		"loop_condition": "quality_score>=80",
		"on_success":     nil,
		"on_failure":     "suggest",
	}
	if diff := cmp.Diff(want, review.Nodes["suggest"].Params); diff != "" {
		t.Errorf("suggest params mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, float64(20), review.Nodes["complexity"].Params["threshold_name_len"])
	assert.Empty(t, review.Nodes["extract"].Params)
	assert.Equal(t, "extract", review.Nodes["extract"].Name)

	demo := byID["async_demo_v1"]
	assert.Equal(t, "long_task", demo.Nodes["long"].Fn)
	assert.Equal(t, "long_done", demo.Nodes["long"].Params["result_key"])

	for _, d := range defs {
		assert.NoError(t, d.Graph.Validate(), d.ID)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "nested/extra.hcl", `
graph "extra" {
  start_node = "a"
  edges      = { a = "b" }
  node "a" { fn = "extract_functions" }
  node "b" {
    fn     = "long_task"
    params = { seconds = 0, result_key = "out" }
  }
}
`)
	writeFile(t, dir, "README.md", "not a graph")

	defs, err := catalog.Load(dir, filepath.Join(dir, "does-not-exist"))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "extra", defs[0].ID)
	assert.Equal(t, filepath.Join(dir, "nested", "extra.hcl"), defs[0].Source)
	assert.Equal(t, "b", defs[0].Graph.Edges["a"])
	assert.Equal(t, float64(0), defs[0].Graph.Nodes["b"].Params["seconds"])
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "syntax", content: `graph "g" { start_node = `},
		{name: "missing fn", content: `graph "g" {
  start_node = "a"
  node "a" {}
}`},
		{name: "params not an object", content: `graph "g" {
  start_node = "a"
  node "a" {
    fn     = "x"
    params = "nope"
  }
}`},
		{name: "duplicate node", content: `graph "g" {
  start_node = "a"
  node "a" { fn = "x" }
  node "a" { fn = "y" }
}`},
		{name: "variable reference", content: `graph "g" {
  start_node = "a"
  node "a" {
    fn     = "x"
    params = { n = var.n }
  }
}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), "bad.hcl", tt.content)
			_, err := catalog.Load(p)
			assert.Error(t, err)
		})
	}
}

func TestLoadDuplicateGraphIDs(t *testing.T) {
	dir := t.TempDir()
	g := `graph "same" {
  start_node = "a"
  node "a" { fn = "x" }
}`
	writeFile(t, dir, "one.hcl", g)
	writeFile(t, dir, "two.hcl", g)

	_, err := catalog.Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared in both")
}

func TestRegister(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	defs, err := catalog.LoadEmbedded()
	require.NoError(t, err)
	require.NoError(t, catalog.Register(ctx, s, defs))

	g, err := s.GetGraph(ctx, "code_review_v1")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 4)

	err = catalog.Register(ctx, s, defs)
	assert.ErrorIs(t, err, store.ErrGraphExists)
}

func TestRegisterRejectsInvalidGraph(t *testing.T) {
	p := writeFile(t, t.TempDir(), "broken.hcl", `graph "broken" {
  start_node = "missing"
  node "a" { fn = "x" }
}`)
	defs, err := catalog.Load(p)
	require.NoError(t, err)

	err = catalog.Register(context.Background(), newStore(t), defs)
	assert.ErrorIs(t, err, model.ErrInvalidGraph)
}

func TestCodeReviewGraphRuns(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	defs, err := catalog.LoadEmbedded()
	require.NoError(t, err)
	require.NoError(t, catalog.Register(ctx, s, defs))

	tools := tool.NewRegistry()
	builtin.RegisterAll(tools)
	eng := engine.NewEngine(s, store.NewRunRegistry(), tools, engine.NewWorkerPool(2), slog.New(slog.NewTextHandler(io.Discard, nil)))

	run, err := eng.Execute(ctx, "code_review_v1", map[string]any{"code": "def a():\n    pass"}, "")
	require.NoError(t, err)

	snap := run.Snapshot()
	assert.True(t, snap.Done)
	assert.Equal(t, 100, snap.State["quality_score"])
	assert.Equal(t, []string{"Code looks fine."}, snap.State["suggestions"])
	assert.Equal(t, []string{"a"}, snap.State["functions"])
	assert.Equal(t, "Transition: suggest -> END", snap.Logs[len(snap.Logs)-1])
}
