package store

import (
	"context"
	"errors"
	"time"

	"github.com/seantiz/graphrun/internal/model"
)

var (
	// ErrGraphNotFound is returned when no graph is registered under an id.
	ErrGraphNotFound = errors.New("graph not found")
	// ErrRunNotFound is returned when no run is registered under an id.
	ErrRunNotFound = errors.New("run not found")
	// ErrGraphExists is returned by PutGraph when the id is already taken.
	ErrGraphExists = errors.New("graph already exists")
)

// GraphSummary describes a stored graph without its full definition.
type GraphSummary struct {
	ID        string    `json:"graph_id"`
	StartNode string    `json:"start_node"`
	NodeCount int       `json:"node_count"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphStore holds graph definitions. Graphs are immutable once stored.
type GraphStore interface {
	// CreateGraph stores g under a freshly allocated id and returns it.
	CreateGraph(ctx context.Context, g *model.Graph) (string, error)
	// PutGraph stores g under a caller-chosen id.
	PutGraph(ctx context.Context, id string, g *model.Graph) error
	GetGraph(ctx context.Context, id string) (*model.Graph, error)
	ListGraphs(ctx context.Context, limit, offset int) ([]GraphSummary, int, error)
	Close() error
}
