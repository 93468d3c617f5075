package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/seantiz/graphrun/internal/model"

	_ "modernc.org/sqlite"
)

const createGraphsTable = `
CREATE TABLE IF NOT EXISTS graphs (
    id          TEXT PRIMARY KEY,
    start_node  TEXT NOT NULL,
    node_count  INTEGER NOT NULL,
    definition  BLOB NOT NULL,
    created_at  DATETIME NOT NULL
)`

// graphIDPrefix is the prefix of ids allocated by CreateGraph.
const graphIDPrefix = "graph_"

// Compile-time interface satisfaction check.
var _ GraphStore = (*SQLiteStore)(nil)

// SQLiteStore implements GraphStore on an in-memory SQLite database. Nothing
// is written to disk: every graph is lost when the process exits.
type SQLiteStore struct {
	db *sql.DB
	// mu serialises id allocation in CreateGraph.
	mu sync.Mutex
}

// NewSQLiteStore opens a private in-memory database and creates the schema.
func NewSQLiteStore() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each connection to ":memory:" is a separate database, so the pool must
	// never hold more than one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createGraphsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create graphs table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateGraph stores g under the next free "graph_N" id, where N starts at
// the number of stored graphs plus one.
func (s *SQLiteStore) CreateGraph(ctx context.Context, g *model.Graph) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM graphs").Scan(&count); err != nil {
		return "", fmt.Errorf("count graphs: %w", err)
	}

	for n := count + 1; ; n++ {
		id := fmt.Sprintf("%s%d", graphIDPrefix, n)
		err := s.insert(ctx, id, g)
		if errors.Is(err, ErrGraphExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return id, nil
	}
}

// PutGraph stores g under id. It returns ErrGraphExists if id is taken.
func (s *SQLiteStore) PutGraph(ctx context.Context, id string, g *model.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(ctx, id, g)
}

func (s *SQLiteStore) insert(ctx context.Context, id string, g *model.Graph) error {
	def, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO graphs (id, start_node, node_count, definition, created_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, g.StartNode, len(g.Nodes), def, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert graph: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrGraphExists, id)
	}
	return nil
}

// GetGraph decodes the graph stored under id. Each call returns a fresh
// copy, so callers cannot mutate the stored definition.
func (s *SQLiteStore) GetGraph(ctx context.Context, id string) (*model.Graph, error) {
	var def []byte
	err := s.db.QueryRowContext(ctx, "SELECT definition FROM graphs WHERE id = ?", id).Scan(&def)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGraphNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get graph: %w", err)
	}

	g := &model.Graph{}
	if err := json.Unmarshal(def, g); err != nil {
		return nil, fmt.Errorf("decode graph %s: %w", id, err)
	}
	g.Normalize()
	return g, nil
}

// ListGraphs returns a page of graph summaries ordered by creation, oldest
// first, along with the total number of stored graphs.
func (s *SQLiteStore) ListGraphs(ctx context.Context, limit, offset int) ([]GraphSummary, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM graphs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count graphs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, start_node, node_count, created_at
		FROM graphs ORDER BY created_at ASC, rowid ASC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list graphs: %w", err)
	}
	defer rows.Close()

	var graphs []GraphSummary
	for rows.Next() {
		var g GraphSummary
		if err := rows.Scan(&g.ID, &g.StartNode, &g.NodeCount, &g.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan graph: %w", err)
		}
		graphs = append(graphs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate graphs: %w", err)
	}

	return graphs, total, nil
}
