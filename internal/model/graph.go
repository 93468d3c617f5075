package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Control-flow directives recognised in Node.Params.
const (
	ParamLoopCondition = "loop_condition"
	ParamOnSuccess     = "on_success"
	ParamOnFailure     = "on_failure"
)

// ErrInvalidGraph is returned when a graph definition fails validation.
var ErrInvalidGraph = errors.New("invalid graph")

// ValidationError lists every problem found in a graph definition.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid graph: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidGraph
}

// Node is a unit of work bound to a tool identifier.
type Node struct {
	Name   string         `json:"name"`
	Fn     string         `json:"fn"`
	Params map[string]any `json:"params"`
}

// Graph is a set of named nodes, default edges and a start node.
// A graph is treated as immutable once it has been stored.
type Graph struct {
	Nodes     map[string]Node   `json:"nodes"`
	Edges     map[string]string `json:"edges"`
	StartNode string            `json:"start_node"`
}

// Node returns the node registered under name.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.Nodes[name]
	return n, ok
}

// Next returns the default successor of name, or "" when it has no outgoing edge.
func (g *Graph) Next(name string) string {
	return g.Edges[name]
}

// Normalize fills a missing node name from its map key and replaces nil
// params and edges with empty maps.
func (g *Graph) Normalize() {
	if g.Edges == nil {
		g.Edges = make(map[string]string)
	}
	for key, n := range g.Nodes {
		if n.Name == "" {
			n.Name = key
		}
		if n.Params == nil {
			n.Params = make(map[string]any)
		}
		g.Nodes[key] = n
	}
}

// Validate checks that every node reference in the graph resolves. The
// loop_condition directive is not checked here: a malformed condition is
// reported at run time and the default edge is taken.
func (g *Graph) Validate() error {
	var problems []string

	if len(g.Nodes) == 0 {
		problems = append(problems, "graph has no nodes")
	}
	if g.StartNode == "" {
		problems = append(problems, "start_node is required")
	} else if _, ok := g.Nodes[g.StartNode]; !ok {
		problems = append(problems, fmt.Sprintf("start_node %q is not a node", g.StartNode))
	}

	for _, key := range sortedKeys(g.Nodes) {
		n := g.Nodes[key]
		if n.Fn == "" {
			problems = append(problems, fmt.Sprintf("node %q has no fn", key))
		}
		if n.Name != "" && n.Name != key {
			problems = append(problems, fmt.Sprintf("node %q is named %q", key, n.Name))
		}
		for _, directive := range []string{ParamOnSuccess, ParamOnFailure} {
			raw, ok := n.Params[directive]
			if !ok || raw == nil {
				continue
			}
			target, isString := raw.(string)
			if !isString {
				problems = append(problems, fmt.Sprintf("node %q: %s must be a string", key, directive))
				continue
			}
			if _, exists := g.Nodes[target]; target != "" && !exists {
				problems = append(problems, fmt.Sprintf("node %q: %s target %q is not a node", key, directive, target))
			}
		}
	}

	for _, from := range sortedKeys(g.Edges) {
		to := g.Edges[from]
		if _, ok := g.Nodes[from]; !ok {
			problems = append(problems, fmt.Sprintf("edge source %q is not a node", from))
		}
		if _, ok := g.Nodes[to]; to != "" && !ok {
			problems = append(problems, fmt.Sprintf("edge %q -> %q targets an unknown node", from, to))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
