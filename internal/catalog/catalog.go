// Package catalog loads graph definitions from HCL files and registers them
// in a graph store under their declared ids.
package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/seantiz/graphrun/internal/model"
	"github.com/seantiz/graphrun/internal/store"
)

//go:embed graphs/*.hcl
var embedded embed.FS

// Definition is a graph declared in a catalog file.
type Definition struct {
	ID     string
	Source string
	Graph  *model.Graph
}

// fileRoot decodes the top-level blocks of a catalog file.
type fileRoot struct {
	Graphs []*graphBlock `hcl:"graph,block"`
	Remain hcl.Body      `hcl:",remain"`
}

type graphBlock struct {
	ID        string            `hcl:"id,label"`
	StartNode string            `hcl:"start_node"`
	Edges     map[string]string `hcl:"edges,optional"`
	Nodes     []*nodeBlock      `hcl:"node,block"`
}

type nodeBlock struct {
	Name   string         `hcl:"name,label"`
	Fn     string         `hcl:"fn"`
	Params hcl.Expression `hcl:"params,optional"`
}

// LoadEmbedded returns the demo graphs compiled into the binary.
func LoadEmbedded() ([]Definition, error) {
	entries, err := fs.ReadDir(embedded, "graphs")
	if err != nil {
		return nil, fmt.Errorf("read embedded graphs: %w", err)
	}

	parser := hclparse.NewParser()
	var defs []Definition
	for _, entry := range entries {
		name := path.Join("graphs", entry.Name())
		src, err := embedded.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read embedded graph %s: %w", name, err)
		}
		file, diags := parser.ParseHCL(src, name)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parse %s: %w", name, diags)
		}
		fileDefs, err := decodeFile(file, name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}
	return defs, checkDuplicates(defs)
}

// Load parses every .hcl file found under paths. Directories are walked
// recursively and paths that do not exist are skipped.
func Load(paths ...string) ([]Definition, error) {
	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}

	parser := hclparse.NewParser()
	var defs []Definition
	for _, name := range files {
		file, diags := parser.ParseHCLFile(name)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parse %s: %w", name, diags)
		}
		fileDefs, err := decodeFile(file, name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}
	return defs, checkDuplicates(defs)
}

// Register validates each definition and stores it under its declared id.
func Register(ctx context.Context, graphs store.GraphStore, defs []Definition) error {
	for _, def := range defs {
		if err := def.Graph.Validate(); err != nil {
			return fmt.Errorf("graph %s (%s): %w", def.ID, def.Source, err)
		}
		if err := graphs.PutGraph(ctx, def.ID, def.Graph); err != nil {
			return fmt.Errorf("register graph %s: %w", def.ID, err)
		}
	}
	return nil
}

func decodeFile(file *hcl.File, source string) ([]Definition, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %w", source, diags)
	}

	defs := make([]Definition, 0, len(root.Graphs))
	for _, block := range root.Graphs {
		g, err := translateGraph(block)
		if err != nil {
			return nil, fmt.Errorf("%s: graph %s: %w", source, block.ID, err)
		}
		defs = append(defs, Definition{ID: block.ID, Source: source, Graph: g})
	}
	return defs, nil
}

func translateGraph(block *graphBlock) (*model.Graph, error) {
	g := &model.Graph{
		Nodes:     make(map[string]model.Node, len(block.Nodes)),
		Edges:     block.Edges,
		StartNode: block.StartNode,
	}
	for _, nb := range block.Nodes {
		if _, dup := g.Nodes[nb.Name]; dup {
			return nil, fmt.Errorf("node %q declared twice", nb.Name)
		}
		params, err := decodeParams(nb.Params)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nb.Name, err)
		}
		g.Nodes[nb.Name] = model.Node{Name: nb.Name, Fn: nb.Fn, Params: params}
	}
	g.Normalize()
	return g, nil
}

// decodeParams evaluates a params object and converts it to plain Go values
// through its JSON form, so catalog graphs carry the same value shapes as
// graphs posted over HTTP.
func decodeParams(expr hcl.Expression) (map[string]any, error) {
	params := make(map[string]any)
	if expr == nil {
		return params, nil
	}

	// An omitted attribute decodes to an expression yielding null.
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluate params: %w", diags)
	}
	if val.IsNull() {
		return params, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("params must be an object, got %s", val.Type().FriendlyName())
	}
	if !val.IsWhollyKnown() {
		return nil, errors.New("params must be fully known")
	}

	raw, err := ctyjson.SimpleJSONValue{Value: val}.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	return params, nil
}

func checkDuplicates(defs []Definition) error {
	seen := make(map[string]string, len(defs))
	for _, def := range defs {
		if prev, ok := seen[def.ID]; ok {
			return fmt.Errorf("graph %s declared in both %s and %s", def.ID, prev, def.Source)
		}
		seen[def.ID] = def.Source
	}
	return nil
}

// findHCLFiles returns the .hcl files under paths in a stable order.
func findHCLFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("access %s: %w", p, err)
		}

		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(name string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(name) == ".hcl" {
				add(name)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}

	sort.Strings(files)
	return files, nil
}
