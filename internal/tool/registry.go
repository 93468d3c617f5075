package tool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrToolNotFound is returned when no capability is registered under a name.
var ErrToolNotFound = errors.New("tool not found")

// NotFoundError names the tool that could not be resolved.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found in registry", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrToolNotFound
}

// Info pairs a tool name with its dispatch mode.
type Info struct {
	Name string `json:"name"`
	Mode Mode   `json:"mode"`
}

// Registry maps tool names to capabilities. It is populated at startup and
// read concurrently by every run.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Capability
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Capability),
	}
}

// Register adds a capability under the given name, replacing any previous one.
func (r *Registry) Register(name string, c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = c
}

// Resolve returns the capability registered under name.
func (r *Registry) Resolve(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.tools[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return c, nil
}

// List returns every registered tool sorted by name for a stable API response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.tools))
	for name, c := range r.tools {
		infos = append(infos, Info{
			Name: name,
			Mode: ModeOf(c),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
