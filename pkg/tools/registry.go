package tools

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/yuy4o/ChatBI/pkg/agent"
)

var (
	// ErrRegistryFrozen is returned by Register after Freeze.
	ErrRegistryFrozen = errors.New("tool registry is frozen")

	// ErrDuplicateTool indicates a tool with the same name is already registered.
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrInvalidDefinition indicates a malformed tool definition.
	ErrInvalidDefinition = errors.New("invalid tool definition")

	// ErrToolNotFound indicates a tool name is not in the registry.
	ErrToolNotFound = errors.New("tool not found")
)

// Registry stores tool definitions in registration order. It is populated
// during startup and frozen before serving; after Freeze it is read-only
// and reads take no lock.
type Registry struct {
	mu     sync.RWMutex
	defs   []*Definition
	byName map[string]*Definition
	frozen atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Definition)}
}

// Register validates def, compiles its schema and adds it.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return ErrRegistryFrozen
	}
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
	}
	if err := def.compile(); err != nil {
		return err
	}

	r.defs = append(r.defs, def)
	r.byName[def.Name] = def
	return nil
}

// Freeze makes the registry immutable.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Definition, bool) {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	def, ok := r.byName[name]
	return def, ok
}

// All returns every definition in registration order.
func (r *Registry) All() []*Definition {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	out := make([]*Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return len(r.defs)
}

// Subset returns the named definitions in the order given. Every name must
// be registered.
func (r *Registry) Subset(names ...string) ([]*Definition, error) {
	out := make([]*Definition, 0, len(names))
	for _, name := range names {
		def, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
		}
		out = append(out, def)
	}
	return out, nil
}

// Toolset builds the toolset for one agent. With no names it contains
// every registered tool.
func (r *Registry) Toolset(names ...string) (*Toolset, error) {
	var defs []*Definition
	if len(names) == 0 {
		defs = r.All()
	} else {
		var err error
		if defs, err = r.Subset(names...); err != nil {
			return nil, err
		}
	}
	return NewToolset(defs...), nil
}

// Toolset is the fixed set of tools offered to the model for one agent.
type Toolset struct {
	defs   []*Definition
	byName map[string]*Definition
}

// NewToolset creates a toolset from already registered definitions.
func NewToolset(defs ...*Definition) *Toolset {
	ts := &Toolset{byName: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if _, dup := ts.byName[d.Name]; dup {
			continue
		}
		ts.defs = append(ts.defs, d)
		ts.byName[d.Name] = d
	}
	return ts
}

// Lookup resolves a tool name within the toolset. A nil toolset is empty.
func (t *Toolset) Lookup(name string) (*Definition, bool) {
	if t == nil {
		return nil, false
	}
	d, ok := t.byName[name]
	return d, ok
}

// Schemas returns the schemas advertised to the completion service.
func (t *Toolset) Schemas() []agent.ToolSchema {
	if t == nil || len(t.defs) == 0 {
		return nil
	}
	out := make([]agent.ToolSchema, len(t.defs))
	for i, d := range t.defs {
		out[i] = d.Schema()
	}
	return out
}

// Names returns the tool names in order.
func (t *Toolset) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.defs))
	for i, d := range t.defs {
		out[i] = d.Name
	}
	return out
}

// Len returns the number of tools.
func (t *Toolset) Len() int {
	if t == nil {
		return 0
	}
	return len(t.defs)
}
