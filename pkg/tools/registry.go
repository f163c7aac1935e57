// Package tools provides the tool registry and all tool implementations:
// infrastructure provisioning via the Terraform engine, monitoring proxies,
// and the echo fallback.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Intent is a structured tool decision produced from free text by the router
// and consumed by the dispatcher. Transient: it lives for one
// request/response cycle and is never persisted server-side.
type Intent struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ToolChannel is a named, executable operation.
type ToolChannel interface {
	// Name returns the tool's registry identifier.
	Name() string
	// Description is a one-line summary used for discovery and for the
	// router's extraction prompt.
	Description() string
	// Exec runs the tool and returns its textual result.
	Exec(ctx context.Context, args map[string]any) (string, error)
}

// Descriptor is the discoverable metadata for one registered tool.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry maps tool names to implementations. It is populated once at
// startup and read-only afterwards, so concurrent reads are safe.
// The registry is an explicit injected object, not a package global.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolChannel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ToolChannel)}
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(tool ToolChannel) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// MustRegister is Register but panics on error. Use during startup wiring.
func (r *Registry) MustRegister(tool ToolChannel) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (ToolChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns descriptors for all registered tools, sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, Descriptor{Name: tool.Name(), Description: tool.Description()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidationError marks a request rejected for a missing or malformed
// argument. It is surfaced immediately and never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
