package renderers

import (
	"context"

	"github.com/dejo1307/pydiag/internal/diagnostic"
)

// Artifact is one rendered report.
type Artifact struct {
	Name    string `json:"name"` // e.g. "report.md"
	Content []byte `json:"-"`
	Type    string `json:"type"` // MIME type hint
}

// Renderer produces report artifacts from an analysis outcome.
type Renderer interface {
	// Name returns the renderer identifier (e.g. "markdown").
	Name() string
	// Render produces artifacts for the given outcome.
	Render(ctx context.Context, outcome *diagnostic.Outcome) ([]Artifact, error)
}

// Registry holds registered renderers.
type Registry struct {
	renderers []Renderer
}

// NewRegistry creates a new renderer registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a renderer to the registry.
func (r *Registry) Register(rnd Renderer) {
	r.renderers = append(r.renderers, rnd)
}

// Get returns the renderer with the given name, or nil if not found.
func (r *Registry) Get(name string) Renderer {
	for _, rnd := range r.renderers {
		if rnd.Name() == name {
			return rnd
		}
	}
	return nil
}

// All returns all registered renderers.
func (r *Registry) All() []Renderer {
	return r.renderers
}

// Names returns the names of all registered renderers in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.renderers))
	for _, rnd := range r.renderers {
		names = append(names, rnd.Name())
	}
	return names
}
