package jsonreport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dejo1307/pydiag/internal/diagnostic"
	"github.com/dejo1307/pydiag/internal/renderers"
)

// Renderer serializes the outcome as indented JSON.
type Renderer struct{}

func New() *Renderer { return &Renderer{} }

func (r *Renderer) Name() string {
	return "json"
}

func (r *Renderer) Render(ctx context.Context, outcome *diagnostic.Outcome) ([]renderers.Artifact, error) {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling outcome: %w", err)
	}
	return []renderers.Artifact{
		{
			Name:    "report.json",
			Content: append(data, '\n'),
			Type:    "application/json",
		},
	}, nil
}
