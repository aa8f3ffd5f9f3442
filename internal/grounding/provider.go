package grounding

import (
	"context"

	"deepresearch/backend/internal/research"
)

// Provider is a named ranked-list search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, count int) ([]research.SearchResult, error)
}
