package embedstrategy

import (
	"context"
	"fmt"
)

// QueryStrategy embeds a free-text search query for the QUERY operation
// code. The resulting vector is used once by the search engine and never
// persisted.
type QueryStrategy struct {
	embedder Embedder
}

// NewQueryStrategy builds a QueryStrategy over embedder.
func NewQueryStrategy(embedder Embedder) *QueryStrategy {
	return &QueryStrategy{embedder: embedder}
}

// Generate embeds query under the resolved model, returning a single dense
// vector.
func (s *QueryStrategy) Generate(ctx context.Context, query string, resolution ModelResolution) ([]float32, error) {
	vectors, err := s.embedder.Embed(ctx, resolution.ResolveEmbedding(), []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query: expected 1 vector, got %d", len(vectors))
	}
	return vectors[0], nil
}
