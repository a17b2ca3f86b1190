package adapters

import (
	"context"
	"fmt"

	"github.com/FrenchMajesty/shoewall/pkg/adapters/pinecone"
	"github.com/FrenchMajesty/shoewall/pkg/adapters/voyage"
	"github.com/FrenchMajesty/shoewall/pkg/catalog"
	"github.com/FrenchMajesty/shoewall/pkg/types"
)

// VoyageEmbeddingAdapter adapts the Voyage client to catalog.EmbeddingClient
type VoyageEmbeddingAdapter struct {
	client interface {
		GenerateEmbedding(ctx context.Context, text string, embeddingType voyage.EmbeddingType) ([]float32, error)
	}
}

var _ catalog.EmbeddingClient = (*VoyageEmbeddingAdapter)(nil)

// NewVoyageEmbeddingAdapter creates a new adapter for Voyage AI
func NewVoyageEmbeddingAdapter(apiKey string) (*VoyageEmbeddingAdapter, error) {
	service, err := voyage.NewService(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create voyage service: %w", err)
	}

	return &VoyageEmbeddingAdapter{client: service}, nil
}

// GenerateEmbedding implements catalog.EmbeddingClient. Catalog names and
// detected labels share one embedding space, so no input type is set.
func (a *VoyageEmbeddingAdapter) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return a.client.GenerateEmbedding(ctx, text, voyage.EmbeddingTypeDefault)
}

// PineconeVectorAdapter adapts a Pinecone index to catalog.VectorClient
type PineconeVectorAdapter struct {
	index interface {
		Search(ctx context.Context, queryVector []float32, topK int, filter map[string]any) ([]pinecone.QueryMatch, error)
		Upsert(ctx context.Context, vectors []pinecone.Vector) error
	}
}

var _ catalog.VectorClient = (*PineconeVectorAdapter)(nil)

// NewPineconeVectorAdapter connects to the index at host within namespace
func NewPineconeVectorAdapter(apiKey, host, namespace string) (*PineconeVectorAdapter, error) {
	client, err := pinecone.NewService(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone service: %w", err)
	}

	index, err := client.ForIndex(host, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pinecone index: %w", err)
	}

	return &PineconeVectorAdapter{index: index}, nil
}

// Search implements catalog.VectorClient
func (a *PineconeVectorAdapter) Search(ctx context.Context, vector []float32, topK int) ([]types.VectorMatch, error) {
	matches, err := a.index.Search(ctx, vector, topK, nil)
	if err != nil {
		return nil, err
	}

	results := make([]types.VectorMatch, 0, len(matches))
	for _, match := range matches {
		if match.Vector == nil {
			continue
		}
		metadata := make(map[string]any)
		if match.Vector.Metadata != nil {
			metadata = match.Vector.Metadata.AsMap()
		}

		results = append(results, types.VectorMatch{
			ID:       match.Vector.Id,
			Score:    match.Score,
			Metadata: metadata,
		})
	}

	return results, nil
}

// Upsert implements catalog.VectorClient
func (a *PineconeVectorAdapter) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	v, err := pinecone.NewVector(id, vector, metadata)
	if err != nil {
		return err
	}
	return a.index.Upsert(ctx, []pinecone.Vector{v})
}
