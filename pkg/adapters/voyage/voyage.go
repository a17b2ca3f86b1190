package voyage

import (
	"context"
	"errors"
	"fmt"

	"github.com/austinfhunter/voyageai"
)

const DefaultDimensions = 1024

const DefaultModel = "voyage-3.5-lite"

type EmbeddingType string

const (
	EmbeddingTypeDocument EmbeddingType = "document"
	EmbeddingTypeQuery    EmbeddingType = "query"
	EmbeddingTypeDefault  EmbeddingType = ""
)

// embedFunc returns one embedding per text, in input order
type embedFunc func(texts []string, model string, opts *voyageai.EmbeddingRequestOpts) ([][]float32, error)

// Service generates embeddings for catalog names and detected labels
type Service struct {
	embed      embedFunc
	dimensions int
	model      string
}

// NewService creates an embedding service for the given API key
func NewService(apiKey string) (*Service, error) {
	if apiKey == "" {
		return nil, errors.New("voyage API key is required")
	}

	client := voyageai.NewClient(&voyageai.VoyageClientOpts{
		Key: apiKey,
	})

	return &Service{
		embed: func(texts []string, model string, opts *voyageai.EmbeddingRequestOpts) ([][]float32, error) {
			resp, err := client.Embed(texts, model, opts)
			if err != nil {
				return nil, err
			}
			out := make([][]float32, len(resp.Data))
			for i := range resp.Data {
				out[i] = resp.Data[i].Embedding
			}
			return out, nil
		},
		dimensions: DefaultDimensions,
		model:      DefaultModel,
	}, nil
}

// SetDimensions sets the output dimensions
func (s *Service) SetDimensions(dimensions int) {
	s.dimensions = dimensions
}

// SetModel sets the embedding model
func (s *Service) SetModel(model string) {
	s.model = model
}

// Dimensions returns the dimension count for the embedding model
func (s *Service) Dimensions() int {
	return s.dimensions
}

// GenerateEmbedding generates an embedding for a single text
func (s *Service) GenerateEmbedding(ctx context.Context, text string, embeddingType EmbeddingType) ([]float32, error) {
	embeddings, err := s.GenerateEmbeddings(ctx, []string{text}, embeddingType)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// GenerateEmbeddings generates one embedding per text, in input order
func (s *Service) GenerateEmbeddings(ctx context.Context, texts []string, embeddingType EmbeddingType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dimensions := s.dimensions
	out, err := s.embed(
		texts,
		s.model,
		&voyageai.EmbeddingRequestOpts{
			InputType:       inputType(embeddingType),
			OutputDimension: &dimensions,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("could not get embeddings: %w", err)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings from voyage, got %d", len(texts), len(out))
	}
	return out, nil
}

func inputType(embeddingType EmbeddingType) *string {
	if embeddingType != EmbeddingTypeDefault {
		value := string(embeddingType)
		return &value
	}
	return nil
}
