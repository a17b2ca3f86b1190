package pinecone

import (
	"context"
	"errors"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// NewService creates a Pinecone client. Nothing is sent until an index is used.
func NewService(apiKey string) (*Service, error) {
	if apiKey == "" {
		return nil, errors.New("pinecone API key is required")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Pinecone client: %w", err)
	}

	return &Service{client: client}, nil
}

// ForIndex returns the operations for the index served at host, scoped to namespace
func (s *Service) ForIndex(host, namespace string) (*IndexOperations, error) {
	if host == "" {
		return nil, errors.New("pinecone index host is required")
	}

	conn, err := s.client.Index(pinecone.NewIndexConnParams{
		Host:      host,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index %s: %w", host, err)
	}

	return &IndexOperations{index: conn}, nil
}

// Search performs a vector similarity search in the index
func (idx *IndexOperations) Search(ctx context.Context, queryVector []float32, topK int, filter map[string]any) ([]QueryMatch, error) {
	req, err := queryRequest(queryVector, topK, filter)
	if err != nil {
		return nil, err
	}

	resp, err := idx.index.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, err
	}

	return derefMatches(resp.Matches), nil
}

// Upsert stores vectors in the index
func (idx *IndexOperations) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	ptrs := make([]*pinecone.Vector, len(vectors))
	for i := range vectors {
		ptrs[i] = &vectors[i]
	}

	_, err := idx.index.UpsertVectors(ctx, ptrs)
	return err
}

// Delete removes vectors from the index
func (idx *IndexOperations) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return idx.index.DeleteVectorsById(ctx, ids)
}

func queryRequest(queryVector []float32, topK int, filter map[string]any) (*pinecone.QueryByVectorValuesRequest, error) {
	if len(queryVector) == 0 {
		return nil, errors.New("query vector is empty")
	}
	if topK <= 0 {
		topK = 1
	}

	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          queryVector,
		TopK:            uint32(topK),
		IncludeValues:   false,
		IncludeMetadata: true,
	}
	if len(filter) > 0 {
		metadataFilter, err := structpb.NewStruct(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to create metadata filter: %w", err)
		}
		req.MetadataFilter = metadataFilter
	}
	return req, nil
}

func derefMatches(in []*pinecone.ScoredVector) []QueryMatch {
	out := make([]QueryMatch, 0, len(in))
	for _, m := range in {
		if m != nil && m.Vector != nil {
			out = append(out, *m)
		}
	}
	return out
}

// NewVector builds an index vector with structpb metadata
func NewVector(id string, values []float32, metadata map[string]any) (Vector, error) {
	fields, err := structpb.NewStruct(metadata)
	if err != nil {
		return Vector{}, fmt.Errorf("failed to convert metadata for %s: %w", id, err)
	}
	return Vector{Id: id, Values: values, Metadata: fields}, nil
}
