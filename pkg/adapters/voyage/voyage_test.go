package voyage

import (
	"context"
	"errors"
	"testing"

	"github.com/austinfhunter/voyageai"
)

type fakeEmbedder struct {
	texts []string
	model string
	opts  *voyageai.EmbeddingRequestOpts
	out   [][]float32
	err   error
}

func (f *fakeEmbedder) embed(texts []string, model string, opts *voyageai.EmbeddingRequestOpts) ([][]float32, error) {
	f.texts = texts
	f.model = model
	f.opts = opts
	return f.out, f.err
}

func TestNewService_EmptyAPIKey(t *testing.T) {
	if _, err := NewService(""); err == nil {
		t.Error("Expected error with empty API key")
	}
}

func TestNewService_Defaults(t *testing.T) {
	s, err := NewService("test-key")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if s.Dimensions() != DefaultDimensions {
		t.Errorf("Expected %d dimensions, got %d", DefaultDimensions, s.Dimensions())
	}
	if s.model != DefaultModel {
		t.Errorf("Expected model %s, got %s", DefaultModel, s.model)
	}
}

func TestGenerateEmbedding(t *testing.T) {
	fake := &fakeEmbedder{out: [][]float32{{0.1, 0.2}}}
	s := &Service{embed: fake.embed, dimensions: 1024, model: "m"}
	s.SetModel("voyage-test")
	s.SetDimensions(256)

	got, err := s.GenerateEmbedding(context.Background(), "Nike Pegasus 40", EmbeddingTypeQuery)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 values, got %d", len(got))
	}
	if fake.model != "voyage-test" {
		t.Errorf("Expected model voyage-test, got %s", fake.model)
	}
	if fake.opts.InputType == nil || *fake.opts.InputType != "query" {
		t.Error("Expected query input type")
	}
	if *fake.opts.OutputDimension != 256 {
		t.Errorf("Expected 256 dimensions, got %d", *fake.opts.OutputDimension)
	}
}

func TestGenerateEmbeddings_DefaultType(t *testing.T) {
	fake := &fakeEmbedder{out: [][]float32{{1}, {2}}}
	s := &Service{embed: fake.embed, dimensions: 8, model: DefaultModel}

	got, err := s.GenerateEmbeddings(context.Background(), []string{"a", "b"}, EmbeddingTypeDefault)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(got) != 2 || got[1][0] != 2 {
		t.Errorf("Unexpected embeddings: %v", got)
	}
	if fake.opts.InputType != nil {
		t.Error("Default type should omit input_type")
	}
}

func TestGenerateEmbeddings_Errors(t *testing.T) {
	s := &Service{embed: (&fakeEmbedder{err: errors.New("boom")}).embed, dimensions: 8}
	if _, err := s.GenerateEmbedding(context.Background(), "x", EmbeddingTypeDocument); err == nil {
		t.Error("Expected error from client")
	}

	s = &Service{embed: (&fakeEmbedder{}).embed, dimensions: 8}
	if _, err := s.GenerateEmbedding(context.Background(), "x", EmbeddingTypeDocument); err == nil {
		t.Error("Expected error for missing embeddings")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.GenerateEmbedding(ctx, "x", EmbeddingTypeDocument); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestGenerateEmbeddings_Empty(t *testing.T) {
	s := &Service{embed: (&fakeEmbedder{}).embed, dimensions: 8}
	got, err := s.GenerateEmbeddings(context.Background(), nil, EmbeddingTypeDefault)
	if err != nil || got != nil {
		t.Errorf("Expected nil, nil; got %v, %v", got, err)
	}
}
