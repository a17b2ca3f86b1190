package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/FrenchMajesty/shoewall/pkg/types"
)

// Source lists every known shoe
type Source interface {
	ListShoes(ctx context.Context) ([]types.ShoeSpec, error)
}

// EmbeddingClient generates vector embeddings for text
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorClient performs vector similarity search and storage operations
type VectorClient interface {
	Search(ctx context.Context, vector []float32, topK int) ([]types.VectorMatch, error)
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error
}

const DefaultMinSimilarity = 0.85

// vectorNamespace seeds the deterministic vector IDs of catalog entries
var vectorNamespace = uuid.MustParse("6f1c9a52-3f0e-4d8b-9a55-2b7d0c1e8a40")

// ResolverConfig configures a Resolver. Embeddings and Vectors are optional;
// without both, matching stops at normalized keys.
type ResolverConfig struct {
	Source        Source
	Embeddings    EmbeddingClient
	Vectors       VectorClient
	MinSimilarity float32
	Logger        *slog.Logger
}

func (c *ResolverConfig) applyDefaults() {
	if c.MinSimilarity == 0 {
		c.MinSimilarity = DefaultMinSimilarity
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Resolver builds the per-request catalog handed to ranking. A detected
// brand/model is matched by exact key, then by normalized key, then by
// nearest catalog vector. The returned map is keyed by the candidate's exact
// key, so the ranking lookup stays a plain map access.
type Resolver struct {
	cfg ResolverConfig
}

// NewResolver creates a Resolver
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("catalog Source is required")
	}
	cfg.applyDefaults()
	return &Resolver{cfg: cfg}, nil
}

func (r *Resolver) vectorsEnabled() bool {
	return r.cfg.Embeddings != nil && r.cfg.Vectors != nil
}

// Resolve returns the specs for every candidate that has a brand and model
// and matches a catalog entry. Unmatched candidates are simply absent.
func (r *Resolver) Resolve(ctx context.Context, candidates []types.VisionCandidate) (ByName, error) {
	specs, err := r.cfg.Source.ListShoes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}

	exact := make(ByName, len(specs))
	normalized := make(map[string]types.ShoeSpec, len(specs))
	for _, s := range specs {
		exact[SpecKey(s)] = s
		normalized[NormalizeKey(SpecKey(s))] = s
	}

	out := ByName{}
	for _, c := range candidates {
		if !c.HasBrandModel() {
			continue
		}
		key := Key(*c.Brand, *c.Model)
		if _, done := out[key]; done {
			continue
		}

		if s, ok := exact[key]; ok {
			out[key] = s
			continue
		}
		if s, ok := normalized[NormalizeKey(key)]; ok {
			out[key] = s
			continue
		}
		if s, ok := r.nearest(ctx, key, normalized); ok {
			out[key] = s
		}
	}
	return out, nil
}

// nearest looks the label up in the vector index. Failures only cost the
// match, so they are logged and swallowed.
func (r *Resolver) nearest(ctx context.Context, label string, normalized map[string]types.ShoeSpec) (types.ShoeSpec, bool) {
	if !r.vectorsEnabled() {
		return types.ShoeSpec{}, false
	}

	embedding, err := r.cfg.Embeddings.GenerateEmbedding(ctx, label)
	if err != nil {
		r.cfg.Logger.WarnContext(ctx, "catalog embedding failed", "label", label, "error", err)
		return types.ShoeSpec{}, false
	}

	matches, err := r.cfg.Vectors.Search(ctx, embedding, 1)
	if err != nil {
		r.cfg.Logger.WarnContext(ctx, "catalog vector search failed", "label", label, "error", err)
		return types.ShoeSpec{}, false
	}
	if len(matches) == 0 || matches[0].Score < r.cfg.MinSimilarity {
		return types.ShoeSpec{}, false
	}

	key, ok := matches[0].Metadata["key"].(string)
	if !ok {
		r.cfg.Logger.WarnContext(ctx, "catalog vector missing key metadata", "id", matches[0].ID)
		return types.ShoeSpec{}, false
	}
	s, ok := normalized[NormalizeKey(key)]
	if ok {
		r.cfg.Logger.DebugContext(ctx, "catalog vector match", "label", label, "key", key, "score", matches[0].Score)
	}
	return s, ok
}

// VectorID is the stable vector ID of a catalog entry
func VectorID(s types.ShoeSpec) string {
	return uuid.NewSHA1(vectorNamespace, []byte(NormalizeKey(SpecKey(s)))).String()
}

// Index embeds every spec and upserts it into the vector index. Upserts run
// concurrently and the first failure is returned after all have finished.
func (r *Resolver) Index(ctx context.Context, specs []types.ShoeSpec) error {
	if !r.vectorsEnabled() {
		return fmt.Errorf("vector index is not configured")
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(specs))
	sem := make(chan struct{}, 4)

	for _, s := range specs {
		wg.Add(1)
		go func(s types.ShoeSpec) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			key := SpecKey(s)
			embedding, err := r.cfg.Embeddings.GenerateEmbedding(ctx, key)
			if err != nil {
				errChan <- fmt.Errorf("failed to embed %q: %w", key, err)
				return
			}
			metadata := map[string]any{"key": key, "brand": s.Brand, "model": s.Model}
			if err := r.cfg.Vectors.Upsert(ctx, VectorID(s), embedding, metadata); err != nil {
				errChan <- fmt.Errorf("failed to upsert %q: %w", key, err)
			}
		}(s)
	}

	wg.Wait()
	close(errChan)

	if err, ok := <-errChan; ok {
		return err
	}
	r.cfg.Logger.InfoContext(ctx, "catalog indexed", "shoes", len(specs))
	return nil
}
