// Package app wires configuration into stores, stages and services.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FrenchMajesty/shoewall/internal/config"
	"github.com/FrenchMajesty/shoewall/internal/store"
	"github.com/FrenchMajesty/shoewall/pkg/adapters"
	"github.com/FrenchMajesty/shoewall/pkg/analysis"
	"github.com/FrenchMajesty/shoewall/pkg/catalog"
	"github.com/FrenchMajesty/shoewall/pkg/ranking"
	"github.com/FrenchMajesty/shoewall/pkg/vision"
)

// Service builds the analysis service over db
func Service(cfg *config.Config, db store.Store, logger *slog.Logger) (*analysis.Service, *vision.Stage, error) {
	resolver, err := NewResolver(cfg, db, logger)
	if err != nil {
		return nil, nil, err
	}
	visionStage, err := NewVisionStage(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	svc, err := analysis.New(analysis.Config{
		Vision:   visionStage,
		Ranking:  ranking.New(ranking.Config{Mock: cfg.RankingMock, Logger: logger}),
		Resolver: resolver,
		Profiles: db,
		Scans:    db,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, visionStage, nil
}

// OpenStore connects to Postgres when DATABASE_URL is set and falls back to
// the in-memory store seeded with the demo catalog.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemory(catalog.DemoSpecs()), nil
	}

	logger.Info("connecting to postgres", "url", cfg.DatabaseURLForLog())
	pg, err := store.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	seeded, err := pg.SeedShoes(ctx, catalog.DemoSpecs())
	if err != nil {
		pg.Close()
		return nil, err
	}
	if seeded > 0 {
		logger.Info("seeded empty catalog", "shoes", seeded)
	}
	return pg, nil
}

// NewResolver wires vector matching when Voyage and Pinecone are configured
func NewResolver(cfg *config.Config, source catalog.Source, logger *slog.Logger) (*catalog.Resolver, error) {
	rc := catalog.ResolverConfig{
		Source:        source,
		MinSimilarity: float32(cfg.CatalogMinSimilarity),
		Logger:        logger,
	}

	if cfg.VectorMatchingEnabled() {
		embeddings, err := adapters.NewVoyageEmbeddingAdapter(cfg.VoyageAPIKey)
		if err != nil {
			return nil, err
		}
		vectors, err := adapters.NewPineconeVectorAdapter(cfg.PineconeAPIKey, cfg.PineconeHost, cfg.PineconeNamespace)
		if err != nil {
			return nil, err
		}
		rc.Embeddings = embeddings
		rc.Vectors = vectors
	} else {
		logger.Info("vector matching disabled, catalog lookup uses exact and normalized names")
	}

	return catalog.NewResolver(rc)
}

// NewVisionStage returns a live stage when an OpenAI key is configured
func NewVisionStage(cfg *config.Config, logger *slog.Logger) (*vision.Stage, error) {
	vc := vision.Config{
		Mock:          cfg.VisionMocked(),
		MaxCandidates: cfg.MaxCandidates,
		Logger:        logger,
	}
	if vc.Mock {
		return vision.New(vc), nil
	}

	retryLog := logger.With("component", "openai")
	client, err := adapters.NewDefaultVisionClient(adapters.VisionClientConfig{
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.VisionModel,
		BaseURL:      cfg.OpenAIBaseURL,
		MaxRetries:   cfg.OpenAIMaxRetries,
		Timeout:      cfg.OpenAITimeout,
		DumpRequests: cfg.OpenAIDumpRequests,
		Logger: func(format string, args ...any) {
			retryLog.Info(fmt.Sprintf(format, args...))
		},
	})
	if err != nil {
		return nil, err
	}
	vc.Client = client
	return vision.New(vc), nil
}
