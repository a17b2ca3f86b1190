// Package analysis runs one scan end to end: profile lookup, detection,
// catalog resolution, ranking and persistence.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FrenchMajesty/shoewall/internal/store"
	"github.com/FrenchMajesty/shoewall/pkg/catalog"
	"github.com/FrenchMajesty/shoewall/pkg/overlay"
	"github.com/FrenchMajesty/shoewall/pkg/ranking"
	"github.com/FrenchMajesty/shoewall/pkg/types"
	"github.com/FrenchMajesty/shoewall/pkg/vision"
)

// ErrProfileNotFound means the caller has no stored profile. Nothing runs.
var ErrProfileNotFound = errors.New("profile not found")

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (types.UserProfile, error)
}

type ScanStore interface {
	SaveScan(ctx context.Context, s store.Scan) error
}

// SpecResolver builds the per-scan catalog lookup
type SpecResolver interface {
	Resolve(ctx context.Context, candidates []types.VisionCandidate) (catalog.ByName, error)
}

type Request struct {
	UserID   string
	Image    []byte
	MimeType string
}

// Report is everything a scan produced
type Report struct {
	Vision          types.VisionResult          `json:"vision"`
	Recommendations types.RecommendationsResult `json:"recommendations"`
	Outcome         vision.Outcome              `json:"outcome"`
	BBoxSummary     overlay.BBoxSummary         `json:"bbox_summary"`
}

type Config struct {
	Vision   *vision.Stage
	Ranking  *ranking.Stage
	Resolver SpecResolver
	Profiles ProfileStore
	// Scans is optional. Nil skips persistence.
	Scans   ScanStore
	Metrics *Metrics
	Logger  *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Metrics == nil {
		c.Metrics = NewMetrics()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type Service struct {
	cfg Config
}

func New(cfg Config) (*Service, error) {
	if cfg.Vision == nil || cfg.Ranking == nil {
		return nil, errors.New("vision and ranking stages are required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("catalog resolver is required")
	}
	if cfg.Profiles == nil {
		return nil, errors.New("profile store is required")
	}
	cfg.applyDefaults()
	return &Service{cfg: cfg}, nil
}

// Metrics returns the counters this service updates
func (s *Service) Metrics() *Metrics {
	return s.cfg.Metrics
}

// Analyze runs a scan. A missing profile returns ErrProfileNotFound before
// any model call. A persistence failure returns the error together with the
// complete Report.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	logger := s.cfg.Logger

	profile, err := s.cfg.Profiles.GetProfile(ctx, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	result := s.cfg.Vision.Run(ctx, req.Image, req.MimeType)

	specs, err := s.cfg.Resolver.Resolve(ctx, result.Candidates)
	if err != nil {
		logger.Warn("catalog lookup failed, continuing without specs", "request_id", result.RequestID, "error", err)
		specs = catalog.ByName{}
	}

	recs := s.cfg.Ranking.Run(ctx, result.RequestID, profile, result.Candidates, specs, result.Failed())

	report := &Report{
		Vision:          result,
		Recommendations: recs,
		Outcome:         vision.Classify(result),
		BBoxSummary:     overlay.Summarize(result.Candidates),
	}
	s.cfg.Metrics.Record(report, time.Since(start))

	if s.cfg.Scans != nil {
		err := s.cfg.Scans.SaveScan(ctx, store.Scan{
			RequestID:       result.RequestID,
			UserID:          req.UserID,
			MimeType:        req.MimeType,
			ImageBytes:      len(req.Image),
			Vision:          result,
			Recommendations: recs,
			FallbackNeeded:  recs.FallbackNeeded,
		})
		if err != nil {
			s.cfg.Metrics.IncrementPersistErrors()
			return report, fmt.Errorf("persist scan %s: %w", result.RequestID, err)
		}
	}

	logger.Info("scan analyzed",
		"request_id", result.RequestID,
		"user_id", req.UserID,
		"outcome", report.Outcome,
		"candidates", len(result.Candidates),
		"ranked", len(recs.Ranked),
		"fallback_needed", recs.FallbackNeeded,
		"latency", time.Since(start),
	)
	return report, nil
}
