// Package ranking orders detected shoes for a runner's profile. Like the
// vision stage it never fails outright: every problem becomes a fallback
// result carrying ErrorEntry values.
package ranking

import (
	"context"
	"log/slog"
	"time"

	"github.com/FrenchMajesty/shoewall/pkg/catalog"
	"github.com/FrenchMajesty/shoewall/pkg/schema"
	"github.com/FrenchMajesty/shoewall/pkg/types"
)

const (
	// MaxMockRanked is how many candidates the heuristic ranking keeps
	MaxMockRanked = 3

	topScore  = 90
	scoreStep = 8
)

// Config configures a Stage
type Config struct {
	// Mock enables the heuristic ranking. Live ranking is not enabled yet
	// and always falls back.
	Mock bool

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Stage ranks candidates. It is safe for concurrent use.
type Stage struct {
	cfg       Config
	validator schema.Ranking
}

// New creates a ranking stage
func New(cfg Config) *Stage {
	cfg.applyDefaults()
	return &Stage{cfg: cfg}
}

// Run ranks candidates for profile. When visionFailed is set it returns the
// VISION_UNAVAILABLE fallback without looking at anything else.
func (s *Stage) Run(ctx context.Context, requestID string, profile types.UserProfile, candidates []types.VisionCandidate, specs catalog.ByName, visionFailed bool) types.RecommendationsResult {
	start := time.Now()
	result := s.rank(requestID, profile, candidates, specs, visionFailed)

	s.cfg.Logger.InfoContext(ctx, "ranking stage finished",
		"request_id", requestID,
		"ranked", len(result.Ranked),
		"avoid", len(result.Avoid),
		"fallback_needed", result.FallbackNeeded,
		"errors", codes(result.Errors),
		"mock", s.cfg.Mock,
		"latency", time.Since(start),
	)
	return result
}

func (s *Stage) rank(requestID string, profile types.UserProfile, candidates []types.VisionCandidate, specs catalog.ByName, visionFailed bool) types.RecommendationsResult {
	if visionFailed {
		return fallback(requestID, profile, types.CodeVisionUnavailable, "shoe detection failed, no recommendations can be made")
	}

	if err := schema.ValidateProfile(profile); err != nil {
		return fallback(requestID, profile, types.CodeRankingSchemaInvalid, err.Error())
	}

	var result types.RecommendationsResult
	if s.cfg.Mock {
		result = heuristic(requestID, profile, candidates, specs)
	} else {
		result = fallback(requestID, profile, types.CodeRankingNotEnabled, "live ranking is not enabled")
	}

	return s.checked(result)
}

// checked validates the stage's own output before it leaves the stage.
func (s *Stage) checked(result types.RecommendationsResult) types.RecommendationsResult {
	if err := s.validator.ValidateResult(result); err != nil {
		s.cfg.Logger.Error("ranking result failed its own schema", "request_id", result.RequestID, "error", err)
		return fallback(result.RequestID, result.ProfileUsed, types.CodeRankingSchemaInvalid, err.Error())
	}
	return result
}

func fallback(requestID string, profile types.UserProfile, code, message string) types.RecommendationsResult {
	return types.RecommendationsResult{
		RequestID:      requestID,
		ProfileUsed:    profile,
		Ranked:         []types.RankedRecommendation{},
		Avoid:          []types.AvoidEntry{},
		FallbackNeeded: true,
		Errors:         []types.ErrorEntry{{Code: code, Message: message}},
	}
}

func codes(entries []types.ErrorEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Code
	}
	return out
}
