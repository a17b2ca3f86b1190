// Package vision turns a shelf photo into a validated VisionResult. The stage
// never fails: every problem is reported as an ErrorEntry next to an empty
// candidate list, which downstream code treats as "vision failed".
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FrenchMajesty/shoewall/pkg/geometry"
	"github.com/FrenchMajesty/shoewall/pkg/parse"
	"github.com/FrenchMajesty/shoewall/pkg/schema"
	"github.com/FrenchMajesty/shoewall/pkg/types"
)

// DetectionRequest is what the stage sends to the upstream model.
type DetectionRequest struct {
	Image         []byte
	MimeType      string
	Instruction   string
	MaxCandidates int
}

// DetectionClient returns the raw text of a detection model response.
type DetectionClient interface {
	Detect(ctx context.Context, req DetectionRequest) (string, error)
}

// Config configures a Stage
type Config struct {
	// Mock returns the fixed demo detection without calling Client
	Mock bool

	// MaxCandidates is N_max (default 8, clamped to [1,20])
	MaxCandidates int

	// Client is the upstream model. A nil client implies Mock.
	Client DetectionClient

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	c.MaxCandidates = schema.ClampMaxCandidates(c.MaxCandidates)
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Stage runs detection. It holds only immutable configuration and is safe for
// concurrent use.
type Stage struct {
	cfg       Config
	validator schema.Detection
}

// New creates a vision stage
func New(cfg Config) *Stage {
	cfg.applyDefaults()
	return &Stage{
		cfg:       cfg,
		validator: schema.Detection{MaxCandidates: cfg.MaxCandidates},
	}
}

// Mocked reports whether the stage serves the demo detection
func (s *Stage) Mocked() bool {
	return s.cfg.Mock || s.cfg.Client == nil
}

// Run detects shoes in image
func (s *Stage) Run(ctx context.Context, image []byte, mimeType string) types.VisionResult {
	start := time.Now()
	requestID := uuid.NewString()

	result := s.detect(ctx, requestID, image, mimeType)

	s.cfg.Logger.InfoContext(ctx, "vision stage finished",
		"request_id", result.RequestID,
		"outcome", Classify(result),
		"candidates", len(result.Candidates),
		"errors", codes(result.Errors),
		"mock", s.Mocked(),
		"latency", time.Since(start),
	)
	return result
}

func (s *Stage) detect(ctx context.Context, requestID string, image []byte, mimeType string) types.VisionResult {
	if s.Mocked() {
		return mockResult(requestID)
	}

	if len(image) == 0 {
		return failure(requestID, types.CodeVisionEmptyImage, "image is empty")
	}

	raw, err := s.cfg.Client.Detect(ctx, DetectionRequest{
		Image:         image,
		MimeType:      mimeType,
		Instruction:   Instruction(s.cfg.MaxCandidates),
		MaxCandidates: s.cfg.MaxCandidates,
	})
	if err != nil {
		return failure(requestID, types.CodeVisionUpstreamError, upstreamMessage(err))
	}

	return s.fromText(requestID, raw)
}

// fromText runs parse, patch, validate and normalize over a model response.
func (s *Stage) fromText(requestID, raw string) types.VisionResult {
	obj, err := parse.DetectionPayload(raw)
	if err != nil {
		s.cfg.Logger.Warn("vision response is not JSON", "request_id", requestID, "error", err)
		return failure(requestID, types.CodeVisionParseError, err.Error())
	}

	payload, err := s.validator.Validate(obj)
	if err != nil {
		s.cfg.Logger.Warn("vision response failed schema", "request_id", requestID, "error", err)
		return failure(requestID, types.CodeVisionSchemaInvalid, err.Error())
	}

	return build(requestID, payload)
}

// build normalizes every bbox into fresh candidate values and appends the
// advisories the payload calls for.
func build(requestID string, payload types.DetectionPayload) types.VisionResult {
	candidates := make([]types.VisionCandidate, len(payload.Candidates))
	missing := 0
	for i, c := range payload.Candidates {
		c.BBox = geometry.Normalize(c.BBox)
		if c.BBox == nil {
			missing++
		}
		candidates[i] = c
	}

	errs := append([]types.ErrorEntry{}, payload.Errors...)
	if missing > 0 {
		errs = append(errs, types.ErrorEntry{
			Code:    types.CodeVisionPartialBBox,
			Message: fmt.Sprintf("%d of %d candidates have no bounding box", missing, len(candidates)),
		})
	}
	if len(candidates) == 0 && !hasCode(errs, types.CodeVisionNoCandidates) {
		errs = append(errs, types.ErrorEntry{
			Code:    types.CodeVisionNoCandidates,
			Message: "no shoes were detected in the image",
		})
	}

	return types.VisionResult{
		RequestID:    requestID,
		Candidates:   candidates,
		ImageQuality: payload.ImageQuality,
		Errors:       errs,
	}
}

func failure(requestID, code, message string) types.VisionResult {
	return types.VisionResult{
		RequestID:    requestID,
		Candidates:   []types.VisionCandidate{},
		ImageQuality: types.ImageQuality{Lighting: types.LightingOK, Blur: types.BlurNone, Occlusion: types.OcclusionNone},
		Errors:       []types.ErrorEntry{{Code: code, Message: message}},
	}
}

func upstreamMessage(err error) string {
	var upstream *types.UpstreamError
	if errors.As(err, &upstream) && upstream.Status > 0 {
		return fmt.Sprintf("detection call failed with status %d: %v", upstream.Status, upstream.Err)
	}
	return fmt.Sprintf("detection call failed: %v", err)
}

func hasCode(entries []types.ErrorEntry, code string) bool {
	for _, e := range entries {
		if e.Code == code {
			return true
		}
	}
	return false
}

func codes(entries []types.ErrorEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Code
	}
	return out
}

// Outcome summarises a VisionResult for callers and logs
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeDegraded  Outcome = "degraded"
	OutcomeFailed    Outcome = "failed"
)

// Classify reports failed when there are no candidates, degraded when
// candidates come with advisory errors, and succeeded otherwise.
func Classify(r types.VisionResult) Outcome {
	switch {
	case r.Failed():
		return OutcomeFailed
	case len(r.Errors) > 0:
		return OutcomeDegraded
	default:
		return OutcomeSucceeded
	}
}
