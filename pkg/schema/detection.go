// Package schema enforces the contracts of AI model responses. Each contract
// is a JSON Schema Definition compiled once; validation yields either a fully
// typed result or a *ValidationError listing every violated constraint.
package schema

import (
	"github.com/FrenchMajesty/shoewall/pkg/types"
)

const (
	// DefaultMaxCandidates is N_max when none is configured.
	DefaultMaxCandidates = 8

	// MinMaxCandidates and MaxMaxCandidates bound the configurable N_max.
	MinMaxCandidates = 1
	MaxMaxCandidates = 20
)

var (
	lightingValues  = []string{string(types.LightingGood), string(types.LightingOK), string(types.LightingBad)}
	blurValues      = []string{string(types.BlurNone), string(types.BlurMild), string(types.BlurHigh)}
	occlusionValues = []string{string(types.OcclusionNone), string(types.OcclusionSome), string(types.OcclusionHeavy)}
)

// ClampMaxCandidates returns n clamped to [1,20], or the default when n is 0.
func ClampMaxCandidates(n int) int {
	if n == 0 {
		return DefaultMaxCandidates
	}
	if n < MinMaxCandidates {
		return MinMaxCandidates
	}
	if n > MaxMaxCandidates {
		return MaxMaxCandidates
	}
	return n
}

// Detection is the contract of a detection model response.
type Detection struct {
	// MaxCandidates is N_max. Zero means DefaultMaxCandidates; other values are clamped to [1,20].
	MaxCandidates int
}

// Validate checks v against the detection contract. The bbox key must be
// present on every candidate (run parse.PatchDetection first for responses
// that omit it); brand, model and notes may be omitted or null.
func (d Detection) Validate(v any) (types.DetectionPayload, error) {
	if err := check("detection", detectionSchema(d.MaxCandidates), v); err != nil {
		return types.DetectionPayload{}, err
	}

	var out types.DetectionPayload
	if err := decodeTyped("detection", v, &out); err != nil {
		return types.DetectionPayload{}, err
	}
	if out.Candidates == nil {
		out.Candidates = []types.VisionCandidate{}
	}
	if out.Errors == nil {
		out.Errors = []types.ErrorEntry{}
	}
	return out, nil
}
