package schema

import (
	"encoding/json"
	"fmt"

	"github.com/FrenchMajesty/shoewall/pkg/types"
)

const (
	MaxRanked    = 5
	MaxAvoid     = 5
	MinWhy       = 1
	MaxWhy       = 6
	MaxTradeoffs = 6
)

var (
	archValues      = []string{string(types.ArchFlat), string(types.ArchNormal), string(types.ArchHigh), string(types.ArchUnknown)}
	usageValues     = []string{string(types.UsageRoad), string(types.UsageTrail), string(types.UsageTreadmill), string(types.UsageCasual), string(types.UsageRacing)}
	stabilityValues = []string{string(types.StabilityNeutral), string(types.StabilityStable), string(types.StabilityMotionControl)}
	cushionValues   = []string{string(types.CushionLow), string(types.CushionMedium), string(types.CushionHigh)}
)

// Ranking is the contract of a recommendations result.
type Ranking struct{}

// Validate checks v against the ranking contract.
func (Ranking) Validate(v any) (types.RecommendationsResult, error) {
	if err := check("ranking", rankingSchema, v); err != nil {
		return types.RecommendationsResult{}, err
	}

	var out types.RecommendationsResult
	if err := decodeTyped("ranking", v, &out); err != nil {
		return types.RecommendationsResult{}, err
	}
	return out, nil
}

// ValidateResult checks an already typed result by validating its JSON form.
// Nil slices encode as null and are therefore rejected.
func (r Ranking) ValidateResult(res types.RecommendationsResult) error {
	v, err := ToValue(res)
	if err != nil {
		return err
	}
	_, err = r.Validate(v)
	return err
}

// ValidateProfile checks a profile with the same rules applied to profile_used.
func ValidateProfile(p types.UserProfile) error {
	v, err := ToValue(p)
	if err != nil {
		return err
	}
	return ProfileValue(v)
}

// ProfileValue checks a JSON-like profile value.
func ProfileValue(v any) error {
	return check("profile", profileSchema, v)
}

// ToValue converts a Go value into the generic JSON form the validators accept.
func ToValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	return out, nil
}
