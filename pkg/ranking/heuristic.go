package ranking

import (
	"fmt"
	"math"
	"strings"

	"github.com/FrenchMajesty/shoewall/pkg/catalog"
	"github.com/FrenchMajesty/shoewall/pkg/schema"
	"github.com/FrenchMajesty/shoewall/pkg/types"
)

const (
	highMileage = 30
	raceWeightG = 260
)

// heuristic ranks the first mapped candidates in discovery order with fixed
// descending scores. Remaining mapped candidates that clash with the profile
// go to avoid.
func heuristic(requestID string, profile types.UserProfile, candidates []types.VisionCandidate, specs catalog.ByName) types.RecommendationsResult {
	mapped := mappedCandidates(candidates)
	if len(mapped) == 0 {
		return fallback(requestID, profile, types.CodeRankingNoMapped, "no detected shoe has both a brand and a model")
	}

	result := types.RecommendationsResult{
		RequestID:   requestID,
		ProfileUsed: profile,
		Ranked:      []types.RankedRecommendation{},
		Avoid:       []types.AvoidEntry{},
		Errors:      []types.ErrorEntry{},
	}

	for i, c := range mapped {
		name := c.DisplayName()
		spec, known := specs.Lookup(name)

		if i >= MaxMockRanked {
			if known && len(result.Avoid) < schema.MaxAvoid {
				if reason := clash(profile, spec); reason != "" {
					result.Avoid = append(result.Avoid, types.AvoidEntry{Model: name, Reason: reason})
				}
			}
			continue
		}

		rec := types.RankedRecommendation{
			Model:      name,
			MatchScore: float64(topScore - scoreStep*i),
			Why:        why(profile, spec, known, c.Confidence),
			Tradeoffs:  tradeoffs(profile, spec, known),
			Confidence: clampUnit(c.Confidence),
		}
		if known {
			rec.Specs = spec.Summary()
		}
		result.Ranked = append(result.Ranked, rec)
	}

	return result
}

// mappedCandidates keeps candidates with a brand and model, first occurrence
// of each name only.
func mappedCandidates(candidates []types.VisionCandidate) []types.VisionCandidate {
	seen := map[string]bool{}
	var out []types.VisionCandidate
	for _, c := range candidates {
		if !c.HasBrandModel() {
			continue
		}
		name := c.DisplayName()
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, c)
	}
	return out
}

// terrainFits treats an unknown terrain as a fit.
func terrainFits(usage types.Usage, terrain string) bool {
	if terrain == "" {
		return true
	}
	switch usage {
	case types.UsageTrail:
		return terrain == "trail"
	case types.UsageCasual:
		return true
	default:
		return terrain == "road"
	}
}

func why(p types.UserProfile, spec types.ShoeSpec, known bool, confidence float64) []string {
	if !known {
		return []string{fmt.Sprintf("Not in the catalog, ranked on detection confidence (%d%%)", percent(confidence))}
	}

	var out []string
	if spec.Terrain != "" && terrainFits(p.Usage, spec.Terrain) {
		out = append(out, fmt.Sprintf("Built for %s running, matching your %s use", spec.Terrain, p.Usage))
	}
	switch {
	case p.ArchType == types.ArchFlat && spec.Stability != types.StabilityNeutral:
		out = append(out, "Stability support suits flat arches")
	case (p.ArchType == types.ArchNormal || p.ArchType == types.ArchHigh) && spec.Stability == types.StabilityNeutral:
		out = append(out, fmt.Sprintf("Neutral platform suits %s arches", p.ArchType))
	}
	if p.WeeklyMileage >= highMileage && spec.Cushion != types.CushionLow {
		out = append(out, fmt.Sprintf("%s cushioning helps at %d miles per week", capitalize(string(spec.Cushion)), p.WeeklyMileage))
	}
	if p.Usage == types.UsageRacing && spec.WeightG != nil && *spec.WeightG <= raceWeightG {
		out = append(out, fmt.Sprintf("Light enough to race in (%d g)", *spec.WeightG))
	}
	if len(out) == 0 {
		out = append(out, fmt.Sprintf("Closest detected match (%d%% confidence)", percent(confidence)))
	}
	return out
}

func tradeoffs(p types.UserProfile, spec types.ShoeSpec, known bool) []string {
	if !known {
		return []string{"Specs unavailable for this model"}
	}

	out := []string{}
	if !terrainFits(p.Usage, spec.Terrain) {
		out = append(out, fmt.Sprintf("Designed for %s, you run mostly %s", spec.Terrain, p.Usage))
	}
	if p.ArchType == types.ArchFlat && spec.Stability == types.StabilityNeutral {
		out = append(out, "Neutral shoe offers little arch support")
	}
	if p.ArchType == types.ArchHigh && spec.Stability != types.StabilityNeutral {
		out = append(out, "Medial support may feel intrusive on high arches")
	}
	if p.WeeklyMileage >= highMileage && spec.Cushion == types.CushionLow {
		out = append(out, "Low cushioning for high weekly mileage")
	}
	if p.Usage == types.UsageRacing && spec.WeightG != nil && *spec.WeightG > raceWeightG {
		out = append(out, fmt.Sprintf("Heavy for racing (%d g)", *spec.WeightG))
	}
	return out
}

// clash returns why a shoe is a poor fit, or "" when it is acceptable.
func clash(p types.UserProfile, spec types.ShoeSpec) string {
	switch {
	case !terrainFits(p.Usage, spec.Terrain):
		return fmt.Sprintf("%s shoe does not fit %s running", spec.Terrain, p.Usage)
	case p.ArchType == types.ArchHigh && spec.Stability == types.StabilityMotionControl:
		return "Motion control is too rigid for high arches"
	case p.ArchType == types.ArchFlat && spec.Stability == types.StabilityNeutral && p.WeeklyMileage >= highMileage:
		return "Neutral shoe lacks support for flat arches at high mileage"
	}
	return ""
}

func percent(v float64) int {
	return int(math.Round(clampUnit(v) * 100))
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
