package types

// BBox is a bounding box in normalized image coordinates.
// After normalization x,y are in [0,1], w,h > 0 and the box lies inside the image.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// VisionCandidate is one detected shoe instance, before catalog enrichment.
type VisionCandidate struct {
	// RawLabel is the text the model read or inferred for the shoe
	RawLabel string `json:"raw_label"`

	// Brand and Model are nil when the model could not map the label to a known shoe
	Brand *string `json:"brand"`
	Model *string `json:"model"`

	// Confidence is in [0,1]
	Confidence float64 `json:"confidence"`

	// BBox is nil when the shoe could not be localized
	BBox  *BBox   `json:"bbox"`
	Notes *string `json:"notes"`
}

// DisplayName returns "brand model" when both are known, otherwise the raw label.
func (c VisionCandidate) DisplayName() string {
	if c.HasBrandModel() {
		return *c.Brand + " " + *c.Model
	}
	return c.RawLabel
}

// HasBrandModel reports whether both brand and model are present and non-empty.
func (c VisionCandidate) HasBrandModel() bool {
	return c.Brand != nil && *c.Brand != "" && c.Model != nil && *c.Model != ""
}

type Lighting string

const (
	LightingGood Lighting = "good"
	LightingOK   Lighting = "ok"
	LightingBad  Lighting = "bad"
)

type Blur string

const (
	BlurNone Blur = "none"
	BlurMild Blur = "mild"
	BlurHigh Blur = "high"
)

type Occlusion string

const (
	OcclusionNone  Occlusion = "none"
	OcclusionSome  Occlusion = "some"
	OcclusionHeavy Occlusion = "heavy"
)

// ImageQuality describes the source photo, produced once per vision call.
type ImageQuality struct {
	Lighting  Lighting  `json:"lighting"`
	Blur      Blur      `json:"blur"`
	Occlusion Occlusion `json:"occlusion"`
}

// ErrorEntry is an advisory error attached to a result. Its presence does not
// necessarily invalidate the result.
type ErrorEntry struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DetectionPayload is the validated body of a detection model response.
type DetectionPayload struct {
	Candidates   []VisionCandidate `json:"candidates"`
	ImageQuality ImageQuality      `json:"image_quality"`
	Errors       []ErrorEntry      `json:"errors"`
}

// VisionResult is the output of the vision stage. It is never mutated after
// construction.
type VisionResult struct {
	RequestID    string            `json:"request_id"`
	Candidates   []VisionCandidate `json:"candidates"`
	ImageQuality ImageQuality      `json:"image_quality"`
	Errors       []ErrorEntry      `json:"errors"`
}

// Failed reports whether detection produced no usable candidates. Every
// failure variety collapses into this one signal.
func (r VisionResult) Failed() bool {
	return len(r.Candidates) == 0
}

// HasError reports whether an entry with the given code is present.
func (r VisionResult) HasError(code string) bool {
	return hasCode(r.Errors, code)
}

type ArchType string

const (
	ArchFlat    ArchType = "flat"
	ArchNormal  ArchType = "normal"
	ArchHigh    ArchType = "high"
	ArchUnknown ArchType = "unknown"
)

type Usage string

const (
	UsageRoad      Usage = "road"
	UsageTrail     Usage = "trail"
	UsageTreadmill Usage = "treadmill"
	UsageCasual    Usage = "casual"
	UsageRacing    Usage = "racing"
)

// UserProfile is the biomechanical profile supplied by the caller.
type UserProfile struct {
	ArchType      ArchType `json:"arch_type"`
	Usage         Usage    `json:"usage"`
	WeeklyMileage int      `json:"weekly_mileage"`
}

type Stability string

const (
	StabilityNeutral       Stability = "neutral"
	StabilityStable        Stability = "stable"
	StabilityMotionControl Stability = "motion_control"
)

type Cushion string

const (
	CushionLow    Cushion = "low"
	CushionMedium Cushion = "medium"
	CushionHigh   Cushion = "high"
)

// ShoeSpec is a catalog entry, unique per (brand, model).
type ShoeSpec struct {
	Brand     string    `json:"brand"`
	Model     string    `json:"model"`
	Terrain   string    `json:"terrain"`
	Stability Stability `json:"stability"`
	Cushion   Cushion   `json:"cushion"`
	DropMM    *int      `json:"drop_mm"`
	WeightG   *int      `json:"weight_g"`
}

// SpecSummary is the subset of a ShoeSpec attached to a recommendation. Every
// field is nil when the shoe is not in the catalog.
type SpecSummary struct {
	Terrain   *string    `json:"terrain"`
	Stability *Stability `json:"stability"`
	Cushion   *Cushion   `json:"cushion"`
	DropMM    *int       `json:"drop_mm"`
	WeightG   *int       `json:"weight_g"`
}

// Summary converts a catalog entry into the nullable subset.
func (s ShoeSpec) Summary() SpecSummary {
	terrain := s.Terrain
	stability := s.Stability
	cushion := s.Cushion
	return SpecSummary{
		Terrain:   &terrain,
		Stability: &stability,
		Cushion:   &cushion,
		DropMM:    s.DropMM,
		WeightG:   s.WeightG,
	}
}

// RankedRecommendation is one ranked shoe for a profile.
type RankedRecommendation struct {
	Model      string      `json:"model"`
	MatchScore float64     `json:"match_score"`
	Why        []string    `json:"why"`
	Specs      SpecSummary `json:"specs"`
	Tradeoffs  []string    `json:"tradeoffs"`
	Confidence float64     `json:"confidence"`
}

// AvoidEntry names a detected shoe the profile should stay away from.
type AvoidEntry struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

// RecommendationsResult is the output of the ranking stage.
type RecommendationsResult struct {
	RequestID      string                 `json:"request_id"`
	ProfileUsed    UserProfile            `json:"profile_used"`
	Ranked         []RankedRecommendation `json:"ranked"`
	Avoid          []AvoidEntry           `json:"avoid"`
	FallbackNeeded bool                   `json:"fallback_needed"`
	Errors         []ErrorEntry           `json:"errors"`
}

// HasError reports whether an entry with the given code is present.
func (r RecommendationsResult) HasError(code string) bool {
	return hasCode(r.Errors, code)
}

func hasCode(entries []ErrorEntry, code string) bool {
	for _, e := range entries {
		if e.Code == code {
			return true
		}
	}
	return false
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
