package vision

import "github.com/FrenchMajesty/shoewall/pkg/types"

// mockResult is the fixed detection served in offline mode. It is a real
// operating mode for local development and demos.
func mockResult(requestID string) types.VisionResult {
	return types.VisionResult{
		RequestID: requestID,
		Candidates: []types.VisionCandidate{
			{
				RawLabel:   "Nike Pegasus 40",
				Brand:      types.StringPtr("Nike"),
				Model:      types.StringPtr("Pegasus 40"),
				Confidence: 0.78,
				BBox:       &types.BBox{X: 0.08, Y: 0.22, W: 0.22, H: 0.30},
			},
			{
				RawLabel:   "Brooks Ghost 15",
				Brand:      types.StringPtr("Brooks"),
				Model:      types.StringPtr("Ghost 15"),
				Confidence: 0.74,
				BBox:       &types.BBox{X: 0.38, Y: 0.20, W: 0.22, H: 0.32},
			},
			{
				RawLabel:   "Hoka Clifton 9",
				Brand:      types.StringPtr("Hoka"),
				Model:      types.StringPtr("Clifton 9"),
				Confidence: 0.69,
				BBox:       &types.BBox{X: 0.68, Y: 0.24, W: 0.22, H: 0.30},
			},
		},
		ImageQuality: types.ImageQuality{
			Lighting:  types.LightingGood,
			Blur:      types.BlurNone,
			Occlusion: types.OcclusionSome,
		},
		Errors: []types.ErrorEntry{},
	}
}
