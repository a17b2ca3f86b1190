// Package geometry repairs bounding boxes reported by detection models.
package geometry

import (
	"image"
	"math"

	"github.com/FrenchMajesty/shoewall/pkg/types"
)

// MinSize is the smallest width or height a normalized box may have.
const MinSize = 0.01

// Normalize clamps a box into the unit square. A nil box stays nil: the shoe
// was not localized, which is a valid state and not an error.
//
// x and y are clamped into [0,1], then w into [MinSize, 1-x] and h into
// [MinSize, 1-y]. A box starting closer than MinSize to the far edge is pulled
// inward so both bounds hold. Non-finite values are treated as 0.
func Normalize(b *types.BBox) *types.BBox {
	if b == nil {
		return nil
	}

	x := clamp(finite(b.X), 0, 1)
	y := clamp(finite(b.Y), 0, 1)
	if x > 1-MinSize {
		x = 1 - MinSize
	}
	if y > 1-MinSize {
		y = 1 - MinSize
	}

	return &types.BBox{
		X: x,
		Y: y,
		W: clamp(finite(b.W), MinSize, 1-x),
		H: clamp(finite(b.H), MinSize, 1-y),
	}
}

// IsNormalized reports whether b already satisfies the normalized-box invariants.
func IsNormalized(b types.BBox) bool {
	return b.X >= 0 && b.X <= 1 &&
		b.Y >= 0 && b.Y <= 1 &&
		b.W >= MinSize && b.H >= MinSize &&
		b.X+b.W <= 1 && b.Y+b.H <= 1
}

// ToPixels maps a normalized box onto an image of the given size. The result
// is at least one pixel wide and high and never leaves the image.
func ToPixels(b types.BBox, width, height int) image.Rectangle {
	x0 := clampInt(int(math.Round(b.X*float64(width))), 0, width-1)
	y0 := clampInt(int(math.Round(b.Y*float64(height))), 0, height-1)
	x1 := clampInt(int(math.Round((b.X+b.W)*float64(width))), x0+1, width)
	y1 := clampInt(int(math.Round((b.Y+b.H)*float64(height))), y0+1, height)
	return image.Rect(x0, y0, x1, y1)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
