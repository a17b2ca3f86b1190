// Package catalog maps detected brand/model pairs to known shoe specs.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/FrenchMajesty/shoewall/pkg/types"
)

// Key is the exact lookup key for a shoe: brand, one space, model.
func Key(brand, model string) string {
	return brand + " " + model
}

// SpecKey returns Key for a catalog entry
func SpecKey(s types.ShoeSpec) string {
	return Key(s.Brand, s.Model)
}

// ByName maps Key(brand, model) to the shoe's spec
type ByName map[string]types.ShoeSpec

// Lookup returns the spec stored under key
func (c ByName) Lookup(key string) (types.ShoeSpec, bool) {
	s, ok := c[key]
	return s, ok
}

// Static is a fixed in-memory Source
type Static []types.ShoeSpec

func (s Static) ListShoes(ctx context.Context) ([]types.ShoeSpec, error) {
	return s, nil
}

// FromSpecs indexes specs by Key. Two specs with the same brand and model are
// an error.
func FromSpecs(specs []types.ShoeSpec) (ByName, error) {
	out := make(ByName, len(specs))
	for _, s := range specs {
		k := SpecKey(s)
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", k)
		}
		out[k] = s
	}
	return out, nil
}

// NormalizeKey folds a label for fuzzy comparison: NFKC, lower case, and
// runs of whitespace or dashes collapsed to a single space.
func NormalizeKey(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	return strings.Join(fields, " ")
}

// DemoSpecs is the catalog used when no database is configured. It covers the
// offline detection result.
func DemoSpecs() []types.ShoeSpec {
	return []types.ShoeSpec{
		{Brand: "Nike", Model: "Pegasus 40", Terrain: "road", Stability: types.StabilityNeutral, Cushion: types.CushionMedium, DropMM: types.IntPtr(10), WeightG: types.IntPtr(283)},
		{Brand: "Brooks", Model: "Ghost 15", Terrain: "road", Stability: types.StabilityNeutral, Cushion: types.CushionMedium, DropMM: types.IntPtr(12), WeightG: types.IntPtr(269)},
		{Brand: "Hoka", Model: "Clifton 9", Terrain: "road", Stability: types.StabilityNeutral, Cushion: types.CushionHigh, DropMM: types.IntPtr(5), WeightG: types.IntPtr(248)},
		{Brand: "Brooks", Model: "Adrenaline GTS 23", Terrain: "road", Stability: types.StabilityStable, Cushion: types.CushionMedium, DropMM: types.IntPtr(12), WeightG: types.IntPtr(283)},
		{Brand: "Asics", Model: "Gel-Kayano 30", Terrain: "road", Stability: types.StabilityStable, Cushion: types.CushionHigh, DropMM: types.IntPtr(10), WeightG: types.IntPtr(300)},
		{Brand: "Saucony", Model: "Endorphin Pro 3", Terrain: "road", Stability: types.StabilityNeutral, Cushion: types.CushionHigh, DropMM: types.IntPtr(8), WeightG: types.IntPtr(221)},
		{Brand: "Salomon", Model: "Speedcross 6", Terrain: "trail", Stability: types.StabilityNeutral, Cushion: types.CushionLow, DropMM: types.IntPtr(10), WeightG: types.IntPtr(298)},
		{Brand: "New Balance", Model: "1540v3", Terrain: "road", Stability: types.StabilityMotionControl, Cushion: types.CushionMedium, DropMM: types.IntPtr(12), WeightG: nil},
	}
}
