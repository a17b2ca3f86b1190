// Package overlay draws detection results onto the source photo for debugging.
package overlay

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/FrenchMajesty/shoewall/pkg/geometry"
	"github.com/FrenchMajesty/shoewall/pkg/types"
)

// MaxPanelLabels is how many unlocalized candidates the panel lists by name.
const MaxPanelLabels = 8

// MaxPixels caps width*height. Decoders allocate the full pixel buffer from
// the header, so the cap is checked before decoding.
const MaxPixels = 40_000_000

const (
	chipPadding  = 3
	panelPadding = 5
	panelMargin  = 4
)

var face = basicfont.Face7x13

var palette = []color.RGBA{
	{R: 230, G: 25, B: 75, A: 255},
	{R: 60, G: 180, B: 75, A: 255},
	{R: 0, G: 130, B: 200, A: 255},
	{R: 245, G: 130, B: 48, A: 255},
	{R: 145, G: 30, B: 180, A: 255},
	{R: 0, G: 128, B: 128, A: 255},
	{R: 240, G: 50, B: 230, A: 255},
	{R: 128, G: 128, B: 0, A: 255},
}

var (
	textColor  = image.NewUniform(color.White)
	panelColor = image.NewUniform(color.RGBA{A: 190})
)

// RenderError means the source image could not be read. It is the only
// failure the overlay reports; there is no degraded output.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("overlay: cannot read source image: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// BBoxSummary counts how many candidates could be drawn as boxes
type BBoxSummary struct {
	TotalCandidates     int `json:"total_candidates"`
	LocalizedCandidates int `json:"localized_candidates"`
	MissingBBox         int `json:"missing_bbox"`
}

// Summarize counts localized and unlocalized candidates
func Summarize(candidates []types.VisionCandidate) BBoxSummary {
	s := BBoxSummary{TotalCandidates: len(candidates)}
	for _, c := range candidates {
		if c.BBox != nil {
			s.LocalizedCandidates++
		}
	}
	s.MissingBBox = s.TotalCandidates - s.LocalizedCandidates
	return s
}

// Rendered is a PNG overlay with the same pixel size as its source
type Rendered struct {
	PNG     []byte
	Width   int
	Height  int
	Summary BBoxSummary
}

// Render draws every candidate onto the image. Localized candidates get a
// box and a confidence chip; the rest are listed in a panel in the top-left
// corner so none is silently dropped.
func Render(src []byte, candidates []types.VisionCandidate) (*Rendered, error) {
	if len(src) == 0 {
		return nil, &RenderError{Err: errors.New("empty image")}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, &RenderError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &RenderError{Err: fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, &RenderError{Err: fmt.Errorf("image is %dx%d, more than %d pixels", cfg.Width, cfg.Height, MaxPixels)}
	}
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, &RenderError{Err: err}
	}

	bounds := image.Rect(0, 0, cfg.Width, cfg.Height)
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, img.Bounds().Min, draw.Src)

	stroke := max(2, min(cfg.Width, cfg.Height)/200)
	var missing []types.VisionCandidate
	for i, c := range candidates {
		if c.BBox == nil {
			missing = append(missing, c)
			continue
		}
		col := palette[i%len(palette)]
		box := geometry.ToPixels(*geometry.Normalize(c.BBox), cfg.Width, cfg.Height)
		drawOutline(canvas, box, stroke, col)
		drawChip(canvas, box, label(c), col)
	}
	if len(missing) > 0 {
		drawPanel(canvas, missing)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}

	return &Rendered{
		PNG:     buf.Bytes(),
		Width:   cfg.Width,
		Height:  cfg.Height,
		Summary: Summarize(candidates),
	}, nil
}

func label(c types.VisionCandidate) string {
	conf := c.Confidence
	if math.IsNaN(conf) {
		conf = 0
	}
	conf = math.Max(0, math.Min(1, conf))
	return fmt.Sprintf("%s %d%%", c.DisplayName(), int(math.Round(conf*100)))
}

func fill(dst *image.RGBA, r image.Rectangle, src image.Image, op draw.Op) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, src, image.Point{}, op)
}

func drawOutline(dst *image.RGBA, box image.Rectangle, stroke int, col color.RGBA) {
	u := image.NewUniform(col)
	fill(dst, image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+stroke), u, draw.Src)
	fill(dst, image.Rect(box.Min.X, box.Max.Y-stroke, box.Max.X, box.Max.Y), u, draw.Src)
	fill(dst, image.Rect(box.Min.X, box.Min.Y, box.Min.X+stroke, box.Max.Y), u, draw.Src)
	fill(dst, image.Rect(box.Max.X-stroke, box.Min.Y, box.Max.X, box.Max.Y), u, draw.Src)
}

func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

func lineHeight() int {
	return face.Metrics().Height.Ceil()
}

func drawText(dst *image.RGBA, x, top int, s string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  textColor,
		Face: face,
		Dot:  fixed.P(x, top+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

func drawChip(dst *image.RGBA, box image.Rectangle, text string, col color.RGBA) {
	w := textWidth(text) + 2*chipPadding
	h := lineHeight() + 2*chipPadding
	chip := placeLabel(box, w, h, dst.Bounds().Dx(), dst.Bounds().Dy())
	fill(dst, chip, image.NewUniform(col), draw.Src)
	drawText(dst, chip.Min.X+chipPadding, chip.Min.Y+chipPadding, text)
}

// placeLabel puts a w*h chip above box, below it when there is no room
// above, and inside the top of the box when neither fits. The chip is then
// shifted horizontally to stay within the image.
func placeLabel(box image.Rectangle, w, h, imgW, imgH int) image.Rectangle {
	y := box.Min.Y - h
	if y < 0 {
		y = box.Max.Y
		if y+h > imgH {
			y = min(max(box.Min.Y, 0), max(imgH-h, 0))
		}
	}
	x := min(box.Min.X, imgW-w)
	x = max(x, 0)
	return image.Rect(x, y, x+w, y+h)
}

func panelLines(missing []types.VisionCandidate) []string {
	lines := []string{fmt.Sprintf("No bbox: %d candidate(s)", len(missing))}
	for i, c := range missing {
		if i == MaxPanelLabels {
			lines = append(lines, fmt.Sprintf("+%d more", len(missing)-MaxPanelLabels))
			break
		}
		lines = append(lines, "- "+label(c))
	}
	return lines
}

func drawPanel(dst *image.RGBA, missing []types.VisionCandidate) {
	lines := panelLines(missing)
	w := 0
	for _, l := range lines {
		w = max(w, textWidth(l))
	}
	lh := lineHeight()
	panel := image.Rect(panelMargin, panelMargin, panelMargin+w+2*panelPadding, panelMargin+len(lines)*lh+2*panelPadding)
	fill(dst, panel, panelColor, draw.Over)
	for i, l := range lines {
		drawText(dst, panel.Min.X+panelPadding, panel.Min.Y+panelPadding+i*lh, l)
	}
}
