// Package quality decides whether a photo is usable for skin analysis and
// prepares it for submission.
package quality

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/okian/skinmate/internal/domain/model"
)

// Default gate thresholds.
const (
	DefaultMinLongEdge        = 480
	DefaultTargetLongEdge     = 700
	DefaultSharpnessCutoff    = 0.1
	DefaultSharpnessIdeal     = 0.3
	DefaultSharpnessReference = 1000.0
	DefaultMinBytesPerPixel   = 0.04
)

// Reason strings reported in ImageQualityResult.Reasons.
const (
	ReasonUnusableResolution = "resolution too low: image is unusable for analysis"
	ReasonDegradedResolution = "resolution below recommended size: degraded quality, proceed with caution"
	ReasonBlurry             = "image is blurry or out of focus"
	ReasonBorderlineSharp    = "image sharpness is borderline"
	ReasonOverCompressed     = "image appears over-compressed: fine detail may be lost"
)

// Gate scores images for usability. It is safe for concurrent use.
type Gate struct {
	minLongEdge        int
	targetLongEdge     int
	sharpnessCutoff    float64
	sharpnessIdeal     float64
	sharpnessReference float64
	minBytesPerPixel   float64
}

// NewGate creates a gate with default thresholds.
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		minLongEdge:        DefaultMinLongEdge,
		targetLongEdge:     DefaultTargetLongEdge,
		sharpnessCutoff:    DefaultSharpnessCutoff,
		sharpnessIdeal:     DefaultSharpnessIdeal,
		sharpnessReference: DefaultSharpnessReference,
		minBytesPerPixel:   DefaultMinBytesPerPixel,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.targetLongEdge < g.minLongEdge {
		g.targetLongEdge = g.minLongEdge
	}
	return g
}

// Assess scores img, whose encoded form is encodedBytes long. Every check
// runs so Reasons can report several problems at once.
func (g *Gate) Assess(img image.Image, encodedBytes int) model.ImageQualityResult {
	b := img.Bounds()
	return g.evaluate(b.Dx(), b.Dy(), Sharpness(img, g.sharpnessReference), encodedBytes)
}

func (g *Gate) evaluate(width, height int, sharpness float64, encodedBytes int) model.ImageQualityResult {
	res := model.ImageQualityResult{
		Width:          width,
		Height:         height,
		SharpnessScore: clamp01(sharpness),
		Reasons:        []string{},
	}

	longEdge := max(width, height)
	resolutionOK := true
	switch {
	case longEdge < g.minLongEdge:
		resolutionOK = false
		res.Reasons = append(res.Reasons, fmt.Sprintf("%s (%dx%d, minimum long edge %dpx)",
			ReasonUnusableResolution, width, height, g.minLongEdge))
	case longEdge < g.targetLongEdge:
		res.Reasons = append(res.Reasons, fmt.Sprintf("%s (%dx%d, recommended long edge %dpx)",
			ReasonDegradedResolution, width, height, g.targetLongEdge))
	}

	sharpnessOK := res.SharpnessScore >= g.sharpnessCutoff
	switch {
	case !sharpnessOK:
		res.Reasons = append(res.Reasons, ReasonBlurry)
	case res.SharpnessScore < g.sharpnessIdeal:
		res.Borderline = true
		res.Reasons = append(res.Reasons, ReasonBorderlineSharp)
	}

	if pixels := width * height; pixels > 0 && encodedBytes > 0 {
		res.BytesPerPixel = float64(encodedBytes) / float64(pixels)
		if res.BytesPerPixel < g.minBytesPerPixel {
			res.Reasons = append(res.Reasons, ReasonOverCompressed)
		}
	}

	res.IsGood = resolutionOK && sharpnessOK
	return res
}

// Sharpness returns the variance of the 4-neighbour Laplacian over the luma
// of img divided by reference, clamped to [0,1].
func Sharpness(img image.Image, reference float64) float64 {
	if reference <= 0 {
		reference = DefaultSharpnessReference
	}
	gray := imaging.Grayscale(img)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	luma := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x*4])
	}

	var sum, sumSq float64
	n := float64((w - 2) * (h - 2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			l := 4*luma(x, y) - luma(x-1, y) - luma(x+1, y) - luma(x, y-1) - luma(x, y+1)
			sum += l
			sumSq += l * l
		}
	}
	mean := sum / n
	return clamp01((sumSq/n - mean*mean) / reference)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
