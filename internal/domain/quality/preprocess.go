package quality

import (
	"bytes"
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/pkg/metrics"
)

// Default preprocessing parameters.
const (
	DefaultMaxDimension = 1024
	DefaultJPEGQuality  = 0.85
	DefaultMaxPixels    = 40_000_000
)

// Prepared is an image ready for submission.
type Prepared struct {
	Encoded []byte
	// Image is the decoded form of Encoded, not of the original upload.
	Image          image.Image
	Width          int
	Height         int
	OriginalFormat string
}

// Preprocessor downsizes and re-encodes uploads.
type Preprocessor struct {
	maxUploadBytes int
	maxPixels      int64
}

// NewPreprocessor creates a preprocessor that refuses uploads larger than
// maxUploadBytes. Zero or negative selects the default limit.
func NewPreprocessor(maxUploadBytes int, opts ...PreprocessorOption) *Preprocessor {
	if maxUploadBytes <= 0 {
		maxUploadBytes = failure.DefaultMaxUploadBytes
	}
	p := &Preprocessor{maxUploadBytes: maxUploadBytes, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare scales raw so its long edge is at most maxDimension, never
// upscaling, and re-encodes it as JPEG at quality in (0,1].
func (p *Preprocessor) Prepare(raw []byte, maxDimension int, quality float64) (Prepared, error) {
	if len(raw) == 0 {
		return Prepared{}, ErrEmptyImage
	}
	if len(raw) > p.maxUploadBytes {
		return Prepared{}, errTooLarge(p.maxUploadBytes)
	}
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 1 {
		quality = DefaultJPEGQuality
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Prepared{}, decodeFailure(err)
	}
	// Compressed size says nothing about decoded size; check the header.
	if int64(cfg.Width)*int64(cfg.Height) > p.maxPixels {
		return Prepared{}, errTooManyPixels(cfg.Width, cfg.Height, p.maxPixels)
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return Prepared{}, decodeFailure(err)
	}

	b := img.Bounds()
	if max(b.Dx(), b.Dy()) > maxDimension {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	q := int(math.Round(quality * 100))
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return Prepared{}, failure.Wrap(failure.KindServer, err)
	}

	// Decode what will be submitted so assessment sees compression artefacts.
	encoded, err := imaging.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return Prepared{}, failure.Wrap(failure.KindServer, err)
	}
	eb := encoded.Bounds()
	return Prepared{
		Encoded:        buf.Bytes(),
		Image:          encoded,
		Width:          eb.Dx(),
		Height:         eb.Dy(),
		OriginalFormat: format,
	}, nil
}

func decodeFailure(err error) error {
	if errors.Is(err, image.ErrFormat) {
		return ErrUnsupportedFormat
	}
	return failure.Wrap(failure.KindValidation, err)
}

// Pipeline prepares an upload and assesses the prepared bytes.
type Pipeline struct {
	pre          *Preprocessor
	gate         *Gate
	maxDimension int
	quality      float64
}

// NewPipeline wires a preprocessor and gate with the encode parameters.
func NewPipeline(pre *Preprocessor, gate *Gate, maxDimension int, quality float64) *Pipeline {
	return &Pipeline{pre: pre, gate: gate, maxDimension: maxDimension, quality: quality}
}

// Process prepares raw and scores the result.
func (p *Pipeline) Process(raw []byte) (Prepared, model.ImageQualityResult, error) {
	prepared, err := p.pre.Prepare(raw, p.maxDimension, p.quality)
	if err != nil {
		return Prepared{}, model.ImageQualityResult{}, err
	}
	res := p.gate.Assess(prepared.Image, len(prepared.Encoded))
	metrics.RecordQualityVerdict(res.IsGood, res.SharpnessScore)
	return prepared, res, nil
}
