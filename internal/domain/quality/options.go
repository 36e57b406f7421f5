package quality

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithMinLongEdge sets the hard resolution floor in pixels.
func WithMinLongEdge(px int) Option {
	return func(g *Gate) {
		if px > 0 {
			g.minLongEdge = px
		}
	}
}

// WithTargetLongEdge sets the recommended long edge in pixels.
func WithTargetLongEdge(px int) Option {
	return func(g *Gate) {
		if px > 0 {
			g.targetLongEdge = px
		}
	}
}

// WithSharpnessCutoff sets the inclusive sharpness floor for IsGood.
func WithSharpnessCutoff(v float64) Option {
	return func(g *Gate) {
		if v >= 0 && v <= 1 {
			g.sharpnessCutoff = v
		}
	}
}

// WithSharpnessIdeal sets the score below which accepted images are borderline.
func WithSharpnessIdeal(v float64) Option {
	return func(g *Gate) {
		if v >= 0 && v <= 1 {
			g.sharpnessIdeal = v
		}
	}
}

// WithSharpnessReference sets the Laplacian variance that maps to a score of 1.
func WithSharpnessReference(v float64) Option {
	return func(g *Gate) {
		if v > 0 {
			g.sharpnessReference = v
		}
	}
}

// WithMinBytesPerPixel sets the compression density warning threshold.
func WithMinBytesPerPixel(v float64) Option {
	return func(g *Gate) {
		if v >= 0 {
			g.minBytesPerPixel = v
		}
	}
}

// PreprocessorOption applies a configuration option to the Preprocessor.
type PreprocessorOption func(*Preprocessor)

// WithMaxPixels caps width*height of an upload, checked before decoding.
func WithMaxPixels(n int64) PreprocessorOption {
	return func(p *Preprocessor) {
		if n > 0 {
			p.maxPixels = n
		}
	}
}
