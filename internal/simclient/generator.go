package simclient

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Photo dimensions comfortably above the recommended long edge.
const (
	photoWidth   = 800
	photoHeight  = 600
	photoQuality = 90
	blurSigma    = 8.0
)

// Photo is one generated upload.
type Photo struct {
	JobID  string
	UserID string
	Blurry bool
	Data   []byte
}

// Generator produces deterministic synthetic photos. Sharp photos are
// textured noise; blurry ones are the same texture under a heavy Gaussian
// blur, which the quality gate rejects.
type Generator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	blurryRatio float64
	seq         int
}

// NewGenerator creates a generator. blurryRatio is clamped to [0,1].
func NewGenerator(seed int64, blurryRatio float64) *Generator {
	blurryRatio = min(max(blurryRatio, 0), 1)
	return &Generator{
		rng:         rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x5eed)),
		blurryRatio: blurryRatio,
	}
}

// Next returns the next photo.
func (g *Generator) Next() (Photo, error) {
	g.mu.Lock()
	g.seq++
	seq := g.seq
	blurry := g.rng.Float64() < g.blurryRatio
	base := byte(g.rng.IntN(128))
	pix := make([]byte, photoWidth*photoHeight)
	for i := range pix {
		pix[i] = base + byte(g.rng.IntN(128))
	}
	g.mu.Unlock()

	img := imaging.New(photoWidth, photoHeight, color.NRGBA{A: 255})
	for i, v := range pix {
		o := i * 4
		img.Pix[o], img.Pix[o+1], img.Pix[o+2] = v, v/2+64, v/3+80
	}
	var src image.Image = img
	if blurry {
		src = imaging.Blur(img, blurSigma)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(photoQuality)); err != nil {
		return Photo{}, fmt.Errorf("encode photo %d: %w", seq, err)
	}
	return Photo{
		JobID:  uuid.NewString(),
		UserID: fmt.Sprintf("user-%d", seq%97),
		Blurry: blurry,
		Data:   buf.Bytes(),
	}, nil
}
