package service_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	service "github.com/okian/skinmate/internal/app"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/progress"
	"github.com/okian/skinmate/internal/domain/retry"
	"github.com/okian/skinmate/internal/domain/scoring"
)

// sharpPNG is large enough to pass the resolution floor with a 2px checker
// pattern that saturates the sharpness score.
func sharpPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 800, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			if (x/2+y/2)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return encode(t, img)
}

// blurryPNG is a flat frame with no edges at all.
func blurryPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 800, 600))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return encode(t, img)
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// fastService runs with a quick scorer and a short poll interval.
func fastService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(16),
		service.WithScorer(scoring.NewSimulatedScorer(scoring.WithLatencyRange(time.Millisecond, 2*time.Millisecond))),
		service.WithRetryOptions(retry.WithInitialDelay(time.Millisecond)),
		service.WithProgressOptions(progress.WithPollInterval(5 * time.Millisecond)),
	}
	return service.New(append(base, opts...)...)
}

// drain collects records until the subscription closes or the deadline hits.
func drain(t *testing.T, ch <-chan model.ProgressRecord, within time.Duration) []model.ProgressRecord {
	t.Helper()
	var out []model.ProgressRecord
	timeout := time.After(within)
	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, rec)
		case <-timeout:
			t.Errorf("subscription did not finish within %s", within)
			return out
		}
	}
}

func stopped(t *testing.T, svc *service.Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Errorf("stop: %v", err)
	}
}
