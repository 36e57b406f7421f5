package quality

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/okian/skinmate/internal/domain/failure"
	. "github.com/smartystreets/goconvey/convey"
)

func checkerboard(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/2+y/2)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func flat(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// pngHeader is a PNG signature and IHDR chunk only. The header is all
// DecodeConfig reads; a full decode would fail on the missing pixel data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth, grayscale

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func hasReason(reasons []string, prefix string) bool {
	for _, r := range reasons {
		if strings.HasPrefix(r, prefix) {
			return true
		}
	}
	return false
}

func TestGate_Evaluate(t *testing.T) {
	Convey("Given a gate with default thresholds", t, func() {
		g := NewGate()

		Convey("When sharpness sits exactly on the cutoff", func() {
			res := g.evaluate(1000, 800, 0.1, 200000)
			Convey("Then the image passes as borderline", func() {
				So(res.IsGood, ShouldBeTrue)
				So(res.Borderline, ShouldBeTrue)
				So(res.Reasons, ShouldContain, ReasonBorderlineSharp)
			})
		})

		Convey("When sharpness is just below the cutoff", func() {
			res := g.evaluate(1000, 800, 0.0999999, 200000)
			Convey("Then the image fails as blurry", func() {
				So(res.IsGood, ShouldBeFalse)
				So(res.Reasons, ShouldContain, ReasonBlurry)
			})
		})

		Convey("When the long edge is below the floor", func() {
			for _, dims := range [][2]int{{479, 300}, {200, 100}, {300, 479}} {
				res := g.evaluate(dims[0], dims[1], 0.9, 50000)
				So(res.IsGood, ShouldBeFalse)
				So(hasReason(res.Reasons, ReasonUnusableResolution), ShouldBeTrue)
			}
		})

		Convey("When the long edge is between floor and target", func() {
			res := g.evaluate(600, 400, 0.9, 50000)
			Convey("Then the image passes with a caution", func() {
				So(res.IsGood, ShouldBeTrue)
				So(hasReason(res.Reasons, ReasonDegradedResolution), ShouldBeTrue)
			})
		})

		Convey("When several checks fail at once", func() {
			res := g.evaluate(300, 200, 0.0, 100)
			Convey("Then every failure is reported", func() {
				So(res.IsGood, ShouldBeFalse)
				So(len(res.Reasons), ShouldEqual, 3)
				So(res.Reasons, ShouldContain, ReasonOverCompressed)
			})
		})

		Convey("When only compression density is low", func() {
			res := g.evaluate(1000, 1000, 0.5, 1000)
			Convey("Then a reason is added but the verdict is unchanged", func() {
				So(res.IsGood, ShouldBeTrue)
				So(res.Reasons, ShouldResemble, []string{ReasonOverCompressed})
			})
		})

		Convey("When sharpness is out of range", func() {
			So(g.evaluate(800, 800, 7, 1e6).SharpnessScore, ShouldEqual, 1)
			So(g.evaluate(800, 800, -1, 1e6).SharpnessScore, ShouldEqual, 0)
		})
	})
}

func TestSharpness(t *testing.T) {
	Convey("Given synthetic images", t, func() {
		Convey("A flat image has no edges", func() {
			So(Sharpness(flat(50, 50), DefaultSharpnessReference), ShouldEqual, 0)
		})
		Convey("A fine checkerboard saturates the score", func() {
			So(Sharpness(checkerboard(50, 50), DefaultSharpnessReference), ShouldEqual, 1)
		})
		Convey("A tiny image scores zero", func() {
			So(Sharpness(checkerboard(2, 2), DefaultSharpnessReference), ShouldEqual, 0)
		})
	})
}

func TestPreprocessor(t *testing.T) {
	Convey("Given a preprocessor", t, func() {
		p := NewPreprocessor(0)

		Convey("When the image exceeds the max dimension", func() {
			out, err := p.Prepare(encodePNG(t, checkerboard(2000, 1000)), 1024, 0.85)
			Convey("Then it is scaled down preserving aspect ratio", func() {
				So(err, ShouldBeNil)
				So(out.Width, ShouldEqual, 1024)
				So(out.Height, ShouldEqual, 512)
				So(out.OriginalFormat, ShouldEqual, "png")
				So(out.Encoded[:2], ShouldResemble, []byte{0xFF, 0xD8})
			})
		})

		Convey("When the image is already small", func() {
			out, err := p.Prepare(encodePNG(t, checkerboard(300, 200)), 1024, 0.85)
			Convey("Then it is never upscaled", func() {
				So(err, ShouldBeNil)
				So(out.Width, ShouldEqual, 300)
				So(out.Height, ShouldEqual, 200)
			})
		})

		Convey("When the input is not an image", func() {
			_, err := p.Prepare([]byte("definitely not pixels"), 1024, 0.85)
			Convey("Then a validation error names the supported formats", func() {
				So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
				So(failure.Classify(err).Message, ShouldContainSubstring, "JPEG")
			})
		})

		Convey("When the input is empty or oversized", func() {
			_, err := p.Prepare(nil, 1024, 0.85)
			So(failure.KindOf(err), ShouldEqual, failure.KindValidation)

			small := NewPreprocessor(1 << 20)
			_, err = small.Prepare(make([]byte, 2<<20), 1024, 0.85)
			So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
			So(failure.Classify(err).Message, ShouldContainSubstring, "1 MB")
		})

		Convey("When a tiny upload declares a huge canvas", func() {
			raw := pngHeader(10_000, 10_000)
			_, err := p.Prepare(raw, 1024, 0.85)

			Convey("Then it is refused from the header alone", func() {
				So(len(raw), ShouldBeLessThan, 64)
				So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
				So(failure.IsRetryable(err), ShouldBeFalse)
				So(failure.Classify(err).Message, ShouldContainSubstring, "10000x10000")
				So(failure.Classify(err).Message, ShouldContainSubstring, "40 megapixels")
			})
		})

		Convey("When the pixel ceiling is configured", func() {
			capped := NewPreprocessor(0, WithMaxPixels(100*100))

			_, err := capped.Prepare(encodePNG(t, checkerboard(200, 200)), 1024, 0.85)
			So(failure.Classify(err).Message, ShouldContainSubstring, "dimensions are too large")

			out, err := capped.Prepare(encodePNG(t, checkerboard(100, 100)), 1024, 0.85)
			So(err, ShouldBeNil)
			So(out.Width, ShouldEqual, 100)
		})
	})
}

func TestPipeline(t *testing.T) {
	Convey("Given the full pipeline", t, func() {
		pl := NewPipeline(NewPreprocessor(0), NewGate(), 1024, 0.85)

		Convey("When processing a large sharp image", func() {
			prepared, res, err := pl.Process(encodePNG(t, checkerboard(1600, 1200)))
			Convey("Then the assessment describes the prepared bytes", func() {
				So(err, ShouldBeNil)
				So(res.Width, ShouldEqual, prepared.Width)
				So(res.Width, ShouldEqual, 1024)
				So(res.IsGood, ShouldBeTrue)
			})
		})

		Convey("When processing a small flat image", func() {
			_, res, err := pl.Process(encodePNG(t, flat(320, 240)))
			Convey("Then it is rejected for resolution and blur", func() {
				So(err, ShouldBeNil)
				So(res.IsGood, ShouldBeFalse)
				So(res.Reasons, ShouldContain, ReasonBlurry)
				So(hasReason(res.Reasons, ReasonUnusableResolution), ShouldBeTrue)
			})
		})
	})
}
