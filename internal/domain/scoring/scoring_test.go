package scoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/skinmate/internal/domain/failure"
	scoring "github.com/okian/skinmate/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSimulatedScorer_Score(t *testing.T) {
	Convey("Given a fast simulated scorer", t, func() {
		scorer := scoring.NewSimulatedScorer(scoring.WithLatencyRange(0, time.Millisecond))
		img := []byte("jpeg bytes of a face")

		Convey("When scoring an image", func() {
			a, err := scorer.Score(context.Background(), img)

			Convey("Then every concern is scored within range", func() {
				So(err, ShouldBeNil)
				So(len(a.Scores), ShouldEqual, len(scoring.Concerns))
				for _, c := range scoring.Concerns {
					So(a.Scores[c], ShouldBeBetweenOrEqual, 30, 95)
				}
				So(a.Confidence, ShouldBeBetweenOrEqual, 0.7, 0.95)
				So(a.Confidence+a.Uncertainty, ShouldAlmostEqual, 1.0, 1e-9)
				So(a.SkinScore(), ShouldBeBetweenOrEqual, 30, 95)
				So(a.Scores[a.PrimaryConcern()], ShouldBeLessThanOrEqualTo, a.SkinScore())
			})

			Convey("And the same bytes always score the same", func() {
				again, err := scorer.Score(context.Background(), img)
				So(err, ShouldBeNil)
				So(again.Scores, ShouldResemble, a.Scores)
			})
		})

		Convey("When the image is empty", func() {
			_, err := scorer.Score(context.Background(), nil)
			Convey("Then the raw failure classifies as validation", func() {
				So(errors.Is(err, scoring.ErrEmptyImage), ShouldBeTrue)
				So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
			})
		})

		Convey("When the context is cancelled", func() {
			slow := scoring.NewSimulatedScorer(scoring.WithLatencyRange(time.Second, 2*time.Second))
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := slow.Score(ctx, img)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given a scorer that always fails", t, func() {
		scorer := scoring.NewSimulatedScorer(scoring.WithLatencyRange(0, time.Millisecond), scoring.WithFailureRate(1), scoring.WithSeed(7))
		_, err := scorer.Score(context.Background(), []byte{1, 2, 3})

		Convey("Then the failure classifies as a retryable model error", func() {
			So(errors.Is(err, scoring.ErrInference), ShouldBeTrue)
			So(failure.KindOf(err), ShouldEqual, failure.KindModel)
			So(failure.IsRetryable(err), ShouldBeTrue)
		})
	})
}

func TestAnalysis_PrimaryConcern(t *testing.T) {
	Convey("The lowest score names the primary concern", t, func() {
		a := scoring.Analysis{Scores: map[string]float64{"acne": 40, "redness": 70, "pores": 40}}
		So(a.PrimaryConcern(), ShouldEqual, "acne")
		So(a.SkinScore(), ShouldEqual, 50)
		So(scoring.Analysis{}.SkinScore(), ShouldEqual, 0)
	})
}
