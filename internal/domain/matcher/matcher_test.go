package matcher_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/okian/skinmate/internal/adapters/repository"
	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/matcher"
	"github.com/okian/skinmate/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type failingRepo struct{ err error }

func (f failingRepo) TopCandidate(context.Context, string, float64) (model.MentorCandidate, bool, error) {
	return model.MentorCandidate{}, false, f.err
}

func score(v float64) *float64 { return &v }

func pool(t *testing.T, extra ...model.MentorCandidate) *repository.MemoryMentorStore {
	t.Helper()
	birth := 1995
	gender := "female"
	base := []model.MentorCandidate{
		{ID: "hi", UserID: "u1", PrimaryConcern: "acne", SkinScore: 80, IsActive: true, SubjectActive: true,
			SubjectBirthYear: &birth, SubjectGender: &gender},
		{ID: "lo", UserID: "u2", PrimaryConcern: "acne", SkinScore: 40, IsActive: true, SubjectActive: true},
	}
	s, err := repository.NewMemoryMentorStore(append(base, extra...)...)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestFindMatch(t *testing.T) {
	Convey("Given a pool with acne records scored 80 and 40", t, func() {
		ctx := context.Background()
		clock := func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
		m := matcher.New(pool(t), matcher.WithClock(clock), matcher.WithRand(rand.New(rand.NewPCG(1, 2))))

		Convey("When a user scoring 50 asks for acne", func() {
			res, err := m.FindMatch(ctx, matcher.MatchRequest{Concern: "acne", MyScore: score(50)})

			Convey("Then the 80 record is returned", func() {
				So(err, ShouldBeNil)
				So(res.Found, ShouldBeTrue)
				So(res.Mentor.ID, ShouldEqual, "hi")
				So(res.Mentor.SkinScore, ShouldEqual, 80)
				So(*res.Mentor.Age, ShouldEqual, 30)
				So(*res.Mentor.Gender, ShouldEqual, "female")
			})
		})

		Convey("When a user scoring 90 asks for acne", func() {
			res, err := m.FindMatch(ctx, matcher.MatchRequest{Concern: "acne", MyScore: score(90)})

			Convey("Then there is no match and no error", func() {
				So(err, ShouldBeNil)
				So(res.Found, ShouldBeFalse)
				So(res.Mentor, ShouldBeNil)
			})
		})

		Convey("When repeating the same query", func() {
			for i := 0; i < 200; i++ {
				res, err := m.FindMatch(ctx, matcher.MatchRequest{Concern: "acne", MyScore: score(10)})
				So(err, ShouldBeNil)
				So(res.Mentor.ID, ShouldEqual, "hi")
				So(res.Mentor.MatchConfidence, ShouldBeBetweenOrEqual, 93, 99)
				So(res.Mentor.Satisfaction, ShouldBeBetweenOrEqual, 85, 94)
			}
		})

		Convey("When an input is missing", func() {
			_, errConcern := m.FindMatch(ctx, matcher.MatchRequest{MyScore: score(10)})
			_, errScore := m.FindMatch(ctx, matcher.MatchRequest{Concern: "acne"})

			Convey("Then validation errors are returned", func() {
				So(failure.KindOf(errConcern), ShouldEqual, failure.KindValidation)
				So(failure.KindOf(errScore), ShouldEqual, failure.KindValidation)
			})
		})
	})

	Convey("Given scores that compare false against every record", t, func() {
		m := matcher.New(pool(t))

		for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			res, err := m.FindMatch(context.Background(), matcher.MatchRequest{Concern: "acne", MyScore: score(v)})

			So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
			So(err, ShouldPointTo, failure.ErrNonFiniteScore)
			So(res.Found, ShouldBeFalse)
		}
	})

	Convey("Given a top candidate whose subject is inactive", t, func() {
		m := matcher.New(pool(t, model.MentorCandidate{
			ID: "gone", UserID: "u3", PrimaryConcern: "acne", SkinScore: 95, IsActive: true, SubjectActive: false,
		}))

		Convey("When a user scoring 50 asks for acne", func() {
			res, err := m.FindMatch(context.Background(), matcher.MatchRequest{Concern: "acne", MyScore: score(50)})

			Convey("Then no match is returned rather than falling back", func() {
				So(err, ShouldBeNil)
				So(res.Found, ShouldBeFalse)
			})
		})
	})

	Convey("Given a repository that fails", t, func() {
		m := matcher.New(failingRepo{err: errors.New("pq: relation does not exist")})
		_, err := m.FindMatch(context.Background(), matcher.MatchRequest{Concern: "acne", MyScore: score(1)})

		Convey("Then the failure is classified as a retryable server error", func() {
			So(failure.KindOf(err), ShouldEqual, failure.KindServer)
			So(failure.IsRetryable(err), ShouldBeTrue)
		})
	})
}
