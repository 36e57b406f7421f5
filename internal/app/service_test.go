package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/skinmate/internal/adapters/mq/queue"
	"github.com/okian/skinmate/internal/adapters/repository"
	service "github.com/okian/skinmate/internal/app"
	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/matcher"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/quality"
	"github.com/okian/skinmate/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := fastService()
		ctx := context.Background()

		Convey("When started twice", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it reports as started", func() {
				So(svc.GetStats(ctx)["started"], ShouldEqual, true)
				So(svc.GetStats(ctx)["workerCount"], ShouldEqual, 2)
			})

			Convey("And after Stop it reports as stopped and cannot restart", func() {
				stopped(t, svc)
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
				So(svc.Start(ctx), ShouldEqual, service.ErrNotStarted)
			})
		})

		Convey("When stopped without starting", func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}

func TestService_CheckQuality(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := fastService()
		ctx := context.Background()

		Convey("When checking a sharp image", func() {
			res, err := svc.CheckQuality(ctx, sharpPNG(t))
			So(err, ShouldBeNil)
			So(res.Width, ShouldEqual, 800)
			So(res.Height, ShouldEqual, 600)
			So(res.Bytes, ShouldBeGreaterThan, 0)
			So(res.Quality.IsGood, ShouldBeTrue)
		})

		Convey("When checking a flat image", func() {
			res, err := svc.CheckQuality(ctx, blurryPNG(t))
			So(err, ShouldBeNil)
			So(res.Quality.IsGood, ShouldBeFalse)
		})

		Convey("When checking bytes that are not an image", func() {
			_, err := svc.CheckQuality(ctx, []byte("definitely not a photo"))
			So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a service that has not started its workers", t, func() {
		ctx := context.Background()
		svc := fastService(service.WithQueueSize(1))

		Convey("When submitting without a job id", func() {
			resp, err := svc.Submit(ctx, types.SubmitRequest{Image: sharpPNG(t)})

			Convey("Then a job id is generated and a progress record exists", func() {
				So(err, ShouldBeNil)
				So(len(resp.JobID), ShouldEqual, 36)
				So(resp.Quality.IsGood, ShouldBeTrue)

				sub, err := svc.Subscribe(ctx, resp.JobID)
				So(err, ShouldBeNil)
				first := <-sub
				So(first.Stage, ShouldEqual, model.StageConnecting)
				So(first.Message, ShouldNotEqual, "preparing")
			})
		})

		Convey("When a blurry image is submitted", func() {
			_, err := svc.Submit(ctx, types.SubmitRequest{JobID: "blurry", Image: blurryPNG(t)})

			Convey("Then it is rejected with the quality verdict", func() {
				var rejected *quality.RejectedError
				So(errors.As(err, &rejected), ShouldBeTrue)
				So(rejected.Result.IsGood, ShouldBeFalse)
				So(rejected.Result.Reasons, ShouldNotBeEmpty)
			})

			Convey("And the same id can still be used with an override", func() {
				resp, err := svc.Submit(ctx, types.SubmitRequest{JobID: "blurry", Override: true, Image: blurryPNG(t)})
				So(err, ShouldBeNil)
				So(resp.JobID, ShouldEqual, "blurry")
				So(resp.Quality.IsGood, ShouldBeFalse)
			})
		})

		Convey("When the same job id is submitted twice", func() {
			_, err := svc.Submit(ctx, types.SubmitRequest{JobID: "dup", Image: sharpPNG(t)})
			So(err, ShouldBeNil)
			_, err = svc.Submit(ctx, types.SubmitRequest{JobID: "dup", Image: sharpPNG(t)})

			Convey("Then the second is a validation failure", func() {
				So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
				So(failure.Classify(err).Message, ShouldContainSubstring, "dup")
			})
		})

		Convey("When the queue is full", func() {
			_, err := svc.Submit(ctx, types.SubmitRequest{JobID: "first", Image: sharpPNG(t)})
			So(err, ShouldBeNil)
			_, err = svc.Submit(ctx, types.SubmitRequest{JobID: "second", Image: sharpPNG(t)})

			Convey("Then backpressure is reported and the id is released", func() {
				So(err, ShouldEqual, queue.ErrBackpressure)
				So(failure.IsRetryable(err), ShouldBeTrue)

				_, again := svc.Submit(ctx, types.SubmitRequest{JobID: "second", Image: sharpPNG(t)})
				So(again, ShouldEqual, queue.ErrBackpressure)
			})
		})

		Convey("When the upload is empty", func() {
			_, err := svc.Submit(ctx, types.SubmitRequest{})
			So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
		})
	})
}

func TestService_ProgressSink(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := fastService()

		Convey("When an external producer publishes stages", func() {
			rec, err := svc.PublishProgress(ctx, types.ProgressUpdate{JobID: "ext", Stage: "analyzing", Progress: 140, Message: "working"})
			So(err, ShouldBeNil)
			So(rec.Progress, ShouldEqual, 100)

			Convey("Then an unknown stage is a validation failure", func() {
				_, err := svc.PublishProgress(ctx, types.ProgressUpdate{JobID: "ext", Stage: "dancing"})
				So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
			})

			Convey("Then moving backwards is rejected", func() {
				_, err := svc.PublishProgress(ctx, types.ProgressUpdate{JobID: "ext", Stage: "uploading"})
				So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
			})
		})

		Convey("When subscribing without a job id", func() {
			_, err := svc.Subscribe(ctx, "")
			So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
		})
	})
}

func TestService_ReportAndMentors(t *testing.T) {
	Convey("Given a service with seeded mentors", t, func() {
		ctx := context.Background()
		seed, err := repository.LoadMentorSeed("../adapters/repository/testdata/mentors.yaml")
		So(err, ShouldBeNil)
		store, err := repository.NewMemoryMentorStore(seed...)
		So(err, ShouldBeNil)
		svc := fastService(service.WithMentorStore(store))

		Convey("When asking for an unknown report", func() {
			_, found, err := svc.Report(ctx, "nope")
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
		})

		Convey("When matching a concern with a better mentor", func() {
			score := 50.0
			res, err := svc.MatchMentor(ctx, matcher.MatchRequest{Concern: "acne", MyScore: &score})
			So(err, ShouldBeNil)
			So(res.Found, ShouldBeTrue)
			So(res.Mentor.ID, ShouldEqual, "tip-1")
		})

		Convey("When the user already beats every mentor", func() {
			score := 90.0
			res, err := svc.MatchMentor(ctx, matcher.MatchRequest{Concern: "acne", MyScore: &score})
			So(err, ShouldBeNil)
			So(res.Found, ShouldBeFalse)
		})

		Convey("Then stats include the mentor pool", func() {
			stats := svc.GetStats(ctx)
			So(stats["mentors"], ShouldEqual, 2)
			So(stats["progressLive"], ShouldEqual, 0)
		})
	})
}

func TestService_EndToEnd(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := fastService()
		So(svc.Start(ctx), ShouldBeNil)
		defer stopped(t, svc)

		Convey("When a photo is submitted and observed", func() {
			resp, err := svc.Submit(ctx, types.SubmitRequest{JobID: "e2e", UserID: "u-1", Image: sharpPNG(t)})
			So(err, ShouldBeNil)
			sub, err := svc.Subscribe(ctx, resp.JobID)
			So(err, ShouldBeNil)
			records := drain(t, sub, 5*time.Second)

			Convey("Then the stream ends with complete and stages never go back", func() {
				So(records, ShouldNotBeEmpty)
				last := records[len(records)-1]
				So(last.Stage, ShouldEqual, model.StageComplete)
				So(last.Progress, ShouldEqual, 100)
				for i := 1; i < len(records); i++ {
					So(records[i].Stage.Before(records[i-1].Stage), ShouldBeFalse)
				}

				report, found, err := svc.Report(ctx, "e2e")
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(report.UserID, ShouldEqual, "u-1")
				So(report.Scores, ShouldNotBeEmpty)
			})

			Convey("Then a late observer still sees how the job ended", func() {
				late, err := svc.Subscribe(ctx, resp.JobID)
				So(err, ShouldBeNil)
				again := drain(t, late, time.Second)
				So(again, ShouldHaveLength, 1)
				So(again[0].Stage, ShouldEqual, model.StageComplete)
			})
		})
	})
}
