package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/retry"
	. "github.com/smartystreets/goconvey/convey"
)

type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func TestDo_NoWaitAfterFinalAttempt(t *testing.T) {
	Convey("Given an operation that never recovers", t, func() {
		for _, attempts := range []int{1, 3, 5} {
			rec := &recorder{}
			calls := 0
			_ = retry.Do(context.Background(), func(context.Context) error {
				calls++
				return failure.New(failure.KindServer, "busy")
			}, retry.WithMaxAttempts(attempts), retry.WithInitialDelay(time.Second), retry.WithSleep(rec.sleep))

			So(calls, ShouldEqual, attempts)
			So(len(rec.waits), ShouldEqual, attempts-1)

			var total time.Duration
			for _, w := range rec.waits {
				total += w
			}
			// 1s * (2^(attempts-1) - 1): the final failure returns at once.
			So(total, ShouldEqual, time.Second*time.Duration(1<<(attempts-1)-1))
		}
	})
}

func TestDo(t *testing.T) {
	Convey("Given an executor with a recorded backoff", t, func() {
		rec := &recorder{}
		ctx := context.Background()
		calls := 0

		Convey("When the operation always fails with a network error", func() {
			err := retry.Do(ctx, func(context.Context) error {
				calls++
				return errors.New("network timeout")
			}, retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Second), retry.WithSleep(rec.sleep))

			Convey("Then it runs three times, doubling the wait between attempts", func() {
				So(calls, ShouldEqual, 3)
				So(rec.waits, ShouldResemble, []time.Duration{time.Second, 2 * time.Second})
				So(len(rec.waits), ShouldEqual, calls-1)

				var ce *failure.ClassifiedError
				So(errors.As(err, &ce), ShouldBeTrue)
				So(ce.Kind, ShouldEqual, failure.KindNetwork)
			})
		})

		Convey("When the operation fails with a validation error", func() {
			err := retry.Do(ctx, func(context.Context) error {
				calls++
				return errors.New("unsupported image format")
			}, retry.WithSleep(rec.sleep))

			Convey("Then it runs once and propagates without waiting", func() {
				So(calls, ShouldEqual, 1)
				So(rec.waits, ShouldBeEmpty)
				So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
			})
		})

		Convey("When the operation recovers on the second attempt", func() {
			v, err := retry.DoValue(ctx, func(context.Context) (string, error) {
				calls++
				if calls == 1 {
					return "", failure.New(failure.KindServer, "busy")
				}
				return "ok", nil
			}, retry.WithInitialDelay(10*time.Millisecond), retry.WithSleep(rec.sleep))

			Convey("Then the value is returned after one wait", func() {
				So(err, ShouldBeNil)
				So(v, ShouldEqual, "ok")
				So(calls, ShouldEqual, 2)
				So(rec.waits, ShouldResemble, []time.Duration{10 * time.Millisecond})
			})
		})

		Convey("When the context is cancelled during backoff", func() {
			cctx, cancel := context.WithCancel(ctx)
			err := retry.Do(cctx, func(context.Context) error {
				calls++
				cancel()
				return errors.New("503 service unavailable")
			}, retry.WithInitialDelay(time.Hour))

			Convey("Then no further attempt is scheduled", func() {
				So(calls, ShouldEqual, 1)
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the context is already done", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := retry.Do(cctx, func(context.Context) error {
				calls++
				return nil
			})

			Convey("Then the operation never runs", func() {
				So(calls, ShouldEqual, 0)
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestDo_RealSleep(t *testing.T) {
	Convey("Given short real delays", t, func() {
		calls := 0
		start := time.Now()
		err := retry.Do(context.Background(), func(context.Context) error {
			calls++
			return errors.New("connection refused")
		}, retry.WithMaxAttempts(3), retry.WithInitialDelay(5*time.Millisecond))

		Convey("Then the elapsed wait covers both backoff steps", func() {
			So(calls, ShouldEqual, 3)
			So(err, ShouldNotBeNil)
			So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 15*time.Millisecond)
		})
	})
}

func TestBackoff(t *testing.T) {
	Convey("Backoff doubles per attempt", t, func() {
		So(retry.Backoff(time.Second, 0), ShouldEqual, time.Second)
		So(retry.Backoff(time.Second, 1), ShouldEqual, 2*time.Second)
		So(retry.Backoff(time.Second, 2), ShouldEqual, 4*time.Second)
	})
}
