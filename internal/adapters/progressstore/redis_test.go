package progressstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/progress"
)

func newStore(t *testing.T, opts ...Option) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, opts...), mr
}

func set(rec model.ProgressRecord) progress.UpdateFunc {
	return func(model.ProgressRecord, bool) (model.ProgressRecord, error) { return rec, nil }
}

func TestRedisStore(t *testing.T) {
	Convey("Given a Redis store", t, func() {
		ctx := context.Background()
		s, mr := newStore(t, WithTTL(time.Minute), WithWatchRetries(100))

		Convey("When a record is written", func() {
			now := time.Now().UTC().Truncate(time.Second)
			_, err := s.Update(ctx, "abc", set(model.ProgressRecord{JobID: "abc", Stage: model.StageAnalyzing, Progress: 40, UpdatedAt: now}))
			So(err, ShouldBeNil)

			Convey("Then it reads back intact with a TTL on the key", func() {
				rec, ok, err := s.Get(ctx, "abc")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(rec.Stage, ShouldEqual, model.StageAnalyzing)
				So(rec.UpdatedAt.Equal(now), ShouldBeTrue)
				So(mr.TTL(defaultKeyPrefix+"abc"), ShouldEqual, time.Minute)
				n, _ := s.Len(ctx)
				So(n, ShouldEqual, 1)
			})

			Convey("Then it expires once the TTL passes", func() {
				mr.FastForward(2 * time.Minute)
				_, ok, err := s.Get(ctx, "abc")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})

			Convey("Then Delete removes it", func() {
				So(s.Delete(ctx, "abc"), ShouldBeNil)
				_, ok, _ := s.Get(ctx, "abc")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When concurrent updates hit one key", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = s.Update(ctx, "hot", func(cur model.ProgressRecord, _ bool) (model.ProgressRecord, error) {
						cur.JobID = "hot"
						cur.Progress++
						return cur, nil
					})
				}()
			}
			wg.Wait()

			Convey("Then none are lost", func() {
				rec, _, _ := s.Get(ctx, "hot")
				So(rec.Progress, ShouldEqual, 20)
			})
		})

		Convey("When sweeping by age", func() {
			now := time.Now()
			_, _ = s.Update(ctx, "old", set(model.ProgressRecord{JobID: "old", UpdatedAt: now.Add(-time.Hour)}))
			_, _ = s.Update(ctx, "new", set(model.ProgressRecord{JobID: "new", UpdatedAt: now}))
			removed, err := s.Sweep(ctx, now.Add(-time.Minute))

			Convey("Then only stale records go", func() {
				So(err, ShouldBeNil)
				So(removed, ShouldEqual, 1)
				n, _ := s.Len(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When the server is down", func() {
			mr.Close()
			_, _, err := s.Get(ctx, "abc")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRedisStore_BacksChannel(t *testing.T) {
	Convey("Given a progress channel over Redis", t, func() {
		ctx := context.Background()
		s, _ := newStore(t)
		ch := progress.NewChannel(s, progress.WithPollInterval(5*time.Millisecond))
		defer ch.Close()

		for _, st := range []model.Stage{model.StageConnecting, model.StageUploading, model.StageAnalyzing, model.StageScoring, model.StageComplete} {
			_, err := ch.Publish(ctx, "abc", st, 0, "")
			So(err, ShouldBeNil)
		}

		Convey("When subscribing after completion", func() {
			sub, err := ch.Subscribe(ctx, "abc")
			So(err, ShouldBeNil)
			var last model.ProgressRecord
			for rec := range sub {
				last = rec
			}

			Convey("Then the stream ends on complete and Redis forgets the job", func() {
				So(last.Stage, ShouldEqual, model.StageComplete)
				_, ok, _ := s.Get(ctx, "abc")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a regression is published", func() {
			_, err := ch.Publish(ctx, "abc", model.StageUploading, 0, "")
			Convey("Then the validation error passes through the Redis transaction", func() {
				So(failure.KindOf(err), ShouldEqual, failure.KindValidation)
			})
		})
	})
}

func TestDial(t *testing.T) {
	Convey("Dial validates URL and connectivity", t, func() {
		mr := miniredis.RunT(t)
		rdb, err := Dial(context.Background(), "redis://"+mr.Addr())
		So(err, ShouldBeNil)
		So(rdb.Close(), ShouldBeNil)

		_, err = Dial(context.Background(), "::not a url")
		So(err, ShouldNotBeNil)
	})
}
