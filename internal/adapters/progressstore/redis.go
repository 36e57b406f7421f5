// Package progressstore provides networked backends for the progress channel.
package progressstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/progress"
)

// Default Redis store configuration.
const (
	defaultKeyPrefix    = "skinmate:progress:"
	defaultTTL          = 10 * time.Minute
	defaultWatchRetries = 32
	scanBatch           = 256
)

// ErrContention is returned when an update kept losing optimistic lock races.
var ErrContention = errors.New("progress update contention")

// RedisStore keeps one JSON record per job under a prefixed key. Every write
// refreshes the key TTL so abandoned jobs expire even without the scavenger.
type RedisStore struct {
	rdb          *redis.Client
	prefix       string
	ttl          time.Duration
	watchRetries int
}

var _ progress.Store = (*RedisStore)(nil)

// Dial connects to the Redis server at url and verifies the connection.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(rdb *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{
		rdb:          rdb,
		prefix:       defaultKeyPrefix,
		ttl:          defaultTTL,
		watchRetries: defaultWatchRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(jobID string) string { return s.prefix + jobID }

func (s *RedisStore) Get(ctx context.Context, jobID string) (model.ProgressRecord, bool, error) {
	return read(ctx, s.rdb, s.key(jobID))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func read(ctx context.Context, g getter, key string) (model.ProgressRecord, bool, error) {
	raw, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ProgressRecord{}, false, nil
	}
	if err != nil {
		return model.ProgressRecord{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	var rec model.ProgressRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.ProgressRecord{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, true, nil
}

// Update runs fn inside WATCH/MULTI so concurrent writers to the same job
// retry instead of overwriting each other.
func (s *RedisStore) Update(ctx context.Context, jobID string, fn progress.UpdateFunc) (model.ProgressRecord, error) {
	key := s.key(jobID)
	var out model.ProgressRecord

	txf := func(tx *redis.Tx) error {
		cur, ok, err := read(ctx, tx, key)
		if err != nil {
			return err
		}
		next, err := fn(cur, ok)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			out = next
		}
		return err
	}

	for i := 0; i < s.watchRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return model.ProgressRecord{}, err
	}
	return model.ProgressRecord{}, ErrContention
}

func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	return s.rdb.Del(ctx, s.key(jobID)).Err()
}

// Sweep removes records whose UpdatedAt is before cutoff. Key TTLs normally
// get there first; this catches records written with a longer TTL.
func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	err := s.scan(ctx, func(key string) error {
		rec, ok, err := read(ctx, s.rdb, key)
		if err != nil || !ok {
			return err
		}
		if rec.UpdatedAt.Before(cutoff) {
			n, err := s.rdb.Del(ctx, key).Result()
			if err != nil {
				return err
			}
			removed += int(n)
		}
		return nil
	})
	return removed, err
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	err := s.scan(ctx, func(string) error {
		n++
		return nil
	})
	return n, err
}

func (s *RedisStore) scan(ctx context.Context, fn func(key string) error) error {
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}
