package infra

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionLocker serializes cashbox operations on the same session across
// service instances. The database row lock inside the transaction is the
// hard correctness guarantee; this advisory lock keeps concurrent writers
// queued at the application layer instead of piling up on the row.
type SessionLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

const lockRetryInterval = 50 * time.Millisecond

func NewSessionLocker(rdb *redis.Client) *SessionLocker {
	return &SessionLocker{
		client: redislock.New(rdb),
		ttl:    10 * time.Second,
	}
}

// Lock blocks until the lock on key is held or ctx expires. The returned
// func releases the lock; release failures are logged, not propagated —
// the TTL bounds how long a stuck lock can linger.
func (l *SessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(lockRetryInterval),
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to release session lock")
		}
	}, nil
}
