package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/listening-room-system/pkg/errs"
)

const (
	lockKeyFmt     = "lock:%s"
	lockRetries    = 10
	lockRetryDelay = 50 * time.Millisecond
)

// releaseScript deletes the lock only if the caller still holds it.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Locker provides per-room mutual exclusion backed by SETNX. Playback
// transitions read then write across two keys, so callers serialize them
// through this rather than a process-local mutex; multiple server instances
// may run against the same Redis.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes the named lock, retrying briefly if it is held. On success it
// returns a release function; the TTL bounds how long a crashed holder can
// block others.
func (l *Locker) Acquire(ctx context.Context, name string) (func(), error) {
	key := fmt.Sprintf(lockKeyFmt, name)
	token := uuid.New().String()

	for i := 0; i < lockRetries; i++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", name, errs.ErrStoreUnavailable)
		}
		if ok {
			return func() {
				// A failed release is covered by the TTL.
				_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w", name, ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}

	return nil, fmt.Errorf("lock %s is busy: %w", name, errs.ErrStoreUnavailable)
}
