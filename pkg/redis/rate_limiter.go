package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/listening-room-system/pkg/errs"
)

const rateKeyFmt = "room:%s:chat:rate:%s"

// allowScript advances the counter and stamps the window expiry in one atomic
// step. The expiry is set when the counter is created and repaired if an
// earlier failure left the key without one; it is never refreshed by later
// messages, so the window does not slide.
var allowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 or redis.call('TTL', KEYS[1]) < 0 then
		redis.call('EXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

// RateLimiter implements the per-(room,user) message window: a counter that
// expires after the window length, recreated on the next message.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow records one send attempt and reports whether it is within the window
// threshold. Attempts past the threshold keep counting but are rejected until
// the window key expires.
func (r *RateLimiter) Allow(ctx context.Context, roomID, userID string) (bool, error) {
	key := fmt.Sprintf(rateKeyFmt, roomID, userID)

	count, err := allowScript.Run(ctx, r.client, []string{key}, int(r.window.Seconds())).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to advance rate window: %w", errs.ErrStoreUnavailable)
	}
	return count <= int64(r.limit), nil
}
