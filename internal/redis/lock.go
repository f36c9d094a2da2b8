package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("practitioner lock not acquired")
)

// Locker serializes the check-then-insert section of a booking per
// practitioner and day. Two concurrent bookings for the same practitioner on
// the same date take the same lock; bookings for different practitioners or
// different days never contend.
type Locker interface {
	WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, day time.Time, fn func(ctx context.Context) error) error
}

type redisPractitionerLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPractitionerLocker creates a locker keyed by practitioner and date.
func NewRedisPractitionerLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisPractitionerLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisPractitionerLocker) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, day time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:practitioner:%s:%s", practitionerID.String(), day.Format("2006-01-02"))
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire practitioner lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisPractitionerLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release practitioner lock: %w", err)
	}
	return nil
}
