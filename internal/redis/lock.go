package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("slot lock not acquired")

const slotKeyPrefix = "clinic:slot-lock"

// Locker serializes bookings of one date and time across api-server replicas.
type Locker interface {
	WithSlotLock(ctx context.Context, slot string, fn func(ctx context.Context) error) error
}

// SlotKey is the lock key for one bookable date and time.
func SlotKey(date, hhmm string) string {
	return fmt.Sprintf("%s:%s:%s", slotKeyPrefix, date, hhmm)
}

type slotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker returns a Locker backed by SET NX PX leases. fn runs
// with a deadline equal to the lease ttl.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &slotLocker{client: client, ttl: ttl}
}

// lease is one successful acquisition, identified by a random token so only
// the holder can release it.
type lease struct {
	key   string
	token string
}

func (l *slotLocker) WithSlotLock(ctx context.Context, slot string, fn func(ctx context.Context) error) error {
	held, err := l.acquire(ctx, slot)
	if err != nil {
		return err
	}
	defer l.release(context.WithoutCancel(ctx), held)

	fnCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(fnCtx)
}

func (l *slotLocker) acquire(ctx context.Context, key string) (lease, error) {
	held := lease{key: key, token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, key, held.token, l.ttl).Result()
	switch {
	case err != nil:
		return lease{}, fmt.Errorf("acquire %s: %w", key, err)
	case !ok:
		return lease{}, ErrLockNotAcquired
	}
	return held, nil
}

// compare-and-delete
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// release drops the lease if it is still ours. A lease that already expired
// is left to whoever holds the key now.
func (l *slotLocker) release(ctx context.Context, held lease) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{held.key}, held.token).Int()
	return err == nil && n == 1
}
