package backing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyspace = "lock:"

const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLockLua = redis.NewScript(releaseLockScript)

// Lock is a best-effort cross-process mutex over the backing store,
// implemented as SET NX with a fenced release. It mitigates, but does not
// eliminate, cross-instance races: a holder that outlives the TTL loses
// the lock without noticing.
type Lock struct {
	store *Store
	name  string
	ttl   time.Duration
}

// NewLock creates a lock named name with the given holder TTL.
func NewLock(store *Store, name string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Lock{store: store, name: name, ttl: ttl}
}

// TryAcquire attempts to take the lock once. On success it returns an
// opaque holder token for [Lock.Release].
func (l *Lock) TryAcquire(ctx context.Context) (token string, acquired bool, err error) {
	client, err := l.store.conn(ctx)
	if err != nil {
		return "", false, err
	}

	token = uuid.NewString()
	ok, err := client.SetNX(ctx, l.store.key(lockKeyspace+l.name), token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock if this holder still owns it. Releasing a lock
// that expired or was taken over is not an error.
func (l *Lock) Release(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("empty lock token")
	}

	client, err := l.store.conn(ctx)
	if err != nil {
		return err
	}

	if err := releaseLockLua.Run(ctx, client, []string{l.store.key(lockKeyspace + l.name)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
