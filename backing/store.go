package backing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnavailable wraps every transport-level failure. Callers on
	// non-critical paths treat it as a miss.
	ErrUnavailable = errors.New("backing store unavailable")
	// ErrKeyNotFound is returned by [Store.Get] for an absent key.
	ErrKeyNotFound = errors.New("key not found")
	// ErrClosed is returned after [Store.Close].
	ErrClosed = errors.New("backing store closed")
)

const (
	defaultKeyPrefix   = "fb"
	defaultDialTimeout = 5 * time.Second

	scanBatchSize = 1000
)

// Config holds connection parameters for a [Store]. All fields are
// externally configured; zero values select defaults.
type Config struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// Store is a lazily-connected Redis TTL key-value store.
type Store struct {
	config  Config
	connect singleflight.Group

	mu     sync.RWMutex
	client redis.UniversalClient
	closed bool

	warn func(string, ...any)
}

// New creates a [Store]. No connection is opened until the first operation.
func New(cfg Config) *Store {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Store{config: cfg}
}

// NewWithClient creates a [Store] over an existing client. Used by callers
// that manage the connection themselves and by tests.
func NewWithClient(client redis.UniversalClient, cfg Config) *Store {
	s := New(cfg)
	s.client = client
	return s
}

// SetWarn installs a hook for non-fatal diagnostics.
func (s *Store) SetWarn(warn func(string, ...any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warn = warn
}

func (s *Store) key(k string) string {
	return s.config.KeyPrefix + ":" + k
}

// conn returns the shared client, dialing on first use. Concurrent callers
// racing into the dial share one attempt through the single-flight group.
func (s *Store) conn(ctx context.Context) (redis.UniversalClient, error) {
	s.mu.RLock()
	client, closed := s.client, s.closed
	s.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if client != nil {
		return client, nil
	}

	result, err, _ := s.connect.Do("connect", func() (interface{}, error) {
		s.mu.RLock()
		existing, alreadyClosed := s.client, s.closed
		s.mu.RUnlock()
		if alreadyClosed {
			return nil, ErrClosed
		}
		if existing != nil {
			return existing, nil
		}

		fresh := redis.NewClient(&redis.Options{
			Addr:        s.config.Addr,
			Password:    s.config.Password,
			DB:          s.config.DB,
			DialTimeout: s.config.DialTimeout,
		})

		pingCtx, cancel := context.WithTimeout(ctx, s.config.DialTimeout)
		defer cancel()
		if err := fresh.Ping(pingCtx).Err(); err != nil {
			_ = fresh.Close()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		s.mu.Lock()
		s.client = fresh
		s.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(redis.UniversalClient), nil
}

// SetWithTTL stores value under key with the given TTL.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}

	if err := client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the value stored under key, or [ErrKeyNotFound].
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	data, err := client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Touch resets the TTL on key. A missing key is not an error.
func (s *Store) Touch(ctx context.Context, key string, ttl time.Duration) error {
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}

	if err := client.Expire(ctx, s.key(key), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key and reports whether it was present.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return false, err
	}

	removed, err := client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return removed > 0, nil
}

// DeleteByPrefix removes every key under prefix and returns the count.
// This is an O(n) scan and must not be used in request hot paths.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	pattern := s.key(prefix) + "*"
	var (
		cursor uint64
		total  int
	)

	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		if len(keys) > 0 {
			removed, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return total, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			total += int(removed)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return total, nil
}

// Incr bumps a fixed-window counter and returns the new count. The window
// TTL is set only for the first hit in the window.
func (s *Store) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	count, err := client.Incr(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 && window > 0 {
		if err := client.Expire(ctx, s.key(key), window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count, nil
}

// GetInt reads a counter value. Missing keys return zero.
func (s *Store) GetInt(ctx context.Context, key string) (int64, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}

	value, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric counter", ErrUnavailable)
	}
	if value < 0 {
		return 0, nil
	}
	return value, nil
}

// Ping returns a point-in-time availability check and its latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	client, err := s.conn(ctx)
	if err != nil {
		return time.Since(start), err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}

// Close releases the connection. Subsequent operations return [ErrClosed].
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.client != nil {
		err := s.client.Close()
		s.client = nil
		return err
	}
	return nil
}

// IsUnavailable reports whether err is a backing store outage (as opposed
// to a miss or a caller error).
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrClosed)
}

func (s *Store) warnf(format string, args ...any) {
	s.mu.RLock()
	warn := s.warn
	s.mu.RUnlock()
	if warn != nil {
		warn(format, args...)
	}
}
