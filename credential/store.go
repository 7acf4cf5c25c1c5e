package credential

import (
	"errors"
	"sync"
	"time"

	"github.com/ibraheemosule/flybeth-sub002/token"
)

// ErrIncompletePair is returned by [Store.Set] when either token is missing.
// A pair is replaced wholesale or not at all; no partial state is observable.
var ErrIncompletePair = errors.New("incomplete credential pair")

// Store is the single source of truth for one authenticated context's
// credential pair. All methods are safe for concurrent use.
type Store struct {
	mu            sync.Mutex
	pair          Pair
	issuedAt      int64
	authenticated bool

	storage Storage
	warn    func(string, ...any)
}

// StoreOption customizes a [Store] at construction.
type StoreOption func(*Store)

// WithWarn installs a hook for non-fatal diagnostics (load-time discard of
// dead pairs, wipe failures).
func WithWarn(warn func(string, ...any)) StoreOption {
	return func(s *Store) { s.warn = warn }
}

// NewStore creates a [Store] backed by storage. A nil storage keeps the
// pair in memory only. Any persisted pair whose refresh token has already
// expired is discarded on load: a dead session is never resurrected.
func NewStore(storage Storage, opts ...StoreOption) (*Store, error) {
	s := &Store{storage: storage}
	for _, opt := range opts {
		opt(s)
	}

	if storage == nil {
		return s, nil
	}

	data, err := storage.Load()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return s, nil
	}

	pair, issuedAt, err := Decode(data)
	if err != nil {
		s.warnf("credential: discarding undecodable persisted pair: %v", err)
		if wipeErr := storage.Wipe(); wipeErr != nil {
			return nil, wipeErr
		}
		return s, nil
	}

	if token.TimeUntilExpiry(pair.RefreshToken) == 0 {
		s.warnf("credential: discarding persisted pair with expired refresh token")
		if wipeErr := storage.Wipe(); wipeErr != nil {
			return nil, wipeErr
		}
		return s, nil
	}

	s.pair = pair
	s.issuedAt = issuedAt
	s.authenticated = true
	return s, nil
}

// Get returns the current pair. ok is false when the store is empty.
func (s *Store) Get() (pair Pair, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authenticated {
		return Pair{}, false
	}
	return s.pair, true
}

// Authenticated reports whether a pair is currently held.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Set atomically replaces the pair. The durable write completes before the
// in-memory state changes, so a failed write leaves the previous pair
// intact and observable.
func (s *Store) Set(pair Pair) error {
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return ErrIncompletePair
	}

	issuedAt := time.Now().Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storage != nil {
		data, err := Encode(pair, issuedAt)
		if err != nil {
			return err
		}
		if err := s.storage.Store(data); err != nil {
			return err
		}
	}

	s.pair = pair
	s.issuedAt = issuedAt
	s.authenticated = true
	return nil
}

// Clear removes both tokens and resets the authentication flag. It is
// idempotent. Memory is cleared even when the durable wipe fails; the wipe
// error is still returned so callers can surface it.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pair = Pair{}
	s.issuedAt = 0
	s.authenticated = false

	if s.storage != nil {
		if err := s.storage.Wipe(); err != nil {
			s.warnf("credential: durable wipe failed: %v", err)
			return err
		}
	}
	return nil
}

// IssuedAt returns the unix timestamp recorded when the current pair was
// installed, or 0 when empty.
func (s *Store) IssuedAt() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issuedAt
}

func (s *Store) warnf(format string, args ...any) {
	if s.warn != nil {
		s.warn(format, args...)
	}
}
