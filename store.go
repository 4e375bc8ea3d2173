package redirect

import (
	"context"
	"fmt"
	"sync"
)

// SessionStore is the caller-supplied, session-scoped key/value collaborator
// the state and nonce values are bound against. Implementations are expected
// to be scoped to a single end-user session (a cookie-backed web session, a
// CLI's in-process map, etc). Get returns "" for an unset key, not an error.
type SessionStore interface {
	// Get returns the value bound under key, or "" when the key is unset.
	Get(ctx context.Context, key string) (string, error)

	// Set binds value under key.
	Set(ctx context.Context, key string, value string) error

	// Remove clears any value bound under key.
	Remove(ctx context.Context, key string) error
}

// TakerStore is an optional SessionStore extension for stores that can read
// and clear a key in one atomic step. When a SessionStore implements it, the
// StateStore uses Take instead of the Get+Remove pair, closing the TOCTOU
// window for sessions that could ever see concurrent callbacks.
type TakerStore interface {
	// Take returns the value bound under key and clears it, atomically.
	// Returns "" when the key is unset.
	Take(ctx context.Context, key string) (string, error)
}

// Default session keys used by a StateStore. Override them with
// WithStateKey, WithNonceKey and WithUserKey.
const (
	DefaultStateKey = "auth_state"
	DefaultNonceKey = "auth_nonce"
	DefaultUserKey  = "auth_user"
)

// StateStore issues single-use state and nonce values and binds them to a
// caller-supplied SessionStore under configured keys. Values are read-once:
// taking a value clears it, so a replayed callback can never validate twice.
type StateStore struct {
	store    SessionStore
	stateKey string
	nonceKey string
	userKey  string
}

// NewStateStore creates a StateStore backed by the given SessionStore.
// Supported options: WithStateKey, WithNonceKey, WithUserKey.
func NewStateStore(store SessionStore, opt ...Option) (*StateStore, error) {
	const op = "redirect.NewStateStore"
	if store == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrNilParameter)
	}
	opts := getStoreOpts(opt...)
	return &StateStore{
		store:    store,
		stateKey: opts.withStateKey,
		nonceKey: opts.withNonceKey,
		userKey:  opts.withUserKey,
	}, nil
}

// IssueState generates a new state value and binds it to the session.
func (s *StateStore) IssueState(ctx context.Context) (string, error) {
	const op = "StateStore.IssueState"
	return s.issue(ctx, op, s.stateKey)
}

// IssueNonce generates a new nonce value and binds it to the session.
func (s *StateStore) IssueNonce(ctx context.Context) (string, error) {
	const op = "StateStore.IssueNonce"
	return s.issue(ctx, op, s.nonceKey)
}

// TakeState reads and clears the session-bound state. Returns "" when no
// state is bound.
func (s *StateStore) TakeState(ctx context.Context) (string, error) {
	const op = "StateStore.TakeState"
	return s.take(ctx, op, s.stateKey)
}

// TakeNonce reads and clears the session-bound nonce. Returns "" when no
// nonce is bound.
func (s *StateStore) TakeNonce(ctx context.Context) (string, error) {
	const op = "StateStore.TakeNonce"
	return s.take(ctx, op, s.nonceKey)
}

// SetUser persists a resolved user id to the session.
func (s *StateStore) SetUser(ctx context.Context, userID string) error {
	const op = "StateStore.SetUser"
	if userID == "" {
		return fmt.Errorf("%s: user id is empty: %w", op, ErrInvalidParameter)
	}
	if err := s.store.Set(ctx, s.userKey, userID); err != nil {
		return fmt.Errorf("%s: unable to persist user id: %w", op, err)
	}
	return nil
}

func (s *StateStore) issue(ctx context.Context, op string, key string) (string, error) {
	value, err := NewID()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.Set(ctx, key, value); err != nil {
		return "", fmt.Errorf("%s: unable to bind %q to session: %w", op, key, err)
	}
	return value, nil
}

func (s *StateStore) take(ctx context.Context, op string, key string) (string, error) {
	if taker, ok := s.store.(TakerStore); ok {
		value, err := taker.Take(ctx, key)
		if err != nil {
			return "", fmt.Errorf("%s: unable to take %q from session: %w", op, key, err)
		}
		return value, nil
	}
	value, err := s.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%s: unable to read %q from session: %w", op, key, err)
	}
	if value == "" {
		return "", nil
	}
	if err := s.store.Remove(ctx, key); err != nil {
		return "", fmt.Errorf("%s: unable to clear %q from session: %w", op, key, err)
	}
	return value, nil
}

// storeOptions is the set of available options for StateStore functions
type storeOptions struct {
	withStateKey string
	withNonceKey string
	withUserKey  string
}

// storeDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func storeDefaults() storeOptions {
	return storeOptions{
		withStateKey: DefaultStateKey,
		withNonceKey: DefaultNonceKey,
		withUserKey:  DefaultUserKey,
	}
}

// getStoreOpts gets the store defaults and applies the opt overrides passed
// in
func getStoreOpts(opt ...Option) storeOptions {
	opts := storeDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// MemoryStore is an in-memory SessionStore, suitable for CLI flows and
// tests, where one process owns the entire session. It implements TakerStore
// and is safe for concurrent use.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]string{}}
}

// Get implements SessionStore.Get and is concurrently safe.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

// Set implements SessionStore.Set and is concurrently safe.
func (s *MemoryStore) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

// Remove implements SessionStore.Remove and is concurrently safe.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// Take implements TakerStore.Take and is concurrently safe.
func (s *MemoryStore) Take(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value := s.m[key]
	delete(s.m, key)
	return value, nil
}
