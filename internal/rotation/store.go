package rotation

import (
	"sync"
	"time"
)

// TokenRecord is the mutable per-provider token state. Records are replaced
// whole on every mutation; readers always observe a consistent snapshot of
// the access token and its rotation timestamp.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	RotatedAt    time.Time

	UserToken          string
	UserTokenCreatedAt time.Time
	UserTokenValidity  time.Duration
}

// Store is the in-memory credential table. One record per provider, created
// at startup from the initial refresh token and never deleted while the
// process runs.
type Store struct {
	mu      sync.RWMutex
	records map[string]TokenRecord
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{records: make(map[string]TokenRecord)}
}

// Init seeds a provider's record with its initial refresh token.
func (s *Store) Init(provider, initialRefreshToken string, userTokenValidity time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[provider] = TokenRecord{
		RefreshToken:      initialRefreshToken,
		UserTokenValidity: userTokenValidity,
	}
}

// Get returns a snapshot of the provider's record. The second return value
// is false for unknown providers.
func (s *Store) Get(provider string) (TokenRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[provider]
	return rec, ok
}

// AccessToken returns the provider's current access token, empty until the
// first successful rotation.
func (s *Store) AccessToken(provider string) (string, bool) {
	rec, ok := s.Get(provider)
	if !ok {
		return "", false
	}
	return rec.AccessToken, true
}

// Set replaces the provider's record atomically. Partial updates are never
// visible to readers.
func (s *Store) Set(provider string, rec TokenRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[provider] = rec
}

// Update applies fn to the provider's record under the write lock and stores
// the result as one atomic replacement. Unknown providers are a no-op
// returning false.
func (s *Store) Update(provider string, fn func(*TokenRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[provider]
	if !ok {
		return false
	}
	fn(&rec)
	s.records[provider] = rec
	return true
}

// AgeSinceRotation returns how long ago the provider's token was last
// rotated. A zero RotatedAt (never rotated) reports a very large age so the
// scheduler rotates it on its first tick.
func (s *Store) AgeSinceRotation(provider string) (time.Duration, bool) {
	rec, ok := s.Get(provider)
	if !ok {
		return 0, false
	}
	if rec.RotatedAt.IsZero() {
		return 1<<63 - 1, true
	}
	return time.Since(rec.RotatedAt), true
}

// Providers lists every provider known to the store.
func (s *Store) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	return names
}
