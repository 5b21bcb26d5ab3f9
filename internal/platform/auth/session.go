package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore keeps the server-side session state that outlives a single
// token: claim overrides recorded by a session refresh, revoked token ids and
// per-dentist sign-out cutoffs.
type SessionStore interface {
	// Claims returns the override recorded for the dentist, or nil when none.
	Claims(ctx context.Context, dentistID uuid.UUID) (*AppMetadata, error)
	// SetOnboarded records onboarding_status=true for the dentist for ttl.
	SetOnboarded(ctx context.Context, dentistID uuid.UUID, ttl time.Duration) error
	// Revoke rejects the token id until expiresAt.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeSessions rejects every token of the dentist issued at or before
	// cutoff. The cutoff is kept for ttl.
	RevokeSessions(ctx context.Context, dentistID uuid.UUID, cutoff time.Time, ttl time.Duration) error
	// SessionsRevokedAt returns the dentist's cutoff, zero when none.
	SessionsRevokedAt(ctx context.Context, dentistID uuid.UUID) (time.Time, error)
}

type cutoffEntry struct {
	at        time.Time
	expiresAt time.Time
}

type claimEntry struct {
	meta      AppMetadata
	expiresAt time.Time
}

// MemoryStore is a process-local SessionStore. Expired entries are swept by
// a background goroutine every 5 minutes.
type MemoryStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> token expiry
	claims  map[uuid.UUID]claimEntry
	cutoffs map[uuid.UUID]cutoffEntry
	done    chan struct{}
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		revoked: make(map[string]time.Time),
		claims:  make(map[uuid.UUID]claimEntry),
		cutoffs: make(map[uuid.UUID]cutoffEntry),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go s.cleanupLoop()
	return s
}

func (s *MemoryStore) Claims(_ context.Context, dentistID uuid.UUID) (*AppMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.claims[dentistID]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, nil
	}
	meta := entry.meta
	return &meta, nil
}

func (s *MemoryStore) SetOnboarded(_ context.Context, dentistID uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims[dentistID] = claimEntry{
		meta:      AppMetadata{OnboardingStatus: true},
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked[jti] = expiresAt
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.revoked[jti]
	return ok, nil
}

func (s *MemoryStore) RevokeSessions(_ context.Context, dentistID uuid.UUID, cutoff time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cutoffs[dentistID] = cutoffEntry{at: cutoff, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) SessionsRevokedAt(_ context.Context, dentistID uuid.UUID) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cutoffs[dentistID]
	if !ok || s.now().After(entry.expiresAt) {
		return time.Time{}, nil
	}
	return entry.at, nil
}

// Count returns the number of revoked tokens still tracked.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}

// Close stops the cleanup goroutine. Only the first call has effect.
func (s *MemoryStore) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup drops revocations of tokens past their natural expiry, expired
// claim overrides and expired sign-out cutoffs.
func (s *MemoryStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, jti)
		}
	}
	for id, entry := range s.claims {
		if now.After(entry.expiresAt) {
			delete(s.claims, id)
		}
	}
	for id, entry := range s.cutoffs {
		if now.After(entry.expiresAt) {
			delete(s.cutoffs, id)
		}
	}
}
