/**
 * @description
 * In-memory storage for signup sessions. Sessions are ephemeral by design —
 * the marketplace backend is the system of record — so there is no database
 * behind this layer, only a guarded map with per-session locks and a periodic
 * expiry sweep driven by the scheduler.
 */
package store

import (
	"context"
	"sync"
	"time"

	"github.com/stagedoor/onboarding-service/internal/domain"
)

// SessionStore defines the storage operations the service needs.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	// Acquire returns the session and a release function. The caller holds an
	// exclusive per-session lock until release is called, which serializes
	// every operation on one signup and closes the double-submit race a plain
	// boolean guard would leave open.
	Acquire(ctx context.Context, id string) (*domain.Session, func(), error)
	Delete(ctx context.Context, id string) error
	// SweepExpired removes sessions not updated since the cutoff and returns
	// the removed sessions so the caller can publish reconciliation events for
	// any with pending payment orders.
	SweepExpired(ctx context.Context, cutoff time.Time) ([]*domain.Session, error)
	// StalePaymentSessionIDs lists sessions sitting in payment_pending whose
	// last activity predates the cutoff.
	StalePaymentSessionIDs(ctx context.Context, cutoff time.Time) ([]string, error)
}

type sessionEntry struct {
	mu      sync.Mutex
	session *domain.Session
}

// MemorySessionStore is the in-memory SessionStore implementation.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewMemorySessionStore creates an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*sessionEntry)}
}

// Create registers a new session.
func (s *MemorySessionStore) Create(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return domain.ErrInvalidState
	}
	s.sessions[session.ID] = &sessionEntry{session: session}
	return nil
}

// Acquire looks up a session and locks it for exclusive use.
func (s *MemorySessionStore) Acquire(ctx context.Context, id string) (*domain.Session, func(), error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}

	entry.mu.Lock()

	// The sweep may have removed the session while we waited on its lock.
	s.mu.RLock()
	_, stillThere := s.sessions[id]
	s.mu.RUnlock()
	if !stillThere {
		entry.mu.Unlock()
		return nil, nil, domain.ErrSessionNotFound
	}

	entry.session.UpdatedAt = time.Now().UTC()
	return entry.session, entry.mu.Unlock, nil
}

// Delete removes a session outright.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// SweepExpired removes sessions whose last activity predates the cutoff.
func (s *MemorySessionStore) SweepExpired(ctx context.Context, cutoff time.Time) ([]*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []*domain.Session
	for id, entry := range s.sessions {
		if entry.session.UpdatedAt.Before(cutoff) {
			removed = append(removed, entry.session)
			delete(s.sessions, id)
		}
	}
	return removed, nil
}

// StalePaymentSessionIDs lists payment_pending sessions older than the cutoff.
func (s *MemorySessionStore) StalePaymentSessionIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, entry := range s.sessions {
		if entry.session.State == domain.StatePaymentPending && entry.session.UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Len reports the number of live sessions. Used by tests and health logging.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
