package session

import (
	"context"
	"sync"
	"time"

	"github.com/agentmap/dashboard/internal/domain"
)

// DefaultCleanupInterval is how often expired sessions are swept.
const DefaultCleanupInterval = 10 * time.Minute

// entry represents a single session with expiration
type entry struct {
	State      *domain.DashboardState
	Expiration time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.Expiration)
}

// MemoryStore is a thread-safe in-memory dashboard session store with TTL support
type MemoryStore struct {
	data  map[string]entry
	mutex sync.RWMutex
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryStore creates a new in-memory session store and starts its
// cleanup goroutine. Call Close to stop it.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	store := &MemoryStore{
		data: make(map[string]entry),
		stop: make(chan struct{}),
	}

	go store.cleanupExpired(cleanupInterval)

	return store
}

// Get returns a copy of the stored session state
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.DashboardState, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e, exists := s.data[id]
	if !exists || e.expired(time.Now()) {
		return nil, domain.ErrSessionNotFound
	}

	return e.State.Clone(), nil
}

// Set stores a copy of state with TTL
func (s *MemoryStore) Set(ctx context.Context, id string, state *domain.DashboardState, ttl time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.data[id] = entry{
		State:      state.Clone(),
		Expiration: time.Now().Add(ttl),
	}

	return nil
}

// Update applies fn atomically and refreshes the TTL. fn receives nil for a
// missing or expired session; returning nil deletes the session.
func (s *MemoryStore) Update(ctx context.Context, id string, ttl time.Duration, fn func(*domain.DashboardState) *domain.DashboardState) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var current *domain.DashboardState
	if e, exists := s.data[id]; exists && !e.expired(time.Now()) {
		current = e.State.Clone()
	}

	next := fn(current)
	if next == nil {
		delete(s.data, id)
		return nil
	}

	s.data[id] = entry{
		State:      next.Clone(),
		Expiration: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a session
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.data, id)
	return nil
}

// cleanupExpired removes expired sessions periodically
func (s *MemoryStore) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for id, e := range s.data {
		if e.expired(now) {
			delete(s.data, id)
		}
	}
}

// Size returns the current number of sessions, including expired ones not yet swept
func (s *MemoryStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}
