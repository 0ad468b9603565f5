// Package memory keeps view states in process memory with idle expiry.
//
// A state lives as long as its browser keeps making requests. Every Load
// touches it; states idle for longer than the TTL read as missing and are
// swept by a background goroutine until Close is called.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hongminglow/punchclock/internal/storage"
	"github.com/hongminglow/punchclock/internal/view"
)

// Ensure Store satisfies the storage.StateStore interface at compile time.
var _ storage.StateStore = (*Store)(nil)

// Store is an in-memory storage.StateStore.
type Store struct {
	mu     sync.RWMutex
	states map[string]*view.State
	ttl    time.Duration
	now    func() time.Time

	stopCleanup chan struct{}
	closeOnce   sync.Once
}

// New creates a store whose entries expire after ttl of inactivity and starts the
// sweeper that runs every cleanupInterval.
func New(ttl, cleanupInterval time.Duration) *Store {
	s := &Store{
		states:      make(map[string]*view.State),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.evictExpired()
			case <-s.stopCleanup:
				return
			}
		}
	}()

	return s
}

// Load returns the live state for id and marks it active.
func (s *Store) Load(_ context.Context, id string) (*view.State, error) {
	s.mu.RLock()
	st, ok := s.states[id]
	s.mu.RUnlock()

	now := s.now()
	if !ok || s.expired(st, now) {
		return nil, storage.ErrNotFound
	}
	st.Touch(now)
	return st, nil
}

// Save stores st under its id.
func (s *Store) Save(_ context.Context, st *view.State) error {
	st.Touch(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.ID()] = st
	return nil
}

// Delete forgets id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}

// Close stops the sweeper.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.stopCleanup) })
}

func (s *Store) expired(st *view.State, now time.Time) bool {
	return now.Sub(st.LastTouched()) > s.ttl
}

func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, st := range s.states {
		if s.expired(st, now) {
			delete(s.states, id)
		}
	}
}
