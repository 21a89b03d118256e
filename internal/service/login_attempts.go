package service

import (
	"context"
	"sync"
	"time"
)

// LoginAttemptStore counts password attempts per normalized email inside a
// fixed window that starts at the first attempt. RecordAttempt increments
// atomically and returns the new count, so callers reserve an attempt before
// checking the password. A successful check resets the window.
type LoginAttemptStore interface {
	Failures(ctx context.Context, key string) (int, error)
	RecordAttempt(ctx context.Context, key string, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}

type NoopLoginAttemptStore struct{}

func NewNoopLoginAttemptStore() *NoopLoginAttemptStore {
	return &NoopLoginAttemptStore{}
}

func (s *NoopLoginAttemptStore) Failures(context.Context, string) (int, error) {
	return 0, nil
}

func (s *NoopLoginAttemptStore) RecordAttempt(context.Context, string, time.Duration) (int, error) {
	return 0, nil
}

func (s *NoopLoginAttemptStore) Reset(context.Context, string) error {
	return nil
}

type attemptWindow struct {
	count     int
	expiresAt time.Time
}

const attemptSweepInterval = time.Minute

type InMemoryLoginAttemptStore struct {
	clock     Clock
	mu        sync.Mutex
	store     map[string]attemptWindow
	nextSweep time.Time
}

func NewInMemoryLoginAttemptStore(clock Clock) *InMemoryLoginAttemptStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &InMemoryLoginAttemptStore{
		clock: clock,
		store: make(map[string]attemptWindow),
	}
}

func (s *InMemoryLoginAttemptStore) Failures(_ context.Context, key string) (int, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.store[key]
	if !ok {
		return 0, nil
	}
	if !now.Before(w.expiresAt) {
		delete(s.store, key)
		return 0, nil
	}
	return w.count, nil
}

func (s *InMemoryLoginAttemptStore) RecordAttempt(_ context.Context, key string, window time.Duration) (int, error) {
	if window <= 0 {
		return 0, nil
	}
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired(now)
	w, ok := s.store[key]
	if !ok || !now.Before(w.expiresAt) {
		w = attemptWindow{expiresAt: now.Add(window)}
	}
	w.count++
	s.store[key] = w
	return w.count, nil
}

func (s *InMemoryLoginAttemptStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, key)
	return nil
}

// evictExpired drops lapsed windows at most once per sweep interval so keys
// that are never retried do not accumulate. Callers hold s.mu.
func (s *InMemoryLoginAttemptStore) evictExpired(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	for k, w := range s.store {
		if !now.Before(w.expiresAt) {
			delete(s.store, k)
		}
	}
	s.nextSweep = now.Add(attemptSweepInterval)
}
