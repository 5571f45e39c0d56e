package state

import (
	"context"
	"sync"
	"time"
)

type entry[T any] struct {
	value   T
	touched time.Time
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Memory is an in-memory session store keyed by Telegram user id.
type Memory[T any] struct {
	mu       sync.RWMutex
	sessions map[int64]entry[T]

	locksMu sync.Mutex
	locks   map[int64]*userLock

	now func() time.Time
}

// NewMemory constructs an empty store.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{
		sessions: make(map[int64]entry[T]),
		locks:    make(map[int64]*userLock),
		now:      time.Now,
	}
}

// Get returns the session for a user and whether one exists.
func (m *Memory[T]) Get(userID int64) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[userID]
	return e.value, ok
}

// Set stores the session for a user and refreshes its idle timer.
func (m *Memory[T]) Set(userID int64, value T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = entry[T]{value: value, touched: m.now()}
}

// Clear removes the session and reports whether one existed.
func (m *Memory[T]) Clear(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return ok
}

// InProgress reports whether the user has an active session.
func (m *Memory[T]) InProgress(userID int64) bool {
	_, ok := m.Get(userID)
	return ok
}

// Len returns the number of active sessions.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Lock acquires the per-user lock and returns its release function.
// Calling the release function more than once is a no-op.
func (m *Memory[T]) Lock(userID int64) func() {
	m.locksMu.Lock()
	l := m.locks[userID]
	if l == nil {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			m.locksMu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(m.locks, userID)
			}
			m.locksMu.Unlock()
		})
	}
}

// Expire drops sessions not written for longer than maxIdle and returns the affected user ids.
func (m *Memory[T]) Expire(maxIdle time.Duration) []int64 {
	if maxIdle <= 0 {
		return nil
	}
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []int64
	for id, e := range m.sessions {
		if e.touched.Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
	}
	return expired
}

// RunJanitor calls Expire every interval until ctx is done.
func (m *Memory[T]) RunJanitor(ctx context.Context, interval, maxIdle time.Duration, onExpire func(ids []int64)) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := m.Expire(maxIdle); len(ids) > 0 && onExpire != nil {
				onExpire(ids)
			}
		}
	}
}
