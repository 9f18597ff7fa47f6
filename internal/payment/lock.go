package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SessionLocker serializes first contact with GoPay for a session.
type SessionLocker interface {
	Lock(ctx context.Context, sessionID uuid.UUID) (unlock func(), err error)
}

// sessionLocks hands out one mutex per session. Entries are dropped once
// nobody holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

type sessionLock struct {
	// sem holds one token while the session is locked.
	sem  chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[uuid.UUID]*sessionLock)}
}

// Lock waits for the session until ctx is done.
func (s *sessionLocks) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	l := s.ref(id)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		s.unref(id, l)
		return nil, ctx.Err()
	}

	return func() {
		<-l.sem
		s.unref(id, l)
	}, nil
}

// acquire is Lock without cancellation.
func (s *sessionLocks) acquire(id uuid.UUID) func() {
	unlock, _ := s.Lock(context.Background(), id)
	return unlock
}

func (s *sessionLocks) ref(id uuid.UUID) *sessionLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{sem: make(chan struct{}, 1)}
		s.locks[id] = l
	}
	l.refs++
	return l
}

func (s *sessionLocks) unref(id uuid.UUID, l *sessionLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

func (s *sessionLocks) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
