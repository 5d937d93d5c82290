package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStoreClosed is returned once Close has been called.
var ErrStoreClosed = errors.New("session store closed")

// entry guards one session. lock is a one-slot semaphore so waiting can honor a context.
type entry struct {
	lock    chan struct{}
	session *Session
	removed bool
}

// Store maps user ids to sessions. Each session is mutated only through a Lease, which
// serializes turns of the same user; different users never block each other.
//
// Lock order: an entry lock may be held while taking mu, never the reverse, except for
// the non-blocking try-lock in SweepExpired.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*entry
	now          func() time.Time
	historyLimit int
	closed       bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithHistoryLimit bounds the turns kept per session.
func WithHistoryLimit(n int) Option {
	return func(s *Store) { s.historyLimit = n }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: map[string]*entry{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Lease is exclusive access to one session until Release.
type Lease struct {
	store    *Store
	userID   string
	entry    *entry
	created  bool
	released bool
}

// GetOrCreate locks the session of userID, creating it on first sight. It blocks while
// another turn of the same user holds the lease, or until ctx is done.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (*Lease, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrStoreClosed
		}
		e, ok := s.entries[userID]
		created := false
		if !ok {
			e = &entry{
				lock:    make(chan struct{}, 1),
				session: newSession(userID, s.now(), s.historyLimit),
			}
			s.entries[userID] = e
			created = true
		}
		s.mu.Unlock()

		select {
		case e.lock <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.removed {
			// Removed while we waited; start over with a fresh session.
			<-e.lock
			continue
		}
		return &Lease{store: s, userID: userID, entry: e, created: created}, nil
	}
}

// Session returns the leased session.
func (l *Lease) Session() *Session {
	return l.entry.session
}

// Created reports whether this lease created the session.
func (l *Lease) Created() bool {
	return l.created
}

// Touch records activity now.
func (l *Lease) Touch() {
	l.entry.session.LastActivity = l.store.now()
}

// Remove deletes the leased session from the store. The lease must still be released.
func (l *Lease) Remove() {
	if l.entry.removed {
		return
	}
	l.entry.removed = true
	l.store.forget(l.userID, l.entry)
}

// Release gives up the lease. It is safe to call more than once.
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	<-l.entry.lock
}

// Remove deletes the session of userID, waiting for an in-flight turn to finish. It reports
// whether a session existed; removing an unknown user is not an error.
func (s *Store) Remove(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-e.lock }()
	if e.removed {
		return false, nil
	}
	e.removed = true
	s.forget(userID, e)
	return true, nil
}

// SweepExpired removes sessions idle for longer than idle. Sessions in the middle of a
// turn are skipped and will be looked at on the next sweep.
func (s *Store) SweepExpired(now time.Time, idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		select {
		case e.lock <- struct{}{}:
		default:
			continue
		}
		if !e.removed && now.Sub(e.session.LastActivity) > idle {
			e.removed = true
			delete(s.entries, id)
			removed++
		}
		<-e.lock
	}
	return removed
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Exists reports whether userID has a live session.
func (s *Store) Exists(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[userID]
	return ok
}

// Close drops every session and rejects new leases.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = map[string]*entry{}
}

func (s *Store) forget(userID string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[userID]; ok && cur == e {
		delete(s.entries, userID)
	}
}
