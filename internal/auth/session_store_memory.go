package auth

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in process, indexed by token digest and
// by owner so a user can be signed out everywhere without a full scan.
type MemorySessionStore struct {
	mu     sync.Mutex
	byHash map[string]Session
	byUser map[string]map[string]struct{}
}

// NewMemorySessionStore returns an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byHash: make(map[string]Session),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (s *MemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.byHash[session.TokenHash]; ok {
		s.unlinkLocked(previous)
	}
	s.byHash[session.TokenHash] = session
	owned := s.byUser[session.UserID]
	if owned == nil {
		owned = make(map[string]struct{})
		s.byUser[session.UserID] = owned
	}
	owned[session.TokenHash] = struct{}{}
	return nil
}

func (s *MemorySessionStore) Take(_ context.Context, tokenHash string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byHash[tokenHash]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	s.unlinkLocked(session)
	return session, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byHash[tokenHash]
	if !ok {
		return ErrSessionNotFound
	}
	s.unlinkLocked(session)
	return nil
}

func (s *MemorySessionStore) DeleteForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash := range s.byUser[userID] {
		delete(s.byHash, hash)
	}
	delete(s.byUser, userID)
	return nil
}

func (s *MemorySessionStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for _, session := range s.byHash {
		if session.ExpiresAt.Before(before) {
			s.unlinkLocked(session)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

// unlinkLocked removes session from both indexes. Caller holds s.mu.
func (s *MemorySessionStore) unlinkLocked(session Session) {
	delete(s.byHash, session.TokenHash)
	if owned := s.byUser[session.UserID]; owned != nil {
		delete(owned, session.TokenHash)
		if len(owned) == 0 {
			delete(s.byUser, session.UserID)
		}
	}
}

var _ SessionStore = (*MemorySessionStore)(nil)
