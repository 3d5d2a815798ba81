// Package mem implements the otherus stores with in-process maps. It
// mirrors the semantics of the Redis backend - atomic email binding,
// single-use expiring state tokens - guarded by one mutex, and is meant
// for tests and single-node development runs. Nothing persists.
package mem

import (
	"context"
	"sync"
	"time"

	"github.com/other-realm/otherus"
)

type stateEntry struct {
	provider string
	expires  time.Time
}

// Store implements UserStore, IdentityStore and StateStore in memory.
type Store struct {
	mu     sync.Mutex
	users  map[string]otherus.User
	emails map[string]string
	states map[string]stateEntry

	// now is swappable so tests can expire state tokens.
	now func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:  map[string]otherus.User{},
		emails: map[string]string{},
		states: map[string]stateEntry{},
		now:    time.Now,
	}
}

// SetClock overrides the store's notion of now. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) CreateUser(_ context.Context, user *otherus.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Store) GetUserByID(_ context.Context, userID string) (*otherus.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, otherus.ErrNotFound
	}
	out := cloneUser(&user)
	return &out, nil
}

func (s *Store) SaveUser(_ context.Context, user *otherus.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return otherus.ErrNotFound
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Store) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return otherus.ErrNotFound
	}
	delete(s.users, userID)
	return nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) ResolveEmail(_ context.Context, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[otherus.NormalizeEmail(email)]
	if !ok {
		return "", otherus.ErrNotFound
	}
	return id, nil
}

func (s *Store) BindEmail(_ context.Context, email, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := otherus.NormalizeEmail(email)
	if _, bound := s.emails[key]; bound {
		return otherus.ErrDuplicateEmail
	}
	s.emails[key] = userID
	return nil
}

func (s *Store) UnbindEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.emails, otherus.NormalizeEmail(email))
	return nil
}

func (s *Store) IssueState(_ context.Context, state, provider string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = stateEntry{provider: provider, expires: s.now().Add(ttl)}
	return nil
}

func (s *Store) ConsumeState(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.states[state]
	if !ok {
		return "", otherus.ErrInvalidState
	}
	delete(s.states, state)
	if s.now().After(entry.expires) {
		return "", otherus.ErrInvalidState
	}
	return entry.provider, nil
}

// cloneUser keeps callers from mutating stored records through shared
// slices.
func cloneUser(u *otherus.User) otherus.User {
	out := *u
	if u.Interests != nil {
		out.Interests = append([]string(nil), u.Interests...)
	}
	return out
}
