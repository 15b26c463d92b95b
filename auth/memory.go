package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryTokenStore is an in-process TokenStore keeping at most one row
// per user. Intended for tests and single-node development setups.
type MemoryTokenStore struct {
	mu     sync.Mutex
	byUser map[string]SessionToken
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{byUser: make(map[string]SessionToken)}
}

func (s *MemoryTokenStore) Get(ctx context.Context, userID string) (SessionToken, error) {
	if err := contextError(ctx); err != nil {
		return SessionToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.byUser[userID]
	if !ok {
		return SessionToken{}, ErrTokenNotFound
	}
	return token, nil
}

func (s *MemoryTokenStore) Create(ctx context.Context, token SessionToken) (SessionToken, error) {
	if err := contextError(ctx); err != nil {
		return SessionToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(token)
}

func (s *MemoryTokenStore) createLocked(token SessionToken) (SessionToken, error) {
	if _, ok := s.byUser[token.UserID]; ok {
		return SessionToken{}, ErrTokenConflict
	}
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	s.byUser[token.UserID] = token
	return token, nil
}

func (s *MemoryTokenStore) Update(ctx context.Context, tokenID string, token SessionToken) (SessionToken, error) {
	if err := contextError(ctx); err != nil {
		return SessionToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, existing := range s.byUser {
		if existing.ID == tokenID {
			existing.AccessToken = token.AccessToken
			existing.TokenType = token.TokenType
			existing.ExpiresAt = token.ExpiresAt
			s.byUser[userID] = existing
			return existing, nil
		}
	}
	return SessionToken{}, ErrTokenNotFound
}

// UpsertIfValid inserts when no row exists for the user, overwrites the
// stored value in place while stillValid holds for it, and otherwise
// leaves the stored row unchanged.
func (s *MemoryTokenStore) UpsertIfValid(ctx context.Context, token SessionToken, stillValid func(string) bool) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byUser[token.UserID]
	if !ok {
		_, err := s.createLocked(token)
		return err
	}
	if stillValid != nil && !stillValid(existing.AccessToken) {
		return nil
	}
	existing.AccessToken = token.AccessToken
	existing.TokenType = token.TokenType
	existing.ExpiresAt = token.ExpiresAt
	s.byUser[token.UserID] = existing
	return nil
}

// Len reports the number of stored token rows.
func (s *MemoryTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}

// MemoryDirectory is an in-process UserDirectory keyed by email
// (case-sensitive, matching stored-form semantics).
type MemoryDirectory struct {
	mu      sync.Mutex
	byEmail map[string]User
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{byEmail: make(map[string]User)}
}

func (d *MemoryDirectory) FindByEmail(ctx context.Context, email string) (User, error) {
	if err := contextError(ctx); err != nil {
		return User{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.byEmail[email]
	if !ok {
		return User{}, ErrNoSuchUser
	}
	return user, nil
}

func (d *MemoryDirectory) Insert(ctx context.Context, user User) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byEmail[user.Email]; ok {
		return ErrAlreadyRegistered
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	d.byEmail[user.Email] = user
	return nil
}

func (d *MemoryDirectory) MarkConfirmed(ctx context.Context, email string, at time.Time) (User, error) {
	if err := contextError(ctx); err != nil {
		return User{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.byEmail[email]
	if !ok {
		return User{}, ErrNoSuchUser
	}
	user.Confirmed = true
	user.ConfirmedAt = &at
	d.byEmail[email] = user
	return user, nil
}

// ListConfirmed returns every confirmed user, for reminder-style reads.
func (d *MemoryDirectory) ListConfirmed(ctx context.Context) ([]User, error) {
	if err := contextError(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []User
	for _, user := range d.byEmail {
		if user.Confirmed {
			out = append(out, user)
		}
	}
	return out, nil
}
