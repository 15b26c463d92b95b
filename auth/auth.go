// Package auth implements the authentication core of taskdo: password
// hashing, signed session tokens, confirmation-link obfuscation, and the
// orchestration service tying them to user and token storage.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTokenNotFound = errors.New("auth: token not found")
	ErrTokenConflict = errors.New("auth: token already exists for user")
)

// User models the identity record persisted by the user directory.
// Records are created on registration and mutated only by confirmation;
// the core never deletes them.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Confirmed    bool
	ConfirmedAt  *time.Time
	CreatedAt    time.Time
}

// SessionToken is the immutable value issued to authenticated callers.
// The expiry instant is embedded in the signed AccessToken as well, so
// validation never needs the stored copy.
type SessionToken struct {
	ID          string
	UserID      string
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// UserDirectory abstracts user persistence so callers can map to any schema.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	Insert(ctx context.Context, user User) error
	MarkConfirmed(ctx context.Context, email string, at time.Time) (User, error)
}

// TokenStore persists at most one live session token per user.
//
// Create fails with ErrTokenConflict when a row already exists for the
// user; Update overwrites the stored token value in place, keeping the
// row and its id. UpsertIfValid is the transactional read-then-branch
// used by the service: insert when absent, overwrite only while the
// stored value still satisfies stillValid, and leave an invalid stored
// row untouched.
type TokenStore interface {
	Get(ctx context.Context, userID string) (SessionToken, error)
	Create(ctx context.Context, token SessionToken) (SessionToken, error)
	Update(ctx context.Context, tokenID string, token SessionToken) (SessionToken, error)
	UpsertIfValid(ctx context.Context, token SessionToken, stillValid func(raw string) bool) error
}

// PasswordHasher manages one-way password hashing and verification.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(hash, plain string) bool
}

// Notifier delivers out-of-band notifications (email). Delivery is
// best-effort: the service never surfaces notifier failures to callers.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
