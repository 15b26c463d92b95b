package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordEmpty   = errors.New("auth: password must not be empty")
	ErrPasswordTooLong = errors.New("auth: password too long")
)

// DefaultBcryptCost is the cost factor used when no option overrides it.
const DefaultBcryptCost = 12

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost   int
	pepper []byte
}

// BcryptHasherOption configures BcryptHasher.
type BcryptHasherOption func(*BcryptHasher)

// WithBcryptCost sets the bcrypt cost factor.
func WithBcryptCost(cost int) BcryptHasherOption {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithBcryptPepper sets a server-side secret combined with every password.
func WithBcryptPepper(pepper []byte) BcryptHasherOption {
	return func(h *BcryptHasher) {
		h.pepper = append([]byte(nil), pepper...)
	}
}

// NewBcryptHasher creates a bcrypt-based password hasher.
func NewBcryptHasher(opts ...BcryptHasherOption) *BcryptHasher {
	h := &BcryptHasher{cost: DefaultBcryptCost}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Hash generates a salted bcrypt digest for the given password.
func (h *BcryptHasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := contextError(ctx); err != nil {
		return "", err
	}
	if plain == "" {
		return "", ErrPasswordEmpty
	}

	combined := h.combineWithPepper(plain)
	defer clearBytes(combined)

	// bcrypt rejects inputs beyond 72 bytes rather than truncating.
	if len(combined) > 72 {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword(combined, h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: bcrypt hash failed: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plain matches the stored hash. It never returns
// an error: malformed or foreign hashes simply verify false.
func (h *BcryptHasher) Verify(hash, plain string) bool {
	if hash == "" || plain == "" {
		return false
	}
	combined := h.combineWithPepper(plain)
	defer clearBytes(combined)
	return bcrypt.CompareHashAndPassword([]byte(hash), combined) == nil
}

func (h *BcryptHasher) combineWithPepper(plain string) []byte {
	if len(h.pepper) == 0 {
		return []byte(plain)
	}
	combined := make([]byte, 0, len(plain)+len(h.pepper))
	combined = append(combined, plain...)
	combined = append(combined, h.pepper...)
	return combined
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
