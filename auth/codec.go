package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid         = errors.New("auth: invalid session token")
	ErrMissingSigningSecret = errors.New("auth: missing signing secret")
	ErrUnsupportedAlgorithm = errors.New("auth: unsupported signing algorithm")
)

// TokenTypeBearer is the type tag carried by every issued session token.
const TokenTypeBearer = "Bearer"

// Claims is the payload embedded inside a signed session token: the
// owning email plus the registered expiry instant.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenCodec mints and checks signed, expiring session claims. It holds
// no per-token state: validity is purely a function of wall-clock time.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
	alg    string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec builds a codec for the given pre-shared secret, signing
// algorithm (HS256, HS384, HS512), and fixed token TTL.
func NewTokenCodec(secret []byte, algorithm string, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	method := jwt.GetSigningMethod(algorithm)
	switch method {
	case jwt.SigningMethodHS256, jwt.SigningMethodHS384, jwt.SigningMethodHS512:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TokenCodec{
		secret: append([]byte(nil), secret...),
		method: method,
		alg:    algorithm,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// SetNowFunc allows injecting a deterministic clock (useful for tests).
func (c *TokenCodec) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		fn = time.Now
	}
	c.now = fn
}

// TTL returns the fixed lifetime applied to issued tokens.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue embeds email and expiry = now + TTL into a signed token.
func (c *TokenCodec) Issue(email string) (SessionToken, error) {
	now := c.now()
	expires := now.Add(c.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: email,
	}
	raw, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return SessionToken{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return SessionToken{
		AccessToken: raw,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   expires,
	}, nil
}

// Decode verifies signature and structure only; expiry is checked
// separately by Validate so expired tokens still decode. Fails closed
// with ErrTokenInvalid on any structural or cryptographic mismatch.
func (c *TokenCodec) Decode(raw string) (Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{c.alg}), jwt.WithoutClaimsValidation())
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return *claims, nil
}

// Validate returns the claims unchanged while they are still live, or
// nil once the embedded expiry has passed. Expiry equal to now counts
// as expired. An expired token is a normal outcome, not an error.
func (c *TokenCodec) Validate(claims Claims) *Claims {
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(c.now()) {
		return nil
	}
	return &claims
}

// StillValid reports whether a raw token both decodes and has not yet
// expired. Used as the validity predicate for token-store upserts.
func (c *TokenCodec) StillValid(raw string) bool {
	claims, err := c.Decode(raw)
	if err != nil {
		return false
	}
	return c.Validate(claims) != nil
}
