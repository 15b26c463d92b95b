package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var codecSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T, ttl time.Duration) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(codecSecret, "HS256", ttl)
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	return codec
}

func TestTokenCodecIssueDecode(t *testing.T) {
	codec := newTestCodec(t, 30*time.Minute)
	issuedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec.SetNowFunc(func() time.Time { return issuedAt })

	token, err := codec.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token.TokenType != TokenTypeBearer {
		t.Fatalf("token type = %q, want %q", token.TokenType, TokenTypeBearer)
	}
	if want := issuedAt.Add(30 * time.Minute); !token.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", token.ExpiresAt, want)
	}

	claims, err := codec.Decode(token.AccessToken)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("claims email = %q", claims.Email)
	}
	if !claims.ExpiresAt.Time.Equal(issuedAt.Add(30 * time.Minute)) {
		t.Fatalf("claims expiry = %v", claims.ExpiresAt.Time)
	}
}

func TestTokenCodecDecodeFailsClosed(t *testing.T) {
	codec := newTestCodec(t, time.Minute)
	token, err := codec.Issue("bob@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	cases := map[string]string{
		"empty":       "",
		"garbage":     "not.a.token",
		"two parts":   "aaaa.bbbb",
		"bad sig":     token.AccessToken[:len(token.AccessToken)-4] + "AAAA",
		"truncated":   token.AccessToken[:len(token.AccessToken)/2],
		"extra chars": token.AccessToken + "zz",
	}
	for name, raw := range cases {
		if _, err := codec.Decode(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("%s: Decode() error = %v, want ErrTokenInvalid", name, err)
		}
	}
}

func TestTokenCodecDecodeForeignSecret(t *testing.T) {
	codec := newTestCodec(t, time.Minute)
	other, err := NewTokenCodec([]byte("another-secret-another-secret-32"), "HS256", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}

	token, err := other.Issue("carol@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := codec.Decode(token.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Decode() error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenCodecValidateBoundary(t *testing.T) {
	codec := newTestCodec(t, 30*time.Minute)
	issuedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := issuedAt
	codec.SetNowFunc(func() time.Time { return now })

	token, err := codec.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := codec.Decode(token.AccessToken)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	tests := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"just issued", issuedAt, true},
		{"one second before expiry", issuedAt.Add(30*time.Minute - time.Second), true},
		{"exactly at expiry", issuedAt.Add(30 * time.Minute), false},
		{"after expiry", issuedAt.Add(31 * time.Minute), false},
	}
	for _, tc := range tests {
		now = tc.at
		got := codec.Validate(claims)
		if tc.valid && got == nil {
			t.Fatalf("%s: Validate() = nil, want claims", tc.name)
		}
		if !tc.valid && got != nil {
			t.Fatalf("%s: Validate() = claims, want nil", tc.name)
		}
		if tc.valid && got.Email != claims.Email {
			t.Fatalf("%s: Validate() changed claims", tc.name)
		}
	}
}

func TestTokenCodecStillValid(t *testing.T) {
	codec := newTestCodec(t, time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec.SetNowFunc(func() time.Time { return now })

	token, err := codec.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if !codec.StillValid(token.AccessToken) {
		t.Fatalf("StillValid() = false for fresh token")
	}

	now = now.Add(2 * time.Minute)
	if codec.StillValid(token.AccessToken) {
		t.Fatalf("StillValid() = true for expired token")
	}
	if codec.StillValid("garbage") {
		t.Fatalf("StillValid() = true for garbage")
	}
}

func TestNewTokenCodecRejectsBadInput(t *testing.T) {
	if _, err := NewTokenCodec(nil, "HS256", time.Minute); !errors.Is(err, ErrMissingSigningSecret) {
		t.Fatalf("empty secret error = %v, want ErrMissingSigningSecret", err)
	}
	for _, alg := range []string{"none", "RS256", "ES256", ""} {
		if _, err := NewTokenCodec(codecSecret, alg, time.Minute); !errors.Is(err, ErrUnsupportedAlgorithm) {
			t.Fatalf("alg %q error = %v, want ErrUnsupportedAlgorithm", alg, err)
		}
	}
}

func TestTokenCodecAlgorithmPinned(t *testing.T) {
	hs256 := newTestCodec(t, time.Minute)
	hs512, err := NewTokenCodec(codecSecret, "HS512", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}

	token, err := hs512.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := hs256.Decode(token.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("cross-algorithm Decode() error = %v, want ErrTokenInvalid", err)
	}
	if !strings.HasPrefix(token.AccessToken, "eyJ") {
		t.Fatalf("unexpected token encoding: %q", token.AccessToken[:10])
	}
}
