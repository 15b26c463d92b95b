package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/nacl/secretbox"
)

var (
	ErrLinkInvalid = errors.New("auth: invalid confirmation payload")
	ErrKeyFile     = errors.New("auth: unusable obfuscation key file")
)

const (
	obfuscationKeySize = 32
	obfuscationNonce   = 24
)

// LinkObfuscator is a confidentiality wrapper for session tokens that
// travel inside public URLs. It adds nothing to the integrity already
// provided by the token signature; it only keeps the token opaque in
// logs and browser history.
type LinkObfuscator struct {
	key [obfuscationKeySize]byte
}

// GenerateKey creates a fresh symmetric key and stores it at path.
// Run out-of-band before first use; re-running invalidates every
// previously obfuscated link still in flight.
func GenerateKey(path string) error {
	var key [obfuscationKeySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return fmt.Errorf("auth: generate key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key[:])
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("auth: write key file: %w", err)
	}
	return nil
}

// LoadKey reads the key material written by GenerateKey. A missing or
// malformed key file means no confirmation link can ever be served, so
// callers should treat an error here as fatal at startup.
func LoadKey(path string) (*LinkObfuscator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFile, err)
	}
	raw, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: not base64", ErrKeyFile)
	}
	if len(raw) != obfuscationKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrKeyFile, len(raw), obfuscationKeySize)
	}
	o := &LinkObfuscator{}
	copy(o.key[:], raw)
	return o, nil
}

// NewLinkObfuscator wraps raw key material directly (tests, embedding).
func NewLinkObfuscator(key [obfuscationKeySize]byte) *LinkObfuscator {
	o := &LinkObfuscator{}
	copy(o.key[:], key[:])
	return o
}

// Obfuscate encrypts a token string into a URL-safe opaque blob.
func (o *LinkObfuscator) Obfuscate(token string) (string, error) {
	var nonce [obfuscationNonce]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("auth: obfuscate: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(token), &nonce, &o.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Reveal decrypts a blob produced by Obfuscate. It fails closed with
// ErrLinkInvalid on bad encoding, truncation, tampering, or ciphertext
// sealed under a different key.
func (o *LinkObfuscator) Reveal(blob string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrLinkInvalid
	}
	if len(raw) < obfuscationNonce+secretbox.Overhead {
		return "", ErrLinkInvalid
	}
	var nonce [obfuscationNonce]byte
	copy(nonce[:], raw[:obfuscationNonce])
	plain, ok := secretbox.Open(nil, raw[obfuscationNonce:], &nonce, &o.key)
	if !ok {
		return "", ErrLinkInvalid
	}
	return string(plain), nil
}
