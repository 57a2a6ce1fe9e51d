// Package secrets provides the symmetric sealing primitives used for all
// durable local state. The key is a per-process session key: generated fresh
// on startup, held in memory only, and discarded on logout. Nothing in this
// package ever writes key material to disk.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// KeySize is the session key length in bytes (AES-256).
const KeySize = 32

// envelopePrefix marks values produced by Seal. Values without it are treated
// as legacy plaintext by callers that support migration.
const envelopePrefix = "v1:"

// SessionKey holds the volatile per-process encryption key.
type SessionKey struct {
	mu  sync.RWMutex
	key []byte
}

// NewSessionKey generates a fresh random session key.
func NewSessionKey() (*SessionKey, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return &SessionKey{key: key}, nil
}

// SessionKeyFromBytes wraps an existing 32-byte key. Used by tests and by the
// store migration sweep, which must seal under the same key it opens with.
func SessionKeyFromBytes(key []byte) (*SessionKey, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid session key length: %d", len(key))
	}
	cp := make([]byte, KeySize)
	copy(cp, key)
	return &SessionKey{key: cp}, nil
}

// Set replaces the key material in place, so holders of the pointer see the
// new key. Used after login, when the key is derived from the password.
func (k *SessionKey) Set(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("invalid session key length: %d", len(key))
	}
	cp := make([]byte, KeySize)
	copy(cp, key)
	k.mu.Lock()
	k.key = cp
	k.mu.Unlock()
	return nil
}

// Bytes returns a copy of the key, or nil after Clear.
func (k *SessionKey) Bytes() []byte {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.key == nil {
		return nil
	}
	cp := make([]byte, len(k.key))
	copy(cp, k.key)
	return cp
}

// Clear zeroes and drops the key. Subsequent Seal/Open calls fail.
func (k *SessionKey) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := range k.key {
		k.key[i] = 0
	}
	k.key = nil
}

// Seal encrypts plain under the session key with AES-256-GCM and a fresh
// nonce, returning "v1:" + base64(nonce‖ciphertext).
func (k *SessionKey) Seal(plain []byte) (string, error) {
	key := k.Bytes()
	if key == nil {
		return "", fmt.Errorf("session key cleared")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, plain, nil)
	return envelopePrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Ciphertext sealed under a different
// session key fails authentication and returns an error, never garbage bytes.
func (k *SessionKey) Open(value string) ([]byte, error) {
	key := k.Bytes()
	if key == nil {
		return nil, fmt.Errorf("session key cleared")
	}
	if !IsSealed(value) {
		return nil, fmt.Errorf("not a sealed value")
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, envelopePrefix))
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed value too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", err)
	}
	return plain, nil
}

// IsSealed reports whether value carries the v1 envelope marker.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, envelopePrefix)
}
