package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealInfo = "linkcore/kv/v1"

// ErrSealedValue is returned when a stored value cannot be opened.
var ErrSealedValue = errors.New("storage: sealed value is corrupt or was written with another secret")

// Sealed encrypts values before handing them to the wrapped store. Keys are
// stored in clear so lookups stay cheap; each value is bound to its key as
// associated data.
type Sealed struct {
	inner KV
	key   [chacha20poly1305.KeySize]byte
}

// NewSealed derives an AEAD key from secret and wraps inner.
func NewSealed(inner KV, secret string) (*Sealed, error) {
	if secret == "" {
		return nil, errors.New("storage: sealed store requires a secret")
	}
	s := &Sealed{inner: inner}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return s, nil
}

// Get opens the value stored under key.
func (s *Sealed) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	blob, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", false, ErrSealedValue
	}
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return "", false, err
	}
	if len(blob) < aead.NonceSize() {
		return "", false, ErrSealedValue
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", false, ErrSealedValue
	}
	return string(plain), true, nil
}

// Set seals value and stores it under key.
func (s *Sealed) Set(ctx context.Context, key, value string) error {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	blob := aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(blob))
}

// Delete removes key from the wrapped store.
func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Close closes the wrapped store.
func (s *Sealed) Close() error {
	return s.inner.Close()
}
