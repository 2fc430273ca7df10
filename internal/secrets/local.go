package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const localPrefix = "local:v1:"

// Local encrypts with AES-256-GCM under a key from configuration.
type Local struct {
	aead cipher.AEAD
}

// NewLocal takes the base64 encoding of a 32 byte key.
func NewLocal(keyB64 string) (*Local, error) {
	keyB64 = strings.TrimSpace(keyB64)
	if keyB64 == "" {
		return nil, errors.New("secrets key is required")
	}
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("secrets key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("secrets key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Local{aead: aead}, nil
}

func (l *Local) Encrypt(_ context.Context, plaintext string) (string, error) {
	nonce := make([]byte, l.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := l.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return localPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (l *Local) Decrypt(_ context.Context, ciphertext string) (string, error) {
	encoded, ok := strings.CutPrefix(strings.TrimSpace(ciphertext), localPrefix)
	if !ok {
		return "", ErrMalformedCiphertext
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedCiphertext, err)
	}
	n := l.aead.NonceSize()
	if len(raw) < n {
		return "", ErrMalformedCiphertext
	}
	plain, err := l.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}
