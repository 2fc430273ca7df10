// Package secrets encrypts values stored in the database, such as remote
// server passwords and confidential connector properties.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ModeLocal = "local"
	ModeVault = "vault"
)

// Cipher encrypts and decrypts stored values. Ciphertexts are self
// describing strings safe to keep in text columns.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

type Options struct {
	Mode     string
	LocalKey string
	Vault    VaultOptions
}

// New builds the cipher selected by opts.Mode.
func New(opts Options) (Cipher, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case ModeLocal, "":
		return NewLocal(opts.LocalKey)
	case ModeVault:
		return NewVaultTransit(opts.Vault)
	default:
		return nil, fmt.Errorf("secrets mode %q is invalid", opts.Mode)
	}
}

// DecryptFunc binds c to ctx for callers that take a plain decrypt func.
func DecryptFunc(ctx context.Context, c Cipher) func(string) (string, error) {
	return func(ciphertext string) (string, error) {
		return c.Decrypt(ctx, ciphertext)
	}
}

// ErrMalformedCiphertext is returned for values this cipher did not produce.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")
