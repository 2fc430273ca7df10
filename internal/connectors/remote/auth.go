package remote

import (
	"errors"
	"strings"

	"github.com/alexedwards/argon2id"
)

// HashKey derives the argon2id hash a connector server stores in place of
// the shared key.
func HashKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("connector server key is empty")
	}
	return argon2id.CreateHash(key, argon2id.DefaultParams)
}
