package model

import (
	"crypto/subtle"
	"log/slog"
)

const redacted = "[REDACTED]"

// Secret holds a confidential string. It never renders its content through
// fmt, slog or encoding/json; use Reveal at the point of use.
type Secret struct {
	value string
	set   bool
}

// NewSecret wraps a clear-text secret.
func NewSecret(value string) Secret {
	return Secret{value: value, set: true}
}

// Reveal returns the clear-text value.
func (s Secret) Reveal() string { return s.value }

// IsSet reports whether a value was provided, including the empty string.
func (s Secret) IsSet() bool { return s.set }

// Equal compares two secrets in constant time.
func (s Secret) Equal(o Secret) bool {
	if s.set != o.set {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.value), []byte(o.value)) == 1
}

func (s Secret) String() string { return redacted }
func (s Secret) GoString() string { return redacted }

func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
