package framework

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"
)

const redacted = "[REDACTED]"

// ErrGuardedStringDisposed is returned by Access after Dispose.
var ErrGuardedStringDisposed = errors.New("guarded string disposed")

// GuardedString keeps a secret encrypted in memory. The clear text is only
// reachable inside Access.
type GuardedString struct {
	mu       sync.RWMutex
	enclave  *memguard.Enclave
	empty    bool
	disposed bool
}

// NewGuardedString seals clear. The byte copy handed to memguard is wiped.
func NewGuardedString(clear string) *GuardedString {
	if clear == "" {
		return &GuardedString{empty: true}
	}
	return &GuardedString{enclave: memguard.NewEnclave([]byte(clear))}
}

// Access opens the enclave for the duration of fn. The slice passed to fn is
// wiped when fn returns and must not be retained.
func (g *GuardedString) Access(fn func(clear []byte) error) error {
	if g == nil {
		return ErrGuardedStringDisposed
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.disposed {
		return ErrGuardedStringDisposed
	}
	if g.empty {
		return fn(nil)
	}
	buf, err := g.enclave.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Reveal returns a copy of the clear text.
func (g *GuardedString) Reveal() (string, error) {
	var out string
	err := g.Access(func(clear []byte) error {
		out = string(clear)
		return nil
	})
	return out, err
}

// Dispose drops the enclave. Further Access calls fail.
func (g *GuardedString) Dispose() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enclave = nil
	g.disposed = true
}

// Equal compares the clear texts in constant time. Unreadable values are
// never equal.
func (g *GuardedString) Equal(other *GuardedString) bool {
	equal := false
	err := g.Access(func(a []byte) error {
		return other.Access(func(b []byte) error {
			equal = subtle.ConstantTimeCompare(a, b) == 1
			return nil
		})
	})
	return err == nil && equal
}

func (g *GuardedString) String() string { return redacted }
func (g *GuardedString) GoString() string { return redacted }

func (g *GuardedString) LogValue() slog.Value { return slog.StringValue(redacted) }

func (g *GuardedString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}
