package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func TestLocalRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := NewLocal(testKey)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()
	for _, plain := range []string{"", "s3cret", strings.Repeat("x", 4096)} {
		ct, err := c.Encrypt(ctx, plain)
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if !strings.HasPrefix(ct, localPrefix) {
			t.Fatalf("Encrypt() = %q, want %s prefix", ct, localPrefix)
		}
		got, err := c.Decrypt(ctx, ct)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if got != plain {
			t.Fatalf("Decrypt() = %q, want %q", got, plain)
		}
	}
}

func TestLocalRejectsTamperedAndForeignValues(t *testing.T) {
	t.Parallel()

	c, err := NewLocal(testKey)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()
	ct, err := c.Encrypt(ctx, "s3cret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(ct, localPrefix))
	raw[len(raw)-1] ^= 0xff
	tampered := localPrefix + base64.StdEncoding.EncodeToString(raw)
	if _, err := c.Decrypt(ctx, tampered); err == nil {
		t.Fatalf("Decrypt(tampered) error = nil, want error")
	}
	if _, err := c.Decrypt(ctx, "plain-text"); !errors.Is(err, ErrMalformedCiphertext) {
		t.Fatalf("Decrypt(plain) error = %v, want %v", err, ErrMalformedCiphertext)
	}

	other, err := NewLocal(base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210")))
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	if _, err := other.Decrypt(ctx, ct); err == nil {
		t.Fatalf("Decrypt() with another key error = nil, want error")
	}
}

func TestNewLocalValidatesKey(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"", "not base64!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := NewLocal(key); err == nil {
			t.Fatalf("NewLocal(%q) error = nil, want error", key)
		}
	}
}

func TestNewSelectsMode(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{Mode: "local", LocalKey: testKey}); err != nil {
		t.Fatalf("New(local) error = %v", err)
	}
	if _, err := New(Options{Mode: "kms"}); err == nil {
		t.Fatalf("New(kms) error = nil, want error")
	}
	if _, err := New(Options{Mode: "vault", Vault: VaultOptions{Address: "http://127.0.0.1:8200", Token: "t"}}); err == nil {
		t.Fatalf("New(vault) without transit key error = nil, want error")
	}
}

func TestVaultTransitRoundTrip(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/v1/transit/encrypt/open-idm":
			writeJSON(t, w, map[string]any{"data": map[string]any{"ciphertext": "vault:v1:" + body["plaintext"]}})
		case "/v1/transit/decrypt/open-idm":
			writeJSON(t, w, map[string]any{"data": map[string]any{"plaintext": strings.TrimPrefix(body["ciphertext"], "vault:v1:")}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewVaultTransit(VaultOptions{Address: server.URL, Token: "root", TransitKey: "open-idm"})
	if err != nil {
		t.Fatalf("NewVaultTransit() error = %v", err)
	}
	ctx := context.Background()
	ct, err := c.Encrypt(ctx, "s3cret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !strings.HasPrefix(ct, "vault:v1:") {
		t.Fatalf("Encrypt() = %q, want vault:v1: prefix", ct)
	}
	got, err := DecryptFunc(ctx, c)(ct)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if got != "s3cret" {
		t.Fatalf("Decrypt() = %q, want s3cret", got)
	}
	if _, err := c.Decrypt(ctx, "local:v1:abc"); !errors.Is(err, ErrMalformedCiphertext) {
		t.Fatalf("Decrypt(local) error = %v, want %v", err, ErrMalformedCiphertext)
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, payload map[string]any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}
