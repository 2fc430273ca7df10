package configstore

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/open-sspm/open-idm/internal/connectors/model"
)

func TestConnectorKeyFullNameRoundTrip(t *testing.T) {
	t.Parallel()

	key := ConnectorKey{BundleName: " net.example.ldap ", BundleVersion: "1.5.0", ConnectorName: "LdapConnector"}
	full := key.FullName()
	if full != "native#net.example.ldap#1.5.0#LdapConnector" {
		t.Fatalf("FullName() = %q", full)
	}
	parsed, err := ParseConnectorKey(full)
	if err != nil {
		t.Fatalf("ParseConnectorKey() error = %v", err)
	}
	if parsed != key.Normalized() {
		t.Fatalf("ParseConnectorKey() = %+v, want %+v", parsed, key.Normalized())
	}
}

func TestConnectorKeyValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     ConnectorKey
		wantErr bool
	}{
		{name: "valid", key: ConnectorKey{BundleName: "b", BundleVersion: "1", ConnectorName: "c"}},
		{name: "missing version", key: ConnectorKey{BundleName: "b", ConnectorName: "c"}, wantErr: true},
		{name: "separator in name", key: ConnectorKey{BundleName: "b#x", BundleVersion: "1", ConnectorName: "c"}, wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			err := test.key.Validate()
			if test.wantErr && err == nil {
				t.Fatalf("Validate() error = nil, want error")
			}
			if !test.wantErr && err != nil {
				t.Fatalf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestPoolConfigurationValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pool    PoolConfiguration
		wantErr bool
	}{
		{name: "defaults", pool: DefaultPoolConfiguration()},
		{name: "zero max", pool: PoolConfiguration{}, wantErr: true},
		{name: "min idle above max idle", pool: PoolConfiguration{MaxObjects: 5, MinIdle: 3, MaxIdle: 2}, wantErr: true},
		{name: "max idle above max objects", pool: PoolConfiguration{MaxObjects: 2, MaxIdle: 3}, wantErr: true},
		{name: "negative wait", pool: PoolConfiguration{MaxObjects: 1, MaxWaitMillis: -1}, wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			err := test.pool.Validate()
			if test.wantErr && err == nil {
				t.Fatalf("Validate() error = nil, want error")
			}
			if !test.wantErr && err != nil {
				t.Fatalf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestEffectivePoolDefaults(t *testing.T) {
	t.Parallel()

	if _, ok := (ConnectorConfiguration{}).EffectivePool(); ok {
		t.Fatalf("EffectivePool() ok = true for non-pooling configuration")
	}
	pool, ok := ConnectorConfiguration{PoolingSupported: true}.EffectivePool()
	if !ok || pool != DefaultPoolConfiguration() {
		t.Fatalf("EffectivePool() = %+v, %v, want defaults", pool, ok)
	}
}

func TestResolveDecryptsConfidentialValues(t *testing.T) {
	t.Parallel()

	cfg := ConnectorConfiguration{Properties: []ConfigurationProperty{
		{Name: "host", Type: PropertyString, Values: []any{"ldap.example.com"}},
		{Name: "password", Type: PropertySecret, Confidential: true, Values: []any{"enc:pw"}},
	}}
	resolved, err := cfg.Resolve(func(s string) (string, error) {
		return strings.TrimPrefix(s, "enc:"), nil
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	p, _ := resolved.Property("password")
	secret, ok := p.Values[0].(model.Secret)
	if !ok || secret.Reveal() != "pw" {
		t.Fatalf("password value = %#v, want secret pw", p.Values[0])
	}
	if orig, _ := cfg.Property("password"); orig.Values[0] != "enc:pw" {
		t.Fatalf("Resolve() mutated the input configuration")
	}

	_, err = cfg.Resolve(func(string) (string, error) { return "", errors.New("bad key") })
	if err == nil {
		t.Fatalf("Resolve() error = nil, want decrypt error")
	}
}

func TestFingerprintSeesSecretValues(t *testing.T) {
	t.Parallel()

	a := ConnectorConfiguration{Properties: []ConfigurationProperty{{Name: "pw", Values: []any{model.NewSecret("a")}}}}
	b := ConnectorConfiguration{Properties: []ConfigurationProperty{{Name: "pw", Values: []any{model.NewSecret("b")}}}}
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("Fingerprint() equal for different secrets")
	}
	if a.Fingerprint() != a.Fingerprint() {
		t.Fatalf("Fingerprint() not deterministic")
	}
}

func TestTypedValuesCoercesJSONNumbers(t *testing.T) {
	t.Parallel()

	var p ConfigurationProperty
	if err := json.Unmarshal([]byte(`{"name":"port","type":"int","values":[389]}`), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	values, err := p.TypedValues()
	if err != nil {
		t.Fatalf("TypedValues() error = %v", err)
	}
	if values[0] != int64(389) {
		t.Fatalf("TypedValues() = %#v, want int64 389", values)
	}

	p = ConfigurationProperty{Name: "port", Type: PropertyInt, Values: []any{1.5}}
	if _, err := p.TypedValues(); err == nil {
		t.Fatalf("TypedValues() error = nil for fractional int")
	}
}

func TestRewireRemoteServerKeepsUnknownFields(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"connector_key":{"bundle_name":"b"},"custom":{"x":1},"connector_server":{"host":"h"}}`)
	out, err := RewireRemoteServer(raw, "srv-1")
	if err != nil {
		t.Fatalf("RewireRemoteServer() error = %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := fields["connector_server"]; ok {
		t.Fatalf("connector_server still present: %s", out)
	}
	if string(fields["custom"]) != `{"x":1}` {
		t.Fatalf("custom = %s, want {\"x\":1}", fields["custom"])
	}
	cfg, err := DecodeSystemConfig(out)
	if err != nil {
		t.Fatalf("DecodeSystemConfig() error = %v", err)
	}
	if cfg.RemoteServerID != "srv-1" || cfg.HasInlineServer() {
		t.Fatalf("decoded = %+v, want remote_server_id srv-1 and no inline server", cfg)
	}
}

func TestServerDescriptorBaseURL(t *testing.T) {
	t.Parallel()

	d := ConnectorServerDescriptor{Host: "connectors.internal", UseSSL: true}.Normalized()
	if got := d.BaseURL(); got != "https://connectors.internal:8759" {
		t.Fatalf("BaseURL() = %q", got)
	}
	if d.Timeout() != 0 {
		t.Fatalf("Timeout() = %v, want 0 (no limit)", d.Timeout())
	}
	if timed := (ConnectorServerDescriptor{Host: "connectors.internal", TimeoutSeconds: 30}).Normalized(); timed.Timeout().Seconds() != 30 {
		t.Fatalf("Timeout() = %v, want 30s", timed.Timeout())
	}
}

func TestSameEndpointDistinguishesUnlimitedTimeout(t *testing.T) {
	t.Parallel()

	unlimited := ConnectorServerDescriptor{Host: "localhost", Port: 389}.Normalized()
	timed := ConnectorServerDescriptor{Host: "localhost", Port: 389, TimeoutSeconds: 30}.Normalized()
	if unlimited.SameEndpoint(timed) {
		t.Fatalf("SameEndpoint() = true for timeout 0 and 30, want false")
	}
	if !unlimited.SameEndpoint(ConnectorServerDescriptor{Host: " localhost ", Port: 389}.Normalized()) {
		t.Fatalf("SameEndpoint() = false after host normalization, want true")
	}
}

func TestServerConfigDescriptor(t *testing.T) {
	t.Parallel()

	decrypt := func(s string) (string, error) {
		if s == "garbled" {
			return "", errors.New("bad ciphertext")
		}
		return strings.TrimPrefix(s, "enc:"), nil
	}

	d, err := ServerConfig{Host: " idm ", Port: 389, TimeoutSeconds: 30, Password: "enc:s3cret"}.Descriptor(decrypt)
	if err != nil {
		t.Fatalf("Descriptor() error = %v", err)
	}
	if d.Host != "idm" || d.Port != 389 || d.Password.Reveal() != "s3cret" {
		t.Fatalf("Descriptor() = %+v, want idm:389 with password", d)
	}

	d, err = ServerConfig{Host: "idm", Password: "garbled"}.Descriptor(decrypt)
	if err == nil {
		t.Fatalf("Descriptor() error = nil, want decrypt error")
	}
	if d.Host != "idm" || d.Password.IsSet() {
		t.Fatalf("Descriptor() = %+v, want host without password", d)
	}
	if d.Port != defaultServerPort {
		t.Fatalf("Descriptor().Port = %d, want %d", d.Port, defaultServerPort)
	}
}
