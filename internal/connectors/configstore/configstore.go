package configstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/model"
)

// FrameworkNative is the framework name of connectors that run on the
// built-in connector runtime.
const FrameworkNative = "native"

const keySeparator = "#"

const defaultServerPort = 8759

// Defaults applied when a pooling connector has no explicit pool configuration.
const (
	DefaultPoolMaxObjects                 = 10
	DefaultPoolMinIdle                    = 1
	DefaultPoolMaxIdle                    = 10
	DefaultPoolMaxWaitMillis              = 150_000
	DefaultPoolMinEvictableIdleTimeMillis = 120_000
)

// Property types understood by the connector runtime.
const (
	PropertyString  = "string"
	PropertyStrings = "string[]"
	PropertyInt     = "int"
	PropertyBool    = "bool"
	PropertyFloat   = "float"
	PropertySecret  = "secret"
)

// ConnectorKey is the stable cross-process identity of a connector type.
type ConnectorKey struct {
	Framework     string `json:"framework"`
	BundleName    string `json:"bundle_name"`
	BundleVersion string `json:"bundle_version"`
	ConnectorName string `json:"connector_name"`
}

func (k ConnectorKey) Normalized() ConnectorKey {
	out := k
	out.Framework = strings.TrimSpace(out.Framework)
	if out.Framework == "" {
		out.Framework = FrameworkNative
	}
	out.BundleName = strings.TrimSpace(out.BundleName)
	out.BundleVersion = strings.TrimSpace(out.BundleVersion)
	out.ConnectorName = strings.TrimSpace(out.ConnectorName)
	return out
}

func (k ConnectorKey) Validate() error {
	k = k.Normalized()
	parts := map[string]string{
		"framework":      k.Framework,
		"bundle name":    k.BundleName,
		"bundle version": k.BundleVersion,
		"connector name": k.ConnectorName,
	}
	for _, label := range []string{"framework", "bundle name", "bundle version", "connector name"} {
		v := parts[label]
		if v == "" {
			return fmt.Errorf("connector %s is required", label)
		}
		if strings.Contains(v, keySeparator) {
			return fmt.Errorf("connector %s must not contain %q", label, keySeparator)
		}
	}
	return nil
}

// FullName joins the key parts in a fixed order.
func (k ConnectorKey) FullName() string {
	k = k.Normalized()
	return strings.Join([]string{k.Framework, k.BundleName, k.BundleVersion, k.ConnectorName}, keySeparator)
}

func (k ConnectorKey) String() string { return k.FullName() }

// ParseConnectorKey is the inverse of FullName.
func ParseConnectorKey(fullName string) (ConnectorKey, error) {
	parts := strings.Split(strings.TrimSpace(fullName), keySeparator)
	if len(parts) != 4 {
		return ConnectorKey{}, fmt.Errorf("connector key %q: want 4 parts, got %d", fullName, len(parts))
	}
	key := ConnectorKey{Framework: parts[0], BundleName: parts[1], BundleVersion: parts[2], ConnectorName: parts[3]}
	return key, key.Validate()
}

// ConfigurationProperty is one named, typed configuration value of a
// connector. Values of confidential properties hold model.Secret once the
// configuration has been resolved.
type ConfigurationProperty struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Required     bool   `json:"required,omitempty"`
	Confidential bool   `json:"confidential,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	HelpMessage  string `json:"help_message,omitempty"`
	Group        string `json:"group,omitempty"`
	Order        int    `json:"order,omitempty"`
	Values       []any  `json:"values,omitempty"`
}

// TypedValues coerces JSON-decoded values to the Go type of the property:
// int64, float64, bool, string or model.Secret.
func (p ConfigurationProperty) TypedValues() ([]any, error) {
	out := make([]any, 0, len(p.Values))
	for _, v := range p.Values {
		typed, err := coerceProperty(p.Type, v)
		if err != nil {
			return nil, fmt.Errorf("configuration property %q: %w", p.Name, err)
		}
		out = append(out, typed)
	}
	return out, nil
}

func coerceProperty(kind string, v any) (any, error) {
	switch kind {
	case PropertyInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case float64:
			if x != float64(int64(x)) {
				return nil, fmt.Errorf("value %v is not an integer", x)
			}
			return int64(x), nil
		case json.Number:
			return x.Int64()
		case string:
			return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		}
	case PropertyFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case int:
			return float64(x), nil
		case json.Number:
			return x.Float64()
		case string:
			return strconv.ParseFloat(strings.TrimSpace(x), 64)
		}
	case PropertyBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(x))
		}
	case PropertySecret:
		switch x := v.(type) {
		case model.Secret:
			return x, nil
		case string:
			return model.NewSecret(x), nil
		}
	case PropertyString, PropertyStrings, "":
		switch x := v.(type) {
		case string:
			return x, nil
		case model.Secret:
			return x, nil
		}
	default:
		return nil, fmt.Errorf("unknown property type %q", kind)
	}
	return nil, fmt.Errorf("value of type %T does not fit property type %q", v, kind)
}

// PoolConfiguration bounds the warm sessions kept per connector instance.
type PoolConfiguration struct {
	MaxObjects                 int   `json:"max_objects"`
	MinIdle                    int   `json:"min_idle"`
	MaxIdle                    int   `json:"max_idle"`
	MaxWaitMillis              int64 `json:"max_wait_millis"`
	MinEvictableIdleTimeMillis int64 `json:"min_evictable_idle_time_millis"`
}

func DefaultPoolConfiguration() PoolConfiguration {
	return PoolConfiguration{
		MaxObjects:                 DefaultPoolMaxObjects,
		MinIdle:                    DefaultPoolMinIdle,
		MaxIdle:                    DefaultPoolMaxIdle,
		MaxWaitMillis:              DefaultPoolMaxWaitMillis,
		MinEvictableIdleTimeMillis: DefaultPoolMinEvictableIdleTimeMillis,
	}
}

func (p PoolConfiguration) MaxWait() time.Duration {
	return time.Duration(p.MaxWaitMillis) * time.Millisecond
}

func (p PoolConfiguration) MinEvictableIdleTime() time.Duration {
	return time.Duration(p.MinEvictableIdleTimeMillis) * time.Millisecond
}

func (p PoolConfiguration) Validate() error {
	if p.MaxObjects <= 0 {
		return errors.New("pool max objects must be positive")
	}
	if p.MinIdle < 0 || p.MaxIdle < 0 {
		return errors.New("pool idle bounds must not be negative")
	}
	if p.MinIdle > p.MaxIdle {
		return errors.New("pool min idle must not exceed max idle")
	}
	if p.MaxIdle > p.MaxObjects {
		return errors.New("pool max idle must not exceed max objects")
	}
	if p.MaxWaitMillis < 0 || p.MinEvictableIdleTimeMillis < 0 {
		return errors.New("pool durations must not be negative")
	}
	return nil
}

// ConnectorConfiguration is the per-system configuration handed to a
// connector instance.
type ConnectorConfiguration struct {
	Properties         []ConfigurationProperty `json:"properties"`
	PoolingSupported   bool                    `json:"pooling_supported"`
	PoolConfiguration  *PoolConfiguration      `json:"pool_configuration,omitempty"`
	ProducerBufferSize int                     `json:"producer_buffer_size,omitempty"`
	OperationOptions   map[string]any          `json:"operation_options,omitempty"`
}

// Property returns the named property.
func (c ConnectorConfiguration) Property(name string) (ConfigurationProperty, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return ConfigurationProperty{}, false
}

// EffectivePool returns the pool bounds in use, or false when the connector
// is not pooled.
func (c ConnectorConfiguration) EffectivePool() (PoolConfiguration, bool) {
	if !c.PoolingSupported {
		return PoolConfiguration{}, false
	}
	if c.PoolConfiguration == nil {
		return DefaultPoolConfiguration(), true
	}
	return *c.PoolConfiguration, true
}

func (c ConnectorConfiguration) Validate() error {
	seen := make(map[string]struct{}, len(c.Properties))
	for _, p := range c.Properties {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return errors.New("configuration property name is required")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("configuration property %q is repeated", name)
		}
		seen[name] = struct{}{}
		if p.Required && len(p.Values) == 0 {
			return fmt.Errorf("configuration property %q is required", name)
		}
	}
	if c.ProducerBufferSize < 0 {
		return errors.New("producer buffer size must not be negative")
	}
	if pool, ok := c.EffectivePool(); ok {
		if err := pool.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Resolve replaces the stored ciphertext of confidential property values
// with decrypted model.Secret values.
func (c ConnectorConfiguration) Resolve(decrypt func(string) (string, error)) (ConnectorConfiguration, error) {
	out := c
	out.Properties = make([]ConfigurationProperty, len(c.Properties))
	for i, p := range c.Properties {
		out.Properties[i] = p
		if !p.Confidential || len(p.Values) == 0 {
			continue
		}
		values := make([]any, len(p.Values))
		for j, v := range p.Values {
			switch x := v.(type) {
			case model.Secret:
				values[j] = x
			case string:
				clear, err := decrypt(x)
				if err != nil {
					return ConnectorConfiguration{}, fmt.Errorf("decrypt configuration property %q: %w", p.Name, err)
				}
				values[j] = model.NewSecret(clear)
			default:
				return ConnectorConfiguration{}, fmt.Errorf("configuration property %q: confidential value has type %T", p.Name, v)
			}
		}
		out.Properties[i].Values = values
	}
	return out, nil
}

// Fingerprint identifies the configuration content. Two configurations with
// the same fingerprint may share pooled connector sessions.
func (c ConnectorConfiguration) Fingerprint() string {
	h := sha256.New()
	for _, p := range c.Properties {
		fmt.Fprintf(h, "p:%s:%s:%d\n", p.Name, p.Type, len(p.Values))
		for _, v := range p.Values {
			if s, ok := v.(model.Secret); ok {
				fmt.Fprintf(h, "s:%s\n", s.Reveal())
				continue
			}
			fmt.Fprintf(h, "v:%T:%v\n", v, v)
		}
	}
	if pool, ok := c.EffectivePool(); ok {
		fmt.Fprintf(h, "pool:%+v\n", pool)
	}
	fmt.Fprintf(h, "buffer:%d\n", c.ProducerBufferSize)
	keys := make([]string, 0, len(c.OperationOptions))
	for k := range c.OperationOptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "opt:%s:%v\n", k, c.OperationOptions[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ConnectorServerDescriptor locates a remote connector host.
type ConnectorServerDescriptor struct {
	Host           string
	Port           int
	UseSSL         bool
	TimeoutSeconds int
	Password       model.Secret
}

// Normalized trims the host and fills an unset port. TimeoutSeconds is kept
// as stored: zero is a distinct "no limit" setting.
func (d ConnectorServerDescriptor) Normalized() ConnectorServerDescriptor {
	out := d
	out.Host = strings.TrimSpace(out.Host)
	if out.Port == 0 {
		out.Port = defaultServerPort
	}
	return out
}

func (d ConnectorServerDescriptor) Validate() error {
	d = d.Normalized()
	if d.Host == "" {
		return errors.New("connector server host is required")
	}
	if d.Port < 1 || d.Port > 65535 {
		return errors.New("connector server port is invalid")
	}
	if d.TimeoutSeconds < 0 {
		return errors.New("connector server timeout must not be negative")
	}
	return nil
}

// Timeout is zero when calls to the host are not time limited.
func (d ConnectorServerDescriptor) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// BaseURL is the HTTP base of the connector host.
func (d ConnectorServerDescriptor) BaseURL() string {
	scheme := "http"
	if d.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// SameEndpoint compares host, port, TLS flag and timeout.
func (d ConnectorServerDescriptor) SameEndpoint(o ConnectorServerDescriptor) bool {
	return d.Host == o.Host && d.Port == o.Port && d.UseSSL == o.UseSSL && d.TimeoutSeconds == o.TimeoutSeconds
}

// ConnectorInstance scopes a connector type to in-process execution (Server
// nil) or to one remote connector host.
type ConnectorInstance struct {
	Key    ConnectorKey
	Server *ConnectorServerDescriptor
}

func (i ConnectorInstance) IsRemote() bool { return i.Server != nil }

// ServerConfig is the persisted shape of a connector server. Password holds
// ciphertext.
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseSSL         bool   `json:"use_ssl"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Password       string `json:"password,omitempty"`
}

func (c ServerConfig) Normalized() ServerConfig {
	out := c
	out.Host = strings.TrimSpace(out.Host)
	return out
}

// Descriptor decrypts the stored password into a server descriptor. When
// decryption fails the descriptor is still returned, without a password,
// together with the error. An empty stored password yields no password.
func (c ServerConfig) Descriptor(decrypt func(string) (string, error)) (ConnectorServerDescriptor, error) {
	c = c.Normalized()
	d := ConnectorServerDescriptor{
		Host:           c.Host,
		Port:           c.Port,
		UseSSL:         c.UseSSL,
		TimeoutSeconds: c.TimeoutSeconds,
	}
	if c.Password == "" {
		return d.Normalized(), nil
	}
	if decrypt == nil {
		return d.Normalized(), errors.New("no decrypter for connector server password")
	}
	clear, err := decrypt(c.Password)
	if err != nil {
		return d.Normalized(), err
	}
	d.Password = model.NewSecret(clear)
	return d.Normalized(), nil
}

// SystemConfig is the connector section stored with a resource system.
// ConnectorServer is the legacy inline server shape; systems written after
// consolidation reference a standalone server through RemoteServerID.
type SystemConfig struct {
	ConnectorKey       ConnectorKey           `json:"connector_key"`
	Configuration      ConnectorConfiguration `json:"configuration"`
	ObjectClasses      []string               `json:"object_classes,omitempty"`
	InitializeToLatest bool                   `json:"initialize_to_latest,omitempty"`
	RemoteServerID     string                 `json:"remote_server_id,omitempty"`
	ConnectorServer    *ServerConfig          `json:"connector_server,omitempty"`
}

func (c SystemConfig) Normalized() SystemConfig {
	out := c
	out.ConnectorKey = out.ConnectorKey.Normalized()
	out.RemoteServerID = strings.TrimSpace(out.RemoteServerID)
	classes := make([]string, 0, len(out.ObjectClasses))
	for _, oc := range out.ObjectClasses {
		if oc = strings.TrimSpace(oc); oc != "" {
			classes = append(classes, oc)
		}
	}
	out.ObjectClasses = classes
	if out.ConnectorServer != nil {
		server := out.ConnectorServer.Normalized()
		out.ConnectorServer = &server
	}
	return out
}

func (c SystemConfig) Validate() error {
	c = c.Normalized()
	if err := c.ConnectorKey.Validate(); err != nil {
		return err
	}
	return c.Configuration.Validate()
}

// HasInlineServer reports whether the legacy inline server is present with a
// non-blank host.
func (c SystemConfig) HasInlineServer() bool {
	return c.ConnectorServer != nil && strings.TrimSpace(c.ConnectorServer.Host) != ""
}

func DecodeSystemConfig(raw []byte) (SystemConfig, error) {
	var cfg SystemConfig
	return cfg, decodeJSON(raw, &cfg)
}

func EncodeConfig(v any) ([]byte, error) {
	return json.Marshal(v)
}

// RewireRemoteServer points a stored system configuration at a standalone
// remote server and drops the inline server. Fields it does not know about
// are kept.
func RewireRemoteServer(raw []byte, remoteServerID string) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if err := decodeJSON(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	id, err := json.Marshal(strings.TrimSpace(remoteServerID))
	if err != nil {
		return nil, err
	}
	fields["remote_server_id"] = id
	delete(fields, "connector_server")
	return json.Marshal(fields)
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
