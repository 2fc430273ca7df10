package framework

import (
	"fmt"
	"strings"
	"time"
)

// ConnectorKey identifies a connector type inside a bundle.
type ConnectorKey struct {
	BundleName    string
	BundleVersion string
	ConnectorName string
}

// FullName is the key as used on the wire and in registries.
func (k ConnectorKey) FullName() string {
	return strings.Join([]string{k.BundleName, k.BundleVersion, k.ConnectorName}, "#")
}

func (k ConnectorKey) String() string { return k.FullName() }

// ParseConnectorKey is the inverse of FullName.
func ParseConnectorKey(fullName string) (ConnectorKey, error) {
	parts := strings.Split(fullName, "#")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ConnectorKey{}, fmt.Errorf("invalid connector key %q", fullName)
	}
	return ConnectorKey{BundleName: parts[0], BundleVersion: parts[1], ConnectorName: parts[2]}, nil
}

// ConfigurationProperty is one configuration value. Confidential values are
// *GuardedString.
type ConfigurationProperty struct {
	Name         string
	Type         string
	Required     bool
	Confidential bool
	DisplayName  string
	HelpMessage  string
	Group        string
	Order        int
	Values       []any
}

// ObjectPoolConfiguration bounds the pooled connector instances of one
// configuration.
type ObjectPoolConfiguration struct {
	MaxObjects           int
	MinIdle              int
	MaxIdle              int
	MaxWait              time.Duration
	MinEvictableIdleTime time.Duration
}

// APIConfiguration is everything a Facade needs besides the connector key.
type APIConfiguration struct {
	Properties                []ConfigurationProperty
	ConnectorPoolingSupported bool
	// PoolConfiguration is nil when the runtime defaults apply.
	PoolConfiguration       *ObjectPoolConfiguration
	ProducerBufferSize      int
	DefaultOperationOptions OperationOptions
}

// Configuration is the view of an APIConfiguration handed to Connector.Init.
type Configuration struct {
	Properties []ConfigurationProperty
}

func (c Configuration) property(name string) (ConfigurationProperty, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return ConfigurationProperty{}, false
}

// String returns the first value of a string property.
func (c Configuration) String(name string) string {
	p, ok := c.property(name)
	if !ok || len(p.Values) == 0 {
		return ""
	}
	s, _ := p.Values[0].(string)
	return s
}

// Strings returns every value of a string property.
func (c Configuration) Strings(name string) []string {
	p, _ := c.property(name)
	out := make([]string, 0, len(p.Values))
	for _, v := range p.Values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Int returns the first value of an integer property.
func (c Configuration) Int(name string) int64 {
	p, ok := c.property(name)
	if !ok || len(p.Values) == 0 {
		return 0
	}
	n, _ := p.Values[0].(int64)
	return n
}

// Bool returns the first value of a boolean property.
func (c Configuration) Bool(name string) bool {
	p, ok := c.property(name)
	if !ok || len(p.Values) == 0 {
		return false
	}
	b, _ := p.Values[0].(bool)
	return b
}

// Guarded returns the first value of a confidential property.
func (c Configuration) Guarded(name string) *GuardedString {
	p, ok := c.property(name)
	if !ok || len(p.Values) == 0 {
		return nil
	}
	g, _ := p.Values[0].(*GuardedString)
	return g
}

// RemoteFrameworkConnectionInfo locates a remote connector host.
type RemoteFrameworkConnectionInfo struct {
	Host    string
	Port    int
	UseSSL  bool
	Timeout time.Duration
	Key     *GuardedString
}

// DefaultObjectPoolConfiguration applies when a pooled connector has no
// explicit pool configuration.
func DefaultObjectPoolConfiguration() ObjectPoolConfiguration {
	return ObjectPoolConfiguration{
		MaxObjects:           10,
		MinIdle:              1,
		MaxIdle:              10,
		MaxWait:              150 * time.Second,
		MinEvictableIdleTime: 120 * time.Second,
	}
}
