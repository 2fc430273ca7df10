package adapter

import (
	"fmt"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/configstore"
	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/model"
)

// EncodeConnectorKey fails for keys of other frameworks.
func EncodeConnectorKey(k configstore.ConnectorKey) (framework.ConnectorKey, error) {
	k = k.Normalized()
	if k.Framework != configstore.FrameworkNative {
		return framework.ConnectorKey{}, fmt.Errorf("connector %s: framework %q is not supported", k.FullName(), k.Framework)
	}
	return framework.ConnectorKey{BundleName: k.BundleName, BundleVersion: k.BundleVersion, ConnectorName: k.ConnectorName}, nil
}

func DecodeConnectorKey(k framework.ConnectorKey) configstore.ConnectorKey {
	return configstore.ConnectorKey{
		Framework:     configstore.FrameworkNative,
		BundleName:    k.BundleName,
		BundleVersion: k.BundleVersion,
		ConnectorName: k.ConnectorName,
	}
}

// EncodePool returns nil when p is nil.
func EncodePool(p *configstore.PoolConfiguration) *framework.ObjectPoolConfiguration {
	if p == nil {
		return nil
	}
	return &framework.ObjectPoolConfiguration{
		MaxObjects:           p.MaxObjects,
		MinIdle:              p.MinIdle,
		MaxIdle:              p.MaxIdle,
		MaxWait:              p.MaxWait(),
		MinEvictableIdleTime: p.MinEvictableIdleTime(),
	}
}

func DecodePool(p *framework.ObjectPoolConfiguration) *configstore.PoolConfiguration {
	if p == nil {
		return nil
	}
	return &configstore.PoolConfiguration{
		MaxObjects:                 p.MaxObjects,
		MinIdle:                    p.MinIdle,
		MaxIdle:                    p.MaxIdle,
		MaxWaitMillis:              p.MaxWait.Milliseconds(),
		MinEvictableIdleTimeMillis: p.MinEvictableIdleTime.Milliseconds(),
	}
}

func EncodeProperty(p configstore.ConfigurationProperty) (framework.ConfigurationProperty, error) {
	out := framework.ConfigurationProperty{
		Name:         p.Name,
		Type:         p.Type,
		Required:     p.Required,
		Confidential: p.Confidential,
		DisplayName:  p.DisplayName,
		HelpMessage:  p.HelpMessage,
		Group:        p.Group,
		Order:        p.Order,
	}
	values, err := p.TypedValues()
	if err != nil {
		return framework.ConfigurationProperty{}, err
	}
	if p.Values == nil {
		values = nil
	}
	for i, v := range values {
		if s, ok := v.(model.Secret); ok {
			values[i] = framework.NewGuardedString(s.Reveal())
		} else if p.Confidential {
			if str, ok := v.(string); ok {
				values[i] = framework.NewGuardedString(str)
			}
		}
	}
	out.Values = values
	return out, nil
}

// DecodeProperty converts confidential values back to model.Secret. An
// unreadable value is dropped.
func DecodeProperty(p framework.ConfigurationProperty) configstore.ConfigurationProperty {
	out := configstore.ConfigurationProperty{
		Name:         p.Name,
		Type:         p.Type,
		Required:     p.Required,
		Confidential: p.Confidential,
		DisplayName:  p.DisplayName,
		HelpMessage:  p.HelpMessage,
		Group:        p.Group,
		Order:        p.Order,
	}
	if p.Values == nil {
		return out
	}
	out.Values = make([]any, 0, len(p.Values))
	for _, v := range p.Values {
		if g, ok := v.(*framework.GuardedString); ok {
			s, ok := revealSecret(p.Name, g)
			if !ok {
				continue
			}
			out.Values = append(out.Values, s)
			continue
		}
		out.Values = append(out.Values, v)
	}
	return out
}

func EncodeConfiguration(c configstore.ConnectorConfiguration) (framework.APIConfiguration, error) {
	out := framework.APIConfiguration{
		ConnectorPoolingSupported: c.PoolingSupported,
		PoolConfiguration:         EncodePool(c.PoolConfiguration),
		ProducerBufferSize:        c.ProducerBufferSize,
		DefaultOperationOptions:   EncodeOptions(c.OperationOptions),
	}
	if c.Properties != nil {
		out.Properties = make([]framework.ConfigurationProperty, 0, len(c.Properties))
	}
	for _, p := range c.Properties {
		native, err := EncodeProperty(p)
		if err != nil {
			return framework.APIConfiguration{}, err
		}
		out.Properties = append(out.Properties, native)
	}
	return out, nil
}

func DecodeConfiguration(c framework.APIConfiguration) configstore.ConnectorConfiguration {
	out := configstore.ConnectorConfiguration{
		PoolingSupported:   c.ConnectorPoolingSupported,
		PoolConfiguration:  DecodePool(c.PoolConfiguration),
		ProducerBufferSize: c.ProducerBufferSize,
	}
	if c.DefaultOperationOptions != nil {
		out.OperationOptions = make(map[string]any, len(c.DefaultOperationOptions))
		for k, v := range c.DefaultOperationOptions {
			out.OperationOptions[k] = v
		}
	}
	if c.Properties != nil {
		out.Properties = make([]configstore.ConfigurationProperty, 0, len(c.Properties))
	}
	for _, p := range c.Properties {
		out.Properties = append(out.Properties, DecodeProperty(p))
	}
	return out
}

func EncodeServer(d configstore.ConnectorServerDescriptor) framework.RemoteFrameworkConnectionInfo {
	out := framework.RemoteFrameworkConnectionInfo{
		Host:    d.Host,
		Port:    d.Port,
		UseSSL:  d.UseSSL,
		Timeout: time.Duration(d.TimeoutSeconds) * time.Second,
	}
	if d.Password.IsSet() {
		out.Key = framework.NewGuardedString(d.Password.Reveal())
	}
	return out
}

// DecodeServer leaves Password unset when the key cannot be read.
func DecodeServer(info framework.RemoteFrameworkConnectionInfo) configstore.ConnectorServerDescriptor {
	out := configstore.ConnectorServerDescriptor{
		Host:           info.Host,
		Port:           info.Port,
		UseSSL:         info.UseSSL,
		TimeoutSeconds: int(info.Timeout / time.Second),
	}
	if info.Key != nil {
		if s, ok := revealSecret("connector server key", info.Key); ok {
			out.Password = s
		}
	}
	return out
}
