// Package registry is the catalog of connector bundles available to this
// process, both for local execution and for hosting on a connector server.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
)

// ConnectorRegistry holds registered bundles in registration order.
type ConnectorRegistry struct {
	mu      sync.RWMutex
	bundles map[string]framework.Bundle
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{
		bundles: make(map[string]framework.Bundle),
		order:   make([]string, 0),
	}
}

// Register adds a bundle. Keys must be complete and unique.
func (r *ConnectorRegistry) Register(b framework.Bundle) error {
	k := b.Key
	if strings.TrimSpace(k.BundleName) == "" || strings.TrimSpace(k.BundleVersion) == "" || strings.TrimSpace(k.ConnectorName) == "" {
		return fmt.Errorf("connector key %q is incomplete", k.FullName())
	}
	if b.New == nil {
		return fmt.Errorf("bundle %s has no constructor", k.FullName())
	}
	name := k.FullName()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bundles[name]; exists {
		return fmt.Errorf("connector %s already registered", name)
	}
	r.bundles[name] = b
	r.order = append(r.order, name)
	return nil
}

// Get looks a bundle up by key.
func (r *ConnectorRegistry) Get(key framework.ConnectorKey) (framework.Bundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bundles[key.FullName()]
	return b, ok
}

// All returns every bundle in registration order.
func (r *ConnectorRegistry) All() []framework.Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]framework.Bundle, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.bundles[name])
	}
	return out
}

// Restrict returns a registry holding only the bundles whose full names are
// listed. Unknown names are an error.
func (r *ConnectorRegistry) Restrict(fullNames []string) (*ConnectorRegistry, error) {
	out := NewRegistry()
	for _, name := range fullNames {
		key, err := framework.ParseConnectorKey(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		b, ok := r.Get(key)
		if !ok {
			return nil, fmt.Errorf("connector %s is not registered", name)
		}
		if err := out.Register(b); err != nil {
			return nil, err
		}
	}
	return out, nil
}
