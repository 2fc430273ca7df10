package registry

import (
	"github.com/open-sspm/open-idm/internal/connectors/memory"
)

// Builtin returns a registry with the bundles compiled into this binary.
func Builtin() *ConnectorRegistry {
	r := NewRegistry()
	if err := r.Register(memory.Bundle()); err != nil {
		panic(err)
	}
	return r
}
