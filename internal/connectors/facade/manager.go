// Package facade resolves connector instances to live connectors. Local
// instances run bundles from the registry in process; remote instances run
// on a connector host. Either way callers get the same Connector.
package facade

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/open-sspm/open-idm/internal/connectors/adapter"
	"github.com/open-sspm/open-idm/internal/connectors/configstore"
	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/local"
	"github.com/open-sspm/open-idm/internal/connectors/registry"
	"github.com/open-sspm/open-idm/internal/connectors/remote"
)

// ErrUnknownConnector is returned for local instances whose bundle is not
// registered.
var ErrUnknownConnector = errors.New("connector bundle not registered")

// DialFunc opens a facade on a connector host.
type DialFunc func(ctx context.Context, info framework.RemoteFrameworkConnectionInfo, key framework.ConnectorKey, cfg framework.APIConfiguration, poolName string) (framework.Facade, error)

func dialRemote(ctx context.Context, info framework.RemoteFrameworkConnectionInfo, key framework.ConnectorKey, cfg framework.APIConfiguration, poolName string) (framework.Facade, error) {
	return remote.Dial(ctx, info, key, cfg, poolName)
}

type Option func(*Manager)

// WithDialer replaces the remote dialer.
func WithDialer(d DialFunc) Option {
	return func(m *Manager) { m.dial = d }
}

type entry struct {
	conn *Connector
	// refs counts callers between Resolve and Release.
	refs int
	// used is set by Resolve and cleared by Sweep.
	used bool
}

// Manager caches one Connector, and so one pool, per (key, server,
// configuration). Systems sharing a bundle with different configurations get
// separate pools. Entries are closed by Sweep once nothing references them,
// or by Close.
type Manager struct {
	registry *registry.ConnectorRegistry
	dial     DialFunc

	mu      sync.Mutex
	entries map[string]*entry
}

func NewManager(reg *registry.ConnectorRegistry, opts ...Option) *Manager {
	m := &Manager{
		registry: reg,
		dial:     dialRemote,
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// instanceID identifies (key, server). Servers differing only in password
// get distinct pools.
func instanceID(inst configstore.ConnectorInstance) string {
	id := inst.Key.FullName()
	if inst.Server == nil {
		return id + "@local"
	}
	d := inst.Server.Normalized()
	sum := sha256.Sum256([]byte(d.Password.Reveal()))
	return fmt.Sprintf("%s@%s/ssl=%t/timeout=%d/%s", id, hostPort(d), d.UseSSL, d.TimeoutSeconds, hex.EncodeToString(sum[:8]))
}

func cacheKey(inst configstore.ConnectorInstance, cfg configstore.ConnectorConfiguration) string {
	return instanceID(inst) + "|" + cfg.Fingerprint()
}

func hostPort(d configstore.ConnectorServerDescriptor) string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Resolve returns the connector for inst with configuration cfg, creating it
// on first use. cfg must already be resolved (confidential values
// decrypted). Each Resolve holds a reference until Release.
func (m *Manager) Resolve(ctx context.Context, inst configstore.ConnectorInstance, cfg configstore.ConnectorConfiguration) (*Connector, error) {
	if err := inst.Key.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("connector %s: %w", inst.Key.FullName(), err)
	}
	id := cacheKey(inst, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.refs++
		e.used = true
		return e.conn, nil
	}

	conn, err := m.open(ctx, inst, cfg)
	if err != nil {
		return nil, err
	}
	conn.cacheKey = id
	m.entries[id] = &entry{conn: conn, refs: 1, used: true}
	return conn, nil
}

// Release drops the reference taken by Resolve. The connector stays cached.
func (m *Manager) Release(c *Connector) {
	if c == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[c.cacheKey]; ok && e.conn == c && e.refs > 0 {
		e.refs--
	}
}

// Sweep closes connectors that are unreferenced and were not resolved since
// the previous Sweep, such as pools of removed systems or superseded
// configurations.
func (m *Manager) Sweep() error {
	m.mu.Lock()
	var stale []*entry
	for id, e := range m.entries {
		if e.refs == 0 && !e.used {
			stale = append(stale, e)
			delete(m.entries, id)
			continue
		}
		e.used = false
	}
	m.mu.Unlock()

	var errs []error
	for _, e := range stale {
		slog.Info("closing idle connector", "connector", e.conn.Key(), "location", e.conn.location())
		if err := e.conn.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) open(ctx context.Context, inst configstore.ConnectorInstance, cfg configstore.ConnectorConfiguration) (*Connector, error) {
	key := inst.Key.FullName()
	nativeKey, err := adapter.EncodeConnectorKey(inst.Key)
	if err != nil {
		return nil, err
	}
	apiCfg, err := adapter.EncodeConfiguration(cfg)
	if err != nil {
		return nil, fmt.Errorf("connector %s: %w", key, err)
	}

	if inst.Server == nil {
		if m.registry == nil {
			return nil, fmt.Errorf("connector %s: %w", key, ErrUnknownConnector)
		}
		bundle, ok := m.registry.Get(nativeKey)
		if !ok {
			return nil, fmt.Errorf("connector %s: %w", key, ErrUnknownConnector)
		}
		f, err := local.NewFacade(bundle, apiCfg, key)
		if err != nil {
			return nil, fmt.Errorf("connector %s: %w", key, err)
		}
		return newConnector(key, "", adapter.NewConnector(f)), nil
	}

	d := inst.Server.Normalized()
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("connector %s: %w", key, err)
	}
	host := hostPort(d)
	f, err := m.dial(ctx, adapter.EncodeServer(d), nativeKey, apiCfg, key+"@"+host)
	if err != nil {
		return nil, &InvocationError{Op: "connect", Key: key, Host: host, Err: err}
	}
	return newConnector(key, host, adapter.NewConnector(f)), nil
}

// Close releases every cached connector.
func (m *Manager) Close() error {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.conn.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
