package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/open-sspm/open-idm/internal/connectors/configstore"
	"github.com/open-sspm/open-idm/internal/db/gen"
)

// ErrNoConnectorServer is returned for a remote system that neither
// references a remote server nor carries an inline one.
var ErrNoConnectorServer = errors.New("remote system has no connector server")

// System is a resource system resolved into something a connector can be
// opened for.
type System struct {
	ID                 int64
	Code               string
	Instance           configstore.ConnectorInstance
	Configuration      configstore.ConnectorConfiguration
	ObjectClasses      []string
	InitializeToLatest bool
}

type remoteServerGetter interface {
	GetRemoteServer(ctx context.Context, id pgtype.UUID) (gen.RemoteServer, error)
}

// LoadSystem decodes a stored resource system. Confidential configuration
// values must decrypt; a connector server password that fails to decrypt is
// logged and treated as absent.
func LoadSystem(ctx context.Context, q remoteServerGetter, row gen.ResourceSystem, decrypt func(string) (string, error)) (System, error) {
	cfg, err := configstore.DecodeSystemConfig(row.Config)
	if err != nil {
		return System{}, fmt.Errorf("system %s: decode config: %w", row.Code, err)
	}
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return System{}, fmt.Errorf("system %s: %w", row.Code, err)
	}
	resolved, err := cfg.Configuration.Resolve(decrypt)
	if err != nil {
		return System{}, fmt.Errorf("system %s: %w", row.Code, err)
	}

	sys := System{
		ID:                 row.ID,
		Code:               row.Code,
		Instance:           configstore.ConnectorInstance{Key: cfg.ConnectorKey},
		Configuration:      resolved,
		ObjectClasses:      cfg.ObjectClasses,
		InitializeToLatest: cfg.InitializeToLatest,
	}
	if !row.Remote {
		return sys, nil
	}

	var server configstore.ServerConfig
	switch {
	case cfg.RemoteServerID != "":
		id, err := uuid.Parse(cfg.RemoteServerID)
		if err != nil {
			return System{}, fmt.Errorf("system %s: remote server id: %w", row.Code, err)
		}
		rs, err := q.GetRemoteServer(ctx, pgtype.UUID{Bytes: id, Valid: true})
		if err != nil {
			return System{}, fmt.Errorf("system %s: load remote server %s: %w", row.Code, id, err)
		}
		server = ServerConfigFromRow(rs)
	case cfg.HasInlineServer():
		server = *cfg.ConnectorServer
	default:
		return System{}, fmt.Errorf("system %s: %w", row.Code, ErrNoConnectorServer)
	}

	d, err := server.Descriptor(decrypt)
	if err != nil {
		slog.Warn("connector server password could not be decrypted, continuing without it", "system", row.Code, "host", d.Host, "err", err)
	}
	sys.Instance.Server = &d
	return sys, nil
}

// ServerConfigFromRow converts a stored remote server.
func ServerConfigFromRow(rs gen.RemoteServer) configstore.ServerConfig {
	return configstore.ServerConfig{
		Host:           rs.Host,
		Port:           int(rs.Port),
		UseSSL:         rs.UseSsl,
		TimeoutSeconds: int(rs.TimeoutSeconds),
		Password:       rs.Password,
	}
}
