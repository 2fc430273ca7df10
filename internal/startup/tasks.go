package startup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/open-sspm/open-idm/internal/connectors/configstore"
	"github.com/open-sspm/open-idm/internal/db/gen"
	"github.com/open-sspm/open-idm/internal/metrics"
	"github.com/open-sspm/open-idm/internal/sync"
)

const (
	CancelStaleSyncRunsTask      = "cancel-stale-sync-runs"
	ConsolidateRemoteServersTask = "consolidate-remote-servers"

	// ConsolidationSetting switches remote server consolidation off once it
	// has run.
	ConsolidationSetting = "remote_server_consolidation.enabled"
)

type staleRunCanceler interface {
	CancelRunningSyncRuns(ctx context.Context, message string) (int64, error)
}

// CancelStaleSyncRuns marks runs left running by a previous process as
// canceled. No pass survives a restart.
func CancelStaleSyncRuns(q staleRunCanceler) Task {
	return Task{
		Name:     CancelStaleSyncRunsTask,
		Priority: 100,
		Run: func(ctx context.Context) error {
			n, err := q.CancelRunningSyncRuns(ctx, "process restarted while sync was running")
			if err != nil {
				return err
			}
			if n > 0 {
				slog.Warn("canceled stale sync runs", "count", n)
			}
			return nil
		},
	}
}

// ConsolidationStore is the persistence remote server consolidation needs.
// *gen.Queries satisfies it.
type ConsolidationStore interface {
	GetAppSetting(ctx context.Context, key string) (string, error)
	UpsertAppSetting(ctx context.Context, arg gen.UpsertAppSettingParams) error
	ListRemoteServers(ctx context.Context) ([]gen.RemoteServer, error)
	ListRemoteResourceSystems(ctx context.Context) ([]gen.ResourceSystem, error)
	CreateRemoteServer(ctx context.Context, arg gen.CreateRemoteServerParams) (gen.RemoteServer, error)
	UpdateResourceSystemConfig(ctx context.Context, arg gen.UpdateResourceSystemConfigParams) error
}

// ConsolidateRemoteServers moves inline connector servers of remote
// resource systems into standalone remote server records, then switches
// itself off.
func ConsolidateRemoteServers(q ConsolidationStore, decrypt func(string) (string, error)) Task {
	return Task{
		Name:     ConsolidateRemoteServersTask,
		Priority: 200,
		Run: func(ctx context.Context) error {
			return consolidate(ctx, q, decrypt)
		},
	}
}

func consolidationEnabled(ctx context.Context, q ConsolidationStore) (bool, error) {
	v, err := q.GetAppSetting(ctx, ConsolidationSetting)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", ConsolidationSetting, err)
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("parse %s=%q: %w", ConsolidationSetting, v, err)
	}
	return enabled, nil
}

func consolidate(ctx context.Context, q ConsolidationStore, decrypt func(string) (string, error)) error {
	enabled, err := consolidationEnabled(ctx, q)
	if err != nil {
		return err
	}
	if !enabled {
		return ErrTaskDisabled
	}

	rows, err := q.ListRemoteServers(ctx)
	if err != nil {
		return fmt.Errorf("list remote servers: %w", err)
	}
	servers := make([]KnownServer, 0, len(rows))
	for _, rs := range rows {
		d, err := sync.ServerConfigFromRow(rs).Descriptor(decrypt)
		if err != nil {
			slog.Warn("remote server password could not be decrypted, comparing without it", "remote_server", rs.Name, "err", err)
		}
		servers = append(servers, KnownServer{ID: rs.ID.Bytes, Server: d})
	}

	systemRows, err := q.ListRemoteResourceSystems(ctx)
	if err != nil {
		return fmt.Errorf("list remote resource systems: %w", err)
	}

	var errs []error
	raws := make(map[int64][]byte, len(systemRows))
	legacy := make([]LegacySystem, 0, len(systemRows))
	for _, row := range systemRows {
		cfg, err := configstore.DecodeSystemConfig(row.Config)
		if err != nil {
			slog.Error("resource system config could not be read, skipping", "system", row.Code, "err", err)
			metrics.RemoteServersConsolidatedTotal.WithLabelValues("failed").Inc()
			errs = append(errs, fmt.Errorf("system %s: decode config: %w", row.Code, err))
			continue
		}
		cfg = cfg.Normalized()
		if cfg.RemoteServerID != "" || !cfg.HasInlineServer() {
			continue
		}

		inline := *cfg.ConnectorServer
		d, err := inline.Descriptor(decrypt)
		if err != nil {
			slog.Warn("inline connector server password could not be decrypted, matching without it", "system", row.Code, "err", err)
		}
		raws[row.ID] = row.Config
		legacy = append(legacy, LegacySystem{
			ID:             row.ID,
			Code:           row.Code,
			Server:         d,
			PasswordKnown:  err == nil,
			StoredPassword: inline.Password,
		})
	}

	failedServers := map[[16]byte]error{}
	for _, step := range PlanConsolidation(legacy, servers) {
		if err := applyRewire(ctx, q, step, raws[step.SystemID], failedServers); err != nil {
			slog.Error("remote server consolidation failed for system", "system", step.SystemCode, "err", err)
			metrics.RemoteServersConsolidatedTotal.WithLabelValues("failed").Inc()
			errs = append(errs, fmt.Errorf("system %s: %w", step.SystemCode, err))
			continue
		}
		outcome := "matched"
		if step.Create != nil {
			outcome = "created"
		}
		metrics.RemoteServersConsolidatedTotal.WithLabelValues(outcome).Inc()
		slog.Info("resource system rewired to remote server", "system", step.SystemCode, "remote_server_id", step.ServerID, "outcome", outcome)
	}

	if err := q.UpsertAppSetting(ctx, gen.UpsertAppSettingParams{Key: ConsolidationSetting, Value: "false"}); err != nil {
		errs = append(errs, fmt.Errorf("disable %s: %w", ConsolidationSetting, err))
	}
	return errors.Join(errs...)
}

func applyRewire(ctx context.Context, q ConsolidationStore, step Rewire, raw []byte, failedServers map[[16]byte]error) error {
	if err, failed := failedServers[step.ServerID]; failed {
		return fmt.Errorf("remote server %s was not created: %w", step.ServerID, err)
	}
	if c := step.Create; c != nil {
		_, err := q.CreateRemoteServer(ctx, gen.CreateRemoteServerParams{
			ID:               pgtype.UUID{Bytes: c.ID, Valid: true},
			Name:             c.OriginSystemCode + "-connector-server",
			Host:             c.Server.Host,
			Port:             int32(c.Server.Port),
			UseSsl:           c.Server.UseSSL,
			TimeoutSeconds:   int32(c.Server.TimeoutSeconds),
			Password:         c.StoredPassword,
			Description:      "Created from the inline connector server of " + c.OriginSystemCode,
			AutoCreated:      true,
			OriginSystemCode: pgtype.Text{String: c.OriginSystemCode, Valid: true},
		})
		if err != nil {
			failedServers[c.ID] = err
			return fmt.Errorf("create remote server: %w", err)
		}
	}

	rewired, err := configstore.RewireRemoteServer(raw, step.ServerID.String())
	if err != nil {
		return err
	}
	return q.UpdateResourceSystemConfig(ctx, gen.UpdateResourceSystemConfigParams{ID: step.SystemID, Config: rewired})
}
