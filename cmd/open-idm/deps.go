package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-sspm/open-idm/internal/config"
	"github.com/open-sspm/open-idm/internal/connectors/facade"
	"github.com/open-sspm/open-idm/internal/connectors/registry"
	"github.com/open-sspm/open-idm/internal/db/gen"
	"github.com/open-sspm/open-idm/internal/secrets"
	"github.com/open-sspm/open-idm/internal/startup"
	"github.com/open-sspm/open-idm/internal/sync"
)

// app holds what the database-backed commands share.
type app struct {
	cfg     config.Config
	pool    *pgxpool.Pool
	q       *gen.Queries
	cipher  secrets.Cipher
	decrypt func(string) (string, error)
	locks   sync.LockManager
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	cipher, err := newCipher(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	locks, err := sync.NewLockManager(pool, sync.LockManagerConfig{
		Mode:              cfg.LockMode,
		TTL:               cfg.LockTTL,
		HeartbeatInterval: cfg.LockHeartbeatInterval,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		pool:    pool,
		q:       gen.New(pool),
		cipher:  cipher,
		decrypt: secrets.DecryptFunc(ctx, cipher),
		locks:   locks,
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

func newCipher(cfg config.Config) (secrets.Cipher, error) {
	opts := secrets.Options{
		Mode:     cfg.SecretsMode,
		LocalKey: cfg.SecretsKey,
		Vault: secrets.VaultOptions{
			Address:          cfg.Vault.Address,
			Namespace:        cfg.Vault.Namespace,
			AuthType:         cfg.Vault.AuthType,
			Token:            cfg.Vault.Token,
			AppRoleMountPath: cfg.Vault.AppRoleMount,
			AppRoleRoleID:    cfg.Vault.AppRoleRoleID,
			AppRoleSecretID:  cfg.Vault.AppRoleSecretID,
			TLSSkipVerify:    cfg.Vault.TLSSkipVerify,
			TransitMount:     cfg.Vault.TransitMount,
			TransitKey:       cfg.Vault.TransitKey,
		},
	}
	if cfg.Vault.CACertFile != "" {
		pem, err := os.ReadFile(cfg.Vault.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("read VAULT_CACERT: %w", err)
		}
		opts.Vault.TLSCACertPEM = string(pem)
	}
	return secrets.New(opts)
}

// startupRunner returns the tasks every process runs before syncing.
func (a *app) startupRunner() *startup.Runner {
	return startup.NewRunner(
		startup.CancelStaleSyncRuns(a.q),
		startup.ConsolidateRemoteServers(a.q, a.decrypt),
	)
}

// orchestrator wires a sync orchestrator over the built-in bundles. The
// returned manager owns connector pools and must be closed.
func (a *app) orchestrator() (*sync.Orchestrator, *facade.Manager) {
	connectors := facade.NewManager(registry.Builtin())
	engine := &sync.Engine{
		Tokens: sync.NewPostgresTokenStore(a.q),
		Sink:   sync.LogSink{Logger: slog.Default()},
	}
	o := sync.NewOrchestrator(a.q, connectors, engine, a.decrypt)
	o.SetReporter(&sync.LogReporter{})
	o.SetLockManager(a.locks)
	o.SetWorkers(a.cfg.SyncWorkers)
	o.SetTimeoutRetryAttempts(a.cfg.SyncTimeoutRetryAttempts)
	return o, connectors
}
