package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultSyncInterval             = 15 * time.Minute
	defaultSyncWorkers              = 4
	defaultSyncTimeoutRetryAttempts = 2
	defaultMetricsAddr              = ":9090"
	defaultSecretsMode              = "local"
	defaultLockMode                 = "lease"
	defaultLockTTL                  = 2 * time.Minute

	defaultConnectorServerAddr        = ":8759"
	defaultConnectorServerSessionIdle = 10 * time.Minute
)

type Config struct {
	DatabaseURL string

	SyncInterval             time.Duration
	SyncWorkers              int
	SyncTimeoutRetryAttempts int
	MetricsAddr              string

	LockMode              string
	LockTTL               time.Duration
	LockHeartbeatInterval time.Duration

	SecretsMode string
	// SecretsKey is the base64 AES-256 key used in local mode.
	SecretsKey string
	Vault      VaultConfig

	ConnectorServer ConnectorServerConfig
}

type VaultConfig struct {
	Address         string
	Namespace       string
	AuthType        string
	Token           string
	AppRoleMount    string
	AppRoleRoleID   string
	AppRoleSecretID string
	TLSSkipVerify   bool
	CACertFile      string
	TransitMount    string
	TransitKey      string
}

// ConnectorServerConfig configures `open-idm connector-server`.
type ConnectorServerConfig struct {
	Addr string
	// KeyHash is the argon2id hash of the key clients present.
	KeyHash     string
	TLSCertFile string
	TLSKeyFile  string
	SessionIdle time.Duration
}

type LoadOptions struct {
	RequireDatabaseURL bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadOptionalDB() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		SyncInterval:             getenvDurationDefault("SYNC_INTERVAL", defaultSyncInterval),
		SyncWorkers:              getenvIntDefault("SYNC_WORKERS", defaultSyncWorkers),
		SyncTimeoutRetryAttempts: getenvIntDefault("SYNC_TIMEOUT_RETRY_ATTEMPTS", defaultSyncTimeoutRetryAttempts),
		MetricsAddr:              getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		LockMode:                 strings.ToLower(strings.TrimSpace(getenvDefault("LOCK_MODE", defaultLockMode))),
		LockTTL:                  getenvDurationDefault("LOCK_TTL", defaultLockTTL),
		LockHeartbeatInterval:    getenvDurationDefault("LOCK_HEARTBEAT_INTERVAL", 0),
		SecretsMode:              strings.ToLower(strings.TrimSpace(getenvDefault("SECRETS_MODE", defaultSecretsMode))),
		SecretsKey:               os.Getenv("SECRETS_KEY"),
		Vault: VaultConfig{
			Address:         os.Getenv("VAULT_ADDR"),
			Namespace:       os.Getenv("VAULT_NAMESPACE"),
			AuthType:        getenvDefault("VAULT_AUTH_TYPE", "token"),
			Token:           os.Getenv("VAULT_TOKEN"),
			AppRoleMount:    os.Getenv("VAULT_APPROLE_MOUNT"),
			AppRoleRoleID:   os.Getenv("VAULT_APPROLE_ROLE_ID"),
			AppRoleSecretID: os.Getenv("VAULT_APPROLE_SECRET_ID"),
			TLSSkipVerify:   getenvBoolDefault("VAULT_SKIP_VERIFY", false),
			CACertFile:      os.Getenv("VAULT_CACERT"),
			TransitMount:    os.Getenv("VAULT_TRANSIT_MOUNT"),
			TransitKey:      os.Getenv("VAULT_TRANSIT_KEY"),
		},
		ConnectorServer: ConnectorServerConfig{
			Addr:        getenvDefault("CONNECTOR_SERVER_ADDR", defaultConnectorServerAddr),
			KeyHash:     os.Getenv("CONNECTOR_SERVER_KEY_HASH"),
			TLSCertFile: os.Getenv("CONNECTOR_SERVER_TLS_CERT"),
			TLSKeyFile:  os.Getenv("CONNECTOR_SERVER_TLS_KEY"),
			SessionIdle: getenvDurationDefault("CONNECTOR_SERVER_SESSION_IDLE", defaultConnectorServerSessionIdle),
		},
	}

	switch cfg.SecretsMode {
	case "local", "vault":
	default:
		return cfg, errors.New("SECRETS_MODE must be one of: local, vault")
	}
	switch cfg.LockMode {
	case "lease", "advisory":
	default:
		return cfg, errors.New("LOCK_MODE must be one of: lease, advisory")
	}
	if (cfg.ConnectorServer.TLSCertFile == "") != (cfg.ConnectorServer.TLSKeyFile == "") {
		return cfg, errors.New("CONNECTOR_SERVER_TLS_CERT and CONNECTOR_SERVER_TLS_KEY must be set together")
	}

	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func getenvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch v {
	case "1":
		return true
	case "0":
		return false
	default:
		return def
	}
}
