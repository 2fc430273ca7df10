package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "SYNC_INTERVAL", "SYNC_WORKERS", "SYNC_TIMEOUT_RETRY_ATTEMPTS", "METRICS_ADDR",
		"SECRETS_MODE", "SECRETS_KEY", "LOCK_MODE", "LOCK_TTL", "LOCK_HEARTBEAT_INTERVAL",
		"CONNECTOR_SERVER_ADDR", "CONNECTOR_SERVER_TLS_CERT", "CONNECTOR_SERVER_TLS_KEY", "CONNECTOR_SERVER_SESSION_IDLE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadWithOptions_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.SyncInterval != defaultSyncInterval {
		t.Fatalf("SyncInterval = %s, want %s", cfg.SyncInterval, defaultSyncInterval)
	}
	if cfg.SyncWorkers != defaultSyncWorkers {
		t.Fatalf("SyncWorkers = %d, want %d", cfg.SyncWorkers, defaultSyncWorkers)
	}
	if cfg.SecretsMode != "local" || cfg.LockMode != "lease" {
		t.Fatalf("SecretsMode = %q, LockMode = %q, want local and lease", cfg.SecretsMode, cfg.LockMode)
	}
	if cfg.ConnectorServer.Addr != ":8759" {
		t.Fatalf("ConnectorServer.Addr = %q, want %q", cfg.ConnectorServer.Addr, ":8759")
	}
}

func TestLoadWithOptions_ParsesValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYNC_INTERVAL", "27m")
	t.Setenv("SYNC_WORKERS", "8")
	t.Setenv("SYNC_TIMEOUT_RETRY_ATTEMPTS", "0")
	t.Setenv("LOCK_MODE", " Advisory ")
	t.Setenv("CONNECTOR_SERVER_SESSION_IDLE", "bogus")

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.SyncInterval.String() != "27m0s" {
		t.Fatalf("SyncInterval = %s, want %s", cfg.SyncInterval, "27m0s")
	}
	if cfg.SyncWorkers != 8 {
		t.Fatalf("SyncWorkers = %d, want 8", cfg.SyncWorkers)
	}
	if cfg.SyncTimeoutRetryAttempts != defaultSyncTimeoutRetryAttempts {
		t.Fatalf("SyncTimeoutRetryAttempts = %d, want default", cfg.SyncTimeoutRetryAttempts)
	}
	if cfg.LockMode != "advisory" {
		t.Fatalf("LockMode = %q, want advisory", cfg.LockMode)
	}
	if cfg.ConnectorServer.SessionIdle != 10*time.Minute {
		t.Fatalf("SessionIdle = %s, want default", cfg.ConnectorServer.SessionIdle)
	}
}

func TestLoadWithOptions_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		opts LoadOptions
	}{
		{name: "missing database url", opts: LoadOptions{RequireDatabaseURL: true}},
		{name: "secrets mode", env: map[string]string{"SECRETS_MODE": "kms"}},
		{name: "lock mode", env: map[string]string{"LOCK_MODE": "redis"}},
		{name: "half tls", env: map[string]string{"CONNECTOR_SERVER_TLS_CERT": "cert.pem"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range test.env {
				t.Setenv(k, v)
			}
			if _, err := LoadWithOptions(test.opts); err == nil {
				t.Fatalf("LoadWithOptions() error = nil, want error")
			}
		})
	}
}
