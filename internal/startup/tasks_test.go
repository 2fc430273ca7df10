package startup

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/open-sspm/open-idm/internal/connectors/configstore"
	"github.com/open-sspm/open-idm/internal/db/gen"
)

type fakeStore struct {
	settings map[string]string
	servers  []gen.RemoteServer
	systems  []gen.ResourceSystem

	createErr error
	canceled  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{settings: map[string]string{ConsolidationSetting: "true"}}
}

func (f *fakeStore) GetAppSetting(_ context.Context, key string) (string, error) {
	v, ok := f.settings[key]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return v, nil
}

func (f *fakeStore) UpsertAppSetting(_ context.Context, arg gen.UpsertAppSettingParams) error {
	f.settings[arg.Key] = arg.Value
	return nil
}

func (f *fakeStore) ListRemoteServers(context.Context) ([]gen.RemoteServer, error) {
	return append([]gen.RemoteServer(nil), f.servers...), nil
}

func (f *fakeStore) ListRemoteResourceSystems(context.Context) ([]gen.ResourceSystem, error) {
	var out []gen.ResourceSystem
	for _, s := range f.systems {
		if s.Remote {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateRemoteServer(_ context.Context, arg gen.CreateRemoteServerParams) (gen.RemoteServer, error) {
	if f.createErr != nil {
		return gen.RemoteServer{}, f.createErr
	}
	rs := gen.RemoteServer{
		ID:               arg.ID,
		Name:             arg.Name,
		Host:             arg.Host,
		Port:             arg.Port,
		UseSsl:           arg.UseSsl,
		TimeoutSeconds:   arg.TimeoutSeconds,
		Password:         arg.Password,
		Description:      arg.Description,
		AutoCreated:      arg.AutoCreated,
		OriginSystemCode: arg.OriginSystemCode,
	}
	f.servers = append(f.servers, rs)
	return rs, nil
}

func (f *fakeStore) UpdateResourceSystemConfig(_ context.Context, arg gen.UpdateResourceSystemConfigParams) error {
	for i := range f.systems {
		if f.systems[i].ID == arg.ID {
			f.systems[i].Config = arg.Config
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeStore) CancelRunningSyncRuns(context.Context, string) (int64, error) {
	return f.canceled, nil
}

func (f *fakeStore) addLegacySystem(t *testing.T, code string, server configstore.ServerConfig) {
	t.Helper()
	raw, err := configstore.EncodeConfig(configstore.SystemConfig{
		ConnectorKey:    configstore.ConnectorKey{BundleName: "ldap", BundleVersion: "1.0", ConnectorName: "LdapConnector"},
		ObjectClasses:   []string{"__ACCOUNT__"},
		ConnectorServer: &server,
	})
	if err != nil {
		t.Fatalf("EncodeConfig() error = %v", err)
	}
	f.systems = append(f.systems, gen.ResourceSystem{ID: int64(len(f.systems) + 1), Code: code, Remote: true, Enabled: true, Config: raw})
}

func (f *fakeStore) remoteServerID(t *testing.T, code string) string {
	t.Helper()
	for _, s := range f.systems {
		if s.Code != code {
			continue
		}
		cfg, err := configstore.DecodeSystemConfig(s.Config)
		if err != nil {
			t.Fatalf("DecodeSystemConfig() error = %v", err)
		}
		if cfg.ConnectorServer != nil {
			t.Fatalf("system %s still carries an inline server", code)
		}
		return cfg.RemoteServerID
	}
	t.Fatalf("system %s not found", code)
	return ""
}

func decryptPrefixed(s string) (string, error) {
	if !strings.HasPrefix(s, "enc:") {
		return "", errors.New("cipher: message authentication failed")
	}
	return strings.TrimPrefix(s, "enc:"), nil
}

func TestConsolidateRemoteServers(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	server := configstore.ServerConfig{Host: "localhost", Port: 389, TimeoutSeconds: 30, Password: "enc:s3cret"}
	store.addLegacySystem(t, "hr", server)
	store.addLegacySystem(t, "crm", server)
	ldaps := server
	ldaps.Port = 636
	store.addLegacySystem(t, "erp", ldaps)

	task := ConsolidateRemoteServers(store, decryptPrefixed)
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(store.servers) != 2 {
		t.Fatalf("remote servers = %d, want 2", len(store.servers))
	}
	hr, crm, erp := store.remoteServerID(t, "hr"), store.remoteServerID(t, "crm"), store.remoteServerID(t, "erp")
	if hr == "" || hr != crm {
		t.Fatalf("hr = %q, crm = %q, want the same remote server", hr, crm)
	}
	if erp == hr {
		t.Fatalf("erp shares hr's remote server, want a distinct one")
	}
	created := store.servers[0]
	if !created.AutoCreated || created.OriginSystemCode.String != "hr" || created.Password != "enc:s3cret" {
		t.Fatalf("created server = %+v, want auto-created from hr with the stored password", created)
	}
	if store.settings[ConsolidationSetting] != "false" {
		t.Fatalf("%s = %q, want false", ConsolidationSetting, store.settings[ConsolidationSetting])
	}

	if err := task.Run(context.Background()); !errors.Is(err, ErrTaskDisabled) {
		t.Fatalf("second Run() error = %v, want %v", err, ErrTaskDisabled)
	}
}

func TestConsolidateRemoteServersIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addLegacySystem(t, "hr", configstore.ServerConfig{Host: "localhost", Port: 389, Password: "enc:s3cret"})

	task := ConsolidateRemoteServers(store, decryptPrefixed)
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	store.settings[ConsolidationSetting] = "true"
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(store.servers) != 1 {
		t.Fatalf("remote servers = %d, want 1", len(store.servers))
	}
}

func TestConsolidateRemoteServersUndecryptablePassword(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	existing := pgtype.UUID{Bytes: [16]byte{1, 2, 3}, Valid: true}
	store.servers = []gen.RemoteServer{{ID: existing, Name: "ldap", Host: "localhost", Port: 389, TimeoutSeconds: 30, Password: "enc:s3cret"}}
	store.addLegacySystem(t, "hr", configstore.ServerConfig{Host: "localhost", Port: 389, TimeoutSeconds: 30, Password: "rotated-key-ciphertext"})

	if err := ConsolidateRemoteServers(store, decryptPrefixed).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.servers) != 1 {
		t.Fatalf("remote servers = %d, want the existing one reused", len(store.servers))
	}
	if got, want := store.remoteServerID(t, "hr"), "01020300-0000-0000-0000-000000000000"; got != want {
		t.Fatalf("remote_server_id = %q, want %q", got, want)
	}
}

func TestConsolidateRemoteServersIsolatesSystems(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.systems = append(store.systems, gen.ResourceSystem{ID: 1, Code: "garbled", Remote: true, Config: []byte("{")})
	store.addLegacySystem(t, "hr", configstore.ServerConfig{Host: "localhost", Port: 389, Password: "enc:s3cret"})

	err := ConsolidateRemoteServers(store, decryptPrefixed).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "garbled") {
		t.Fatalf("Run() error = %v, want garbled system reported", err)
	}
	if store.remoteServerID(t, "hr") == "" {
		t.Fatalf("hr was not rewired")
	}
	if store.settings[ConsolidationSetting] != "false" {
		t.Fatalf("%s = %q, want false", ConsolidationSetting, store.settings[ConsolidationSetting])
	}
}

func TestConsolidateRemoteServersCreateFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.createErr = errors.New("duplicate key value violates unique constraint")
	server := configstore.ServerConfig{Host: "localhost", Port: 389, Password: "enc:s3cret"}
	store.addLegacySystem(t, "hr", server)
	store.addLegacySystem(t, "crm", server)

	err := ConsolidateRemoteServers(store, decryptPrefixed).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "hr") || !strings.Contains(err.Error(), "crm") {
		t.Fatalf("Run() error = %v, want both systems reported", err)
	}
	cfg, _ := configstore.DecodeSystemConfig(store.systems[1].Config)
	if cfg.RemoteServerID != "" || !cfg.HasInlineServer() {
		t.Fatalf("crm config = %+v, want inline server kept", cfg)
	}
}

func TestConsolidateRemoteServersSkipsMigratedAndLocal(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	delete(store.settings, ConsolidationSetting)
	raw, _ := configstore.EncodeConfig(configstore.SystemConfig{RemoteServerID: "6f1b7e0e-3c44-4a52-9a57-7d0f3f4c2b11"})
	store.systems = append(store.systems, gen.ResourceSystem{ID: 1, Code: "migrated", Remote: true, Config: raw})
	store.addLegacySystem(t, "local", configstore.ServerConfig{Host: "localhost"})
	store.systems[1].Remote = false
	store.addLegacySystem(t, "blank", configstore.ServerConfig{Host: "  "})

	if err := ConsolidateRemoteServers(store, decryptPrefixed).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.servers) != 0 {
		t.Fatalf("remote servers = %d, want 0", len(store.servers))
	}
}

func TestCancelStaleSyncRuns(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.canceled = 3
	task := CancelStaleSyncRuns(store)
	if task.Priority >= ConsolidateRemoteServers(store, decryptPrefixed).Priority {
		t.Fatalf("Priority = %d, want it to run before consolidation", task.Priority)
	}
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
