package startup

import (
	"testing"

	"github.com/google/uuid"
	"github.com/open-sspm/open-idm/internal/connectors/configstore"
	"github.com/open-sspm/open-idm/internal/connectors/model"
)

func ldapServer(port int, password string) configstore.ConnectorServerDescriptor {
	return configstore.ConnectorServerDescriptor{
		Host:           "localhost",
		Port:           port,
		TimeoutSeconds: 30,
		Password:       model.NewSecret(password),
	}
}

func TestPlanConsolidationSharesIdenticalServers(t *testing.T) {
	t.Parallel()

	plan := PlanConsolidation([]LegacySystem{
		{ID: 1, Code: "hr", Server: ldapServer(389, "s3cret"), PasswordKnown: true, StoredPassword: "enc:s3cret"},
		{ID: 2, Code: "crm", Server: ldapServer(389, "s3cret"), PasswordKnown: true, StoredPassword: "enc:s3cret"},
		{ID: 3, Code: "erp", Server: ldapServer(636, "s3cret"), PasswordKnown: true, StoredPassword: "enc:s3cret"},
	}, nil)

	if len(plan) != 3 {
		t.Fatalf("PlanConsolidation() = %d steps, want 3", len(plan))
	}
	if plan[0].Create == nil || plan[0].Create.OriginSystemCode != "hr" || plan[0].Create.StoredPassword != "enc:s3cret" {
		t.Fatalf("step 0 = %+v, want a server created from hr", plan[0])
	}
	if plan[1].Create != nil || plan[1].ServerID != plan[0].ServerID {
		t.Fatalf("step 1 = %+v, want hr's server reused", plan[1])
	}
	if plan[2].Create == nil || plan[2].ServerID == plan[0].ServerID {
		t.Fatalf("step 2 = %+v, want a distinct server for port 636", plan[2])
	}
}

func TestPlanConsolidationMatching(t *testing.T) {
	t.Parallel()

	existing := uuid.MustParse("6f1b7e0e-3c44-4a52-9a57-7d0f3f4c2b11")
	known := []KnownServer{{ID: existing, Server: ldapServer(389, "s3cret")}}

	tests := []struct {
		name      string
		system    LegacySystem
		wantReuse bool
	}{
		{
			name:      "identical",
			system:    LegacySystem{Server: ldapServer(389, "s3cret"), PasswordKnown: true},
			wantReuse: true,
		},
		{
			name:   "different password",
			system: LegacySystem{Server: ldapServer(389, "other"), PasswordKnown: true},
		},
		{
			name:   "different port",
			system: LegacySystem{Server: ldapServer(636, "s3cret"), PasswordKnown: true},
		},
		{
			name: "tls",
			system: LegacySystem{Server: configstore.ConnectorServerDescriptor{
				Host: "localhost", Port: 389, UseSSL: true, TimeoutSeconds: 30, Password: model.NewSecret("s3cret"),
			}, PasswordKnown: true},
		},
		{
			name:      "undecryptable password matches endpoint",
			system:    LegacySystem{Server: configstore.ConnectorServerDescriptor{Host: "localhost", Port: 389, TimeoutSeconds: 30}},
			wantReuse: true,
		},
		{
			name:      "host whitespace normalizes",
			system:    LegacySystem{Server: configstore.ConnectorServerDescriptor{Host: " localhost ", Port: 389, TimeoutSeconds: 30, Password: model.NewSecret("s3cret")}, PasswordKnown: true},
			wantReuse: true,
		},
		{
			name:   "unlimited timeout",
			system: LegacySystem{Server: configstore.ConnectorServerDescriptor{Host: "localhost", Port: 389, Password: model.NewSecret("s3cret")}, PasswordKnown: true},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			test.system.ID, test.system.Code = 1, "hr"
			plan := PlanConsolidation([]LegacySystem{test.system}, known)
			if len(plan) != 1 {
				t.Fatalf("PlanConsolidation() = %d steps, want 1", len(plan))
			}
			reused := plan[0].ServerID == existing && plan[0].Create == nil
			if reused != test.wantReuse {
				t.Fatalf("reused = %v, want %v (step %+v)", reused, test.wantReuse, plan[0])
			}
		})
	}
}

func TestPlanConsolidationFirstMatchWins(t *testing.T) {
	t.Parallel()

	first, second := uuid.New(), uuid.New()
	plan := PlanConsolidation(
		[]LegacySystem{{ID: 1, Code: "hr", Server: ldapServer(389, "s3cret"), PasswordKnown: true}},
		[]KnownServer{{ID: first, Server: ldapServer(389, "s3cret")}, {ID: second, Server: ldapServer(389, "s3cret")}},
	)
	if plan[0].ServerID != first {
		t.Fatalf("ServerID = %s, want %s", plan[0].ServerID, first)
	}
}
