package startup

import (
	"github.com/google/uuid"
	"github.com/open-sspm/open-idm/internal/connectors/configstore"
)

// KnownServer is a standalone remote server with its password decrypted.
// Server.Password is unset when the stored password could not be decrypted.
type KnownServer struct {
	ID     uuid.UUID
	Server configstore.ConnectorServerDescriptor
}

// LegacySystem is a remote resource system still carrying its connector
// server inline.
type LegacySystem struct {
	ID     int64
	Code   string
	Server configstore.ConnectorServerDescriptor
	// PasswordKnown is false when the inline password failed to decrypt.
	// Such a system matches on host, port, TLS flag and timeout alone.
	PasswordKnown bool
	// StoredPassword is the inline ciphertext, copied to a created server.
	StoredPassword string
}

// NewServer describes a remote server to create for a system that matched
// nothing.
type NewServer struct {
	ID               uuid.UUID
	Server           configstore.ConnectorServerDescriptor
	StoredPassword   string
	OriginSystemCode string
}

// Rewire points one system at a remote server. Create is set when the
// server does not exist yet and must be created first.
type Rewire struct {
	SystemID   int64
	SystemCode string
	ServerID   uuid.UUID
	Create     *NewServer
}

// PlanConsolidation decides, for every legacy system in order, which remote
// server it should reference. Servers planned for earlier systems are
// candidates for later ones, so identical inline servers share one record.
func PlanConsolidation(systems []LegacySystem, servers []KnownServer) []Rewire {
	known := make([]KnownServer, 0, len(servers)+len(systems))
	for _, s := range servers {
		known = append(known, KnownServer{ID: s.ID, Server: s.Server.Normalized()})
	}

	plan := make([]Rewire, 0, len(systems))
	for _, sys := range systems {
		want := sys.Server.Normalized()
		step := Rewire{SystemID: sys.ID, SystemCode: sys.Code}
		if id, ok := findServer(known, want, sys.PasswordKnown); ok {
			step.ServerID = id
		} else {
			created := &NewServer{
				ID:               uuid.New(),
				Server:           want,
				StoredPassword:   sys.StoredPassword,
				OriginSystemCode: sys.Code,
			}
			known = append(known, KnownServer{ID: created.ID, Server: want})
			step.ServerID = created.ID
			step.Create = created
		}
		plan = append(plan, step)
	}
	return plan
}

// findServer returns the first server matching want. The first match wins
// when several do.
func findServer(known []KnownServer, want configstore.ConnectorServerDescriptor, comparePassword bool) (uuid.UUID, bool) {
	for _, k := range known {
		if !k.Server.SameEndpoint(want) {
			continue
		}
		if comparePassword && !k.Server.Password.Equal(want.Password) {
			continue
		}
		return k.ID, true
	}
	return uuid.Nil, false
}
