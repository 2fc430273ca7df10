package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/open-sspm/open-idm/internal/connectors/model"
	"github.com/open-sspm/open-idm/internal/db/gen"
)

type tokenQueries interface {
	GetSyncToken(ctx context.Context, arg gen.GetSyncTokenParams) ([]byte, error)
	UpsertSyncToken(ctx context.Context, arg gen.UpsertSyncTokenParams) error
}

// PostgresTokenStore keeps resume points in the sync_tokens table. Tokens are
// stored as JSON tagged with their value kind so they come back verbatim.
type PostgresTokenStore struct {
	q tokenQueries
}

func NewPostgresTokenStore(q tokenQueries) *PostgresTokenStore {
	return &PostgresTokenStore{q: q}
}

func (s *PostgresTokenStore) Load(ctx context.Context, system, objectClass string) (model.SyncToken, bool, error) {
	raw, err := s.q.GetSyncToken(ctx, gen.GetSyncTokenParams{SystemCode: system, ObjectClass: objectClass})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SyncToken{}, false, nil
	}
	if err != nil {
		return model.SyncToken{}, false, err
	}
	var token model.SyncToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return model.SyncToken{}, false, fmt.Errorf("decode sync token for %s/%s: %w", system, objectClass, err)
	}
	return token, true, nil
}

func (s *PostgresTokenStore) Save(ctx context.Context, system, objectClass string, token model.SyncToken) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return s.q.UpsertSyncToken(ctx, gen.UpsertSyncTokenParams{SystemCode: system, ObjectClass: objectClass, Token: raw})
}
