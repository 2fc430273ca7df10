package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/model"
)

var accountClass = model.Class(framework.AccountClass)

type memoryTokens struct {
	mu     sync.Mutex
	tokens map[string]model.SyncToken
	saves  int
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{tokens: make(map[string]model.SyncToken)}
}

func (m *memoryTokens) Load(_ context.Context, system, objectClass string) (model.SyncToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[system+"/"+objectClass]
	return t, ok, nil
}

func (m *memoryTokens) Save(_ context.Context, system, objectClass string, token model.SyncToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[system+"/"+objectClass] = token
	m.saves++
	return nil
}

func (m *memoryTokens) get(system, objectClass string) model.SyncToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[system+"/"+objectClass]
}

type recordingSink struct {
	mu     sync.Mutex
	deltas []model.SyncDelta
	failAt int
}

func (s *recordingSink) Apply(_ context.Context, _ string, d model.SyncDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.deltas)+1 == s.failAt {
		return errors.New("consumer rejected delta")
	}
	s.deltas = append(s.deltas, d)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deltas)
}

// journalSyncer replays deltas whose tokens are their 1-based positions.
type journalSyncer struct {
	deltas    []model.SyncDelta
	latest    model.SyncToken
	err       error
	delivered int
}

func newJournalSyncer(uids ...string) *journalSyncer {
	s := &journalSyncer{}
	for i, uid := range uids {
		s.deltas = append(s.deltas, model.SyncDelta{
			Token:       model.NewSyncToken(int64(i + 1)),
			DeltaType:   model.DeltaCreate,
			UID:         model.Identifier(framework.UIDName, uid, ""),
			ObjectClass: accountClass,
		})
	}
	s.latest = model.NewSyncToken(int64(len(uids)))
	return s
}

func (s *journalSyncer) Sync(_ context.Context, _ model.ObjectClass, token model.SyncToken, handler model.SyncHandler, _ model.OperationOptions) error {
	start := 0
	if n, ok := token.Value().(int64); ok {
		start = int(n)
	}
	for _, d := range s.deltas[start:] {
		s.delivered++
		if !handler(d) {
			return nil
		}
	}
	return s.err
}

func (s *journalSyncer) LatestSyncToken(context.Context, model.ObjectClass) (model.SyncToken, error) {
	return s.latest, nil
}

func newEngine() (*Engine, *memoryTokens, *recordingSink) {
	tokens := newMemoryTokens()
	sink := &recordingSink{}
	return &Engine{Tokens: tokens, Sink: sink}, tokens, sink
}

func TestPassPersistsLastDeliveredToken(t *testing.T) {
	t.Parallel()

	engine, tokens, sink := newEngine()
	syncer := newJournalSyncer("alice", "bob", "carol")

	res, err := engine.Pass(context.Background(), syncer, PassRequest{System: "hr", ObjectClass: accountClass})
	if err != nil {
		t.Fatalf("Pass() error = %v", err)
	}
	if res.Deltas != 3 || sink.count() != 3 {
		t.Fatalf("Pass() deltas = %d, sink = %d, want 3", res.Deltas, sink.count())
	}
	if got := tokens.get("hr", framework.AccountClass); !got.Equal(model.NewSyncToken(int64(3))) {
		t.Fatalf("stored token = %v, want 3", got.Value())
	}

	res, err = engine.Pass(context.Background(), syncer, PassRequest{System: "hr", ObjectClass: accountClass})
	if err != nil {
		t.Fatalf("Pass() error = %v", err)
	}
	if res.Deltas != 0 {
		t.Fatalf("Pass() after resume deltas = %d, want 0", res.Deltas)
	}
	if !res.Token.Equal(model.NewSyncToken(int64(3))) {
		t.Fatalf("Pass() token = %v, want unchanged 3", res.Token.Value())
	}
}

func TestPassStopAfterFirstDeltaKeepsResumePoint(t *testing.T) {
	t.Parallel()

	engine, tokens, sink := newEngine()
	syncer := newJournalSyncer("alice", "bob", "carol")

	res, err := engine.Pass(context.Background(), syncer, PassRequest{System: "hr", ObjectClass: accountClass, Limit: 1})
	if err != nil {
		t.Fatalf("Pass() error = %v", err)
	}
	if !res.Stopped {
		t.Fatalf("Pass() Stopped = false, want true")
	}
	if syncer.delivered != 1 || sink.count() != 1 {
		t.Fatalf("delivered = %d, sink = %d, want 1", syncer.delivered, sink.count())
	}
	if got := tokens.get("hr", framework.AccountClass); !got.Equal(model.NewSyncToken(int64(1))) {
		t.Fatalf("stored token = %v, want 1", got.Value())
	}

	if _, err := engine.Pass(context.Background(), syncer, PassRequest{System: "hr", ObjectClass: accountClass}); err != nil {
		t.Fatalf("Pass() error = %v", err)
	}
	if sink.count() != 3 {
		t.Fatalf("sink = %d after resume, want 3", sink.count())
	}
	uid, _ := sink.deltas[1].UID.UID()
	if uid != "bob" {
		t.Fatalf("first resumed delta = %q, want bob", uid)
	}
}

func TestPassSinkFailureKeepsAppliedProgress(t *testing.T) {
	t.Parallel()

	engine, tokens, sink := newEngine()
	sink.failAt = 2
	syncer := newJournalSyncer("alice", "bob", "carol")

	res, err := engine.Pass(context.Background(), syncer, PassRequest{System: "hr", ObjectClass: accountClass})
	if err == nil {
		t.Fatalf("Pass() error = nil, want consumer error")
	}
	if res.Deltas != 1 || syncer.delivered != 2 {
		t.Fatalf("Pass() deltas = %d, delivered = %d, want 1 and 2", res.Deltas, syncer.delivered)
	}
	if got := tokens.get("hr", framework.AccountClass); !got.Equal(model.NewSyncToken(int64(1))) {
		t.Fatalf("stored token = %v, want 1", got.Value())
	}
}

func TestPassConnectorFailureKeepsAppliedProgress(t *testing.T) {
	t.Parallel()

	engine, tokens, _ := newEngine()
	syncer := newJournalSyncer("alice", "bob")
	syncer.err = fmt.Errorf("read page 2: %w", model.ErrConnectionFailed)

	_, err := engine.Pass(context.Background(), syncer, PassRequest{System: "hr", ObjectClass: accountClass})
	if !errors.Is(err, model.ErrConnectionFailed) {
		t.Fatalf("Pass() error = %v, want %v", err, model.ErrConnectionFailed)
	}
	if got := tokens.get("hr", framework.AccountClass); !got.Equal(model.NewSyncToken(int64(2))) {
		t.Fatalf("stored token = %v, want 2", got.Value())
	}
}

func TestPassInitializeToLatest(t *testing.T) {
	t.Parallel()

	engine, tokens, sink := newEngine()
	syncer := newJournalSyncer("alice", "bob")
	req := PassRequest{System: "hr", ObjectClass: accountClass, InitializeToLatest: true}

	res, err := engine.Pass(context.Background(), syncer, req)
	if err != nil {
		t.Fatalf("Pass() error = %v", err)
	}
	if !res.Initialized || sink.count() != 0 {
		t.Fatalf("Pass() = %+v with %d deltas, want initialized and none delivered", res, sink.count())
	}
	if got := tokens.get("hr", framework.AccountClass); !got.Equal(model.NewSyncToken(int64(2))) {
		t.Fatalf("stored token = %v, want 2", got.Value())
	}

	syncer.deltas = append(syncer.deltas, model.SyncDelta{
		Token:       model.NewSyncToken(int64(3)),
		DeltaType:   model.DeltaCreate,
		UID:         model.Identifier(framework.UIDName, "carol", ""),
		ObjectClass: accountClass,
	})
	res, err = engine.Pass(context.Background(), syncer, req)
	if err != nil {
		t.Fatalf("Pass() error = %v", err)
	}
	if res.Initialized || res.Deltas != 1 {
		t.Fatalf("Pass() = %+v, want one delta after initialization", res)
	}
}

func TestPassForwardsPreviousUID(t *testing.T) {
	t.Parallel()

	engine, _, sink := newEngine()
	previous := model.Identifier(framework.UIDName, "alice", "1")
	syncer := &journalSyncer{deltas: []model.SyncDelta{{
		Token:       model.NewSyncToken(int64(1)),
		DeltaType:   model.DeltaUpdate,
		UID:         model.Identifier(framework.UIDName, "alice2", "2"),
		PreviousUID: &previous,
		ObjectClass: accountClass,
	}}}

	if _, err := engine.Pass(context.Background(), syncer, PassRequest{System: "hr", ObjectClass: accountClass}); err != nil {
		t.Fatalf("Pass() error = %v", err)
	}
	if sink.count() != 1 || sink.deltas[0].PreviousUID == nil || !sink.deltas[0].PreviousUID.Equal(previous) {
		t.Fatalf("sink deltas = %+v, want previous uid alice", sink.deltas)
	}
}

func TestPassCanceledContextStopsDelivery(t *testing.T) {
	t.Parallel()

	engine, _, sink := newEngine()
	syncer := newJournalSyncer("alice", "bob")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Pass(ctx, syncer, PassRequest{System: "hr", ObjectClass: accountClass})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Pass() error = %v, want %v", err, context.Canceled)
	}
	if sink.count() != 0 {
		t.Fatalf("sink = %d, want 0", sink.count())
	}
}

func TestPassWithoutSyncer(t *testing.T) {
	t.Parallel()

	engine, _, _ := newEngine()
	_, err := engine.Pass(context.Background(), nil, PassRequest{System: "hr", ObjectClass: accountClass})
	if !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Fatalf("Pass() error = %v, want %v", err, model.ErrUnsupportedOperation)
	}
}
