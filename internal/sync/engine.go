package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/open-sspm/open-idm/internal/connectors/model"
	"github.com/open-sspm/open-idm/internal/connectors/registry"
	"github.com/open-sspm/open-idm/internal/connectors/spi"
	"github.com/open-sspm/open-idm/internal/metrics"
)

// TokenStore keeps the resume point of every (system, object class).
type TokenStore interface {
	Load(ctx context.Context, system, objectClass string) (model.SyncToken, bool, error)
	Save(ctx context.Context, system, objectClass string, token model.SyncToken) error
}

// Sink consumes the deltas of a sync pass. An error stops the pass; deltas
// applied before it keep their resume point.
type Sink interface {
	Apply(ctx context.Context, system string, delta model.SyncDelta) error
}

// PassRequest describes one sync pass.
type PassRequest struct {
	System      string
	ObjectClass model.ObjectClass
	// InitializeToLatest seeds a missing resume point with the connector's
	// latest token instead of replaying the full history.
	InitializeToLatest bool
	// Limit stops the pass after that many deltas. Zero means no limit.
	Limit   int64
	Options model.OperationOptions
}

// PassResult summarizes a finished pass.
type PassResult struct {
	Deltas      int64
	Token       model.SyncToken
	Stopped     bool
	Initialized bool
}

// Engine runs sync passes against a connector and persists the token of the
// last applied delta as the next resume point.
type Engine struct {
	Tokens   TokenStore
	Sink     Sink
	Reporter registry.Reporter
}

func (e *Engine) report(ev registry.Event) {
	if e.Reporter != nil {
		e.Reporter.Report(ev)
	}
}

// Pass delivers the changes available now. The connector call blocks until it
// has delivered them all or the handler asked it to stop.
func (e *Engine) Pass(ctx context.Context, syncer spi.Syncer, req PassRequest) (PassResult, error) {
	if e == nil || e.Tokens == nil || e.Sink == nil {
		return PassResult{}, errors.New("sync engine is not configured")
	}
	if syncer == nil {
		return PassResult{}, fmt.Errorf("sync %s: %w", req.ObjectClass.Type, model.ErrUnsupportedOperation)
	}
	system := strings.TrimSpace(req.System)
	class := req.ObjectClass.Type
	source := system + "/" + class

	token, found, err := e.Tokens.Load(ctx, system, class)
	if err != nil {
		return PassResult{}, fmt.Errorf("load sync token: %w", err)
	}

	if !found && req.InitializeToLatest {
		latest, err := syncer.LatestSyncToken(ctx, req.ObjectClass)
		if err != nil {
			return PassResult{}, err
		}
		if err := e.Tokens.Save(ctx, system, class, latest); err != nil {
			return PassResult{}, fmt.Errorf("save sync token: %w", err)
		}
		e.report(registry.Event{Source: source, Stage: "initialize", Message: "resume point set to latest token", Done: true})
		return PassResult{Token: latest, Initialized: true}, nil
	}

	var (
		result  = PassResult{Token: token}
		last    model.SyncToken
		sinkErr error
	)
	e.report(registry.Event{Source: source, Stage: "sync", Total: registry.UnknownTotal, Message: "sync started"})

	handler := func(d model.SyncDelta) bool {
		if ctx.Err() != nil {
			result.Stopped = true
			return false
		}
		if err := e.Sink.Apply(ctx, system, d); err != nil {
			sinkErr = fmt.Errorf("apply %s delta for %s: %w", d.DeltaType, uidOf(d.UID), err)
			result.Stopped = true
			return false
		}
		result.Deltas++
		if !d.Token.IsZero() {
			last = d.Token
		}
		metrics.SyncDeltasTotal.WithLabelValues(system, class, string(d.DeltaType)).Inc()
		e.report(registry.Event{Source: source, Stage: "sync", Current: result.Deltas, Total: registry.UnknownTotal})
		if req.Limit > 0 && result.Deltas >= req.Limit {
			result.Stopped = true
			return false
		}
		return true
	}

	syncErr := syncer.Sync(ctx, req.ObjectClass, token, handler, req.Options)

	var saveErr error
	if !last.IsZero() {
		if err := e.Tokens.Save(context.WithoutCancel(ctx), system, class, last); err != nil {
			saveErr = fmt.Errorf("save sync token: %w", err)
		} else {
			result.Token = last
		}
	}

	err = errors.Join(syncErr, sinkErr, saveErr)
	if err == nil && result.Stopped && ctx.Err() != nil {
		err = ctx.Err()
	}
	e.report(registry.Event{Source: source, Stage: "sync", Current: result.Deltas, Total: result.Deltas, Done: true, Err: err,
		Message: fmt.Sprintf("sync finished: deltas=%d", result.Deltas)})
	return result, err
}

// LogSink writes every delta to the log. It is the consumer used when no
// provisioning consumer is attached.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Apply(ctx context.Context, system string, d model.SyncDelta) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"system", system, "object_class", d.ObjectClass.Type, "delta_type", string(d.DeltaType), "uid", uidOf(d.UID)}
	if d.PreviousUID != nil {
		attrs = append(attrs, "previous_uid", uidOf(*d.PreviousUID))
	}
	logger.DebugContext(ctx, "sync delta", attrs...)
	return nil
}

func uidOf(a model.Attribute) string {
	uid, err := a.UID()
	if err != nil {
		return a.Name()
	}
	return uid
}
