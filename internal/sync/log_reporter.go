package sync

import (
	"log/slog"
	"sync"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/registry"
)

const (
	defaultProgressInterval = 5 * time.Second
	defaultProgressStep     = int64(1000)
)

type progressState struct {
	startedAt    time.Time
	lastLoggedAt time.Time
	lastLogged   int64
}

// LogReporter logs sync and startup events to slog. Delta progress within a
// pass is logged at most once per ProgressInterval unless ProgressStep more
// deltas arrived since the last line.
type LogReporter struct {
	Logger           *slog.Logger
	ProgressInterval time.Duration
	ProgressStep     int64

	mu    sync.Mutex
	state map[string]*progressState
}

func (r *LogReporter) Report(e registry.Event) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := e.At
	if now.IsZero() {
		now = time.Now()
	}

	attrs := []any{"source", e.Source}
	if e.Stage != "" {
		attrs = append(attrs, "stage", e.Stage)
	}
	if e.Current != 0 {
		attrs = append(attrs, "deltas", e.Current)
	}
	if e.Total > 0 && e.Total != e.Current {
		attrs = append(attrs, "total", e.Total)
	}

	if e.Done || e.Err != nil {
		if started, ok := r.finish(e); ok {
			attrs = append(attrs, "elapsed", now.Sub(started).Round(time.Millisecond))
		}
	}

	if e.Err != nil {
		logger.Error(failureMessage(e), append(attrs, "err", e.Err)...)
		return
	}

	switch {
	case e.Done:
		msg := e.Message
		if msg == "" {
			msg = "sync complete"
		}
		logger.Info(msg, attrs...)
	case e.Current == 0:
		// Start of a stage.
		r.begin(e, now)
		if e.Message != "" {
			logger.Info(e.Message, attrs...)
		}
	case r.progressDue(e, now):
		msg := e.Message
		if msg == "" {
			msg = "sync progress"
		}
		logger.Info(msg, attrs...)
	}
}

func failureMessage(e registry.Event) string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Source != "" && e.Stage != "":
		return e.Source + " " + e.Stage + " failed"
	case e.Source != "":
		return e.Source + " failed"
	}
	return "sync failed"
}

func stateKey(e registry.Event) string {
	return e.Source + "\x00" + e.Stage
}

func (r *LogReporter) begin(e registry.Event, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		r.state = make(map[string]*progressState)
	}
	r.state[stateKey(e)] = &progressState{startedAt: now, lastLoggedAt: now}
}

func (r *LogReporter) finish(e registry.Event) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.state[stateKey(e)]
	if !ok {
		return time.Time{}, false
	}
	delete(r.state, stateKey(e))
	return st.startedAt, true
}

func (r *LogReporter) progressDue(e registry.Event, now time.Time) bool {
	interval := r.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}
	step := r.ProgressStep
	if step <= 0 {
		step = defaultProgressStep
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		r.state = make(map[string]*progressState)
	}
	key := stateKey(e)
	st, ok := r.state[key]
	if !ok {
		// No start event seen; treat the first progress event as the start.
		r.state[key] = &progressState{startedAt: now, lastLoggedAt: now, lastLogged: e.Current}
		return true
	}
	if now.Sub(st.lastLoggedAt) < interval && e.Current-st.lastLogged < step {
		return false
	}
	st.lastLoggedAt = now
	st.lastLogged = e.Current
	return true
}
