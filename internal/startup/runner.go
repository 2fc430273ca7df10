// Package startup runs the one-shot maintenance tasks executed before a
// process starts serving or syncing.
package startup

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/open-sspm/open-idm/internal/metrics"
)

// ErrTaskDisabled is returned by a task that is switched off. The runner
// records it as skipped rather than failed.
var ErrTaskDisabled = errors.New("startup task disabled")

// Task is one startup step. Smaller priorities run first.
type Task struct {
	Name     string
	Priority int
	Run      func(ctx context.Context) error
}

type Runner struct {
	tasks []Task
}

func NewRunner(tasks ...Task) *Runner {
	r := &Runner{}
	for _, t := range tasks {
		r.Add(t)
	}
	return r
}

func (r *Runner) Add(t Task) {
	if t.Run == nil {
		return
	}
	r.tasks = append(r.tasks, t)
}

// Tasks returns the registered tasks in execution order.
func (r *Runner) Tasks() []Task {
	out := slices.Clone(r.tasks)
	slices.SortStableFunc(out, func(a, b Task) int { return cmp.Compare(a.Priority, b.Priority) })
	return out
}

// Run executes every task once, sequentially. A failing task is logged and
// does not prevent later tasks from running; all failures are returned.
func (r *Runner) Run(ctx context.Context) error {
	var errs []error
	for _, t := range r.Tasks() {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		start := time.Now()
		err := t.Run(ctx)
		switch {
		case err == nil:
			metrics.StartupTasksTotal.WithLabelValues(t.Name, "success").Inc()
			slog.Info("startup task finished", "task", t.Name, "priority", t.Priority, "duration", time.Since(start))
		case errors.Is(err, ErrTaskDisabled):
			metrics.StartupTasksTotal.WithLabelValues(t.Name, "skipped").Inc()
			slog.Info("startup task disabled, skipping", "task", t.Name)
		default:
			metrics.StartupTasksTotal.WithLabelValues(t.Name, "error").Inc()
			slog.Error("startup task failed", "task", t.Name, "err", err)
			errs = append(errs, fmt.Errorf("startup task %s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}
