package startup

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestRunnerOrdersByPriority(t *testing.T) {
	t.Parallel()

	var order []string
	task := func(name string, priority int, err error) Task {
		return Task{Name: name, Priority: priority, Run: func(context.Context) error {
			order = append(order, name)
			return err
		}}
	}

	boom := errors.New("boom")
	r := NewRunner(
		task("late", 300, nil),
		task("early", 100, boom),
		task("disabled", 200, ErrTaskDisabled),
		task("tied", 300, nil),
		Task{Name: "no-op", Priority: 0},
	)

	err := r.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if errors.Is(err, ErrTaskDisabled) {
		t.Fatalf("Run() error = %v, want disabled task not reported", err)
	}
	if want := []string{"early", "disabled", "late", "tied"}; !slices.Equal(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestRunnerStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ran := false
	r := NewRunner(Task{Name: "t", Run: func(context.Context) error { ran = true; return nil }})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want %v", err, context.Canceled)
	}
	if ran {
		t.Fatalf("task ran after cancellation")
	}
}
