package local

import (
	"sync/atomic"
)

// relay runs produce on its own goroutine and hands its items to consume
// through a channel of the given size. Once consume returns false it is not
// called again and every later emit returns false.
func relay[T any](size int, produce func(emit func(T) bool) error, consume func(T) bool) error {
	if size <= 0 {
		return produce(consume)
	}

	ch := make(chan T, size)
	var stopped atomic.Bool
	errCh := make(chan error, 1)
	go func() {
		defer close(ch)
		errCh <- produce(func(item T) bool {
			if stopped.Load() {
				return false
			}
			ch <- item
			return !stopped.Load()
		})
	}()

	for item := range ch {
		if stopped.Load() {
			continue
		}
		if !consume(item) {
			stopped.Store(true)
		}
	}
	return <-errCh
}
