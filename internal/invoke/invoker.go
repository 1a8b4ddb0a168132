// Package invoke wraps an asynchronous operation so that bursts of trigger
// calls collapse into a single execution after a quiet period. Only the
// latest-scheduled invocation ever runs; a stopped invoker never runs
// anything again.
package invoke

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// Invoker debounces scheduled functions. The zero value is not usable;
// create one with New.
type Invoker struct {
	mu        sync.Mutex
	debounced func(func())
	stopped   bool
}

// New creates an invoker with the given quiet period.
func New(delay time.Duration) *Invoker {
	return &Invoker{debounced: debounce.New(delay)}
}

// Schedule records an intent to run fn. If called again before the delay
// elapses, the previous pending run is discarded and the timer restarts.
func (i *Invoker) Schedule(fn func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stopped {
		return
	}
	i.debounced(func() {
		// The timer fires on its own goroutine; the stop flag may have
		// been set between scheduling and firing.
		i.mu.Lock()
		stopped := i.stopped
		i.mu.Unlock()
		if stopped {
			return
		}
		fn()
	})
}

// Stop cancels any pending scheduled run so it cannot mutate state after
// teardown. The invoker is unusable afterwards.
func (i *Invoker) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopped = true
}
