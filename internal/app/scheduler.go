package app

import (
	"sync"
	"time"
)

// CancelFunc stops a pending timer. Safe to call more than once and after
// the timer has fired.
type CancelFunc func()

// Scheduler is the timer capability the engine runs on: a one-shot delayed
// callback and a repeating callback, both cancellable. Tests substitute a
// manual implementation to drive phases deterministically.
type Scheduler interface {
	After(d time.Duration, fn func()) CancelFunc
	Every(d time.Duration, fn func()) CancelFunc
}

type clockScheduler struct{}

// NewScheduler returns the wall-clock Scheduler used in production
func NewScheduler() Scheduler {
	return clockScheduler{}
}

func (clockScheduler) After(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

func (clockScheduler) Every(d time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(d)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	// Cancelling from inside fn must not deadlock, so stopping is a close,
	// not a synchronous join.
	return func() {
		once.Do(func() { close(stop) })
	}
}
