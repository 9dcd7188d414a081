// Package loop provides cancellable repeating-task handles.
//
// A [Scheduler] stands in for a push-based frame callback: the controller asks
// for fn to run every interval and keeps the returned [Handle] so it can stop
// it. [Ticker] is the wall-clock implementation; [Manual] advances only when
// told to and is meant for tests and deterministic hosts.
package loop

import (
	"sync"
	"time"
)

// Handle is a running repeating task.
type Handle interface {
	// Stop cancels the task. Once Stop returns the handle starts no new
	// invocation of its function. Stop is idempotent.
	Stop()
}

// Scheduler starts repeating tasks.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Handle
}

// Interval converts a frequency in hertz to a tick period of 1000/frequency ms.
func Interval(frequency float64) time.Duration {
	return time.Duration(float64(time.Second) / frequency)
}

// Ticker runs each task on its own goroutine driven by a time.Ticker. Ticks
// are best effort: a slow task makes the ticker drop ticks rather than queue
// them, so there is never a catch-up burst.
type Ticker struct{}

func NewTicker() *Ticker { return &Ticker{} }

func (Ticker) Every(interval time.Duration, fn func()) Handle {
	h := &tickerHandle{done: make(chan struct{})}
	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-t.C:
				// Stop may have raced with the tick.
				select {
				case <-h.done:
					return
				default:
				}
				fn()
			}
		}
	}()
	return h
}

type tickerHandle struct {
	once sync.Once
	done chan struct{}
}

func (h *tickerHandle) Stop() {
	h.once.Do(func() { close(h.done) })
}
