package loop

import (
	"sync"
	"time"
)

// Manual is a Scheduler whose time only moves when Advance is called.
// Tasks run synchronously on the caller of Advance, in registration order.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	tasks   []*manualHandle
	started int
}

func NewManual() *Manual { return &Manual{} }

type manualHandle struct {
	m        *Manual
	interval time.Duration
	next     time.Duration
	fn       func()
	stopped  bool
}

func (m *Manual) Every(interval time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := &manualHandle{m: m, interval: interval, next: m.now + interval, fn: fn}
	m.tasks = append(m.tasks, h)
	m.started++
	return h
}

func (h *manualHandle) Stop() {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	for i, t := range h.m.tasks {
		if t == h {
			h.m.tasks = append(h.m.tasks[:i], h.m.tasks[i+1:]...)
			break
		}
	}
}

// Advance moves time forward by d, firing each due task once per elapsed
// interval. A task stopped by an earlier callback does not fire again.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		h, at := m.nextDue(target)
		if h == nil {
			break
		}
		m.mu.Lock()
		m.now = at
		h.next = at + h.interval
		m.mu.Unlock()
		h.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

func (m *Manual) nextDue(target time.Duration) (*manualHandle, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *manualHandle
	for _, h := range m.tasks {
		if h.stopped || h.next > target {
			continue
		}
		if best == nil || h.next < best.next {
			best = h
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, best.next
}

// Active reports the number of handles that have not been stopped.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Started reports how many handles were ever created.
func (m *Manual) Started() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Now reports the manual clock.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
