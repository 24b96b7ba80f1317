// Package hk provides a mechanism for registering named functions which
// are invoked at specified intervals, for Service-level background
// chores that are not owned by any single Node's state machine and so
// may run on their own goroutine without touching per-node state.
package hk

import (
	"sync"
	"time"

	"github.com/aistore-labs/plumcast/cmn/mono"
)

// NameSuffix disambiguates a housekeeping name from an application-level
// name sharing the same string; callers register `<name> + hk.NameSuffix`.
const NameSuffix = ".hk"

// UnregInterval, returned by a registered function, tells the
// housekeeper to deregister the function instead of rescheduling it.
const UnregInterval = -1 * time.Second

// due is a mono.NanoTime deadline, so scheduling is immune to wall
// clock adjustments.
type job struct {
	name     string
	f        func() time.Duration
	interval time.Duration
	due      int64
}

// Housekeeper runs any number of named, independently-scheduled periodic
// functions on one goroutine, started by Run and stopped by Stop.
type Housekeeper struct {
	mu      sync.Mutex
	jobs    map[string]*job
	stopCh  chan struct{}
	started bool
}

// DefaultHK is the process-wide housekeeper a Service registers its
// background chores with.
var DefaultHK = New()

func New() *Housekeeper {
	return &Housekeeper{jobs: make(map[string]*job)}
}

// Reg registers f to run every interval, starting after the first
// interval elapses. If f returns UnregInterval, it is deregistered
// instead of rescheduled; any other positive returned duration becomes
// its next interval (functions may self-adjust their own cadence), and
// zero or a negative value keeps the registered interval.
func (h *Housekeeper) Reg(name string, f func() time.Duration, interval time.Duration) {
	h.mu.Lock()
	h.jobs[name] = &job{name: name, f: f, interval: interval, due: mono.NanoTime() + interval.Nanoseconds()}
	h.mu.Unlock()
}

// Unreg removes a previously registered job by name. A no-op if absent.
func (h *Housekeeper) Unreg(name string) {
	h.mu.Lock()
	delete(h.jobs, name)
	h.mu.Unlock()
}

// UnregIf removes name if cond holds, and reports whether it removed it.
func (h *Housekeeper) UnregIf(name string, cond func() bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.jobs[name]; !ok || !cond() {
		return false
	}
	delete(h.jobs, name)
	return true
}

// Run starts the housekeeper's scheduling loop on a new goroutine and
// returns immediately; Stop ends it.
func (h *Housekeeper) Run() {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.stopCh = make(chan struct{})
	h.mu.Unlock()

	go h.loop()
}

func (h *Housekeeper) loop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.tick(mono.NanoTime())
		case <-h.stopCh:
			return
		}
	}
}

func (h *Housekeeper) tick(now int64) {
	var due []*job
	h.mu.Lock()
	for _, j := range h.jobs {
		if now >= j.due {
			due = append(due, j)
		}
	}
	h.mu.Unlock()

	for _, j := range due {
		next := j.f()
		h.mu.Lock()
		if cur, ok := h.jobs[j.name]; ok && cur == j {
			if next == UnregInterval {
				delete(h.jobs, j.name)
			} else {
				if next <= 0 {
					next = j.interval
				}
				j.due = now + next.Nanoseconds()
			}
		}
		h.mu.Unlock()
	}
}

// Stop ends the scheduling loop. Safe to call more than once.
func (h *Housekeeper) Stop() {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.started = false
	stopCh := h.stopCh
	h.mu.Unlock()
	close(stopCh)
}
