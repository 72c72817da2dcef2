// Package ratelimit implements a fixed-window request limiter shared across
// all in-flight requests. It is an abuse guard in front of the upstream LLM
// call, independent of the billing quota: a window of duration W admits at
// most maxRequests calls, and resets wholesale once W elapses. The
// boundary-straddling burst a fixed window permits (up to 2x the limit) is
// acceptable here because nothing is billed against it.
package ratelimit

import (
	"log"
	"sync"
	"time"
)

// DefaultWindow is the standard limiter window.
const DefaultWindow = time.Hour

// Result reports the outcome of a single Check call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

type window struct {
	start time.Time
	count int
}

// Limiter counts requests per identifier over a fixed window. Identifiers
// for anonymous and authenticated callers must be namespaced by the caller
// (e.g. "ip:..." vs "user:...") so the two never share a bucket.
//
// The zero value is not usable; construct with New and release with Stop.
type Limiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	windowDur time.Duration
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// New creates a Limiter. A positive sweepInterval starts a background
// goroutine that purges expired windows to bound memory; pass 0 to disable
// the sweep (tests).
func New(windowDur, sweepInterval time.Duration) *Limiter {
	if windowDur <= 0 {
		windowDur = DefaultWindow
	}
	l := &Limiter{
		windows:   make(map[string]*window),
		windowDur: windowDur,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	if sweepInterval > 0 {
		go l.sweepLoop(sweepInterval)
	}
	return l
}

// Check consumes one request unit for identifier and reports whether it is
// within maxRequests for the current window. A missing window means "never
// requested": the call is admitted and a fresh window opens.
func (l *Limiter) Check(identifier string, maxRequests int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[identifier]
	if !ok || now.After(w.start.Add(l.windowDur)) {
		l.windows[identifier] = &window{start: now, count: 1}
		return Result{Allowed: true, Remaining: maxRequests - 1, ResetTime: now.Add(l.windowDur)}
	}

	reset := w.start.Add(l.windowDur)
	if w.count >= maxRequests {
		return Result{Allowed: false, Remaining: 0, ResetTime: reset}
	}

	w.count++
	return Result{Allowed: true, Remaining: maxRequests - w.count, ResetTime: reset}
}

// Stop terminates the background sweep. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			removed := l.sweep()
			if removed > 0 {
				log.Printf("INFO: [RateLimiter] Swept %d expired windows.", removed)
			}
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, w := range l.windows {
		if now.After(w.start.Add(l.windowDur)) {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}
