package governance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowgate/flowgate/pkg/domain"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
	dayWindow    = 24 * time.Hour

	// throttleThreshold is the fraction of the per-minute budget beyond
	// which Acquire slows callers down instead of rejecting them.
	throttleThreshold = 0.8

	// reclaimInterval bounds how often Acquire sweeps the agent table for
	// entries whose windows have fully aged out.
	reclaimInterval = time.Hour
)

// RateLimiter enforces per-agent sliding-window limits on executed
// operations. Every operation consumes a request slot; ApiCall operations
// additionally consume an API-call slot with its own tighter windows.
type RateLimiter struct {
	mu        sync.Mutex
	defaults  domain.RateLimits
	agents    map[string]*agentWindows
	now       func() time.Time
	lastSweep time.Time
}

type agentWindows struct {
	limits   domain.RateLimits
	requests []time.Time
	apiCalls []time.Time
}

// NewRateLimiter creates a limiter with the provided limits. Per-agent
// overrides in limits.PerAgent replace the default limits wholesale for
// that agent.
func NewRateLimiter(limits domain.RateLimits) *RateLimiter {
	return &RateLimiter{
		defaults: limits,
		agents:   make(map[string]*agentWindows),
		now:      time.Now,
	}
}

func (rl *RateLimiter) windows(agentID string) *agentWindows {
	w, ok := rl.agents[agentID]
	if !ok {
		limits := rl.defaults
		if override, ok := rl.defaults.PerAgent[agentID]; ok {
			limits = override
		}
		w = &agentWindows{limits: limits}
		rl.agents[agentID] = w
	}
	return w
}

// Acquire reserves a slot for one operation. It returns nil when the
// operation may proceed, or a RateLimitError carrying retryAfterMs when a
// window is exhausted. When usage crosses the throttle threshold the call
// sleeps for the configured throttle delay before returning, honouring
// context cancellation.
func (rl *RateLimiter) Acquire(ctx context.Context, agentID, operationKind string) *domain.Error {
	rl.mu.Lock()
	now := rl.now()
	rl.reclaim(now)
	w := rl.windows(agentID)
	w.prune(now)

	if derr := checkWindows(now, w.requests, [3]windowLimit{
		{minuteWindow, w.limits.RequestsPerMinute, "per-minute"},
		{hourWindow, w.limits.RequestsPerHour, "per-hour"},
		{dayWindow, w.limits.RequestsPerDay, "per-day"},
	}); derr != nil {
		rl.mu.Unlock()
		return derr
	}

	isAPICall := operationKind == "ApiCall"
	if isAPICall {
		if derr := checkWindows(now, w.apiCalls, [3]windowLimit{
			{minuteWindow, w.limits.APICallsPerMinute, "API per-minute"},
			{hourWindow, w.limits.APICallsPerHour, "API per-hour"},
			{0, 0, ""},
		}); derr != nil {
			rl.mu.Unlock()
			return derr
		}
	}

	w.requests = append(w.requests, now)
	if isAPICall {
		w.apiCalls = append(w.apiCalls, now)
	}

	throttle := time.Duration(0)
	if w.limits.ThrottleDelayMs > 0 && w.limits.RequestsPerMinute > 0 {
		used := countSince(w.requests, now.Add(-minuteWindow))
		if float64(used) >= throttleThreshold*float64(w.limits.RequestsPerMinute) {
			throttle = time.Duration(w.limits.ThrottleDelayMs) * time.Millisecond
		}
	}
	rl.mu.Unlock()

	if throttle > 0 {
		timer := time.NewTimer(throttle)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return domain.NewCancellationError("throttle wait cancelled")
		case <-timer.C:
		}
	}
	return nil
}

type windowLimit struct {
	window time.Duration
	limit  int
	label  string
}

func checkWindows(now time.Time, stamps []time.Time, limits [3]windowLimit) *domain.Error {
	for _, wl := range limits {
		if wl.limit <= 0 || wl.window <= 0 {
			continue
		}
		cutoff := now.Add(-wl.window)
		if countSince(stamps, cutoff) < wl.limit {
			continue
		}
		retryAfter := retryAfterMs(now, stamps, cutoff, wl.window)
		return domain.NewRateLimitError(
			fmt.Sprintf("%s rate limit of %d exceeded", wl.label, wl.limit),
			retryAfter)
	}
	return nil
}

// retryAfterMs is the time until the oldest in-window timestamp ages out.
func retryAfterMs(now time.Time, stamps []time.Time, cutoff time.Time, window time.Duration) int64 {
	for _, ts := range stamps {
		if ts.After(cutoff) {
			ms := ts.Add(window).Sub(now).Milliseconds()
			if ms < 1 {
				ms = 1
			}
			return ms
		}
	}
	return window.Milliseconds()
}

func countSince(stamps []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// reclaim drops agent entries whose windows have fully aged out, so a
// long-lived limiter does not accumulate one entry per agent ever seen.
// Runs at most once per reclaimInterval; callers hold the mutex.
func (rl *RateLimiter) reclaim(now time.Time) {
	if now.Sub(rl.lastSweep) < reclaimInterval {
		return
	}
	rl.lastSweep = now
	for id, w := range rl.agents {
		w.prune(now)
		if len(w.requests) == 0 && len(w.apiCalls) == 0 {
			delete(rl.agents, id)
		}
	}
}

// prune drops timestamps older than the widest window so the slices stay
// bounded by the day budget.
func (w *agentWindows) prune(now time.Time) {
	w.requests = pruneBefore(w.requests, now.Add(-dayWindow))
	w.apiCalls = pruneBefore(w.apiCalls, now.Add(-hourWindow))
}

func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}

// RateLimitStats exposes current window usage for one agent.
type RateLimitStats struct {
	RequestsLastMinute int `json:"requestsLastMinute"`
	RequestsLastHour   int `json:"requestsLastHour"`
	RequestsLastDay    int `json:"requestsLastDay"`
	APICallsLastMinute int `json:"apiCallsLastMinute"`
	APICallsLastHour   int `json:"apiCallsLastHour"`

	RequestsPerMinute int `json:"requestsPerMinute"`
	RequestsPerHour   int `json:"requestsPerHour"`
	RequestsPerDay    int `json:"requestsPerDay"`
}

// Stats reports current usage against the agent's limits.
func (rl *RateLimiter) Stats(agentID string) RateLimitStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w := rl.windows(agentID)
	w.prune(now)

	return RateLimitStats{
		RequestsLastMinute: countSince(w.requests, now.Add(-minuteWindow)),
		RequestsLastHour:   countSince(w.requests, now.Add(-hourWindow)),
		RequestsLastDay:    countSince(w.requests, now.Add(-dayWindow)),
		APICallsLastMinute: countSince(w.apiCalls, now.Add(-minuteWindow)),
		APICallsLastHour:   countSince(w.apiCalls, now.Add(-hourWindow)),
		RequestsPerMinute:  w.limits.RequestsPerMinute,
		RequestsPerHour:    w.limits.RequestsPerHour,
		RequestsPerDay:     w.limits.RequestsPerDay,
	}
}
