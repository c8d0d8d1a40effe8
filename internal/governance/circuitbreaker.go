package governance

import (
	"fmt"
	"sync"
	"time"

	"github.com/flowgate/flowgate/pkg/domain"
)

// CircuitState is the state of one host's breaker.
type CircuitState string

const (
	// StateClosed allows calls through.
	StateClosed CircuitState = "closed"
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen CircuitState = "open"
	// StateHalfOpen lets a single probe call decide the next state.
	StateHalfOpen CircuitState = "half-open"
)

// CircuitBreakerConfig defines thresholds shared by all host breakers.
type CircuitBreakerConfig struct {
	// MaxFailures is the consecutive transient-failure count that opens
	// the circuit. Zero disables circuit breaking.
	MaxFailures int
	// Cooldown is how long an open circuit rejects calls before allowing
	// a probe.
	Cooldown time.Duration
}

// DefaultCircuitBreakerConfig returns the defaults used for outbound
// API hosts.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures: 5,
		Cooldown:    30 * time.Second,
	}
}

// CircuitBreaker tracks transient failures per upstream host and fails
// fast once a host looks unhealthy, sparing the retry budget.
type CircuitBreaker struct {
	mu     sync.Mutex
	config CircuitBreakerConfig
	hosts  map[string]*hostCircuit
	now    func() time.Time
}

type hostCircuit struct {
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a breaker with the given thresholds.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		config: config,
		hosts:  make(map[string]*hostCircuit),
		now:    time.Now,
	}
}

func (cb *CircuitBreaker) host(name string) *hostCircuit {
	h, ok := cb.hosts[name]
	if !ok {
		h = &hostCircuit{state: StateClosed}
		cb.hosts[name] = h
	}
	return h
}

// Allow reports whether a call to host may proceed. When the circuit is
// open it returns a retryable error carrying the remaining cooldown.
func (cb *CircuitBreaker) Allow(host string) *domain.Error {
	if cb.config.MaxFailures <= 0 {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	h := cb.host(host)
	switch h.state {
	case StateClosed:
		return nil
	case StateOpen:
		remaining := cb.config.Cooldown - cb.now().Sub(h.openedAt)
		if remaining > 0 {
			return domain.NewRetryableError(
				fmt.Sprintf("circuit open for host %s", host)).
				WithContext("retryAfterMs", remaining.Milliseconds())
		}
		h.state = StateHalfOpen
		h.probing = true
		return nil
	default: // half-open
		if h.probing {
			return domain.NewRetryableError(
				fmt.Sprintf("circuit probing host %s", host))
		}
		h.probing = true
		return nil
	}
}

// RecordSuccess closes the host's circuit.
func (cb *CircuitBreaker) RecordSuccess(host string) {
	if cb.config.MaxFailures <= 0 {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	h := cb.host(host)
	h.state = StateClosed
	h.failures = 0
	h.probing = false
}

// RecordFailure counts a transient failure; non-transient failures do
// not move the circuit. The circuit opens at the configured threshold
// and reopens immediately when a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure(host string, err error) {
	if cb.config.MaxFailures <= 0 || !IsRetryable(err) {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	h := cb.host(host)
	h.failures++
	h.probing = false
	if h.state == StateHalfOpen || h.failures >= cb.config.MaxFailures {
		h.state = StateOpen
		h.openedAt = cb.now()
	}
}

// State returns the host's current circuit state.
func (cb *CircuitBreaker) State(host string) CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.host(host).state
}
