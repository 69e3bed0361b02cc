// Package circuitbreaker stops calling an upstream that keeps failing and
// tries it again after a cool-down.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/defi-health-scanner/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means a limited number of trial requests are allowed
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyRequests is returned when the half-open trial budget is used up
var ErrTooManyRequests = errors.New("too many requests in half-open state")

// Config configures a circuit breaker
type Config struct {
	Name string
	// MinCalls is the number of calls observed before the failure rate is considered
	MinCalls int
	// FailureThreshold is the failure rate (0.0-1.0) that opens the circuit
	FailureThreshold float64
	// ConsecutiveFailures opens the circuit regardless of rate
	ConsecutiveFailures int
	// Cooldown is how long the circuit stays open before probing
	Cooldown time.Duration
	// HalfOpenTrials is how many successful trials close the circuit again
	HalfOpenTrials int
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:                name,
		MinCalls:            10,
		FailureThreshold:    0.5,
		ConsecutiveFailures: 5,
		Cooldown:            30 * time.Second,
		HalfOpenTrials:      2,
	}
}

// CircuitBreaker tracks failures of one upstream
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu          sync.Mutex
	state       State
	calls       int
	failures    int
	consecutive int
	inFlight    int
	trialsOK    int
	openedAt    time.Time
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(cfg *Config) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultConfig("default")
	}
	return &CircuitBreaker{cfg: *cfg, now: time.Now, state: StateClosed}
}

// Allow reports whether a call may proceed. Every allowed call must be followed by Record.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.inFlight >= cb.cfg.HalfOpenTrials {
			return ErrTooManyRequests
		}
	}
	cb.inFlight++
	return nil
}

// Record reports the outcome of an allowed call
func (cb *CircuitBreaker) Record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.inFlight > 0 {
		cb.inFlight--
	}

	if cb.state == StateHalfOpen {
		if failed {
			cb.transition(StateOpen)
			return
		}
		cb.trialsOK++
		if cb.trialsOK >= cb.cfg.HalfOpenTrials {
			cb.transition(StateClosed)
		}
		return
	}

	cb.calls++
	if !failed {
		cb.consecutive = 0
		return
	}
	cb.failures++
	cb.consecutive++

	rateTripped := cb.calls >= cb.cfg.MinCalls && float64(cb.failures)/float64(cb.calls) >= cb.cfg.FailureThreshold
	if rateTripped || cb.consecutive >= cb.cfg.ConsecutiveFailures {
		cb.transition(StateOpen)
	}
}

// Execute runs fn if the circuit allows it and records whether it failed
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	cb.Record(err != nil)
	return err
}

// transition must be called with mu held
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	logging.WithFields(map[string]interface{}{
		"circuitBreaker": cb.cfg.Name,
		"from":           cb.state,
		"to":             to,
		"failures":       cb.failures,
		"calls":          cb.calls,
	}).Warn("circuit breaker state change")

	cb.state = to
	cb.calls, cb.failures, cb.consecutive, cb.trialsOK = 0, 0, 0, 0
	if to == StateOpen {
		cb.openedAt = cb.now()
		cb.inFlight = 0
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Manager hands out one breaker per upstream name
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewManager creates an empty manager
func NewManager() *Manager {
	return &Manager{breakers: make(map[string]*CircuitBreaker)}
}

// GetOrCreate returns the breaker for name, creating it from the default config if needed
func (m *Manager) GetOrCreate(name string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(DefaultConfig(name))
	m.breakers[name] = cb
	return cb
}

// States returns the state of every breaker
func (m *Manager) States() map[string]State {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]State, len(m.breakers))
	for name, cb := range m.breakers {
		out[name] = cb.State()
	}
	return out
}
