package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Execute while the circuit rejects calls
var ErrOpen = errors.New("circuit breaker is open")

// CircuitBreaker fails fast once a dependency keeps failing. After timeout
// it lets a single probe through; successThreshold consecutive successful
// probes close it again.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failures         int32
	successes        int32
	openedAt         time.Time
	probing          bool
	failureThreshold int32
	successThreshold int32
	timeout          time.Duration
	onStateChange    func(from, to State)
	now              func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(failureThreshold, successThreshold int32, timeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if successThreshold < 1 {
		successThreshold = 1
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		now:              time.Now,
	}
}

// SetStateChangeCallback registers a callback for state transitions. It is
// called without the breaker's lock held.
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Execute runs fn when the circuit allows it and records the outcome
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.AllowRequest() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// AllowRequest reports whether a call may proceed. In half-open state only
// one call is in flight at a time.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	var from State
	transitioned := false

	allowed := false
	switch cb.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.timeout {
			from, transitioned = cb.transition(StateHalfOpen)
			cb.probing = true
			allowed = true
		}
	case StateHalfOpen:
		if !cb.probing {
			cb.probing = true
			allowed = true
		}
	}
	fn := cb.onStateChange
	cb.mu.Unlock()

	if transitioned && fn != nil {
		fn(from, StateHalfOpen)
	}
	return allowed
}

// RecordSuccess counts a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	var from State
	transitioned := false

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probing = false
		cb.successes++
		if cb.successes >= cb.successThreshold {
			from, transitioned = cb.transition(StateClosed)
		}
	}
	fn := cb.onStateChange
	cb.mu.Unlock()

	if transitioned && fn != nil {
		fn(from, StateClosed)
	}
}

// RecordFailure counts a failed call and may trip the circuit
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	var from State
	transitioned := false

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			from, transitioned = cb.transition(StateOpen)
		}
	case StateHalfOpen:
		from, transitioned = cb.transition(StateOpen)
	}
	fn := cb.onStateChange
	cb.mu.Unlock()

	if transitioned && fn != nil {
		fn(from, StateOpen)
	}
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transition must be called with mu held
func (cb *CircuitBreaker) transition(to State) (State, bool) {
	from := cb.state
	if from == to {
		return from, false
	}
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	cb.probing = false
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	return from, true
}
