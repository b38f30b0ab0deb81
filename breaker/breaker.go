// Package breaker implements the process-wide circuit breaker gating tool
// execution. The breaker counts semantic validation failures across all task
// attempts of one agent instance; transient tool and network errors do not
// feed it, so infrastructure blips cannot trip the circuit. Once open it
// stays open until an explicit Reset: prolonged semantic failure usually
// means a misconfigured tool catalog or model, not noise.
package breaker

import "sync"

// DefaultThreshold is the number of validation failures that opens the circuit.
const DefaultThreshold = 5

// CircuitBreaker is a shared failure-threshold gate. It is the only resource
// mutated by multiple concurrent tasks within one goal, so all transitions
// happen under a single mutex.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
	open      bool
}

// New constructs a closed breaker. A threshold <= 0 falls back to DefaultThreshold.
func New(threshold int) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &CircuitBreaker{threshold: threshold}
}

// Allow reports whether tool execution may proceed. It must be consulted
// before every attempt, not just at task entry, so a long-running goal
// observes the breaker opening mid-flight.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return !cb.open
}

// RecordFailure increments the failure counter and flips the breaker open
// when the threshold is reached. Returns true if this call opened the circuit.
func (cb *CircuitBreaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.open {
		return false
	}
	cb.failures++
	if cb.failures >= cb.threshold {
		cb.open = true
		return true
	}
	return false
}

// Open reports whether the circuit is open.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}

// Failures returns the current failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Threshold returns the configured failure threshold.
func (cb *CircuitBreaker) Threshold() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.threshold
}

// Reset closes the circuit and clears the failure counter. This is an
// explicit operator action; the breaker never auto-closes.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.open = false
}
