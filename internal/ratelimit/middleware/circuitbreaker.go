package middleware

import "sync"

// CircuitBreaker tracks consecutive counter store errors so checks can be
// routed to the in-memory fallback during an outage:
// - Open after failureThreshold consecutive primary errors.
// - While open, let one request in probeInterval through to probe the primary.
// - Close again after successThreshold consecutive probe successes.
// Responses served from the fallback carry X-RateLimit-Status: degraded.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            circuitState
	failureCount     int
	successCount     int
	probeCount       int
	failureThreshold int
	successThreshold int
	probeInterval    int
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
)

func newCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		state:            circuitClosed,
		failureThreshold: 5,
		successThreshold: 3,
		probeInterval:    10,
	}
}

func (c *CircuitBreaker) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == circuitOpen
}

// Allow reports whether this request should try the primary limiter. While
// the circuit is closed every request does; while open only every Nth
// request probes, the rest go straight to the fallback.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == circuitClosed {
		return true
	}
	c.probeCount++
	return c.probeCount%c.probeInterval == 0
}

// RecordFailure notes a primary error and returns true when this failure
// opened the circuit.
func (c *CircuitBreaker) RecordFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	c.successCount = 0
	if c.state == circuitOpen {
		return false
	}
	if c.failureCount >= c.failureThreshold {
		c.state = circuitOpen
		return true
	}
	return false
}

// RecordSuccess notes a primary success and reports whether the primary's
// answer can be trusted. While the circuit is open it keeps returning false
// until enough consecutive probes succeed to close it.
func (c *CircuitBreaker) RecordSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == circuitOpen {
		c.successCount++
		if c.successCount >= c.successThreshold {
			c.state = circuitClosed
			c.failureCount = 0
			c.successCount = 0
			c.probeCount = 0
			return true
		}
		return false
	}
	c.failureCount = 0
	return true
}
