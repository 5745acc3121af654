package oracle

import (
	"errors"
	"sync"
	"time"
)

// State represents the breaker state around the upstream rate fetch.
type State int

const (
	StateClosed   State = 0 // fetches pass through
	StateOpen     State = 1 // fetches rejected, cached rate served
	StateHalfOpen State = 2 // one probe fetch allowed through
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

// ErrCircuitOpen is returned while the breaker rejects fetches.
var ErrCircuitOpen = errors.New("oracle circuit breaker is open")

// breaker trips after maxFailures consecutive fetch errors and rejects
// fetches for resetTimeout. After the timeout one probe is allowed through:
// success closes the breaker, failure reopens it.
type breaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time

	// OnStateChange is called on transitions (optional, for metrics).
	OnStateChange func(from, to State)
}

func newBreaker(maxFailures int, resetTimeout time.Duration) *breaker {
	return &breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// execute runs fn through the breaker.
func (b *breaker) execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) > b.resetTimeout {
			b.transition(StateHalfOpen)
		} else {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
	case StateHalfOpen:
		// probe in flight is serialized by the caller's refresh lock
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == StateHalfOpen {
			b.transition(StateOpen)
		} else if b.failures >= b.maxFailures {
			b.transition(StateOpen)
		}
		return err
	}

	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
	b.failures = 0
	return nil
}

func (b *breaker) currentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) transition(to State) {
	from := b.state
	b.state = to
	if to == StateClosed {
		b.failures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
}
