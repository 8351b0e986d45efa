package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

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
		return "half_open"
	}
	return "unknown"
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker fails calls fast after maxFailures consecutive failures. It
// never retries; a rejected or failed call is returned to the caller as is.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu              sync.Mutex
	failureCount    int
	lastFailureTime time.Time
	state           State
	trialInFlight   bool

	onStateChange func(from, to State)
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        StateClosed,
	}
}

// OnStateChange registers a callback invoked (outside the lock) on every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	cb.onStateChange = fn
	cb.mu.Unlock()
}

var errPanicked = errors.New("call panicked")

// Execute runs fn unless the breaker is open. Only the call admitted as the
// half-open trial decides whether the breaker closes again; a panic in fn is
// recorded as a failure and re-raised.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	trial, err := cb.before()
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			cb.after(trial, errPanicked)
			panic(r)
		}
		cb.after(trial, err)
	}()
	return fn(ctx)
}

func (cb *CircuitBreaker) before() (bool, error) {
	cb.mu.Lock()
	var from, to State
	changed := false

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) <= cb.resetTimeout {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		from, to, changed = cb.state, StateHalfOpen, true
		cb.state = StateHalfOpen
		cb.failureCount = 0
	}
	trial := false
	if cb.state == StateHalfOpen {
		// one trial call at a time
		if cb.trialInFlight {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		cb.trialInFlight = true
		trial = true
	}
	hook := cb.onStateChange
	cb.mu.Unlock()

	if changed && hook != nil {
		hook(from, to)
	}
	return trial, nil
}

// after records the outcome of a call. Results of calls admitted while closed
// are ignored once the breaker has left the closed state.
func (cb *CircuitBreaker) after(trial bool, err error) {
	cb.mu.Lock()
	from := cb.state
	if trial {
		cb.trialInFlight = false
	}

	switch {
	case !trial && cb.state != StateClosed:
	case err != nil:
		cb.failureCount++
		cb.lastFailureTime = cb.now()
		if trial || cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
		}
	default:
		cb.failureCount = 0
		cb.state = StateClosed
	}
	to := cb.state
	hook := cb.onStateChange
	cb.mu.Unlock()

	if from != to && hook != nil {
		hook(from, to)
	}
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
