package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed is the initial state where requests are allowed.
	Closed State = iota
	// Open state is when the circuit has tripped and requests are blocked.
	Open
	// HalfOpen allows trial requests to test whether the backend recovered.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is in the Open state.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker is the interface for the circuit breaker pattern.
type CircuitBreaker interface {
	// Execute runs the given request if the circuit breaker is closed or half-open.
	Execute(req func() (interface{}, error)) (interface{}, error)
	// State returns the current state of the circuit breaker.
	State() State
	// Name identifies the protected backend in logs.
	Name() string
}

// Option customizes a breaker.
type Option func(*breaker)

// WithName sets the breaker name.
func WithName(name string) Option {
	return func(b *breaker) { b.name = name }
}

// WithStateChange registers a callback invoked after every transition.
// The callback runs without the breaker lock held.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(b *breaker) { b.onStateChange = fn }
}

// WithFailurePredicate decides which errors count against the breaker.
// By default caller cancellation is not a backend failure.
func WithFailurePredicate(fn func(error) bool) Option {
	return func(b *breaker) { b.isFailure = fn }
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *breaker) { b.now = now }
}

type breaker struct {
	name                 string
	failureThreshold     uint32
	successThreshold     uint32
	timeout              time.Duration
	consecutiveSuccesses uint32
	consecutiveFailures  uint32
	openedAt             time.Time
	state                State
	onStateChange        func(name string, from, to State)
	isFailure            func(error) bool
	now                  func() time.Time
	pending              []stateEvent
	mutex                sync.Mutex
}

type stateEvent struct {
	from, to State
}

// New creates a new circuit breaker.
// failureThreshold: consecutive failures required to open the circuit.
// successThreshold: consecutive half-open successes required to close it again.
// timeout: how long the circuit stays open before allowing a trial request.
func New(failureThreshold, successThreshold uint32, timeout time.Duration, opts ...Option) CircuitBreaker {
	if failureThreshold == 0 {
		failureThreshold = 1
	}
	if successThreshold == 0 {
		successThreshold = 1
	}
	b := &breaker{
		name:             "default",
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		state:            Closed,
		isFailure:        defaultIsFailure,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func (b *breaker) Name() string { return b.name }

// State returns the current state of the circuit breaker.
func (b *breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) > b.timeout {
		return HalfOpen
	}
	return b.state
}

// Execute wraps the execution of a function with the circuit breaker logic.
func (b *breaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	b.mutex.Lock()
	if b.state == Open && b.now().Sub(b.openedAt) > b.timeout {
		b.transition(HalfOpen)
	}
	if b.state == Open {
		b.mutex.Unlock()
		return nil, ErrCircuitOpen
	}
	b.mutex.Unlock()

	res, err := req()

	b.mutex.Lock()
	if err != nil && b.isFailure(err) {
		b.onFailure()
	} else if err == nil {
		b.onSuccess()
	}
	fire := b.pending
	b.pending = nil
	b.mutex.Unlock()

	for _, ev := range fire {
		b.onStateChange(b.name, ev.from, ev.to)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Do is a typed helper around Execute.
func Do[T any](cb CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	if cb == nil {
		return fn()
	}
	res, err := cb.Execute(func() (interface{}, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// onSuccess must be called with the lock held.
func (b *breaker) onSuccess() {
	switch b.state {
	case HalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.successThreshold {
			b.consecutiveFailures = 0
			b.consecutiveSuccesses = 0
			b.transition(Closed)
		}
	case Closed:
		b.consecutiveFailures = 0
	}
}

// onFailure must be called with the lock held.
func (b *breaker) onFailure() {
	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.trip()
		}
	}
}

func (b *breaker) trip() {
	b.openedAt = b.now()
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.transition(Open)
}

// transition must be called with the lock held.
func (b *breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.onStateChange != nil {
		b.pending = append(b.pending, stateEvent{from: from, to: to})
	}
}
