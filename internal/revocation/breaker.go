package revocation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrUnavailable is returned without touching the backend while the breaker
// is open.
var ErrUnavailable = errors.New("revocation store unavailable")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// breaker stops calling a failing backend after maxFailures consecutive
// errors. Once cooldown has passed a single probe is let through; its outcome
// closes or reopens the breaker.
type breaker struct {
	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time

	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

func newBreaker(maxFailures int, cooldown time.Duration) *breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

func (b *breaker) do(fn func() error) error {
	if !b.allow() {
		return ErrUnavailable
	}

	err := fn()
	b.record(err)
	return err
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = stateHalfOpen
		return true
	default:
		// probe already in flight
		return false
	}
}

func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = stateClosed
		b.failures = 0
		return
	}

	// the caller gave up, the backend did not fail
	if errors.Is(err, context.Canceled) {
		if b.state == stateHalfOpen {
			b.state = stateOpen
		}
		return
	}

	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.maxFailures {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}

func (b *breaker) State() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
