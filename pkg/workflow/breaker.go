package workflow

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker rejects calls
var ErrOpen = errors.New("circuit breaker is open")

// State is the state of a Breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String implements the Stringer interface for State
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

// Breaker stops calling an operation after repeated failures. It opens
// after Threshold consecutive failures, rejects calls for Cooldown, then
// lets a single probe through: success closes it, failure reopens it.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
	// generation changes on every state transition. Results of calls
	// admitted under an earlier generation are ignored.
	generation uint64
}

// NewBreaker creates a closed breaker
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// State returns the current state, moving open to half-open once the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Do runs fn unless the breaker is open. A result is only applied when
// the breaker has not changed state since fn was admitted.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	b.mu.Lock()
	b.advance()
	probe := false
	switch {
	case b.state == StateOpen:
		b.mu.Unlock()
		return ErrOpen
	case b.state == StateHalfOpen && b.probing:
		b.mu.Unlock()
		return ErrOpen
	case b.state == StateHalfOpen:
		b.probing = true
		probe = true
	}
	generation := b.generation
	b.mu.Unlock()

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probing = false
	}
	if generation != b.generation {
		return err
	}

	if err == nil {
		b.failures = 0
		if b.state != StateClosed {
			b.transition(StateClosed)
		}
		return nil
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.transition(StateOpen)
		b.openedAt = b.now()
	}
	return err
}

// transition must be called with mu held
func (b *Breaker) transition(state State) {
	b.state = state
	b.generation++
}

// advance must be called with mu held
func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.transition(StateHalfOpen)
	}
}
