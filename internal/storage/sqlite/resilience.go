package sqlite

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a three-state circuit breaker guarding the SQLite store.
// CLOSED -> OPEN after `threshold` consecutive failures; OPEN -> HALF_OPEN
// after `resetTimeout`; a single probe then closes or re-opens it.
type Breaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	threshold   int
	resetAfter  time.Duration
	lastFailure time.Time
	nowFunc     func() time.Time
}

func NewBreaker(threshold int, resetAfter time.Duration) *Breaker {
	return &Breaker{threshold: threshold, resetAfter: resetAfter, nowFunc: time.Now}
}

func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case stateOpen:
		if b.nowFunc().Sub(b.lastFailure) < b.resetAfter {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = stateHalfOpen
	case stateHalfOpen:
		// One probe per reset cycle.
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.state == stateHalfOpen || b.failures >= b.threshold {
			b.state = stateOpen
			b.lastFailure = b.nowFunc()
		}
		return err
	}
	b.state = stateClosed
	b.failures = 0
	return nil
}

func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

const (
	retryAttempts  = 7
	retryBaseDelay = 50 * time.Millisecond
	retryJitterPct = 0.25
)

// retryOnLock retries fn with exponential backoff and jitter while it keeps
// failing with SQLite's "database is locked".
func retryOnLock(fn func() error) error {
	return retryOnLockWith(fn, time.Sleep)
}

func retryOnLockWith(fn func() error, sleep func(time.Duration)) error {
	err := fn()
	for attempt := 1; attempt <= retryAttempts && isLocked(err); attempt++ {
		delay := retryBaseDelay * (1 << (attempt - 1))
		sleep(delay + time.Duration(float64(delay)*rand.Float64()*retryJitterPct))
		err = fn()
	}
	return err
}

func isLocked(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "database is locked")
}
