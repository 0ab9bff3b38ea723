// Package circuit stops calls to a failing object store for a while instead
// of letting every metadata miss wait out its own retries.
package circuit

import (
	"sync"
	"time"

	"github.com/jacobsa/timeutil"

	"github.com/objectfs/metacache/pkg/errors"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed - circuit breaker is closed, requests pass through
	StateClosed State = iota
	// StateOpen - circuit breaker is open, requests are rejected
	StateOpen
	// StateHalfOpen - circuit breaker allows limited requests to test if service recovered
	StateHalfOpen
)

// String returns string representation of state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config contains circuit breaker configuration
type Config struct {
	// Consecutive failures that open the breaker
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// Period of the open state after which the breaker enters half-open state
	Timeout time.Duration `yaml:"timeout"`

	// Maximum number of requests allowed to pass through when state is half-open
	MaxRequests uint32 `yaml:"max_requests"`

	// Function called when state changes
	OnStateChange func(name string, from State, to State) `yaml:"-"`

	// IsFailure decides whether a call's error counts against the store.
	// Defaults to IsStoreFailure.
	IsFailure func(err error) bool `yaml:"-"`

	Clock timeutil.Clock `yaml:"-"`
}

// Counts holds the numbers of requests and their successes/failures
type Counts struct {
	Requests             uint32    `json:"requests"`
	TotalSuccesses       uint32    `json:"total_successes"`
	TotalFailures        uint32    `json:"total_failures"`
	ConsecutiveSuccesses uint32    `json:"consecutive_successes"`
	ConsecutiveFailures  uint32    `json:"consecutive_failures"`
	LastActivity         time.Time `json:"last_activity"`
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	name   string
	config Config

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

// New creates a closed breaker. Zero config fields get defaults: 5
// failures, a 60s open period and one half-open probe.
func New(name string, config Config) *Breaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRequests == 0 {
		config.MaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = IsStoreFailure
	}
	if config.Clock == nil {
		config.Clock = timeutil.RealClock()
	}

	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
	}
}

// IsStoreFailure reports whether err says the store itself is unhealthy.
// Answers such as not-found or access denied mean the store is up.
func IsStoreFailure(err error) bool {
	if err == nil {
		return false
	}
	return errors.IsRetryable(err) || errors.HasCode(err, errors.ErrCodeConnectionFailed)
}

// Allow admits one call or returns a non-retryable CONNECTION_FAILED error
// while the breaker is open. Every admitted call must be followed by Done.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.config.Clock.Now()
	state := b.currentState(now)

	if state == StateOpen {
		return b.rejected("circuit breaker is open")
	}
	if state == StateHalfOpen && b.counts.Requests >= b.config.MaxRequests {
		return b.rejected("too many requests in half-open state")
	}

	b.counts.Requests++
	b.counts.LastActivity = now
	return nil
}

// Done records the outcome of a call admitted by Allow.
func (b *Breaker) Done(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.config.Clock.Now()
	state := b.currentState(now)

	if !b.config.IsFailure(err) {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen {
			b.setState(StateClosed, now)
		}
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0

	switch state {
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.config.FailureThreshold {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

// Execute runs fn if the breaker allows it
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	b.Done(err)
	return err
}

func (b *Breaker) rejected(msg string) error {
	err := errors.NewError(errors.ErrCodeConnectionFailed, msg).
		WithComponent("circuit").
		WithContext("breaker", b.name).
		WithContext("retry_at", b.expiry.Format(time.RFC3339))
	err.Retryable = false
	return err
}

func (b *Breaker) currentState(now time.Time) State {
	if b.state == StateOpen && !now.Before(b.expiry) {
		b.setState(StateHalfOpen, now)
	}
	return b.state
}

func (b *Breaker) setState(state State, now time.Time) {
	prev := b.state
	if prev == state {
		return
	}

	b.state = state
	b.counts = Counts{}
	b.expiry = time.Time{}
	if state == StateOpen {
		b.expiry = now.Add(b.config.Timeout)
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, prev, state)
	}
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(b.config.Clock.Now())
}

// Counts returns a copy of the current counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Reset closes the breaker and clears its counts
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed, b.config.Clock.Now())
	b.counts = Counts{}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}
