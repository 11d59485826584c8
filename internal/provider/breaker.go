package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/models"
)

// CircuitState is the state of a Breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // normal operation
	CircuitOpen     CircuitState = "OPEN"      // failing fast
	CircuitHalfOpen CircuitState = "HALF_OPEN" // probing for recovery
)

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive provider failures that
	// opens the circuit. Zero disables the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that close it.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before a probe.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the default thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
	}
}

// ErrCircuitOpen is returned while the provider is considered down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker stops calling a provider that keeps failing, so a blocked or
// unreachable upstream costs one cooldown instead of one retry cycle per
// remaining ticker. Unknown symbols do not count as provider failures.
type Breaker struct {
	next   Fetcher
	config BreakerConfig
	logger zerolog.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	openedAt    time.Time
	rejected    int64
	lastFailure error
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Fetcher, config BreakerConfig, logger zerolog.Logger) *Breaker {
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &Breaker{
		next:   next,
		config: config,
		logger: logger.With().Str("component", "breaker").Str("provider", next.Name()).Logger(),
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// Name returns the wrapped provider name.
func (b *Breaker) Name() string {
	return b.next.Name()
}

// Fetch calls the wrapped provider unless the circuit is open.
func (b *Breaker) Fetch(ctx context.Context, symbol string) (*models.Snapshot, error) {
	if err := b.allow(); err != nil {
		return nil, apperrors.NewFetchError(b.Name(), symbol, 0, err)
	}

	snap, err := b.next.Fetch(ctx, symbol)
	switch {
	case err == nil, apperrors.Is(err, apperrors.ErrSymbolNotFound):
		b.recordSuccess()
	case ctx.Err() != nil:
		// cancellation says nothing about the provider
	default:
		b.recordFailure(err)
	}
	return snap, err
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Rejected returns how many fetches were refused while open.
func (b *Breaker) Rejected() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.FailureThreshold <= 0 {
		return nil
	}
	if b.state == CircuitOpen {
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			b.rejected++
			return fmt.Errorf("%w: %w", apperrors.ErrProviderUnavailable, ErrCircuitOpen)
		}
		b.transition(CircuitHalfOpen)
	}
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transition(CircuitClosed)
		}
	case CircuitClosed:
		b.failures = 0
	}
}

func (b *Breaker) recordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.FailureThreshold <= 0 {
		return
	}
	b.lastFailure = err

	switch b.state {
	case CircuitClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		b.transition(CircuitOpen)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(state CircuitState) {
	from := b.state
	b.state = state
	b.failures = 0
	b.successes = 0
	if state == CircuitOpen {
		b.openedAt = b.now()
	}

	event := b.logger.Info()
	if state == CircuitOpen {
		event = b.logger.Warn().AnErr("last_error", b.lastFailure).Dur("cooldown", b.config.Cooldown)
	}
	event.Str("from", string(from)).Str("to", string(state)).Msg("Provider circuit state changed")
}
