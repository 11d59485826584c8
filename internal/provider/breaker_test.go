package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/models"
)

// flakyFetcher fails while down is set and counts upstream calls.
type flakyFetcher struct {
	down  bool
	calls int
}

func (f *flakyFetcher) Name() string { return "flaky" }

func (f *flakyFetcher) Fetch(_ context.Context, symbol string) (*models.Snapshot, error) {
	f.calls++
	if symbol == "MISSING" {
		return nil, apperrors.NewFetchError("flaky", symbol, 404, apperrors.ErrSymbolNotFound)
	}
	if f.down {
		return nil, apperrors.NewFetchError("flaky", symbol, 503, apperrors.ErrProviderUnavailable)
	}
	return &models.Snapshot{Identifier: symbol}, nil
}

func newTestBreaker(next Fetcher, clock *time.Time) *Breaker {
	b := NewBreaker(next, BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Minute}, zerolog.Nop())
	b.now = func() time.Time { return *clock }
	return b
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	upstream := &flakyFetcher{down: true}
	b := newTestBreaker(upstream, &clock)

	for i := 0; i < 3; i++ {
		_, err := b.Fetch(ctx, "KO")
		require.Error(t, err)
	}
	assert.Equal(t, CircuitOpen, b.State())

	_, err := b.Fetch(ctx, "KO")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
	assert.Equal(t, 3, upstream.calls, "open circuit must not reach upstream")
	assert.Equal(t, int64(1), b.Rejected())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	upstream := &flakyFetcher{down: true}
	b := newTestBreaker(upstream, &clock)

	for i := 0; i < 3; i++ {
		_, _ = b.Fetch(ctx, "KO")
	}
	require.Equal(t, CircuitOpen, b.State())

	// A failed probe reopens the circuit.
	clock = clock.Add(2 * time.Minute)
	_, err := b.Fetch(ctx, "KO")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, CircuitOpen, b.State())

	// A successful probe closes it.
	clock = clock.Add(2 * time.Minute)
	upstream.down = false
	snap, err := b.Fetch(ctx, "KO")
	require.NoError(t, err)
	assert.Equal(t, "KO", snap.Identifier)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_UnknownSymbolsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	clock := time.Now()
	b := newTestBreaker(&flakyFetcher{}, &clock)

	for i := 0; i < 10; i++ {
		_, err := b.Fetch(ctx, "MISSING")
		assert.ErrorIs(t, err, apperrors.ErrSymbolNotFound)
	}
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	clock := time.Now()
	upstream := &flakyFetcher{}
	b := newTestBreaker(upstream, &clock)

	for i := 0; i < 5; i++ {
		upstream.down = true
		_, _ = b.Fetch(ctx, "KO")
		_, _ = b.Fetch(ctx, "KO")
		upstream.down = false
		_, err := b.Fetch(ctx, "KO")
		require.NoError(t, err)
	}
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_Disabled(t *testing.T) {
	ctx := context.Background()
	upstream := &flakyFetcher{down: true}
	b := NewBreaker(upstream, BreakerConfig{}, zerolog.Nop())

	for i := 0; i < 20; i++ {
		_, err := b.Fetch(ctx, "KO")
		assert.False(t, errors.Is(err, ErrCircuitOpen))
	}
	assert.Equal(t, 20, upstream.calls)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	clock := time.Now()
	b := newTestBreaker(NewStatic(), &clock)

	for i := 0; i < 5; i++ {
		_, err := b.Fetch(ctx, "KO")
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, CircuitClosed, b.State())
}
