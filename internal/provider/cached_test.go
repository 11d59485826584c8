package provider

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/models"
)

type memoryCache struct {
	mu    sync.Mutex
	items map[string]models.Snapshot
	now   time.Time
}

func (m *memoryCache) SaveSnapshot(_ context.Context, snap *models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[strings.ToUpper(snap.Identifier)] = *snap
	return nil
}

func (m *memoryCache) GetSnapshot(_ context.Context, symbol string, maxAge time.Duration) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.items[strings.ToUpper(symbol)]
	if !ok || (maxAge > 0 && m.now.Sub(snap.FetchedAt) > maxAge) {
		return nil, apperrors.ErrDataNotFound
	}
	return &snap, nil
}

func TestCached_ReadThrough(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	cache := &memoryCache{items: map[string]models.Snapshot{}, now: now}
	upstream := NewStatic(models.Snapshot{Identifier: "KO", Price: models.Float(60), FetchedAt: now})
	c := NewCached(upstream, cache, time.Hour, zerolog.Nop())

	snap, err := c.Fetch(context.Background(), "KO")
	require.NoError(t, err)
	assert.InDelta(t, 60, *snap.Price, 1e-9)
	assert.Contains(t, cache.items, "KO", "fetched snapshot is stored")

	// upstream changes; the fresh cache entry still wins
	upstream.Add(models.Snapshot{Identifier: "KO", Price: models.Float(70), FetchedAt: now})
	snap, err = c.Fetch(context.Background(), "KO")
	require.NoError(t, err)
	assert.InDelta(t, 60, *snap.Price, 1e-9)
	assert.Equal(t, "static", c.Name())
}

func TestCached_ServesStaleOnFailure(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	cache := &memoryCache{
		items: map[string]models.Snapshot{
			"PEP": {Identifier: "PEP", Price: models.Float(150), FetchedAt: now.Add(-72 * time.Hour)},
		},
		now: now,
	}
	upstream := NewStatic()
	upstream.Fail("PEP", apperrors.ErrProviderUnavailable)
	c := NewCached(upstream, cache, time.Hour, zerolog.Nop())

	snap, err := c.Fetch(context.Background(), "PEP")
	require.NoError(t, err)
	assert.InDelta(t, 150, *snap.Price, 1e-9)

	_, err = c.Fetch(context.Background(), "MISSING")
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotFound)
}

func TestStatic_FetchCopies(t *testing.T) {
	s := NewStatic(models.Snapshot{
		Identifier:      "ko",
		DividendHistory: []models.DividendPayment{{Amount: 1}},
	})

	a, err := s.Fetch(context.Background(), "KO")
	require.NoError(t, err)
	a.DividendHistory[0].Amount = 99

	b, err := s.Fetch(context.Background(), "KO")
	require.NoError(t, err)
	assert.InDelta(t, 1, b.DividendHistory[0].Amount, 1e-9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Fetch(ctx, "KO")
	assert.ErrorIs(t, err, context.Canceled)
}
