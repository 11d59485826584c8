package provider

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/logging"
	"dividend-screener/internal/models"
)

// SnapshotCache is the persistence a Cached fetcher reads through.
type SnapshotCache interface {
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	GetSnapshot(ctx context.Context, symbol string, maxAge time.Duration) (*models.Snapshot, error)
}

// Cached wraps a Fetcher with a snapshot cache. Fresh entries are served
// without a network call; when the upstream fetch fails, a stale entry is
// served instead of the error.
type Cached struct {
	next   Fetcher
	cache  SnapshotCache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCached creates a read-through cache in front of next.
func NewCached(next Fetcher, cache SnapshotCache, ttl time.Duration, logger zerolog.Logger) *Cached {
	return &Cached{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Name returns the wrapped provider name.
func (c *Cached) Name() string {
	return c.next.Name()
}

// Fetch serves a fresh cached snapshot or fetches and stores a new one.
func (c *Cached) Fetch(ctx context.Context, symbol string) (*models.Snapshot, error) {
	start := time.Now()

	if snap, err := c.cache.GetSnapshot(ctx, symbol, c.ttl); err == nil {
		logging.LogFetch(c.logger, c.Name(), symbol, time.Since(start), true, nil)
		return snap, nil
	} else if !apperrors.Is(err, apperrors.ErrDataNotFound) {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Snapshot cache read failed")
	}

	snap, err := c.next.Fetch(ctx, symbol)
	if err != nil {
		if stale, cerr := c.cache.GetSnapshot(ctx, symbol, 0); cerr == nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).
				Time("fetched_at", stale.FetchedAt).
				Msg("Fetch failed, serving stale snapshot")
			return stale, nil
		}
		return nil, err
	}

	if err := c.cache.SaveSnapshot(ctx, snap); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache snapshot")
	}
	return snap, nil
}
