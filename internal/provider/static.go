package provider

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"

	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/models"
)

// Static serves snapshots from memory. It backs offline runs from a
// fixtures file and tests.
type Static struct {
	mu        sync.RWMutex
	snapshots map[string]models.Snapshot
	failures  map[string]error
}

// NewStatic creates a static provider holding the given snapshots.
func NewStatic(snapshots ...models.Snapshot) *Static {
	s := &Static{
		snapshots: make(map[string]models.Snapshot, len(snapshots)),
		failures:  make(map[string]error),
	}
	for _, snap := range snapshots {
		s.Add(snap)
	}
	return s
}

// LoadFixtures reads a JSON array of snapshots.
func LoadFixtures(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewDataError("fixtures", path, "read failed", err)
	}

	var snapshots []models.Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, apperrors.NewDataError("fixtures", path, "parse failed", err)
	}
	return NewStatic(snapshots...), nil
}

// Add stores or replaces a snapshot.
func (s *Static) Add(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Identifier = strings.ToUpper(snap.Identifier)
	s.snapshots[snap.Identifier] = snap
}

// Fail makes Fetch return err for symbol.
func (s *Static) Fail(symbol string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[strings.ToUpper(symbol)] = err
}

// Name returns the provider name.
func (s *Static) Name() string {
	return KindStatic
}

// Fetch returns a copy of the stored snapshot.
func (s *Static) Fetch(ctx context.Context, symbol string) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err, ok := s.failures[symbol]; ok {
		return nil, apperrors.NewFetchError(s.Name(), symbol, 0, err)
	}
	snap, ok := s.snapshots[symbol]
	if !ok {
		return nil, apperrors.NewFetchError(s.Name(), symbol, 0, apperrors.ErrSymbolNotFound)
	}

	snap.DividendHistory = append([]models.DividendPayment(nil), snap.DividendHistory...)
	return &snap, nil
}
