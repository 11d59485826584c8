// Package provider fetches instrument snapshots from external market data
// sources.
package provider

import (
	"context"
	"strings"

	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/models"
)

// Provider kinds accepted in configuration.
const (
	KindYahoo  = "yahoo"
	KindStatic = "static"
)

// Fetcher retrieves one snapshot per identifier. Implementations must be
// safe for concurrent use and return partial snapshots rather than errors
// when only some fields are missing.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (*models.Snapshot, error)
}

// ValidateKind checks a configured provider kind.
func ValidateKind(kind string) error {
	switch strings.ToLower(kind) {
	case KindYahoo, KindStatic:
		return nil
	}
	return apperrors.Wrapf(apperrors.ErrUnsupportedProviderKind, "%q", kind)
}
