// Package normalize converts provider ratios of ambiguous scale into the
// canonical fraction unit used throughout the screener.
//
// A raw value v with |v| <= PercentThreshold is read as a fraction, anything
// larger as a percentage. The rule cannot tell 1.2 (a 120% payout written as
// a fraction) from 1.2 (a 1.2% yield written as a percentage); values in that
// band are read as fractions.
package normalize

import (
	"math"

	"dividend-screener/internal/models"
)

const (
	// DefaultPercentThreshold separates fractions from percentages.
	DefaultPercentThreshold = 1.5
	// DefaultYieldCeiling is the largest yield fraction accepted as real.
	DefaultYieldCeiling = 0.40
)

// Normalizer holds the heuristics for ratio conversion.
type Normalizer struct {
	PercentThreshold float64
	YieldCeiling     float64
}

// New creates a normalizer, substituting defaults for non-positive settings.
func New(percentThreshold, yieldCeiling float64) Normalizer {
	if percentThreshold <= 0 {
		percentThreshold = DefaultPercentThreshold
	}
	if yieldCeiling <= 0 {
		yieldCeiling = DefaultYieldCeiling
	}
	return Normalizer{
		PercentThreshold: percentThreshold,
		YieldCeiling:     yieldCeiling,
	}
}

// Default returns a normalizer with the default heuristics.
func Default() Normalizer {
	return New(DefaultPercentThreshold, DefaultYieldCeiling)
}

// IsFraction reports whether v would be read as a fraction.
func (n Normalizer) IsFraction(v float64) bool {
	return math.Abs(v) <= n.PercentThreshold
}

// ToFraction converts a raw ratio to a fraction.
func (n Normalizer) ToFraction(v *float64) *float64 {
	raw, ok := models.Value(v)
	if !ok {
		return nil
	}
	if n.IsFraction(raw) {
		return models.Float(raw)
	}
	return models.Float(raw / 100)
}

// ToPercent converts a raw ratio to a percentage.
func (n Normalizer) ToPercent(v *float64) *float64 {
	raw, ok := models.Value(v)
	if !ok {
		return nil
	}
	if n.IsFraction(raw) {
		return models.Float(raw * 100)
	}
	return models.Float(raw)
}

// Convert converts a raw ratio into the requested unit.
func (n Normalizer) Convert(v *float64, unit models.Unit) *float64 {
	if unit == models.UnitPercent {
		return n.ToPercent(v)
	}
	return n.ToFraction(v)
}

// Yield converts a raw yield to a fraction and drops negative values and
// values above the ceiling as data errors.
func (n Normalizer) Yield(v *float64) *float64 {
	f, ok := models.Value(n.ToFraction(v))
	if !ok || f < 0 || f > n.YieldCeiling {
		return nil
	}
	return models.Float(f)
}

// CapYield applies the ceiling to a yield that is already a fraction.
func (n Normalizer) CapYield(fraction float64) (float64, bool) {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) || fraction < 0 || fraction > n.YieldCeiling {
		return 0, false
	}
	return fraction, true
}

// Payout converts a raw payout ratio in the given unit to a fraction. An
// empty unit falls back to the magnitude heuristic. Negative payouts
// (companies with losses) are dropped.
func (n Normalizer) Payout(v *float64, unit models.Unit) *float64 {
	var (
		f  float64
		ok bool
	)
	switch unit {
	case models.UnitFraction:
		f, ok = models.Value(v)
	case models.UnitPercent:
		f, ok = models.Value(v)
		f /= 100
	default:
		f, ok = models.Value(n.ToFraction(v))
	}
	if !ok || f < 0 {
		return nil
	}
	return models.Float(f)
}

// FractionTo renders a canonical fraction in the requested unit. Unlike
// Convert it never guesses: the input is known to be a fraction.
func FractionTo(v *float64, unit models.Unit) *float64 {
	f, ok := models.Value(v)
	if !ok {
		return nil
	}
	if unit == models.UnitPercent {
		return models.Float(f * 100)
	}
	return models.Float(f)
}
