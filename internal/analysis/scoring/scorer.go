// Package scoring turns valuation figures into a bounded composite score,
// a signal label, a confidence level and human-readable reason tags.
package scoring

import (
	"math"

	"dividend-screener/internal/analysis/valuation"
	"dividend-screener/internal/models"
)

// Weights defines the weight of each sub-score in the composite score.
type Weights struct {
	Yield     float64
	Growth    float64
	Valuation float64
}

// DefaultWeights returns the default sub-score weights.
func DefaultWeights() Weights {
	return Weights{
		Yield:     0.35,
		Growth:    0.35,
		Valuation: 0.30,
	}
}

// Ramps defines the linear ramps that map raw figures to sub-scores.
type Ramps struct {
	YieldCeiling  float64 // yield fraction that scores 100
	GrowthCeiling float64 // growth fraction that scores 100
	PEBest        float64 // P/E at or below which valuation scores 100
	PEWorst       float64 // P/E at or above which valuation scores 0
	PEMissing     float64 // valuation sub-score when P/E is absent
	GrowthMissing float64 // growth sub-score when growth is absent
}

// DefaultRamps returns the default ramps.
func DefaultRamps() Ramps {
	return Ramps{
		YieldCeiling:  0.06,
		GrowthCeiling: 0.15,
		PEBest:        10,
		PEWorst:       30,
		PEMissing:     40,
		GrowthMissing: 0,
	}
}

// Thresholds defines the signal tiers.
type Thresholds struct {
	Gold         float64 // minimum score for GOLD
	GoldUpside   float64 // minimum upside fraction for GOLD
	Buy          float64
	Hold         float64
	SpecialYield float64 // raw yield fraction above which a dividend is treated as special
}

// DefaultThresholds returns the default signal tiers.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Gold:         85,
		GoldUpside:   0.10,
		Buy:          70,
		Hold:         55,
		SpecialYield: 0.12,
	}
}

// Scorer combines valuation figures into a composite score and signal.
// A Scorer holds no mutable state and is safe for concurrent use.
type Scorer struct {
	weights    Weights
	ramps      Ramps
	thresholds Thresholds
	payout     PayoutPolicy
	classes    ClassBook
}

// NewScorer creates a scorer with default settings.
func NewScorer() *Scorer {
	return &Scorer{
		weights:    DefaultWeights(),
		ramps:      DefaultRamps(),
		thresholds: DefaultThresholds(),
		payout:     DefaultPayoutPolicy(),
		classes:    DefaultClassBook(),
	}
}

// NewScorerWith creates a scorer with custom settings.
func NewScorerWith(weights Weights, ramps Ramps, thresholds Thresholds, payout PayoutPolicy, classes ClassBook) *Scorer {
	if classes == nil {
		classes = DefaultClassBook()
	}
	return &Scorer{
		weights:    weights,
		ramps:      ramps,
		thresholds: thresholds,
		payout:     payout,
		classes:    classes,
	}
}

// Score calculates the composite score in [0, 100] from yield, growth and
// P/E. It depends on nothing but its arguments.
func (s *Scorer) Score(yield, growth, pe *float64) (float64, models.SubScores) {
	sub := models.SubScores{
		Yield:     s.yieldScore(yield),
		Growth:    s.growthScore(growth),
		Valuation: s.valuationScore(pe),
	}

	total := sub.Yield*s.weights.Yield +
		sub.Growth*s.weights.Growth +
		sub.Valuation*s.weights.Valuation

	if math.IsNaN(total) {
		total = 0
	}
	return clamp(total, 0, 100), sub
}

// yieldScore ramps from 0 at no yield to 100 at the ceiling.
func (s *Scorer) yieldScore(yield *float64) float64 {
	y, ok := models.Value(yield)
	if !ok {
		return 0
	}
	return ramp(y, 0, s.ramps.YieldCeiling)
}

// growthScore ramps from 0 at 0% to 100 at the ceiling; shrinking
// dividends score 0.
func (s *Scorer) growthScore(growth *float64) float64 {
	g, ok := models.Value(growth)
	if !ok {
		return clamp(s.ramps.GrowthMissing, 0, 100)
	}
	return ramp(g, 0, s.ramps.GrowthCeiling)
}

// valuationScore rewards a lower P/E. Absent P/E gets a neutral score
// rather than the worst one.
func (s *Scorer) valuationScore(pe *float64) float64 {
	v, ok := models.Value(pe)
	if !ok {
		return clamp(s.ramps.PEMissing, 0, 100)
	}
	if v < 0 {
		return 0
	}
	return 100 - ramp(v, s.ramps.PEBest, s.ramps.PEWorst)
}

// ramp maps x linearly from [lo, hi] onto [0, 100], clamped at both ends.
func ramp(x, lo, hi float64) float64 {
	if hi <= lo {
		if x >= hi {
			return 100
		}
		return 0
	}
	if x <= lo {
		return 0
	}
	if x >= hi {
		return 100
	}
	return (x - lo) / (hi - lo) * 100
}

// clamp restricts a value to the given range.
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Evaluate scores a snapshot with its valuation result and returns the
// complete derived record.
func (s *Scorer) Evaluate(snap *models.Snapshot, v valuation.Result) models.Valuation {
	score, sub := s.Score(v.YieldRatio, v.DividendGrowth, snap.PriceEarnings)
	special := s.IsSpecialDividend(v.RawYieldRatio)
	category := Categorize(snap.Sector, snap.Industry)
	payoutWarning := s.payout.Warn(category, v.PayoutRatio)
	class := s.classes.Lookup(snap.Identifier)

	out := models.Valuation{
		YieldRatio:      v.YieldRatio,
		RawYieldRatio:   v.RawYieldRatio,
		PayoutRatio:     v.PayoutRatio,
		AnnualDividend:  v.AnnualDividend,
		DividendGrowth:  v.DividendGrowth,
		FairValueYield:  v.FairValueYield,
		FairValueGordon: v.FairValueGordon,
		FairValue:       v.FairValue,
		UpsidePct:       v.UpsidePct,
		Score:           score,
		SubScores:       sub,
		Signal:          s.Classify(score, v.UpsidePct, special),
		SpecialDividend: special,
		PayoutWarning:   payoutWarning,
		DividendClass:   class,
		SectorCategory:  category,
	}
	out.Confidence = s.Confidence(out)
	out.Reasons = s.Reasons(out)
	return out
}
