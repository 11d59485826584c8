package valuation

import (
	"dividend-screener/internal/models"
	"dividend-screener/internal/normalize"
)

// Result holds the valuation figures for one snapshot. Ratios are fractions.
type Result struct {
	AnnualDividend  *float64
	RawYieldRatio   *float64 // before the sanity ceiling
	YieldRatio      *float64 // after the sanity ceiling
	PayoutRatio     *float64
	DividendGrowth  *float64
	FairValueYield  *float64
	FairValueGordon *float64
	FairValue       *float64
	UpsidePct       *float64
}

// Engine evaluates snapshots with fixed parameters.
type Engine struct {
	params     Params
	normalizer normalize.Normalizer
}

// NewEngine creates a valuation engine.
func NewEngine(params Params, normalizer normalize.Normalizer) *Engine {
	return &Engine{
		params:     params,
		normalizer: normalizer,
	}
}

// Params returns the engine parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Evaluate derives the valuation figures from a snapshot.
func (e *Engine) Evaluate(s *models.Snapshot) Result {
	var r Result

	price, hasPrice := s.PriceValue()
	if hasPrice && price <= 0 {
		hasPrice = false
	}

	dividend, hasDividend := s.AnnualDividendValue()
	if !hasDividend || dividend < 0 {
		dividend, hasDividend = TrailingDividend(s.DividendHistory)
	}

	// Raw yield: prefer dividend/price, fall back to the provider field.
	switch {
	case hasPrice && hasDividend:
		r.RawYieldRatio = models.Float(dividend / price)
	default:
		r.RawYieldRatio = e.normalizer.ToFraction(s.DividendYield)
	}

	if raw, ok := models.Value(r.RawYieldRatio); ok {
		if capped, ok := e.normalizer.CapYield(raw); ok {
			r.YieldRatio = models.Float(capped)
		}
	}

	// A yield that failed the ceiling makes the dividend figure suspect too.
	yield, hasYield := models.Value(r.YieldRatio)
	switch {
	case hasDividend && (hasYield || !hasPrice) && dividend > 0:
		r.AnnualDividend = models.Float(dividend)
	case hasYield && hasPrice && yield > 0:
		r.AnnualDividend = models.Float(yield * price)
	}

	r.PayoutRatio = e.normalizer.Payout(s.PayoutRatio, s.PayoutUnit)

	if g, ok := DividendCAGR(s.DividendHistory, e.params); ok {
		r.DividendGrowth = models.Float(g)
	}

	if hasPrice && hasYield {
		r.FairValueYield = models.Optional(FairValueYield(price, yield, e.params.NormalizedYield))
	}
	if d0, ok := models.Value(r.AnnualDividend); ok {
		r.FairValueGordon = models.Optional(FairValueGordon(d0, r.DividendGrowth, e.params))
	}

	r.FairValue = Headline(e.params.FairValueModel, r.FairValueYield, r.FairValueGordon)
	if fv, ok := models.Value(r.FairValue); ok && hasPrice {
		r.UpsidePct = models.Optional(Upside(price, fv))
	}

	return r
}
