package scoring

import (
	"dividend-screener/internal/models"
)

// Classify maps a score to a signal tier. A special dividend forces WATCH
// regardless of score.
func (s *Scorer) Classify(score float64, upside *float64, special bool) models.Signal {
	if special {
		return models.SignalWatch
	}

	u, hasUpside := models.Value(upside)
	switch {
	case score >= s.thresholds.Gold && hasUpside && u >= s.thresholds.GoldUpside:
		return models.SignalGold
	case score >= s.thresholds.Buy:
		return models.SignalBuy
	case score >= s.thresholds.Hold:
		return models.SignalHold
	default:
		return models.SignalWatch
	}
}

// IsSpecialDividend reports whether the pre-ceiling yield is high enough to
// suggest a one-off distribution or a data error.
func (s *Scorer) IsSpecialDividend(rawYield *float64) bool {
	y, ok := models.Value(rawYield)
	return ok && s.thresholds.SpecialYield > 0 && y > s.thresholds.SpecialYield
}

// Confidence grades how far the signal can be trusted. Special dividends
// and payout warnings are always low.
//   - payout under 75% with growth above 5% is high
//   - payout under 100% is medium, raised to high for Kings and Aristocrats
//   - anything else, including an unknown payout, is low
func (s *Scorer) Confidence(v models.Valuation) models.Confidence {
	if v.PayoutWarning || v.SpecialDividend {
		return models.ConfidenceLow
	}

	payout, hasPayout := models.Value(v.PayoutRatio)
	growth, hasGrowth := models.Value(v.DividendGrowth)

	switch {
	case hasPayout && payout < 0.75 && hasGrowth && growth > 0.05:
		return models.ConfidenceHigh
	case hasPayout && payout < 1.0:
		if v.DividendClass == models.ClassKing || v.DividendClass == models.ClassAristocrat {
			return models.ConfidenceHigh
		}
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// Reasons lists the notable traits of a valuation, in a fixed order.
func (s *Scorer) Reasons(v models.Valuation) []string {
	var why []string

	switch v.DividendClass {
	case models.ClassKing:
		why = append(why, "Dividend King")
	case models.ClassAristocrat:
		why = append(why, "Dividend Aristocrat")
	case models.ClassContender:
		why = append(why, "Dividend Contender")
	}

	if y, ok := models.Value(v.YieldRatio); ok && y > 0.04 {
		why = append(why, "High Yield")
	}
	if g, ok := models.Value(v.DividendGrowth); ok && g > 0.07 {
		why = append(why, "Strong Growth")
	}
	if u, ok := models.Value(v.UpsidePct); ok && u >= 0.25 {
		why = append(why, "Deep Value")
	}
	if v.PayoutWarning {
		why = append(why, "Payout Risk")
	}
	if v.SpecialDividend {
		why = append(why, "Special Dividend")
	}

	return why
}
