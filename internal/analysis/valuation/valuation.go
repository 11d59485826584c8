// Package valuation derives dividend growth, fair values and upside from a
// normalized instrument snapshot. All functions are pure: absent or invalid
// inputs produce an absent result, never an error or a panic.
package valuation

import (
	"math"
	"sort"
	"time"

	"dividend-screener/internal/models"
)

// Model selects which fair value estimate drives the headline FairValue.
type Model string

const (
	ModelYield   Model = "yield"
	ModelGordon  Model = "gordon"
	ModelAverage Model = "average"
)

// Params holds the valuation assumptions. Every threshold is configuration.
type Params struct {
	NormalizedYield float64 // target "normal" yield, fraction
	DiscountRate    float64 // required return r for the Gordon model
	MaxGrowth       float64 // cap applied to g before the Gordon model
	DefaultGrowth   float64 // g used when no growth history exists
	GrowthFloor     float64 // lower clamp for the CAGR result
	GrowthCap       float64 // upper clamp for the CAGR result
	GrowthYears     int     // CAGR window in years
	FairValueModel  Model
	// SkipPartialYear drops the calendar year of AsOf from the annual totals,
	// so an incomplete current year does not read as a dividend cut.
	SkipPartialYear bool
	AsOf            time.Time
}

// DefaultParams returns the default valuation assumptions.
func DefaultParams() Params {
	return Params{
		NormalizedYield: 0.03,
		DiscountRate:    0.09,
		MaxGrowth:       0.06,
		DefaultGrowth:   0.02,
		GrowthFloor:     -0.50,
		GrowthCap:       0.50,
		GrowthYears:     5,
		FairValueModel:  ModelYield,
	}
}

// YearTotal is the sum of dividends paid in one calendar year.
type YearTotal struct {
	Year  int
	Total float64
}

// AnnualTotals buckets payments into calendar-year totals, oldest first.
// skipYear, when non-zero, is left out.
func AnnualTotals(history []models.DividendPayment, skipYear int) []YearTotal {
	byYear := make(map[int]float64)
	for _, p := range history {
		if p.Date.IsZero() || math.IsNaN(p.Amount) || math.IsInf(p.Amount, 0) {
			continue
		}
		year := p.Date.Year()
		if skipYear != 0 && year == skipYear {
			continue
		}
		byYear[year] += p.Amount
	}

	totals := make([]YearTotal, 0, len(byYear))
	for year, total := range byYear {
		totals = append(totals, YearTotal{Year: year, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Year < totals[j].Year })
	return totals
}

// CAGR returns (end/start)^(1/years) - 1, absent when either endpoint is not
// positive or years is not positive.
func CAGR(start, end float64, years int) (float64, bool) {
	if years <= 0 || !(start > 0) || !(end > 0) || math.IsInf(start, 0) || math.IsInf(end, 0) {
		return 0, false
	}
	g := math.Pow(end/start, 1/float64(years)) - 1
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return 0, false
	}
	return g, true
}

// DividendCAGR computes the dividend growth rate over the configured window.
// It needs at least GrowthYears+1 distinct years with positive totals and a
// positive total in both the latest year and the year GrowthYears before it.
func DividendCAGR(history []models.DividendPayment, p Params) (float64, bool) {
	years := p.GrowthYears
	if years <= 0 {
		years = 5
	}

	skip := 0
	if p.SkipPartialYear && !p.AsOf.IsZero() {
		skip = p.AsOf.Year()
	}
	totals := AnnualTotals(history, skip)

	positive := 0
	byYear := make(map[int]float64, len(totals))
	for _, t := range totals {
		byYear[t.Year] = t.Total
		if t.Total > 0 {
			positive++
		}
	}
	if positive < years+1 {
		return 0, false
	}

	latest := totals[len(totals)-1]
	start, ok := byYear[latest.Year-years]
	if !ok {
		return 0, false
	}

	g, ok := CAGR(start, latest.Total, years)
	if !ok {
		return 0, false
	}
	return clampGrowth(g, p), true
}

func clampGrowth(g float64, p Params) float64 {
	if p.GrowthFloor == 0 && p.GrowthCap == 0 {
		return g
	}
	if g < p.GrowthFloor {
		return p.GrowthFloor
	}
	if g > p.GrowthCap {
		return p.GrowthCap
	}
	return g
}

// TrailingDividend sums the payments in the 365 days ending at the most
// recent payment. It anchors on the history, not the clock.
func TrailingDividend(history []models.DividendPayment) (float64, bool) {
	var last time.Time
	for _, p := range history {
		if p.Date.After(last) {
			last = p.Date
		}
	}
	if last.IsZero() {
		return 0, false
	}

	from := last.AddDate(-1, 0, 0)
	var sum float64
	for _, p := range history {
		if p.Date.After(from) && !p.Date.After(last) {
			sum += p.Amount
		}
	}
	if !(sum > 0) {
		return 0, false
	}
	return sum, true
}

// FairValueYield is the price at which the actual dividend would produce the
// normalized yield: (price * yield) / normalizedYield.
func FairValueYield(price, yieldRatio, normalizedYield float64) (float64, bool) {
	if !(price > 0) || !(yieldRatio > 0) || !(normalizedYield > 0) {
		return 0, false
	}
	fv := (price * yieldRatio) / normalizedYield
	if math.IsInf(fv, 0) || math.IsNaN(fv) {
		return 0, false
	}
	return fv, true
}

// GordonGrowth returns the growth rate the Gordon model will use: the
// measured growth capped at MaxGrowth, or DefaultGrowth when none was
// measured. Substituting a default keeps instruments with short histories
// in the model instead of dropping them.
func GordonGrowth(growth *float64, p Params) float64 {
	g, ok := models.Value(growth)
	if !ok {
		g = p.DefaultGrowth
	}
	if g > p.MaxGrowth {
		g = p.MaxGrowth
	}
	return g
}

// FairValueGordon is the dividend discount model D0*(1+g)/(r-g). Absent
// when D0 is not positive or r <= g.
func FairValueGordon(d0 float64, growth *float64, p Params) (float64, bool) {
	if !(d0 > 0) || math.IsInf(d0, 0) {
		return 0, false
	}
	g := GordonGrowth(growth, p)
	r := p.DiscountRate
	if !(r > g) {
		return 0, false
	}
	fv := d0 * (1 + g) / (r - g)
	if !(fv > 0) || math.IsInf(fv, 0) {
		return 0, false
	}
	return fv, true
}

// Upside returns fairValue/price - 1 as a fraction.
func Upside(price, fairValue float64) (float64, bool) {
	if !(price > 0) || math.IsNaN(fairValue) || math.IsInf(fairValue, 0) || math.IsInf(price, 0) {
		return 0, false
	}
	return fairValue/price - 1, true
}

// Headline picks the fair value that drives the upside for the given model.
func Headline(model Model, fvYield, fvGordon *float64) *float64 {
	y, yok := models.Value(fvYield)
	g, gok := models.Value(fvGordon)

	switch model {
	case ModelGordon:
		return models.Optional(g, gok)
	case ModelAverage:
		switch {
		case yok && gok:
			return models.Float((y + g) / 2)
		case yok:
			return models.Float(y)
		case gok:
			return models.Float(g)
		}
		return nil
	default:
		return models.Optional(y, yok)
	}
}
