// Package models provides domain models for the dividend screener.
package models

import (
	"math"
	"time"
)

// Unit is the scale a ratio is expressed in.
type Unit string

const (
	UnitFraction Unit = "fraction" // 0.03 = 3%
	UnitPercent  Unit = "percent"  // 3.0 = 3%
)

// DividendPayment is a single cash distribution.
type DividendPayment struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// Snapshot is the provider view of one instrument for one run.
// Every numeric field is optional; use the accessors instead of
// dereferencing directly.
type Snapshot struct {
	Identifier      string            `json:"identifier"`
	Name            string            `json:"name,omitempty"`
	Sector          string            `json:"sector,omitempty"`
	Industry        string            `json:"industry,omitempty"`
	Country         string            `json:"country,omitempty"`
	Currency        string            `json:"currency,omitempty"`
	Price           *float64          `json:"price,omitempty"`
	AnnualDividend  *float64          `json:"annual_dividend,omitempty"`
	DividendYield   *float64          `json:"dividend_yield,omitempty"` // provider scale, may be fraction or percent
	PayoutRatio     *float64          `json:"payout_ratio,omitempty"`   // provider scale, may be fraction or percent
	PayoutUnit      Unit              `json:"payout_unit,omitempty"`    // empty when the provider scale is unknown
	PriceEarnings   *float64          `json:"pe,omitempty"`
	DividendHistory []DividendPayment `json:"dividends,omitempty"`
	FetchedAt       time.Time         `json:"fetched_at"`
}

// PriceValue returns the current price if present and finite.
func (s *Snapshot) PriceValue() (float64, bool) {
	return Value(s.Price)
}

// AnnualDividendValue returns the annualized dividend per share if present.
func (s *Snapshot) AnnualDividendValue() (float64, bool) {
	return Value(s.AnnualDividend)
}

// Float returns a pointer to v, for building optional fields.
func Float(v float64) *float64 {
	return &v
}

// Value unwraps an optional number. NaN and infinities count as absent.
func Value(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v := *p
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Optional returns a pointer to v when ok, nil otherwise.
func Optional(v float64, ok bool) *float64 {
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
