package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividend-screener/internal/models"
	"dividend-screener/internal/normalize"
)

func TestEvaluateEndToEndExample(t *testing.T) {
	engine := NewEngine(DefaultParams(), normalize.Default())

	r := engine.Evaluate(&models.Snapshot{
		Identifier:     "TEST",
		Price:          models.Float(100),
		AnnualDividend: models.Float(4.0),
	})

	require.NotNil(t, r.YieldRatio)
	assert.InDelta(t, 0.04, *r.YieldRatio, 1e-12)
	require.NotNil(t, r.FairValueYield)
	assert.InDelta(t, 133.33, *r.FairValueYield, 0.01)
	require.NotNil(t, r.UpsidePct)
	assert.InDelta(t, 0.3333, *r.UpsidePct, 0.0001)
	assert.Nil(t, r.DividendGrowth, "no history means no growth")

	// Gordon with the default growth substitution: 4 * 1.02 / (0.09 - 0.02)
	require.NotNil(t, r.FairValueGordon)
	assert.InDelta(t, 58.2857, *r.FairValueGordon, 0.0001)
}

func TestEvaluateRejectsImplausibleYield(t *testing.T) {
	engine := NewEngine(DefaultParams(), normalize.Default())

	r := engine.Evaluate(&models.Snapshot{
		Identifier:     "BAD",
		Price:          models.Float(10),
		AnnualDividend: models.Float(30), // 300% yield
	})

	require.NotNil(t, r.RawYieldRatio)
	assert.InDelta(t, 3.0, *r.RawYieldRatio, 1e-12)
	assert.Nil(t, r.YieldRatio)
	assert.Nil(t, r.AnnualDividend)
	assert.Nil(t, r.FairValue)
	assert.Nil(t, r.FairValueGordon)
	assert.Nil(t, r.UpsidePct)
}

func TestEvaluateFallsBackToProviderYield(t *testing.T) {
	engine := NewEngine(DefaultParams(), normalize.Default())

	r := engine.Evaluate(&models.Snapshot{
		Identifier:    "PCT",
		Price:         models.Float(50),
		DividendYield: models.Float(3.0), // provider reports percent
		PayoutRatio:   models.Float(0.55),
	})

	require.NotNil(t, r.YieldRatio)
	assert.InDelta(t, 0.03, *r.YieldRatio, 1e-12)
	require.NotNil(t, r.AnnualDividend)
	assert.InDelta(t, 1.5, *r.AnnualDividend, 1e-12)
	require.NotNil(t, r.PayoutRatio)
	assert.InDelta(t, 0.55, *r.PayoutRatio, 1e-12)
	require.NotNil(t, r.UpsidePct)
	assert.InDelta(t, 0.0, *r.UpsidePct, 1e-12)
}

func TestEvaluateMissingPrice(t *testing.T) {
	engine := NewEngine(DefaultParams(), normalize.Default())

	r := engine.Evaluate(&models.Snapshot{
		Identifier:     "NOPRICE",
		AnnualDividend: models.Float(2),
	})

	assert.Nil(t, r.YieldRatio)
	assert.Nil(t, r.FairValueYield)
	assert.NotNil(t, r.FairValueGordon)
	assert.Nil(t, r.UpsidePct)
}

func TestDividendCAGR(t *testing.T) {
	params := DefaultParams()

	tests := []struct {
		name    string
		history []models.DividendPayment
		want    float64
		wantOK  bool
	}{
		{
			name:    "exactly five annual totals is absent",
			history: yearlyHistory(2015, 5, 1.0),
			wantOK:  false,
		},
		{
			name:    "doubling over five years",
			history: append(yearlyHistory(2015, 5, 1.0), models.DividendPayment{Date: date(2020, 3, 1), Amount: 2.0}),
			want:    0.148698,
			wantOK:  true,
		},
		{
			name: "quarterly payments are summed per year",
			history: func() []models.DividendPayment {
				var h []models.DividendPayment
				for y := 2014; y <= 2019; y++ {
					for q := 0; q < 4; q++ {
						h = append(h, models.DividendPayment{Date: date(y, time.Month(1+3*q), 10), Amount: 0.25})
					}
				}
				return h
			}(),
			want:   0,
			wantOK: true,
		},
		{
			name: "missing start year is absent",
			history: []models.DividendPayment{
				{Date: date(2010, 1, 1), Amount: 1},
				{Date: date(2011, 1, 1), Amount: 1},
				{Date: date(2012, 1, 1), Amount: 1},
				{Date: date(2014, 1, 1), Amount: 1},
				{Date: date(2015, 1, 1), Amount: 1},
				{Date: date(2016, 1, 1), Amount: 1},
				{Date: date(2018, 1, 1), Amount: 1},
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DividendCAGR(tt.history, params)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-5)
			}
		})
	}
}

func TestDividendCAGRClampsSpecialDividends(t *testing.T) {
	history := append(yearlyHistory(2015, 5, 0.1), models.DividendPayment{Date: date(2020, 6, 1), Amount: 50})
	g, ok := DividendCAGR(history, DefaultParams())
	require.True(t, ok)
	assert.Equal(t, 0.5, g)
}

func TestDividendCAGRSkipsPartialYear(t *testing.T) {
	history := append(yearlyHistory(2014, 6, 1.0), models.DividendPayment{Date: date(2020, 2, 1), Amount: 0.25})

	params := DefaultParams()
	g, ok := DividendCAGR(history, params)
	require.True(t, ok)
	assert.InDelta(t, -0.2421, g, 1e-4, "a stub year reads as a dividend cut")

	params.SkipPartialYear = true
	params.AsOf = date(2020, 4, 1)
	g, ok = DividendCAGR(history, params)
	require.True(t, ok)
	assert.InDelta(t, 0.0, g, 1e-12)
}

func TestTrailingDividend(t *testing.T) {
	history := []models.DividendPayment{
		{Date: date(2022, 12, 1), Amount: 9},
		{Date: date(2023, 3, 1), Amount: 1},
		{Date: date(2023, 6, 1), Amount: 1},
		{Date: date(2023, 9, 1), Amount: 1},
		{Date: date(2023, 12, 1), Amount: 1},
	}
	d, ok := TrailingDividend(history)
	require.True(t, ok)
	assert.InDelta(t, 4.0, d, 1e-12)

	_, ok = TrailingDividend(nil)
	assert.False(t, ok)
}

func TestHeadline(t *testing.T) {
	y, g := models.Float(120), models.Float(80)

	assert.Equal(t, 120.0, *Headline(ModelYield, y, g))
	assert.Equal(t, 80.0, *Headline(ModelGordon, y, g))
	assert.Equal(t, 100.0, *Headline(ModelAverage, y, g))
	assert.Equal(t, 80.0, *Headline(ModelAverage, nil, g))
	assert.Nil(t, Headline(ModelYield, nil, g))
	assert.Nil(t, Headline(ModelAverage, nil, nil))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
