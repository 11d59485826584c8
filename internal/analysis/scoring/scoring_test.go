package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividend-screener/internal/analysis/valuation"
	"dividend-screener/internal/models"
	"dividend-screener/internal/normalize"
)

func TestScore_Ramps(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		name   string
		yield  *float64
		growth *float64
		pe     *float64
		want   models.SubScores
	}{
		{
			name:   "all at ceiling",
			yield:  models.Float(0.06),
			growth: models.Float(0.15),
			pe:     models.Float(10),
			want:   models.SubScores{Yield: 100, Growth: 100, Valuation: 100},
		},
		{
			name:   "midpoints",
			yield:  models.Float(0.03),
			growth: models.Float(0.075),
			pe:     models.Float(20),
			want:   models.SubScores{Yield: 50, Growth: 50, Valuation: 50},
		},
		{
			name: "all absent",
			want: models.SubScores{Yield: 0, Growth: 0, Valuation: 40},
		},
		{
			name:   "shrinking dividend and negative earnings",
			yield:  models.Float(0.02),
			growth: models.Float(-0.1),
			pe:     models.Float(-5),
			want:   models.SubScores{Yield: 100.0 / 3, Growth: 0, Valuation: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sub := scorer.Score(tt.yield, tt.growth, tt.pe)
			assert.InDelta(t, tt.want.Yield, sub.Yield, 1e-9)
			assert.InDelta(t, tt.want.Growth, sub.Growth, 1e-9)
			assert.InDelta(t, tt.want.Valuation, sub.Valuation, 1e-9)
		})
	}
}

func TestScore_Weighted(t *testing.T) {
	scorer := NewScorer()
	score, _ := scorer.Score(models.Float(0.06), models.Float(0.15), models.Float(10))
	assert.InDelta(t, 100, score, 1e-9)

	score, _ = scorer.Score(models.Float(0.03), models.Float(0.075), models.Float(20))
	assert.InDelta(t, 50, score, 1e-9)

	score, _ = scorer.Score(nil, nil, nil)
	assert.InDelta(t, 12, score, 1e-9)
}

func TestClassify(t *testing.T) {
	scorer := NewScorer()

	assert.Equal(t, models.SignalGold, scorer.Classify(90, models.Float(0.2), false))
	assert.Equal(t, models.SignalBuy, scorer.Classify(90, models.Float(0.05), false), "GOLD needs upside")
	assert.Equal(t, models.SignalBuy, scorer.Classify(90, nil, false), "GOLD needs known upside")
	assert.Equal(t, models.SignalBuy, scorer.Classify(70, nil, false))
	assert.Equal(t, models.SignalHold, scorer.Classify(55, nil, false))
	assert.Equal(t, models.SignalWatch, scorer.Classify(54.9, nil, false))
	assert.Equal(t, models.SignalWatch, scorer.Classify(99, models.Float(1), true))
}

func TestPayoutPolicy_SectorThresholds(t *testing.T) {
	policy := DefaultPayoutPolicy()
	payout := models.Float(1.5)

	reit := Categorize("Real Estate", "REIT—Retail")
	tech := Categorize("Technology", "Software—Infrastructure")

	assert.Equal(t, models.SectorRealEstate, reit)
	assert.Equal(t, models.SectorDefault, tech)
	assert.False(t, policy.Warn(reit, payout), "1.5 payout is normal for a REIT")
	assert.True(t, policy.Warn(tech, payout), "1.5 payout is flagged for technology")
	assert.False(t, policy.Warn(tech, nil), "absent payout is never flagged")
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		sector, industry string
		want             models.SectorCategory
	}{
		{"Utilities", "Utilities—Regulated Electric", models.SectorUtilities},
		{"Energy", "Oil & Gas Midstream", models.SectorEnergy},
		{"Financial Services", "Banks—Diversified", models.SectorFinancials},
		{"", "Insurance—Life", models.SectorFinancials},
		{"Consumer Defensive", "Beverages—Non-Alcoholic", models.SectorDefault},
		{"", "", models.SectorDefault},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.sector, tt.industry), tt.sector+"/"+tt.industry)
	}
}

func TestClassBook(t *testing.T) {
	book := DefaultClassBook()
	assert.Equal(t, models.ClassKing, book.Lookup("KO"))
	assert.Equal(t, models.ClassKing, book.Lookup("ko.co"))
	assert.Equal(t, models.ClassAristocrat, book.Lookup("MSFT"))
	assert.Equal(t, models.ClassNone, book.Lookup("NOVO-B.CO"))
}

func TestLoadClassBook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dividend_classes.csv")
	data := "Ticker,DividendClass\nNOVO-B.CO,Contender\nKO,Aristocrat\n,King\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	book, err := LoadClassBook(path)
	require.NoError(t, err)
	assert.Equal(t, models.ClassContender, book.Lookup("NOVO-B.CO"))
	assert.Equal(t, models.ClassAristocrat, book.Lookup("KO"), "file entries override built-ins")
	assert.Equal(t, models.ClassKing, book.Lookup("PG"))

	_, err = LoadClassBook(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestEvaluate_ConfidenceAndReasons(t *testing.T) {
	scorer := NewScorer()

	snap := &models.Snapshot{
		Identifier:    "KO",
		Sector:        "Consumer Defensive",
		Price:         models.Float(100),
		PriceEarnings: models.Float(12),
	}
	result := valuation.Result{
		YieldRatio:     models.Float(0.05),
		RawYieldRatio:  models.Float(0.05),
		PayoutRatio:    models.Float(0.8),
		DividendGrowth: models.Float(0.08),
		UpsidePct:      models.Float(0.3),
	}

	v := scorer.Evaluate(snap, result)
	assert.Equal(t, models.ClassKing, v.DividendClass)
	assert.Equal(t, models.ConfidenceHigh, v.Confidence, "King raises med to high")
	assert.Equal(t, []string{"Dividend King", "High Yield", "Strong Growth", "Deep Value"}, v.Reasons)
	assert.False(t, v.PayoutWarning)
	assert.False(t, v.SpecialDividend)

	snap.Identifier = "XYZ"
	result.PayoutRatio = models.Float(1.2)
	v = scorer.Evaluate(snap, result)
	assert.True(t, v.PayoutWarning)
	assert.Equal(t, models.ConfidenceLow, v.Confidence)
	assert.Contains(t, v.Reasons, "Payout Risk")

	result.RawYieldRatio = models.Float(0.2)
	v = scorer.Evaluate(snap, result)
	assert.True(t, v.SpecialDividend)
	assert.Equal(t, models.SignalWatch, v.Signal)
	assert.Contains(t, v.Reasons, "Special Dividend")
}

func TestEvaluate_FractionPayoutThroughEngine(t *testing.T) {
	engine := valuation.NewEngine(valuation.DefaultParams(), normalize.Default())
	scorer := NewScorer()

	tests := []struct {
		sector string
		payout float64
		unit   models.Unit
		want   float64
		warn   bool
	}{
		{"Technology", 3.0, models.UnitFraction, 3.0, true},
		{"Technology", 1.5, models.UnitFraction, 1.5, true},
		{"Real Estate", 1.9, models.UnitFraction, 1.9, false},
		{"Real Estate", 2.5, models.UnitFraction, 2.5, true},
		{"Energy", 1.7, models.UnitFraction, 1.7, true},
		{"Technology", 30, models.UnitPercent, 0.3, false},
		{"Technology", 30, "", 0.3, false},
	}
	for _, tt := range tests {
		snap := &models.Snapshot{
			Identifier:     "XYZ",
			Sector:         tt.sector,
			Price:          models.Float(50),
			AnnualDividend: models.Float(2),
			PayoutRatio:    models.Float(tt.payout),
			PayoutUnit:     tt.unit,
		}
		v := scorer.Evaluate(snap, engine.Evaluate(snap))

		require.NotNil(t, v.PayoutRatio)
		assert.InDelta(t, tt.want, *v.PayoutRatio, 1e-12, "%s %v %s", tt.sector, tt.payout, tt.unit)
		assert.Equal(t, tt.warn, v.PayoutWarning, "%s %v %s", tt.sector, tt.payout, tt.unit)
		if tt.warn {
			assert.Equal(t, models.ConfidenceLow, v.Confidence)
		}
	}
}

func TestConfidence_Tiers(t *testing.T) {
	scorer := NewScorer()

	high := models.Valuation{PayoutRatio: models.Float(0.5), DividendGrowth: models.Float(0.06)}
	med := models.Valuation{PayoutRatio: models.Float(0.9), DividendGrowth: models.Float(0.01)}
	low := models.Valuation{PayoutRatio: models.Float(1.1)}
	unknown := models.Valuation{}

	assert.Equal(t, models.ConfidenceHigh, scorer.Confidence(high))
	assert.Equal(t, models.ConfidenceMedium, scorer.Confidence(med))
	assert.Equal(t, models.ConfidenceLow, scorer.Confidence(low))
	assert.Equal(t, models.ConfidenceLow, scorer.Confidence(unknown))
}
