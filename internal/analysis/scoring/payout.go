package scoring

import (
	"strings"

	"dividend-screener/internal/models"
)

// PayoutPolicy holds the payout ratio above which a warning is raised,
// per sector category.
type PayoutPolicy struct {
	Baseline  float64
	Overrides map[models.SectorCategory]float64
}

// DefaultPayoutPolicy returns thresholds that tolerate the structurally
// high payouts of REITs, MLPs and utilities.
func DefaultPayoutPolicy() PayoutPolicy {
	return PayoutPolicy{
		Baseline: 1.0,
		Overrides: map[models.SectorCategory]float64{
			models.SectorRealEstate: 2.0,
			models.SectorEnergy:     1.6,
			models.SectorUtilities:  1.25,
			models.SectorFinancials: 1.0,
		},
	}
}

// Threshold returns the warning threshold for a category.
func (p PayoutPolicy) Threshold(category models.SectorCategory) float64 {
	if t, ok := p.Overrides[category]; ok && t > 0 {
		return t
	}
	return p.Baseline
}

// Warn reports whether the payout exceeds the category threshold.
func (p PayoutPolicy) Warn(category models.SectorCategory, payout *float64) bool {
	v, ok := models.Value(payout)
	if !ok {
		return false
	}
	threshold := p.Threshold(category)
	return threshold > 0 && v > threshold
}

// sectorKeywords maps lower-case fragments of provider sector or industry
// names to a category. Checked in order.
var sectorKeywords = []struct {
	fragment string
	category models.SectorCategory
}{
	{"real estate", models.SectorRealEstate},
	{"reit", models.SectorRealEstate},
	{"utilit", models.SectorUtilities},
	{"midstream", models.SectorEnergy},
	{"energy", models.SectorEnergy},
	{"oil", models.SectorEnergy},
	{"financial", models.SectorFinancials},
	{"bank", models.SectorFinancials},
	{"insurance", models.SectorFinancials},
}

// Categorize maps provider sector and industry names to a SectorCategory.
func Categorize(sector, industry string) models.SectorCategory {
	s := strings.ToLower(sector + " " + industry)
	for _, kw := range sectorKeywords {
		if strings.Contains(s, kw.fragment) {
			return kw.category
		}
	}
	return models.SectorDefault
}

// ParseSectorCategory maps a config key to a SectorCategory.
func ParseSectorCategory(s string) (models.SectorCategory, bool) {
	switch models.SectorCategory(strings.ToLower(strings.TrimSpace(s))) {
	case models.SectorRealEstate:
		return models.SectorRealEstate, true
	case models.SectorUtilities:
		return models.SectorUtilities, true
	case models.SectorEnergy:
		return models.SectorEnergy, true
	case models.SectorFinancials:
		return models.SectorFinancials, true
	case models.SectorDefault:
		return models.SectorDefault, true
	}
	return "", false
}
