package models

// Signal is the screener classification of a single instrument.
type Signal string

const (
	SignalGold  Signal = "GOLD"
	SignalBuy   Signal = "BUY"
	SignalHold  Signal = "HOLD"
	SignalWatch Signal = "WATCH"
)

// Confidence expresses how much the signal can be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "med"
	ConfidenceLow    Confidence = "low"
)

// DividendClass is the dividend track-record tier of a company.
type DividendClass string

const (
	ClassNone       DividendClass = ""
	ClassKing       DividendClass = "King"
	ClassAristocrat DividendClass = "Aristocrat"
	ClassContender  DividendClass = "Contender"
)

// ParseDividendClass maps free text to a DividendClass.
func ParseDividendClass(s string) DividendClass {
	switch s {
	case "King", "king", "KING":
		return ClassKing
	case "Aristocrat", "aristocrat", "ARISTOCRAT":
		return ClassAristocrat
	case "Contender", "contender", "CONTENDER":
		return ClassContender
	default:
		return ClassNone
	}
}

// SectorCategory groups provider sector names that share a payout policy.
type SectorCategory string

const (
	SectorDefault    SectorCategory = "default"
	SectorRealEstate SectorCategory = "real_estate"
	SectorUtilities  SectorCategory = "utilities"
	SectorEnergy     SectorCategory = "energy"
	SectorFinancials SectorCategory = "financials"
)

// SubScores holds the per-factor scores before weighting, each in [0,100].
type SubScores struct {
	Yield     float64 `json:"yield"`
	Growth    float64 `json:"growth"`
	Valuation float64 `json:"valuation"`
}

// Valuation holds everything derived from a Snapshot. Ratios are fractions.
type Valuation struct {
	YieldRatio      *float64       `json:"yield_ratio,omitempty"`
	RawYieldRatio   *float64       `json:"raw_yield_ratio,omitempty"`
	PayoutRatio     *float64       `json:"payout_ratio,omitempty"`
	AnnualDividend  *float64       `json:"annual_dividend,omitempty"`
	DividendGrowth  *float64       `json:"dividend_growth_5y,omitempty"`
	FairValueYield  *float64       `json:"fair_value_yield,omitempty"`
	FairValueGordon *float64       `json:"fair_value_gordon,omitempty"`
	FairValue       *float64       `json:"fair_value,omitempty"`
	UpsidePct       *float64       `json:"upside_pct,omitempty"`
	Score           float64        `json:"score"`
	SubScores       SubScores      `json:"sub_scores"`
	Signal          Signal         `json:"signal"`
	Confidence      Confidence     `json:"confidence"`
	Reasons         []string       `json:"reasons,omitempty"`
	SpecialDividend bool           `json:"special_dividend"`
	PayoutWarning   bool           `json:"payout_warning"`
	DividendClass   DividendClass  `json:"dividend_class,omitempty"`
	SectorCategory  SectorCategory `json:"sector_category"`
}

// Row is one output line: snapshot, derived valuation, and ownership.
type Row struct {
	Snapshot  Snapshot  `json:"snapshot"`
	Valuation Valuation `json:"valuation"`
	Position  Position  `json:"position"`
	Err       error     `json:"-"`
}

// Symbol returns the row identifier.
func (r *Row) Symbol() string {
	return r.Snapshot.Identifier
}

// Failed returns true if the snapshot could not be fetched.
func (r *Row) Failed() bool {
	return r.Err != nil
}
