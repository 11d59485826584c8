package models

// Action is the portfolio-aware recommendation for an instrument.
type Action string

const (
	ActionNone  Action = ""
	ActionBuy   Action = "BUY"
	ActionAdd   Action = "ADD"
	ActionHold  Action = "HOLD"
	ActionTrim  Action = "TRIM"
	ActionAvoid Action = "AVOID"
)

// Holding is the aggregated share count of one instrument in a holdings export.
type Holding struct {
	Symbol string
	Shares float64
}

// Position is the ownership overlay of a row.
type Position struct {
	OwnedShares float64 `json:"owned_shares"`
	OwnedValue  float64 `json:"owned_value"`
	Weight      float64 `json:"weight"`
	Action      Action  `json:"action,omitempty"`
}

// Owned returns true if any shares are held.
func (p Position) Owned() bool {
	return p.OwnedShares > 0
}
