package portfolio

import (
	"dividend-screener/internal/models"
)

// Rules are the thresholds of the action decision table.
type Rules struct {
	TrimWeight    float64 `mapstructure:"trim_weight" toml:"trim_weight" validate:"gt=0,lte=1"`
	AddWeight     float64 `mapstructure:"add_weight" toml:"add_weight" validate:"gte=0,lte=1"`
	MinScoreBuy   float64 `mapstructure:"min_score_buy" toml:"min_score_buy" validate:"gte=0,lte=100"`
	MinUpsideBuy  float64 `mapstructure:"min_upside_buy" toml:"min_upside_buy"`
	AvoidScore    float64 `mapstructure:"avoid_score" toml:"avoid_score" validate:"gte=0,lte=100"`
	AvoidIfNoData bool    `mapstructure:"avoid_if_no_data" toml:"avoid_if_no_data"`
}

// DefaultRules returns the default decision thresholds.
func DefaultRules() Rules {
	return Rules{
		TrimWeight:    0.07,
		AddWeight:     0.02,
		MinScoreBuy:   60,
		MinUpsideBuy:  0.05,
		AvoidScore:    40,
		AvoidIfNoData: true,
	}
}

// Apply attaches OwnedShares, OwnedValue and Weight to each row. Weight is
// relative to the total owned value across rows, and 0 when that total is 0.
func Apply(rows []models.Row, positions Positions) {
	total := 0.0
	for i := range rows {
		shares := positions.Shares(rows[i].Symbol())
		value := 0.0
		if price, ok := rows[i].Snapshot.PriceValue(); ok && price > 0 {
			value = shares * price
		}
		rows[i].Position.OwnedShares = shares
		rows[i].Position.OwnedValue = value
		total += value
	}

	for i := range rows {
		if total > 0 {
			rows[i].Position.Weight = rows[i].Position.OwnedValue / total
		} else {
			rows[i].Position.Weight = 0
		}
	}
}

// Decide sets the Action of every row.
func Decide(rows []models.Row, rules Rules) {
	for i := range rows {
		rows[i].Position.Action = rules.Action(&rows[i])
	}
}

// Action classifies one row. The result depends only on the row's current
// weight, score and upside.
func (r Rules) Action(row *models.Row) models.Action {
	p := row.Position
	score := row.Valuation.Score
	upside, hasUpside := models.Value(row.Valuation.UpsidePct)
	hasData := !row.Failed() && (score > 0 || hasUpside)
	attractive := hasData && (score >= r.MinScoreBuy || (hasUpside && upside >= r.MinUpsideBuy))

	if p.Owned() {
		switch {
		case p.Weight >= r.TrimWeight:
			return models.ActionTrim
		case hasData && score < r.AvoidScore:
			// held positions are trimmed, never silently avoided
			return models.ActionTrim
		case p.Weight < r.AddWeight && attractive:
			return models.ActionAdd
		default:
			return models.ActionHold
		}
	}

	switch {
	case !hasData && r.AvoidIfNoData:
		return models.ActionAvoid
	case hasData && score < r.AvoidScore && !(hasUpside && upside >= r.MinUpsideBuy):
		return models.ActionAvoid
	case attractive:
		return models.ActionBuy
	default:
		return models.ActionHold
	}
}
