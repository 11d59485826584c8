package cli

import (
	"fmt"
	"time"

	"dividend-screener/internal/models"
	"dividend-screener/internal/normalize"
	"dividend-screener/pkg/utils"
)

// Placeholder is printed for absent values.
const Placeholder = "-"

// FormatRatio formats an optional fraction in the requested unit.
// Percent output carries a % sign; fraction output keeps 4 decimals.
func FormatRatio(p *float64, unit models.Unit) string {
	v, ok := models.Value(normalize.FractionTo(p, unit))
	if !ok {
		return Placeholder
	}
	if unit == models.UnitPercent {
		return fmt.Sprintf("%.2f%%", v)
	}
	return fmt.Sprintf("%.4f", v)
}

// FormatPrice formats an optional price with its currency.
func FormatPrice(p *float64, currency string) string {
	v, ok := models.Value(p)
	if !ok {
		return Placeholder
	}
	return utils.FormatMoney(v, currency)
}

// FormatScore formats a 0-100 score.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.0f", score)
}

// FormatWeight formats a portfolio weight, blank when not owned.
func FormatWeight(pos models.Position) string {
	if !pos.Owned() {
		return Placeholder
	}
	return fmt.Sprintf("%.1f%%", pos.Weight*100)
}

// FormatDateTime formats a timestamp in local time.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// ShortID returns the first 8 characters of a run ID.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
