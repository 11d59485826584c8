package store

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Freshness reports the age of one cached snapshot against a TTL.
type Freshness struct {
	Symbol    string
	FetchedAt time.Time
	Age       time.Duration
	IsFresh   bool
}

// CheckFreshness evaluates cached snapshots against ttl as of now. A
// non-positive ttl marks everything stale.
func CheckFreshness(infos []SnapshotInfo, ttl time.Duration, now time.Time) []Freshness {
	out := make([]Freshness, 0, len(infos))
	for _, info := range infos {
		age := now.Sub(info.FetchedAt)
		out = append(out, Freshness{
			Symbol:    info.Symbol,
			FetchedAt: info.FetchedAt,
			Age:       age,
			IsFresh:   ttl > 0 && age < ttl,
		})
	}
	return out
}

// FormatFreshness returns a human-readable freshness string.
func FormatFreshness(f Freshness, now time.Time) string {
	if f.FetchedAt.IsZero() {
		return "Never fetched"
	}

	ageStr := humanize.RelTime(f.FetchedAt, now, "ago", "from now")
	if f.IsFresh {
		return fmt.Sprintf("Updated %s", ageStr)
	}
	return fmt.Sprintf("Stale - updated %s", ageStr)
}
