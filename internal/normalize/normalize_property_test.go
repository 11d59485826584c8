package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"dividend-screener/internal/models"
)

// Property: normalizing a value already in percent form to percent form
// returns it unchanged.
func TestProperty_PercentIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	n := Default()

	properties.Property("ToPercent is idempotent on percentages", prop.ForAll(
		func(v float64) bool {
			once := n.ToPercent(models.Float(v))
			twice := n.ToPercent(once)
			return math.Abs(*once-*twice) < 1e-9
		},
		gen.Float64Range(1.51, 100.0),
	))

	properties.Property("ToFraction is idempotent on fractions", prop.ForAll(
		func(v float64) bool {
			once := n.ToFraction(models.Float(v))
			twice := n.ToFraction(once)
			return math.Abs(*once-*twice) < 1e-12
		},
		gen.Float64Range(0.0, 1.5),
	))

	properties.Property("fraction and percent describe the same ratio", prop.ForAll(
		func(v float64) bool {
			f := n.ToFraction(models.Float(v))
			p := n.ToPercent(models.Float(v))
			return math.Abs(*f*100-*p) < 1e-9
		},
		gen.Float64Range(-100.0, 100.0),
	))

	properties.TestingRun(t)
}

// Property: Yield never returns a value outside [0, ceiling].
func TestProperty_YieldWithinCeiling(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	n := Default()

	properties.Property("normalized yield stays in [0, ceiling] or is absent", prop.ForAll(
		func(v float64) bool {
			y, ok := models.Value(n.Yield(models.Float(v)))
			if !ok {
				return true
			}
			return y >= 0 && y <= n.YieldCeiling
		},
		gen.Float64Range(-1000.0, 10000.0),
	))

	properties.TestingRun(t)
}
