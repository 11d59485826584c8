package cli

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"dividend-screener/internal/models"
)

// FormatRatio renders the same fraction consistently in both units:
// the percent rendering is the fraction rendering times 100.
func TestPropertyRatioUnitsAgree(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("percent output is fraction output scaled by 100", prop.ForAll(
		func(fraction float64) bool {
			pct := FormatRatio(models.Float(fraction), models.UnitPercent)
			frac := FormatRatio(models.Float(fraction), models.UnitFraction)

			if !strings.HasSuffix(pct, "%") {
				t.Logf("missing %% suffix: %s", pct)
				return false
			}
			p, err := strconv.ParseFloat(strings.TrimSuffix(pct, "%"), 64)
			if err != nil {
				return false
			}
			f, err := strconv.ParseFloat(frac, 64)
			if err != nil {
				return false
			}
			return math.Abs(p-f*100) <= 0.011
		},
		gen.Float64Range(-1, 1),
	))

	properties.Property("absent and non-finite values print the placeholder", prop.ForAll(
		func(unitPercent bool) bool {
			unit := models.UnitFraction
			if unitPercent {
				unit = models.UnitPercent
			}
			return FormatRatio(nil, unit) == Placeholder &&
				FormatRatio(models.Float(math.NaN()), unit) == Placeholder &&
				FormatRatio(models.Float(math.Inf(1)), unit) == Placeholder
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Every rendered table row has the same display width up to trailing
// padding, regardless of cell contents.
func TestPropertyTableAlignment(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("columns line up", prop.ForAll(
		func(cells []string) bool {
			var buf bytes.Buffer
			out := &Output{writer: &buf}
			table := NewTable(out, "Ticker", "Signal")
			for _, c := range cells {
				table.AddRow(c, "HOLD")
			}
			table.Render()

			lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			if len(lines) != len(cells)+2 {
				return false
			}
			// The second column starts at the same rune offset on every row.
			header := []rune(lines[0])
			col := strings.Index(string(header), "Signal")
			colRunes := len([]rune(string(header)[:col]))
			for _, line := range lines[2:] {
				r := []rune(line)
				if len(r) < colRunes+4 || string(r[colRunes:colRunes+4]) != "HOLD" {
					t.Logf("misaligned line %q", line)
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestFormatRatioExamples(t *testing.T) {
	testCases := []struct {
		value    *float64
		unit     models.Unit
		expected string
	}{
		{models.Float(0.0325), models.UnitFraction, "0.0325"},
		{models.Float(0.0325), models.UnitPercent, "3.25%"},
		{models.Float(-0.1), models.UnitPercent, "-10.00%"},
		{nil, models.UnitPercent, "-"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := FormatRatio(tc.value, tc.unit); got != tc.expected {
				t.Errorf("FormatRatio = %s, want %s", got, tc.expected)
			}
		})
	}
}

func TestFormatPriceAndWeight(t *testing.T) {
	if got := FormatPrice(models.Float(1234.5), "USD"); got != "1,234.50 USD" {
		t.Errorf("FormatPrice = %s", got)
	}
	if got := FormatPrice(nil, "USD"); got != Placeholder {
		t.Errorf("FormatPrice(nil) = %s", got)
	}
	if got := FormatWeight(models.Position{}); got != Placeholder {
		t.Errorf("FormatWeight(not owned) = %s", got)
	}
	if got := FormatWeight(models.Position{OwnedShares: 10, Weight: 0.125}); got != "12.5%" {
		t.Errorf("FormatWeight = %s", got)
	}
}

func TestFormatDurationExamples(t *testing.T) {
	testCases := []struct {
		d        time.Duration
		expected string
	}{
		{250 * time.Millisecond, "250ms"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 30*time.Minute, "2h 30m"},
		{50 * time.Hour, "2d 2h"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := FormatDuration(tc.d); got != tc.expected {
				t.Errorf("FormatDuration(%v) = %s, want %s", tc.d, got, tc.expected)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("0f8fad5b-d9cb-469f-a165-70867728950e"); got != "0f8fad5b" {
		t.Errorf("ShortID = %s", got)
	}
	if got := ShortID("abc"); got != "abc" {
		t.Errorf("ShortID(short) = %s", got)
	}
}
