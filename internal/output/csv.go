// Package output renders screener rows as CSV and static HTML artifacts.
package output

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"dividend-screener/internal/models"
	"dividend-screener/internal/normalize"
)

// record is one CSV line. Fields are pre-rendered strings so absent values
// become empty cells and the column order is fixed by field order.
type record struct {
	Ticker          string `csv:"Ticker"`
	Name            string `csv:"Name"`
	Sector          string `csv:"Sector"`
	Industry        string `csv:"Industry"`
	Country         string `csv:"Country"`
	Currency        string `csv:"Currency"`
	Price           string `csv:"Price"`
	AnnualDividend  string `csv:"AnnualDividend"`
	DividendYield   string `csv:"DividendYield"`
	PayoutRatio     string `csv:"PayoutRatio"`
	PE              string `csv:"PE"`
	DividendGrowth  string `csv:"DividendGrowth5Y"`
	FairValueYield  string `csv:"FairValueYield"`
	FairValueGordon string `csv:"FairValueGordon"`
	FairValue       string `csv:"FairValue"`
	UpsidePct       string `csv:"UpsidePct"`
	Score           string `csv:"Score"`
	YieldScore      string `csv:"YieldScore"`
	GrowthScore     string `csv:"GrowthScore"`
	ValuationScore  string `csv:"ValuationScore"`
	Signal          string `csv:"Signal"`
	Confidence      string `csv:"Confidence"`
	DividendClass   string `csv:"DividendClass"`
	Why             string `csv:"Why"`
	PayoutWarning   string `csv:"PayoutWarning"`
	SpecialDividend string `csv:"SpecialDividend"`
	OwnedShares     string `csv:"OwnedShares"`
	OwnedValue      string `csv:"OwnedValue"`
	Weight          string `csv:"Weight"`
	Action          string `csv:"Action"`
	Error           string `csv:"Error"`
}

// Columns returns the CSV header in output order.
func Columns() []string {
	return []string{
		"Ticker", "Name", "Sector", "Industry", "Country", "Currency",
		"Price", "AnnualDividend", "DividendYield", "PayoutRatio", "PE",
		"DividendGrowth5Y", "FairValueYield", "FairValueGordon", "FairValue", "UpsidePct",
		"Score", "YieldScore", "GrowthScore", "ValuationScore",
		"Signal", "Confidence", "DividendClass", "Why", "PayoutWarning", "SpecialDividend",
		"OwnedShares", "OwnedValue", "Weight", "Action", "Error",
	}
}

// WriteCSV writes rows as UTF-8 comma-separated values. Ratio columns are
// written in unit; all numbers are plain, never pre-formatted.
func WriteCSV(w io.Writer, rows []models.Row, unit models.Unit) error {
	records := make([]*record, 0, len(rows))
	for i := range rows {
		records = append(records, newRecord(&rows[i], unit))
	}
	if len(records) == 0 {
		_, err := io.WriteString(w, strings.Join(Columns(), ",")+"\n")
		return err
	}
	return gocsv.Marshal(records, w)
}

func newRecord(r *models.Row, unit models.Unit) *record {
	s, v, p := &r.Snapshot, &r.Valuation, &r.Position

	rec := &record{
		Ticker:          s.Identifier,
		Name:            s.Name,
		Sector:          s.Sector,
		Industry:        s.Industry,
		Country:         s.Country,
		Currency:        s.Currency,
		Price:           num(s.Price, 4),
		AnnualDividend:  num(v.AnnualDividend, 4),
		DividendYield:   num(normalize.FractionTo(v.YieldRatio, unit), 6),
		PayoutRatio:     num(normalize.FractionTo(v.PayoutRatio, unit), 6),
		PE:              num(s.PriceEarnings, 2),
		DividendGrowth:  num(normalize.FractionTo(v.DividendGrowth, unit), 6),
		FairValueYield:  num(v.FairValueYield, 4),
		FairValueGordon: num(v.FairValueGordon, 4),
		FairValue:       num(v.FairValue, 4),
		UpsidePct:       num(normalize.FractionTo(v.UpsidePct, unit), 6),
		OwnedShares:     plain(p.OwnedShares, 6),
		OwnedValue:      plain(p.OwnedValue, 2),
		Weight:          num(normalize.FractionTo(models.Float(p.Weight), unit), 6),
		Action:          string(p.Action),
	}

	if r.Failed() {
		rec.Error = r.Err.Error()
		return rec
	}

	rec.Score = plain(v.Score, 2)
	rec.YieldScore = plain(v.SubScores.Yield, 2)
	rec.GrowthScore = plain(v.SubScores.Growth, 2)
	rec.ValuationScore = plain(v.SubScores.Valuation, 2)
	rec.Signal = string(v.Signal)
	rec.Confidence = string(v.Confidence)
	rec.DividendClass = string(v.DividendClass)
	rec.Why = strings.Join(v.Reasons, "; ")
	rec.PayoutWarning = strconv.FormatBool(v.PayoutWarning)
	rec.SpecialDividend = strconv.FormatBool(v.SpecialDividend)
	return rec
}

// num renders an optional number, empty when absent.
func num(p *float64, places int) string {
	v, ok := models.Value(p)
	if !ok {
		return ""
	}
	return plain(v, places)
}

// plain renders v rounded to places with no exponent or grouping.
func plain(v float64, places int) string {
	pow := math.Pow(10, float64(places))
	r := math.Round(v*pow) / pow
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
