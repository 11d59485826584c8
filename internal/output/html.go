package output

import (
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"dividend-screener/internal/models"
	"dividend-screener/internal/normalize"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

// Meta describes the run a report belongs to.
type Meta struct {
	Title       string
	RunID       string
	GeneratedAt time.Time
	Unit        models.Unit
}

type column struct {
	Field string
	Label string
	Text  bool
}

// htmlColumns mirror the cells rendered per row in the template.
var htmlColumns = []column{
	{"ticker", "Ticker", true},
	{"name", "Name", true},
	{"sector", "Sector", true},
	{"currency", "Currency", true},
	{"price", "Price", false},
	{"dividend_yield", "Yield", false},
	{"payout_ratio", "Payout", false},
	{"dividend_growth_5y", "Growth 5Y", false},
	{"fair_value", "Fair value", false},
	{"upside_pct", "Upside", false},
	{"score", "Score", false},
	{"signal", "Signal", true},
	{"confidence", "Confidence", true},
	{"weight", "Weight", false},
	{"action", "Action", true},
	{"why", "Why", true},
}

type filter struct {
	Field  string
	Label  string
	Values []string
}

// jsonRow is the inline data the page sorts and filters on.
type jsonRow struct {
	Ticker         string   `json:"ticker"`
	Name           string   `json:"name"`
	Sector         string   `json:"sector"`
	Currency       string   `json:"currency"`
	Price          *float64 `json:"price"`
	DividendYield  *float64 `json:"dividend_yield"`
	PayoutRatio    *float64 `json:"payout_ratio"`
	DividendGrowth *float64 `json:"dividend_growth_5y"`
	FairValue      *float64 `json:"fair_value"`
	UpsidePct      *float64 `json:"upside_pct"`
	Score          *float64 `json:"score"`
	Signal         string   `json:"signal"`
	Confidence     string   `json:"confidence"`
	Weight         *float64 `json:"weight"`
	Action         string   `json:"action"`
	Why            string   `json:"why"`
	Error          string   `json:"error,omitempty"`
}

type page struct {
	Title          string
	RunID          string
	GeneratedAt    string
	GeneratedAtISO string
	Unit           models.Unit
	Columns        []column
	Filters        []filter
	Rows           []*record
	RowsJSON       template.JS
}

// WriteHTML renders a self-contained page with the rows embedded as JSON
// and client-side sort and filter controls.
func WriteHTML(w io.Writer, rows []models.Row, meta Meta) error {
	if meta.Title == "" {
		meta.Title = "Dividend Screener"
	}
	if meta.Unit == "" {
		meta.Unit = models.UnitFraction
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}

	data := make([]jsonRow, 0, len(rows))
	cells := make([]*record, 0, len(rows))
	for i := range rows {
		data = append(data, newJSONRow(&rows[i], meta.Unit))
		cells = append(cells, newRecord(&rows[i], meta.Unit))
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}

	p := page{
		Title:          meta.Title,
		RunID:          meta.RunID,
		GeneratedAt:    meta.GeneratedAt.Format("2006-01-02 15:04 MST"),
		GeneratedAtISO: meta.GeneratedAt.Format(time.RFC3339),
		Unit:           meta.Unit,
		Columns:        htmlColumns,
		Filters: []filter{
			{Field: "sector", Label: "Sector", Values: distinct(data, func(r jsonRow) string { return r.Sector })},
			{Field: "currency", Label: "Currency", Values: distinct(data, func(r jsonRow) string { return r.Currency })},
			{Field: "signal", Label: "Signal", Values: distinct(data, func(r jsonRow) string { return r.Signal })},
			{Field: "action", Label: "Action", Values: distinct(data, func(r jsonRow) string { return r.Action })},
		},
		Rows:     cells,
		RowsJSON: template.JS(encoded),
	}

	return reportTemplate.Execute(w, p)
}

func newJSONRow(r *models.Row, unit models.Unit) jsonRow {
	s, v, p := &r.Snapshot, &r.Valuation, &r.Position
	out := jsonRow{
		Ticker:         s.Identifier,
		Name:           s.Name,
		Sector:         s.Sector,
		Currency:       s.Currency,
		Price:          s.Price,
		DividendYield:  normalize.FractionTo(v.YieldRatio, unit),
		PayoutRatio:    normalize.FractionTo(v.PayoutRatio, unit),
		DividendGrowth: normalize.FractionTo(v.DividendGrowth, unit),
		FairValue:      v.FairValue,
		UpsidePct:      normalize.FractionTo(v.UpsidePct, unit),
	}
	if r.Failed() {
		out.Error = r.Err.Error()
		return out
	}
	out.Score = models.Float(v.Score)
	out.Signal = string(v.Signal)
	out.Confidence = string(v.Confidence)
	out.Weight = normalize.FractionTo(models.Float(p.Weight), unit)
	out.Action = string(p.Action)
	out.Why = strings.Join(v.Reasons, "; ")
	return out
}

// distinct returns the sorted non-empty values of a field.
func distinct(rows []jsonRow, get func(jsonRow) string) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		if v := get(r); v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
