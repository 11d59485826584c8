// Package portfolio overlays personal holdings on screener rows and decides
// a portfolio-aware action per instrument.
package portfolio

import (
	"errors"
	"io/fs"
	"math"
	"sort"
	"strings"

	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/models"
)

// Format is the detected shape of a holdings export.
type Format string

const (
	FormatUnknown      Format = "unknown"
	FormatHoldings     Format = "holdings"
	FormatTransactions Format = "transactions"
)

// minShares is the absolute share count below which a position is treated
// as closed.
const minShares = 1e-9

// Positions maps a provider identifier to the number of shares held.
type Positions map[string]float64

// Holdings returns the positions sorted by symbol.
func (p Positions) Holdings() []models.Holding {
	out := make([]models.Holding, 0, len(p))
	for s, n := range p {
		out = append(out, models.Holding{Symbol: s, Shares: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Shares returns the shares held for a symbol.
func (p Positions) Shares(symbol string) float64 {
	return p[strings.ToUpper(strings.TrimSpace(symbol))]
}

// LoadPositions reads a holdings snapshot or transaction ledger export,
// auto-detecting which from its columns. A missing file returns an empty
// set and an error wrapping ErrDataNotFound so callers can fall back to
// zero ownership. An unrecognized shape returns ErrUnknownHoldingsFormat.
func LoadPositions(path string, aliases Aliases) (Positions, Format, error) {
	if path == "" {
		return Positions{}, FormatUnknown, apperrors.Wrap(apperrors.ErrDataNotFound, "no holdings file configured")
	}

	t, err := readTable(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Positions{}, FormatUnknown, apperrors.Wrapf(apperrors.ErrDataNotFound, "holdings file %s", path)
	}
	if err != nil {
		return nil, FormatUnknown, apperrors.NewDataError("holdings", path, "read failed", err)
	}

	return parsePositions(t, aliases, path)
}

func parsePositions(t *table, aliases Aliases, source string) (Positions, Format, error) {
	if len(t.records) == 0 && len(t.header) == 0 {
		return Positions{}, FormatUnknown, nil
	}

	format := DetectFormat(t.header)
	var (
		pos Positions
		err error
	)
	switch format {
	case FormatTransactions:
		pos, err = fromTransactions(t, aliases, source)
	case FormatHoldings:
		pos, err = fromHoldings(t, aliases, source)
	default:
		return nil, FormatUnknown, apperrors.NewDataError("holdings", source,
			"columns "+strings.Join(t.header, ","), apperrors.ErrUnknownHoldingsFormat)
	}
	if err != nil {
		return nil, format, err
	}
	return pos, format, nil
}

// DetectFormat classifies an export by its normalized column names.
func DetectFormat(columns []string) Format {
	cols := make(map[string]bool, len(columns))
	for _, c := range columns {
		cols[normalizeColumn(c)] = true
	}

	hasSymbol := cols["symbol"] || cols["ticker"] || cols["holding"]
	hasShares := cols["shares"] || cols["share"] || cols["antal"]
	hasQuantity := cols["quantity"] || cols["units"]

	switch {
	case cols["event"] && cols["quantity"] && (cols["symbol"] || cols["ticker"]):
		return FormatTransactions
	case hasShares && hasSymbol:
		return FormatHoldings
	case hasQuantity && hasSymbol && !cols["event"]:
		return FormatHoldings
	default:
		return FormatUnknown
	}
}

// eventSign returns +1 for buys, -1 for sells and 0 for everything else,
// including splits.
func eventSign(event string) float64 {
	e := strings.ToLower(event)
	switch {
	case strings.Contains(e, "split"):
		return 0
	case strings.Contains(e, "buy"), strings.Contains(e, "køb"), strings.Contains(e, "purchase"):
		return 1
	case strings.Contains(e, "sell"), strings.Contains(e, "salg"), strings.Contains(e, "sold"):
		return -1
	default:
		return 0
	}
}

func fromTransactions(t *table, aliases Aliases, source string) (Positions, error) {
	sym := t.find("symbol", "ticker")
	evt := t.find("event")
	qty := t.find("quantity", "qty", "antal")
	if sym < 0 || evt < 0 || qty < 0 {
		return nil, apperrors.NewDataError("holdings", source, "transactions need symbol, event and quantity", apperrors.ErrMissingHoldingsColumn)
	}

	pos := Positions{}
	for _, record := range t.records {
		symbol := aliases.Resolve(field(record, sym))
		if symbol == "" {
			continue
		}
		sign := eventSign(field(record, evt))
		if sign == 0 {
			continue
		}
		pos[symbol] += sign * math.Abs(parseNumber(field(record, qty)))
	}
	return pos.prune(), nil
}

func fromHoldings(t *table, aliases Aliases, source string) (Positions, error) {
	sym := t.find("holding", "symbol", "ticker", "isin")
	shares := t.find("shares", "share", "antal", "quantity", "units")
	if sym < 0 || shares < 0 {
		return nil, apperrors.NewDataError("holdings", source, "holdings need symbol and shares", apperrors.ErrMissingHoldingsColumn)
	}

	pos := Positions{}
	for _, record := range t.records {
		symbol := aliases.Resolve(field(record, sym))
		if symbol == "" {
			continue
		}
		pos[symbol] += parseNumber(field(record, shares))
	}
	return pos.prune(), nil
}

// prune drops closed positions. Net-short positions are kept.
func (p Positions) prune() Positions {
	for s, n := range p {
		if math.Abs(n) <= minShares {
			delete(p, s)
		}
	}
	return p
}
