package portfolio

import (
	"errors"
	"io/fs"
	"strings"

	apperrors "dividend-screener/internal/errors"
)

// Aliases maps a broker export symbol to the identifier used by the data
// provider. Keys are upper-cased.
type Aliases map[string]string

// Resolve returns the provider identifier for an export symbol.
func (a Aliases) Resolve(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if to, ok := a[s]; ok {
		return to
	}
	return s
}

// LoadAliases reads an alias CSV with alias/from and ticker/to columns.
// A missing or empty path yields an empty map.
func LoadAliases(path string) (Aliases, error) {
	out := Aliases{}
	if path == "" {
		return out, nil
	}

	t, err := readTable(path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, apperrors.NewDataError("aliases", path, "read failed", err)
	}

	from := t.find("alias", "from")
	to := t.find("ticker", "to")
	if from < 0 || to < 0 || from == to {
		return nil, apperrors.NewDataError("aliases", path, "expected alias,ticker or from,to columns", apperrors.ErrMissingHoldingsColumn)
	}

	for _, record := range t.records {
		a := strings.ToUpper(field(record, from))
		tk := strings.ToUpper(field(record, to))
		if a == "" || tk == "" || a == "NAN" || tk == "NAN" {
			continue
		}
		out[a] = tk
	}
	return out, nil
}
