package scoring

import (
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/models"
)

// ClassBook maps a base ticker (exchange suffix stripped) to its dividend
// track-record class.
type ClassBook map[string]models.DividendClass

var builtinKings = []string{"PG", "KO", "JNJ", "PEP", "EMR", "MMM", "LOW", "CL", "KMB", "ABT"}

var builtinAristocrats = []string{"AFL", "ADP", "ABBV", "APD", "CB", "ECL", "ITW", "MCD", "MSFT", "TROW"}

// DefaultClassBook returns the built-in King and Aristocrat lists.
func DefaultClassBook() ClassBook {
	book := make(ClassBook, len(builtinKings)+len(builtinAristocrats))
	for _, t := range builtinAristocrats {
		book[t] = models.ClassAristocrat
	}
	for _, t := range builtinKings {
		book[t] = models.ClassKing
	}
	return book
}

// Lookup returns the class for a ticker, ignoring any exchange suffix
// ("KO.CO" matches "KO").
func (b ClassBook) Lookup(symbol string) models.DividendClass {
	if len(b) == 0 {
		return models.ClassNone
	}
	return b[baseSymbol(symbol)]
}

// Merge copies entries from other over b. Entries with no class are skipped.
func (b ClassBook) Merge(other ClassBook) ClassBook {
	for k, v := range other {
		if v != models.ClassNone {
			b[k] = v
		}
	}
	return b
}

type classRecord struct {
	Ticker        string `csv:"Ticker"`
	DividendClass string `csv:"DividendClass"`
}

// LoadClassBook reads a Ticker,DividendClass CSV and merges it over the
// built-in lists. An empty path returns the built-in lists.
func LoadClassBook(path string) (ClassBook, error) {
	book := DefaultClassBook()
	if path == "" {
		return book, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDataError("dividend_classes", path, "open failed", err)
	}
	defer f.Close()

	var records []*classRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, apperrors.NewDataError("dividend_classes", path, "parse failed", err)
	}

	loaded := make(ClassBook, len(records))
	for _, r := range records {
		sym := baseSymbol(r.Ticker)
		if sym == "" {
			continue
		}
		loaded[sym] = models.ParseDividendClass(strings.TrimSpace(r.DividendClass))
	}
	return book.Merge(loaded), nil
}

// baseSymbol upper-cases a ticker and strips an exchange suffix.
func baseSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.IndexByte(s, '.'); i > 0 {
		s = s[:i]
	}
	return s
}
