// Package tickers loads the instrument universe from a text or CSV file.
package tickers

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "dividend-screener/internal/errors"
)

// DefaultColumn is the CSV column read when none is configured.
const DefaultColumn = "Ticker"

// fallbackColumn is tried when the configured column is absent.
const fallbackColumn = "Symbol"

// Load reads the universe from path. Files ending in .csv are read by
// column; anything else is read one identifier per line. The result is
// upper-cased and de-duplicated in first-seen order.
func Load(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDataError("tickers", path, "open failed", err)
	}
	defer f.Close()

	var raw []string
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		raw, err = readColumn(f, column)
	} else {
		raw, err = readLines(f)
	}
	if err != nil {
		return nil, apperrors.NewDataError("tickers", path, "read failed", err)
	}

	return Dedupe(raw), nil
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

func readColumn(r io.Reader, column string) ([]string, error) {
	if column == "" {
		column = DefaultColumn
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	idx := columnIndex(header, column)
	if idx < 0 {
		idx = columnIndex(header, fallbackColumn)
	}
	if idx < 0 {
		return nil, apperrors.Wrapf(apperrors.ErrDataNotFound, "column %q", column)
	}

	var out []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if idx >= len(record) {
			continue
		}
		v := strings.TrimSpace(record[idx])
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// Dedupe upper-cases identifiers and drops repeats, keeping the first
// occurrence.
func Dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Generate writes a one-per-line tickers file from the Ticker column of an
// alias CSV and returns the identifiers written.
func Generate(aliasPath, outPath string) ([]string, error) {
	symbols, err := Load(aliasPath, DefaultColumn)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.Wrap(err, "failed to create output directory")
		}
	}

	var b strings.Builder
	for _, s := range symbols {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(outPath, []byte(b.String()), 0644); err != nil {
		return nil, apperrors.Wrap(err, "failed to write tickers file")
	}
	return symbols, nil
}
