package portfolio

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// table is a parsed CSV export with normalized header names.
type table struct {
	header  []string // normalized
	records [][]string
}

// readTable reads a broker CSV export whose delimiter and encoding are not
// known in advance. UTF-8 (with or without BOM) is tried first; anything
// that is not valid UTF-8 is decoded as Windows-1252.
func readTable(path string) (*table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseTable(data)
}

func parseTable(data []byte) (*table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, err
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return &table{}, nil
	}
	if err != nil {
		return nil, err
	}

	t := &table{header: make([]string, len(header))}
	for i, h := range header {
		t.header[i] = normalizeColumn(h)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(record) {
			continue
		}
		t.records = append(t.records, record)
	}
	return t, nil
}

// sniffDelimiter picks the most frequent candidate delimiter in the first line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func normalizeColumn(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// find returns the index of the first candidate column, matching exact
// names before substrings. Returns -1 when nothing matches.
func (t *table) find(candidates ...string) int {
	for _, c := range candidates {
		key := normalizeColumn(c)
		for i, h := range t.header {
			if h == key {
				return i
			}
		}
	}
	for _, c := range candidates {
		key := normalizeColumn(c)
		for i, h := range t.header {
			if strings.Contains(h, key) {
				return i
			}
		}
	}
	return -1
}

// field returns a trimmed cell, or "" when the record is short.
func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseNumber reads a quantity written with either decimal convention
// ("1,234.5", "1.234,5", "12,5"). Unparseable input is 0.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "\u00a0", "", "'", "").Replace(s)
	if s == "" {
		return 0
	}

	comma := strings.LastIndexByte(s, ',')
	dot := strings.LastIndexByte(s, '.')
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	v, err := cast.ToFloat64E(s)
	if err != nil {
		return 0
	}
	return v
}
