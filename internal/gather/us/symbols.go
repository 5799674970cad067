package us

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

// SymbolRow is a universe CSV row. Other columns are ignored.
type SymbolRow struct {
	Symbol string `csv:"symbol"`
}

// LoadCSVSymbols reads the "symbol" column from a CSV file with a header row
// and returns the normalized symbols.
func LoadCSVSymbols(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV %s: %w", path, err)
	}
	defer f.Close()

	var rows []*SymbolRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("reading CSV %s: %w", path, err)
	}

	symbols := make([]string, 0, len(rows))
	for _, r := range rows {
		symbols = append(symbols, r.Symbol)
	}
	return NormalizeSymbols(symbols), nil
}

// NormalizeSymbols upper-cases and trims symbols and drops blanks and
// repeats, keeping first-seen order.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
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

// sortedCopy returns a sorted copy of symbols.
func sortedCopy(symbols []string) []string {
	out := append([]string(nil), symbols...)
	sort.Strings(out)
	return out
}

// ResolveUniverse combines listed symbols with those of an optional universe
// CSV, normalized and in first-seen order.
func ResolveUniverse(listed []string, csvPath string) ([]string, error) {
	symbols := append([]string(nil), listed...)
	if csvPath != "" {
		fromCSV, err := LoadCSVSymbols(csvPath)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, fromCSV...)
	}
	return NormalizeSymbols(symbols), nil
}
