// Package tabular reads inventory and manufacturer spreadsheets and writes
// multi-sheet workbooks.
package tabular

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Row is one data row keyed by header. Headers is shared by every row of a
// table and keeps the column order of the source file.
type Row struct {
	Number  int
	Headers []string
	Values  map[string]string
}

// Get returns the trimmed cell under header, or "".
func (r Row) Get(header string) string {
	return r.Values[header]
}

// Lookup returns the first non-empty cell among the given headers.
func (r Row) Lookup(headers ...string) string {
	for _, h := range headers {
		if v := r.Values[h]; v != "" {
			return v
		}
	}
	return ""
}

// ReadTable reads the first sheet of an .xlsx file, or a .csv file, using the
// first row as the header. Blank rows are skipped.
func ReadTable(path string) ([]Row, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		records, err = readXLSX(path)
	case ".csv", ".txt":
		records, err = readCSV(path)
	default:
		return nil, eris.Errorf("tabular: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return toRows(records), nil
}

func toRows(records [][]string) []Row {
	if len(records) == 0 {
		return nil
	}
	headers := uniqueHeaders(records[0])

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		values := make(map[string]string, len(headers))
		blank := true
		for j, h := range headers {
			if j >= len(rec) {
				break
			}
			v := strings.TrimSpace(rec[j])
			if v != "" {
				blank = false
			}
			values[h] = v
		}
		if blank {
			continue
		}
		rows = append(rows, Row{Number: i + 1, Headers: headers, Values: values})
	}
	return rows
}

// uniqueHeaders trims headers, names empty ones by position and suffixes
// repeats with _1, _2 and so on.
func uniqueHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = "__EMPTY"
		}
		base := h
		if n, ok := seen[base]; ok {
			h = base + "_" + strconv.Itoa(n)
			seen[base] = n + 1
		} else {
			seen[base] = 1
		}
		out[i] = h
	}
	return out
}
