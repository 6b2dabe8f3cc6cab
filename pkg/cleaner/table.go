package cleaner

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Table is a parsed CSV file with lower-cased, trimmed header names.
// Short rows are padded with empty cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTableFile opens path and parses it with ReadTable.
func ReadTableFile(path, encoding string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadTable(f, encoding)
}

// ReadTable parses a comma-delimited CSV with a header row. encoding is an
// optional WHATWG label ("windows-1252", "utf-16le"); empty means UTF-8.
// Rows the CSV reader cannot parse are skipped.
func ReadTable(r io.Reader, encoding string) (*Table, error) {
	if encoding != "" && !isUTF8(encoding) {
		e, err := htmlindex.Get(encoding)
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
		}
		r = transform.NewReader(r, e.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	t := &Table{Header: header}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" && len(header) > 1 {
			continue
		}
		row := make([]string, len(header))
		copy(row, record)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Index returns the position of the column named name, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// FindColumn returns the first column whose name contains fragment, or -1.
func (t *Table) FindColumn(fragment string) int {
	for i, h := range t.Header {
		if strings.Contains(h, fragment) {
			return i
		}
	}
	return -1
}

// AddColumn returns the index of name, appending an empty column if needed.
func (t *Table) AddColumn(name string) int {
	if i := t.Index(name); i >= 0 {
		return i
	}
	t.Header = append(t.Header, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Header) - 1
}

// IsNumeric reports whether every non-empty cell of column col parses as a
// number. A column with no values at all is numeric, like an all-NaN column.
func (t *Table) IsNumeric(col int) bool {
	for _, row := range t.Rows {
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return true
}

// Filter keeps the rows for which keep returns true, preserving order.
func (t *Table) Filter(keep func(row []string) bool) (dropped int) {
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		if keep(row) {
			kept = append(kept, row)
		} else {
			dropped++
		}
	}
	t.Rows = kept
	return dropped
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}
