package cleaner

import "strings"

// DefaultCountKeywords is the priority order used to spot the count column.
var DefaultCountKeywords = []string{"biometric", "update", "packets", "transactions", "cnt", "count", "total"}

// Detector locates the count column of a raw table.
type Detector struct {
	// CountKeywords are matched in order; for each keyword columns are
	// scanned left to right.
	CountKeywords []string
}

// NewDetector returns a Detector using keywords, or the defaults if empty.
func NewDetector(keywords []string) *Detector {
	if len(keywords) == 0 {
		keywords = DefaultCountKeywords
	}
	norm := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			norm = append(norm, k)
		}
	}
	return &Detector{CountKeywords: norm}
}

// FindCountColumn returns the index of the count column. Keyword matches take
// precedence; otherwise the right-most numeric column is used.
func (d *Detector) FindCountColumn(t *Table) (int, bool) {
	for _, key := range d.CountKeywords {
		for i, h := range t.Header {
			if strings.Contains(h, key) {
				return i, true
			}
		}
	}
	for i := len(t.Header) - 1; i >= 0; i-- {
		if t.IsNumeric(i) {
			return i, true
		}
	}
	return -1, false
}
