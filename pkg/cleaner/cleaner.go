// Package cleaner turns raw category folders of CSV extracts into one
// combined, normalized CSV per category.
package cleaner

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hazyhaar/aadhaar-pulse/pkg/geo"
	"github.com/hazyhaar/aadhaar-pulse/pkg/metrics"
	"github.com/hazyhaar/aadhaar-pulse/pkg/records"
)

// QualityScore tags every cleaned row.
const QualityScore = 100

// Standard column names of cleaned outputs.
const (
	ColCount      = "count"
	ColCountRaw   = "count_raw"
	ColState      = "state"
	ColPincode    = "pincode"
	ColDate       = "date"
	ColSourceFile = "source_file"
	ColQuality    = "dqs_score"
)

var (
	ErrNoCountColumn = errors.New("no count column")
	ErrNoStateColumn = errors.New("no state column")
)

// Publisher receives each combined output after it is written locally.
type Publisher interface {
	Publish(ctx context.Context, localPath, name string) error
}

// Cleaner processes raw category folders under RawDir into OutDir.
type Cleaner struct {
	RawDir    string
	OutDir    string
	Encoding  string
	Detector  *Detector
	States    *geo.Table
	Publisher Publisher
	Logger    *slog.Logger
	Metrics   *metrics.Pipeline
}

// Result summarizes one category folder.
type Result struct {
	Category     string   `yaml:"category"`
	Folder       string   `yaml:"folder"`
	Files        int      `yaml:"files"`
	FilesSkipped []string `yaml:"files_skipped,omitempty"`
	RowsRead     int      `yaml:"rows_read"`
	RowsKept     int      `yaml:"rows_kept"`
	RowsDropped  int      `yaml:"rows_dropped"`
	Output       string   `yaml:"output,omitempty"`
}

func (c *Cleaner) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Run processes every category in order, writes clean_manifest.yaml, and
// returns the per-category results. A failing category never stops the others.
func (c *Cleaner) Run(ctx context.Context, cats []*records.Category) ([]Result, error) {
	if err := ensureDir(c.OutDir); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	results := make([]Result, 0, len(cats))
	for _, cat := range cats {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := c.ProcessFolder(ctx, cat)
		if err != nil {
			c.logger().Error("category failed", "category", cat.Name, "error", err)
		}
		results = append(results, res)
	}
	if err := writeManifest(c.OutDir, results); err != nil {
		return results, err
	}
	return results, nil
}

// ResolveFolder returns the category folder under root, accepting both the
// underscore and the space-separated spelling.
func ResolveFolder(root, folder string) string {
	path := filepath.Join(root, folder)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(root, strings.ReplaceAll(folder, "_", " "))
}

// ListCSV returns the *.csv files directly inside dir, sorted by name.
func ListCSV(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ProcessFolder cleans every CSV of one category folder. A missing or empty
// folder, or a folder where every file fails, is logged and produces no output.
func (c *Cleaner) ProcessFolder(ctx context.Context, cat *records.Category) (Result, error) {
	log := c.logger().With("category", cat.Name)
	res := Result{Category: cat.Name, Folder: cat.Folder}

	dir := ResolveFolder(c.RawDir, cat.Folder)
	files, err := ListCSV(dir)
	if err != nil {
		return res, fmt.Errorf("list %s: %w", dir, err)
	}
	res.Files = len(files)
	log.Info("starting batch", "dir", dir, "files", len(files))
	if len(files) == 0 {
		log.Error("folder is empty or missing", "dir", dir)
		return res, nil
	}

	var cleaned []*Table
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := filepath.Base(path)
		t, stats, err := c.cleanFile(path)
		res.RowsRead += stats.read
		res.RowsDropped += stats.dropped
		c.Metrics.Dropped(cat.Name, stats.dropped)
		if err != nil {
			res.FilesSkipped = append(res.FilesSkipped, name)
			switch {
			case errors.Is(err, ErrNoCountColumn):
				c.Metrics.Skipped("clean", cat.Name, "no_count_column")
				log.Error("no numeric column found", "file", name, "columns", stats.header)
			case errors.Is(err, ErrNoStateColumn):
				c.Metrics.Skipped("clean", cat.Name, "no_state_column")
				log.Warn("skipping file: no state column", "file", name)
			default:
				c.Metrics.Skipped("clean", cat.Name, "read_error")
				log.Error("error reading file", "file", name, "error", err)
			}
			continue
		}
		if stats.shadowed {
			log.Debug("raw count column renamed", "file", name, "to", ColCountRaw, "count_column", stats.countCol)
		}
		log.Info("file cleaned", "file", name, "count_column", stats.countCol, "rows", len(t.Rows), "dropped", stats.dropped)
		if len(t.Rows) > 0 {
			cleaned = append(cleaned, t)
		}
	}

	if len(cleaned) == 0 {
		log.Error("could not process any files", "folder", cat.Folder)
		return res, nil
	}

	combined := concat(cleaned)
	res.RowsKept = len(combined.Rows)
	c.Metrics.Kept(cat.Name, res.RowsKept)

	out := filepath.Join(c.OutDir, cat.OutputName())
	if err := writeTable(out, combined); err != nil {
		return res, fmt.Errorf("write %s: %w", out, err)
	}
	res.Output = cat.OutputName()
	log.Info("combined output written", "output", out, "rows", res.RowsKept)

	if c.Publisher != nil {
		if err := c.Publisher.Publish(ctx, out, cat.OutputName()); err != nil {
			log.Error("publish failed", "output", out, "error", err)
		}
	}
	return res, nil
}

type fileStats struct {
	header   []string
	countCol string
	// shadowed is set when a raw "count" column lost to another source
	// and was kept as count_raw.
	shadowed bool
	read     int
	dropped  int
}

// cleanFile applies count detection, state filtering, pincode and date
// coercion and provenance tagging to one raw file.
func (c *Cleaner) cleanFile(path string) (*Table, fileStats, error) {
	var st fileStats
	t, err := ReadTableFile(path, c.Encoding)
	if err != nil {
		return nil, st, err
	}
	st.header = append([]string(nil), t.Header...)
	st.read = len(t.Rows)

	countIdx, ok := c.Detector.FindCountColumn(t)
	if !ok {
		return nil, st, ErrNoCountColumn
	}
	st.countCol = t.Header[countIdx]
	if i := t.Index(ColCount); i >= 0 && i != countIdx {
		t.Header[i] = ColCountRaw
		st.shadowed = true
	}
	dst := t.AddColumn(ColCount)
	for _, row := range t.Rows {
		row[dst] = strconv.Itoa(CleanInt(row[countIdx]))
	}

	stateIdx := t.FindColumn(ColState)
	if stateIdx < 0 {
		return nil, st, ErrNoStateColumn
	}
	for _, row := range t.Rows {
		v := row[stateIdx]
		row[stateIdx] = c.States.Normalize(v, strings.TrimSpace(v) != "")
	}
	st.dropped = t.Filter(func(row []string) bool {
		return c.States.IsCanonical(row[stateIdx])
	})
	t.Header[stateIdx] = ColState

	if pinIdx := t.FindColumn("pin"); pinIdx >= 0 {
		t.Header[pinIdx] = ColPincode
		for _, row := range t.Rows {
			row[pinIdx] = StripPincode(row[pinIdx])
		}
	} else {
		pinIdx = t.AddColumn(ColPincode)
		for _, row := range t.Rows {
			row[pinIdx] = PincodeSentinel
		}
	}

	if dateIdx := dateColumn(t, countIdx); dateIdx >= 0 {
		t.Header[dateIdx] = ColDate
		for _, row := range t.Rows {
			if d, ok := ParseDate(row[dateIdx]); ok {
				row[dateIdx] = d.Format(ISODate)
			} else {
				row[dateIdx] = ""
			}
		}
	}

	name := filepath.Base(path)
	srcIdx := t.AddColumn(ColSourceFile)
	qIdx := t.AddColumn(ColQuality)
	for _, row := range t.Rows {
		row[srcIdx] = name
		row[qIdx] = strconv.Itoa(QualityScore)
	}
	return t, st, nil
}

// dateColumn prefers a column named exactly "date"; otherwise the first
// column containing "date" that is not the count source ("updates").
func dateColumn(t *Table, countIdx int) int {
	if i := t.Index(ColDate); i >= 0 {
		return i
	}
	for i, h := range t.Header {
		if i != countIdx && h != ColCount && strings.Contains(h, ColDate) && !strings.Contains(h, "update") {
			return i
		}
	}
	return -1
}

// concat merges tables whose headers may differ. The result header is the
// union of column names in first-seen order; missing cells are empty.
func concat(tables []*Table) *Table {
	out := &Table{}
	pos := make(map[string]int)
	for _, t := range tables {
		for _, h := range t.Header {
			if _, ok := pos[h]; !ok {
				pos[h] = len(out.Header)
				out.Header = append(out.Header, h)
			}
		}
	}
	for _, t := range tables {
		for _, row := range t.Rows {
			merged := make([]string, len(out.Header))
			for i, h := range t.Header {
				merged[pos[h]] = row[i]
			}
			out.Rows = append(out.Rows, merged)
		}
	}
	return out
}

func writeTable(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
