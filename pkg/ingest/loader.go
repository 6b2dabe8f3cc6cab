// Package ingest loads cleaned category CSVs into the store, replacing
// whatever a previous run loaded.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/aadhaar-pulse/pkg/cleaner"
	"github.com/hazyhaar/aadhaar-pulse/pkg/geo"
	"github.com/hazyhaar/aadhaar-pulse/pkg/metrics"
	"github.com/hazyhaar/aadhaar-pulse/pkg/records"
)

// DefaultBatchSize bounds the in-memory buffer between bulk inserts.
const DefaultBatchSize = 10000

// Inserter is the part of the store the loader writes through.
type Inserter interface {
	Wipe(ctx context.Context, cats []*records.Category) error
	BulkInsert(ctx context.Context, cat *records.Category, recs []records.Record) error
}

// Loader wipes and reloads categories from their cleaned CSVs.
type Loader struct {
	Store Inserter
	// Sources maps a category name to a glob of cleaned CSVs. Categories
	// without an entry read DefaultSource(SourceDir, cat).
	Sources   map[string]string
	SourceDir string
	BatchSize int
	Runs      *RunLog
	Logger    *slog.Logger
	Metrics   *metrics.Pipeline
}

// CategoryReport is the outcome of loading one category.
type CategoryReport struct {
	Category    string
	Files       int
	FilesFailed int
	Records     int
	Batches     int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Report is the outcome of a full run.
type Report struct {
	RunID      string
	Categories []CategoryReport
}

// DefaultSource is the glob matching the cleaner's combined output for cat.
func DefaultSource(dir string, cat *records.Category) string {
	return filepath.Join(dir, "clean_"+strings.ReplaceAll(cat.Folder, " ", "_")+"*.csv")
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l *Loader) batchSize() int {
	if l.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return l.BatchSize
}

func (l *Loader) source(cat *records.Category) string {
	if g, ok := l.Sources[cat.Name]; ok && g != "" {
		return g
	}
	return DefaultSource(l.SourceDir, cat)
}

// Run deletes the stored records of cats, then loads them in order. Other
// categories are untouched; passing records.All() replaces everything.
// Per-file failures are logged and counted; only a failed wipe or insert
// aborts the run.
func (l *Loader) Run(ctx context.Context, cats []*records.Category) (*Report, error) {
	rep := &Report{RunID: uuid.NewString()}
	log := l.logger().With("run", rep.RunID)

	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	log.Info("wiping stored records", "categories", names)
	if err := l.Store.Wipe(ctx, cats); err != nil {
		return rep, fmt.Errorf("wipe: %w", err)
	}

	for _, cat := range cats {
		cr, err := l.loadCategory(ctx, log, cat)
		cr.FinishedAt = time.Now().UTC()
		rep.Categories = append(rep.Categories, cr)
		if l.Runs != nil {
			if rerr := l.Runs.Record(ctx, rep.RunID, cr); rerr != nil {
				log.Error("record run", "category", cat.Name, "error", rerr)
			}
		}
		if err != nil {
			return rep, err
		}
		log.Info("category loaded", "category", cat.Name, "records", cr.Records, "files", cr.Files, "failed", cr.FilesFailed)
	}
	log.Info("ingestion complete")
	return rep, nil
}

func (l *Loader) loadCategory(ctx context.Context, log *slog.Logger, cat *records.Category) (CategoryReport, error) {
	cr := CategoryReport{Category: cat.Name, StartedAt: time.Now().UTC()}
	log = log.With("category", cat.Name)

	pattern := l.source(cat)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return cr, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(files)
	cr.Files = len(files)
	if len(files) == 0 {
		log.Warn("no CSV files found", "pattern", pattern)
		return cr, nil
	}
	log.Info("found files", "count", len(files))

	b := &batcher{
		size: l.batchSize(),
		flush: func(recs []records.Record) error {
			if err := l.Store.BulkInsert(ctx, cat, recs); err != nil {
				return err
			}
			cr.Records += len(recs)
			cr.Batches++
			l.Metrics.Loaded(cat.Name, len(recs))
			return nil
		},
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return cr, err
		}
		name := filepath.Base(path)
		log.Info("reading file", "file", name)
		if err := l.loadFile(path, cat, b); err != nil {
			if b.err != nil {
				return cr, fmt.Errorf("bulk insert %s: %w", cat.Table, b.err)
			}
			cr.FilesFailed++
			l.Metrics.Skipped("ingest", cat.Name, "read_error")
			log.Error("error processing file", "file", name, "error", err)
		}
	}
	if err := b.drain(); err != nil {
		return cr, fmt.Errorf("bulk insert %s: %w", cat.Table, err)
	}
	return cr, nil
}

// loadFile streams one cleaned CSV into b.
func (l *Loader) loadFile(path string, cat *records.Category, b *batcher) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	m := newRowMapper(cat, header)
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		if err := b.add(m.record(row)); err != nil {
			return err
		}
	}
}

// rowMapper resolves header positions once per file.
type rowMapper struct {
	cat                       *records.Category
	date, state, district, pin int
	bands                     []int
}

func newRowMapper(cat *records.Category, header []string) *rowMapper {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	col := func(name string) int {
		if i, ok := idx[name]; ok {
			return i
		}
		return -1
	}

	m := &rowMapper{
		cat:      cat,
		date:     col(cleaner.ColDate),
		state:    col(cleaner.ColState),
		district: col("district"),
		pin:      col(cleaner.ColPincode),
		bands:    make([]int, len(cat.Bands)),
	}
	for i, band := range cat.Bands {
		m.bands[i] = -1
		for _, name := range append(append([]string(nil), band.Alternates...), band.Column) {
			if j := col(name); j >= 0 {
				m.bands[i] = j
				break
			}
		}
	}
	return m
}

func cell(row []string, i int) (string, bool) {
	if i < 0 || i >= len(row) {
		return "", false
	}
	v := strings.TrimSpace(row[i])
	return v, v != ""
}

func (m *rowMapper) record(row []string) records.Record {
	rec := records.Record{
		Category: m.cat,
		State:    geo.Unknown,
		District: geo.Unknown,
		Pincode:  cleaner.PincodeSentinel,
		Bands:    make([]int, len(m.bands)),
	}
	if v, ok := cell(row, m.date); ok {
		if d, ok := cleaner.ParseDate(v); ok {
			rec.Date = &d
		}
	}
	if v, ok := cell(row, m.state); ok {
		rec.State = v
	}
	if v, ok := cell(row, m.district); ok {
		rec.District = v
	}
	if v, ok := cell(row, m.pin); ok {
		rec.Pincode = cleaner.CleanPincode(v)
	}
	for i, j := range m.bands {
		v, _ := cell(row, j)
		rec.Bands[i] = cleaner.CleanInt(v)
	}
	return rec
}
