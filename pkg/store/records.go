package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/aadhaar-pulse/pkg/records"
)

// Wipe deletes the stored records of cats, leaving other categories intact.
// It runs in its own transaction; a following reload is not part of it, so
// readers may observe the empty tables in between.
func (s *Store) Wipe(ctx context.Context, cats []*records.Category) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin wipe: %w", err)
	}
	defer tx.Rollback()

	for _, cat := range cats {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+cat.Table); err != nil {
			return fmt.Errorf("wipe %s: %w", cat.Table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wipe: %w", err)
	}
	return nil
}

// BulkInsert inserts recs into cat's table in a single transaction.
func (s *Store) BulkInsert(ctx context.Context, cat *records.Category, recs []records.Record) error {
	if len(recs) == 0 {
		return nil
	}
	cols := append([]string{"date", "state", "district", "pincode"}, cat.BandColumns()...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := s.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", cat.Table, strings.Join(cols, ", "), marks))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", cat.Table, err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for i := range recs {
		r := &recs[i]
		if len(r.Bands) != len(cat.Bands) {
			return fmt.Errorf("record %d: %d bands, %s wants %d", i, len(r.Bands), cat.Name, len(cat.Bands))
		}
		args[0] = s.dateArg(r)
		args[1], args[2], args[3] = r.State, r.District, r.Pincode
		for j, v := range r.Bands {
			args[4+j] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s: %w", cat.Table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

func (s *Store) dateArg(r *records.Record) any {
	if r.Date == nil {
		return nil
	}
	if s.driver == DriverPostgres {
		return *r.Date
	}
	return r.Date.Format("2006-01-02")
}

// Count returns the number of stored records of cat.
func (s *Store) Count(ctx context.Context, cat *records.Category) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+cat.Table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", cat.Table, err)
	}
	return n, nil
}

// Counts returns the record count of every category keyed by name.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, cat := range records.All() {
		n, err := s.Count(ctx, cat)
		if err != nil {
			return nil, err
		}
		counts[cat.Name] = n
	}
	return counts, nil
}
