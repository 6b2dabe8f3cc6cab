// Package store persists category records in a relational database.
//
// Two drivers are supported: "sqlite" (modernc.org/sqlite, the default) and
// "postgres" (pgx through database/sql). Tables are created on open.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/aadhaar-pulse/pkg/records"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store wraps the database handle and its SQL dialect.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and ensures every category table exists.
// For sqlite, dsn is a file path.
func Open(driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "", DriverSQLite:
		driver = DriverSQLite
		if dsn == "" {
			dsn = "aadhaar.db"
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
		db, err = sql.Open("sqlite", dsn+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	case DriverPostgres:
		if dsn == "" {
			dsn = "postgres://localhost/aadhaar?sslmode=disable"
		}
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := s.applyDDL(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for packages sharing the database.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the dialect name.
func (s *Store) Driver() string { return s.driver }

// Rebind rewrites '?' placeholders to the dialect's form.
func (s *Store) Rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DateText returns a SQL expression rendering a date column as YYYY-MM-DD.
func (s *Store) DateText(col string) string {
	if s.driver == DriverPostgres {
		return "to_char(" + col + ", 'YYYY-MM-DD')"
	}
	return col
}

func (s *Store) applyDDL(ctx context.Context) error {
	for _, cat := range records.All() {
		for _, stmt := range s.tableDDL(cat) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create %s table: %w", cat.Table, err)
			}
		}
	}
	return nil
}

func (s *Store) tableDDL(cat *records.Category) []string {
	idCol, dateType := "id INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT"
	if s.driver == DriverPostgres {
		idCol, dateType = "id BIGSERIAL PRIMARY KEY", "DATE"
	}
	cols := []string{
		idCol,
		"date " + dateType,
		"state TEXT NOT NULL",
		"district TEXT NOT NULL",
		"pincode TEXT NOT NULL",
	}
	for _, b := range cat.Bands {
		cols = append(cols, b.Column+" INTEGER NOT NULL DEFAULT 0")
	}
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t\t%s\n\t)", cat.Table, strings.Join(cols, ",\n\t\t")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_geo ON %s (state, district)", cat.Table, cat.Table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_date ON %s (date)", cat.Table, cat.Table),
	}
}
