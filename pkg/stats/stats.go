// Package stats answers the dashboard's KPI, geographic and trend queries
// with grouped sums over the loaded records.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/hazyhaar/aadhaar-pulse/pkg/records"
)

// DefaultDataQualityIndex is reported when none is configured.
const DefaultDataQualityIndex = 98.5

// DB is the slice of the store the service reads through.
type DB interface {
	DB() *sql.DB
	Rebind(query string) string
	DateText(col string) string
}

// Filter narrows a query to a state and optionally a district. Matching is
// case-insensitive and exact; empty fields do not filter.
type Filter struct {
	State    string `json:"state,omitempty"`
	District string `json:"district,omitempty"`
}

func (f Filter) key() string {
	return strings.ToLower(f.State) + "|" + strings.ToLower(f.District)
}

// KPI is the headline block of the dashboard.
type KPI struct {
	TotalEnrolments  int64   `json:"total_enrolments"`
	TotalUpdates     int64   `json:"total_updates"`
	OperationalRatio float64 `json:"operational_ratio"`
	DataQualityIndex float64 `json:"data_quality_index"`
}

// GeoValue is one row of a geographic breakdown.
type GeoValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// TrendPoint is one day of the merged timeline.
type TrendPoint struct {
	Date               string `json:"date"`
	Enrolments         int64  `json:"enrolments"`
	BiometricUpdates   int64  `json:"biometric_updates"`
	DemographicUpdates int64  `json:"demographic_updates"`
}

// AgeBand is the enrolment total of one age band.
type AgeBand struct {
	Range string `json:"range"`
	Count int64  `json:"count"`
}

// Trends is the timeline plus the enrolment age breakdown.
type Trends struct {
	Trends  []TrendPoint `json:"trends"`
	AgeData []AgeBand    `json:"ageData"`
}

// Options configures a Service.
type Options struct {
	DataQualityIndex float64
	// CacheTTL <= 0 disables caching.
	CacheTTL time.Duration
}

// Service runs aggregate queries, caching results per filter.
type Service struct {
	db    DB
	dqi   float64
	cache *cache.Cache
}

// New returns a Service reading from db.
func New(db DB, opts Options) *Service {
	s := &Service{db: db, dqi: opts.DataQualityIndex}
	if s.dqi == 0 {
		s.dqi = DefaultDataQualityIndex
	}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

// Flush drops every cached result.
func (s *Service) Flush() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

func cached[T any](s *Service, key string, fn func() (T, error)) (T, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(T), nil
		}
	}
	v, err := fn()
	if err != nil {
		return v, err
	}
	if s.cache != nil {
		s.cache.Set(key, v, cache.DefaultExpiration)
	}
	return v, nil
}

// sumExpr sums every band of cat, treating an empty group as 0.
func sumExpr(cat *records.Category) string {
	parts := make([]string, len(cat.Bands))
	for i, b := range cat.Bands {
		parts[i] = "COALESCE(SUM(" + b.Column + "), 0)"
	}
	return strings.Join(parts, " + ")
}

func where(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.State != "" {
		conds = append(conds, "lower(state) = lower(?)")
		args = append(args, f.State)
	}
	if f.District != "" {
		conds = append(conds, "lower(district) = lower(?)")
		args = append(args, f.District)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Service) total(ctx context.Context, cat *records.Category, f Filter) (int64, error) {
	w, args := where(f)
	q := s.db.Rebind("SELECT " + sumExpr(cat) + " FROM " + cat.Table + w)
	var n int64
	if err := s.db.DB().QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sum %s: %w", cat.Table, err)
	}
	return n, nil
}

// KPI returns total enrolments, total updates (biometric plus demographic)
// and their ratio rounded to two decimals.
func (s *Service) KPI(ctx context.Context, f Filter) (KPI, error) {
	return cached(s, "kpi|"+f.key(), func() (KPI, error) {
		enrol, err := s.total(ctx, records.Enrolment, f)
		if err != nil {
			return KPI{}, err
		}
		bio, err := s.total(ctx, records.Biometric, f)
		if err != nil {
			return KPI{}, err
		}
		demo, err := s.total(ctx, records.Demographic, f)
		if err != nil {
			return KPI{}, err
		}
		k := KPI{
			TotalEnrolments:  enrol,
			TotalUpdates:     bio + demo,
			DataQualityIndex: s.dqi,
		}
		if enrol > 0 {
			k.OperationalRatio = math.Round(float64(k.TotalUpdates)/float64(enrol)*100) / 100
		}
		return k, nil
	})
}

// Geo returns enrolment totals grouped by state, or by district of state
// when one is given, largest first.
func (s *Service) Geo(ctx context.Context, state string) ([]GeoValue, error) {
	return cached(s, "geo|"+strings.ToLower(state), func() ([]GeoValue, error) {
		cat := records.Enrolment
		col := "state"
		if state != "" {
			col = "district"
		}
		w, args := where(Filter{State: state})
		q := s.db.Rebind(fmt.Sprintf("SELECT %s, %s AS value FROM %s%s GROUP BY %s ORDER BY value DESC, %s",
			col, sumExpr(cat), cat.Table, w, col, col))

		rows, err := s.db.DB().QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("geo %s: %w", col, err)
		}
		defer rows.Close()

		out := []GeoValue{}
		for rows.Next() {
			var g GeoValue
			if err := rows.Scan(&g.Name, &g.Value); err != nil {
				return nil, fmt.Errorf("scan geo: %w", err)
			}
			out = append(out, g)
		}
		return out, rows.Err()
	})
}

func (s *Service) daily(ctx context.Context, cat *records.Category, f Filter) (map[string]int64, error) {
	w, args := where(f)
	if w == "" {
		w = " WHERE date IS NOT NULL"
	} else {
		w += " AND date IS NOT NULL"
	}
	day := s.db.DateText("date")
	q := s.db.Rebind(fmt.Sprintf("SELECT %s, %s FROM %s%s GROUP BY date", day, sumExpr(cat), cat.Table, w))

	rows, err := s.db.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("daily %s: %w", cat.Table, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var d string
		var n int64
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("scan daily: %w", err)
		}
		out[d] += n
	}
	return out, rows.Err()
}

// Trends merges the per-day sums of the three categories into one
// date-ascending timeline and adds the enrolment age breakdown.
func (s *Service) Trends(ctx context.Context, f Filter) (Trends, error) {
	return cached(s, "trends|"+f.key(), func() (Trends, error) {
		timeline := make(map[string]*TrendPoint)
		point := func(d string) *TrendPoint {
			p, ok := timeline[d]
			if !ok {
				p = &TrendPoint{Date: d}
				timeline[d] = p
			}
			return p
		}

		sets := []struct {
			cat *records.Category
			set func(*TrendPoint, int64)
		}{
			{records.Enrolment, func(p *TrendPoint, n int64) { p.Enrolments = n }},
			{records.Biometric, func(p *TrendPoint, n int64) { p.BiometricUpdates = n }},
			{records.Demographic, func(p *TrendPoint, n int64) { p.DemographicUpdates = n }},
		}
		for _, st := range sets {
			days, err := s.daily(ctx, st.cat, f)
			if err != nil {
				return Trends{}, err
			}
			for d, n := range days {
				st.set(point(d), n)
			}
		}

		out := Trends{Trends: make([]TrendPoint, 0, len(timeline))}
		for _, p := range timeline {
			out.Trends = append(out.Trends, *p)
		}
		sort.Slice(out.Trends, func(i, j int) bool { return out.Trends[i].Date < out.Trends[j].Date })

		ages, err := s.ageBands(ctx, f)
		if err != nil {
			return Trends{}, err
		}
		out.AgeData = ages
		return out, nil
	})
}

func (s *Service) ageBands(ctx context.Context, f Filter) ([]AgeBand, error) {
	cat := records.Enrolment
	sums := make([]string, len(cat.Bands))
	for i, b := range cat.Bands {
		sums[i] = "COALESCE(SUM(" + b.Column + "), 0)"
	}
	w, args := where(f)
	q := s.db.Rebind("SELECT " + strings.Join(sums, ", ") + " FROM " + cat.Table + w)

	counts := make([]int64, len(cat.Bands))
	dest := make([]any, len(counts))
	for i := range counts {
		dest[i] = &counts[i]
	}
	if err := s.db.DB().QueryRowContext(ctx, q, args...).Scan(dest...); err != nil {
		return nil, fmt.Errorf("age bands: %w", err)
	}

	out := make([]AgeBand, len(cat.Bands))
	for i, b := range cat.Bands {
		out[i] = AgeBand{Range: b.Label, Count: counts[i]}
	}
	return out, nil
}
