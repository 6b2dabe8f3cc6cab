package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipeline_NilSafe(t *testing.T) {
	var p *Pipeline
	p.Kept("enrolment", 1)
	p.Dropped("enrolment", 1)
	p.Skipped("clean", "enrolment", "no_state_column")
	p.Loaded("enrolment", 1)
}

func TestPipeline_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPipeline(reg)

	p.Kept("biometric", 7)
	p.Loaded("biometric", 10000)
	p.Loaded("biometric", 5000)

	if got := testutil.ToFloat64(p.RowsKept.WithLabelValues("biometric")); got != 7 {
		t.Errorf("rows kept = %v, want 7", got)
	}
	if got := testutil.ToFloat64(p.RecordsLoaded.WithLabelValues("biometric")); got != 15000 {
		t.Errorf("records loaded = %v, want 15000", got)
	}
	if got := testutil.ToFloat64(p.BatchesFlush.WithLabelValues("biometric")); got != 2 {
		t.Errorf("batches = %v, want 2", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPipeline(reg)
	p.Kept("enrolment", 3)

	path := filepath.Join(t.TempDir(), "pipeline.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `aadhaar_clean_rows_kept_total{category="enrolment"} 3`) {
		t.Errorf("textfile missing counter:\n%s", data)
	}
}

func TestHTTP_Wrap(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)

	handler := h.Wrap("kpi", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := testutil.ToFloat64(h.requests.WithLabelValues("kpi", "418")); got != 1 {
		t.Errorf("requests{kpi,418} = %v, want 1", got)
	}
}
