// Package metrics holds the Prometheus collectors shared by the pipeline
// commands and the API server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aadhaar"

// Pipeline counts cleaner and loader outcomes. A nil *Pipeline is valid and
// records nothing.
type Pipeline struct {
	RowsKept      *prometheus.CounterVec
	RowsDropped   *prometheus.CounterVec
	FilesSkipped  *prometheus.CounterVec
	RecordsLoaded *prometheus.CounterVec
	BatchesFlush  *prometheus.CounterVec
}

// NewPipeline creates and registers the pipeline collectors.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		RowsKept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "clean", Name: "rows_kept_total",
			Help: "Rows written to cleaned outputs.",
		}, []string{"category"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "clean", Name: "rows_dropped_total",
			Help: "Rows dropped because their state did not resolve to a canonical name.",
		}, []string{"category"}),
		FilesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "files_skipped_total",
			Help: "Source files skipped, by stage and reason.",
		}, []string{"stage", "category", "reason"}),
		RecordsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "records_loaded_total",
			Help: "Records bulk-inserted into the store.",
		}, []string{"category"}),
		BatchesFlush: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "batches_flushed_total",
			Help: "Bulk insert calls issued.",
		}, []string{"category"}),
	}
	reg.MustRegister(p.RowsKept, p.RowsDropped, p.FilesSkipped, p.RecordsLoaded, p.BatchesFlush)
	return p
}

func (p *Pipeline) Kept(category string, n int) {
	if p != nil {
		p.RowsKept.WithLabelValues(category).Add(float64(n))
	}
}

func (p *Pipeline) Dropped(category string, n int) {
	if p != nil {
		p.RowsDropped.WithLabelValues(category).Add(float64(n))
	}
}

func (p *Pipeline) Skipped(stage, category, reason string) {
	if p != nil {
		p.FilesSkipped.WithLabelValues(stage, category, reason).Inc()
	}
}

func (p *Pipeline) Loaded(category string, n int) {
	if p != nil {
		p.RecordsLoaded.WithLabelValues(category).Add(float64(n))
		p.BatchesFlush.WithLabelValues(category).Inc()
	}
}

// WriteTextfile dumps every collector of g in the node_exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// HTTP instruments API routes.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTP creates and registers the HTTP collectors.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	h := &HTTP{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "API requests by route and status code.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "API request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(h.requests, h.duration)
	return h
}

// Wrap instruments next under the given route label.
func (h *HTTP) Wrap(route string, next http.Handler) http.Handler {
	if h == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.requests.WithLabelValues(route, strconv.Itoa(sw.code)).Inc()
		h.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
