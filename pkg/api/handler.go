package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/aadhaar-pulse/pkg/kit"
	"github.com/hazyhaar/aadhaar-pulse/pkg/metrics"
)

// Options wires the router to its collaborators. Only Stats is required.
type Options struct {
	Stats   Stats
	Counter Counter
	// MCP, when set, is served over streamable HTTP at /mcp.
	MCP *server.MCPServer
	// Gatherer, when set, is exposed at /metrics.
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTP
	// RateLimit is requests per second per client; <= 0 disables limiting.
	RateLimit float64
	Burst     int
	Logger    *slog.Logger
}

// NewRouter returns an http.Handler with all dashboard API routes.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	wrap := func(name string) kit.Middleware {
		return kit.Chain(kit.Logging(logger, name), kit.Recover())
	}
	h := &handler{
		kpi:    wrap("kpi")(kpiEndpoint(opts.Stats)),
		geo:    wrap("geo")(geoEndpoint(opts.Stats)),
		trends: wrap("trends")(trendsEndpoint(opts.Stats)),
		health: healthEndpoint(opts.Counter),
	}
	limit := newClientLimiter(opts.RateLimit, opts.Burst)
	route := func(name string, fn http.HandlerFunc) http.Handler {
		return opts.Metrics.Wrap(name, limit.wrap(fn))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/stats/kpi/{$}", route("kpi", h.handleKPI))
	mux.Handle("GET /api/v1/stats/geo/{$}", route("geo", h.handleGeo))
	mux.Handle("GET /api/v1/stats/trends/{$}", route("trends", h.handleTrends))
	mux.HandleFunc("GET /v1/health", h.handleHealth)
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.MCP != nil {
		mux.Handle("/mcp", opts.Metrics.Wrap("mcp", limit.wrap(server.NewStreamableHTTPServer(opts.MCP))))
	}

	return cors(withRequestID(mux))
}

type handler struct {
	kpi    kit.Endpoint
	geo    kit.Endpoint
	trends kit.Endpoint
	health kit.Endpoint
}

func (h *handler) serveStats(ep kit.Endpoint, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := ep(r.Context(), newStatsReq(q.Get("state"), q.Get("district")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleKPI(w http.ResponseWriter, r *http.Request) {
	h.serveStats(h.kpi, w, r)
}

func (h *handler) handleGeo(w http.ResponseWriter, r *http.Request) {
	h.serveStats(h.geo, w, r)
}

func (h *handler) handleTrends(w http.ResponseWriter, r *http.Request) {
	h.serveStats(h.trends, w, r)
}

// --- health ---

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := h.health(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// withRequestID tags each request with an ID, echoed in X-Request-ID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := kit.WithClient(kit.WithRequestID(r.Context(), id), clientAddr(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Mcp-Session-Id, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
