package api

import (
	"context"
	"strings"

	"github.com/hazyhaar/aadhaar-pulse/pkg/kit"
	"github.com/hazyhaar/aadhaar-pulse/pkg/stats"
)

// Stats is the aggregation service behind the API.
type Stats interface {
	KPI(ctx context.Context, f stats.Filter) (stats.KPI, error)
	Geo(ctx context.Context, state string) ([]stats.GeoValue, error)
	Trends(ctx context.Context, f stats.Filter) (stats.Trends, error)
}

// Counter reports stored rows per category.
type Counter interface {
	Counts(ctx context.Context) (map[string]int, error)
}

// Shared request/response types used by both HTTP and MCP transports.

type statsReq struct {
	Filter stats.Filter
}

func newStatsReq(state, district string) *statsReq {
	return &statsReq{Filter: stats.Filter{
		State:    strings.TrimSpace(state),
		District: strings.TrimSpace(district),
	}}
}

type healthResponse struct {
	Status  string         `json:"status"`
	Records map[string]int `json:"records"`
}

func kpiEndpoint(svc Stats) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*statsReq)
		return svc.KPI(ctx, req.Filter)
	}
}

// geoEndpoint ignores the district: a state selects its districts, no state
// selects all states.
func geoEndpoint(svc Stats) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*statsReq)
		return svc.Geo(ctx, req.Filter.State)
	}
}

func trendsEndpoint(svc Stats) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*statsReq)
		return svc.Trends(ctx, req.Filter)
	}
}

func healthEndpoint(c Counter) kit.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		if c == nil {
			return healthResponse{Status: "ok"}, nil
		}
		counts, err := c.Counts(ctx)
		if err != nil {
			return nil, err
		}
		return healthResponse{Status: "ok", Records: counts}, nil
	}
}
