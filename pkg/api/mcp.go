package api

import (
	"github.com/hazyhaar/aadhaar-pulse/pkg/kit"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer returns an MCP server exposing the dashboard queries as tools.
func NewMCPServer(svc Stats, version string) *server.MCPServer {
	srv := server.NewMCPServer("aadhaar-pulse", version, server.WithToolCapabilities(false))
	RegisterMCPTools(srv, svc)
	return srv
}

// RegisterMCPTools registers the three aggregate query tools on the server.
func RegisterMCPTools(srv *server.MCPServer, svc Stats) {
	filters := []mcp.ToolOption{
		mcp.WithString("state", mcp.Description("State or union territory, case-insensitive (e.g. Kerala)")),
		mcp.WithString("district", mcp.Description("District within the state, case-insensitive")),
	}

	kit.RegisterMCPTool(srv,
		mcp.NewTool("kpi_stats", append([]mcp.ToolOption{
			mcp.WithDescription("Total enrolments, total biometric and demographic updates, their ratio and the data quality index."),
		}, filters...)...),
		kpiEndpoint(svc), decodeStatsReq)

	kit.RegisterMCPTool(srv,
		mcp.NewTool("geo_stats",
			mcp.WithDescription("Enrolment totals by state, or by district when a state is given, largest first."),
			mcp.WithString("state", mcp.Description("State whose districts to list; omit for the national view")),
		),
		geoEndpoint(svc), decodeStatsReq)

	kit.RegisterMCPTool(srv,
		mcp.NewTool("trend_stats", append([]mcp.ToolOption{
			mcp.WithDescription("Daily enrolment, biometric and demographic totals in date order, plus enrolments by age band."),
		}, filters...)...),
		trendsEndpoint(svc), decodeStatsReq)
}

func decodeStatsReq(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	args := req.GetArguments()
	state, _ := args["state"].(string)
	district, _ := args["district"].(string)
	return &kit.MCPDecodeResult{Request: newStatsReq(state, district)}, nil
}
