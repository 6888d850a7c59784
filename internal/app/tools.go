package app

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func createVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the service version and build information"),
	)
}

func createAnalyzeEquityTool() mcp.Tool {
	return mcp.NewTool("analyze_equity",
		mcp.WithDescription("Run a full financial analysis for a listed Japanese equity: "+
			"per-year sales, profits, cash flows, ROE, PER/PBR, and located securities reports"),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Instrument code, 4 or 5 digits (e.g. 6758 or 67580)"),
		),
		mcp.WithBoolean("use_cache",
			mcp.Description("Serve a cached result when fresh (default true); false forces a fresh analysis"),
		),
	)
}

func createSearchCompaniesTool() mcp.Tool {
	return mcp.NewTool("search_companies",
		mcp.WithDescription("Search listed companies by code prefix or name substring"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Code prefix or company name fragment, Japanese or English"),
		),
	)
}

func createFinancialSummaryTool() mcp.Tool {
	return mcp.NewTool("get_financial_summary",
		mcp.WithDescription("Get a compact per-year financial summary table for an equity"),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Instrument code, 4 or 5 digits"),
		),
	)
}
