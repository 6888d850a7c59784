package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/interfaces"
)

// handleGetVersion implements the get_version tool
func handleGetVersion() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := fmt.Sprintf("Kessan MCP Server\nVersion: %s\nBuild: %s\nStatus: OK",
			common.Version, common.BuildTime)
		return textResult(result), nil
	}
}

// handleAnalyzeEquity implements the analyze_equity tool
func handleAnalyzeEquity(analysisService interfaces.AnalysisService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code, err := request.RequireString("code")
		if err != nil || code == "" {
			return errorResult("Error: code parameter is required"), nil
		}

		result, err := analysisService.Analyze(ctx, code, request.GetBool("use_cache", true))
		if err != nil {
			logger.Error().Err(err).Str("code", code).Msg("Analysis failed")
			return errorResult(fmt.Sprintf("Analysis error: %v", err)), nil
		}

		return textResult(formatAnalysis(result)), nil
	}
}

// handleSearchCompanies implements the search_companies tool
func handleSearchCompanies(masterService interfaces.MasterService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return errorResult("Error: query parameter is required"), nil
		}

		results, err := masterService.Search(ctx, query)
		if err != nil {
			logger.Error().Err(err).Str("query", query).Msg("Company search failed")
			return errorResult(fmt.Sprintf("Search error: %v", err)), nil
		}
		if len(results) == 0 {
			return textResult(fmt.Sprintf("No listed companies matched %q", query)), nil
		}

		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return errorResult("Error: failed to encode search results"), nil
		}
		return textResult(string(data)), nil
	}
}

// handleFinancialSummary implements the get_financial_summary tool
func handleFinancialSummary(analysisService interfaces.AnalysisService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code, err := request.RequireString("code")
		if err != nil || code == "" {
			return errorResult("Error: code parameter is required"), nil
		}

		result, err := analysisService.Analyze(ctx, code, true)
		if err != nil {
			logger.Error().Err(err).Str("code", code).Msg("Financial summary failed")
			return errorResult(fmt.Sprintf("Summary error: %v", err)), nil
		}

		return textResult(formatSummaryTable(result)), nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
