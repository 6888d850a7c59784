package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/models"
)

type stubAnalysis struct {
	result   *models.AnalysisResult
	err      error
	useCache []bool
}

func (s *stubAnalysis) Analyze(ctx context.Context, code string, useCache bool) (*models.AnalysisResult, error) {
	s.useCache = append(s.useCache, useCache)
	return s.result, s.err
}

func (s *stubAnalysis) AnalyzeStream(ctx context.Context, code string) (<-chan models.AnalysisSnapshot, error) {
	ch := make(chan models.AnalysisSnapshot)
	close(ch)
	return ch, nil
}

func (s *stubAnalysis) ClearCache(ctx context.Context, code string) error {
	return nil
}

type stubMaster struct {
	results []models.Instrument
}

func (s *stubMaster) Search(ctx context.Context, query string) ([]models.Instrument, error) {
	return s.results, nil
}

func (s *stubMaster) Get(ctx context.Context, code string) (*models.Instrument, error) {
	if len(s.results) == 0 {
		return nil, nil
	}
	return &s.results[0], nil
}

func (s *stubMaster) RefreshedAt() time.Time { return time.Time{} }

func f(v float64) *float64 { return &v }

func sampleResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Code:        "67580",
		CompanyName: "ソニーグループ",
		Annual: []models.PeriodMetrics{
			{
				FiscalYearEnd: "2024-03-31",
				PeriodLabel:   "2024年03月期",
				Sales:         f(13020000),
				NetProfit:     f(970600),
				EPS:           f(785.68),
				PER:           f(16.49),
				StockPrice:    f(12955),
			},
		},
		Availability: models.AvailabilitySufficient,
		DataValid:    true,
	}
}

func requestWith(args map[string]any) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	return request
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleAnalyzeEquity(t *testing.T) {
	svc := &stubAnalysis{result: sampleResult()}
	handler := handleAnalyzeEquity(svc, common.NewSilentLogger())

	result, err := handler(context.Background(), requestWith(map[string]any{"code": "6758"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := textOf(t, result)
	assert.Contains(t, text, "ソニーグループ")
	assert.Contains(t, text, "2024年03月期")
	assert.Contains(t, text, "785.68")
	assert.Equal(t, []bool{true}, svc.useCache)
}

func TestHandleAnalyzeEquityBypassesCache(t *testing.T) {
	svc := &stubAnalysis{result: sampleResult()}
	handler := handleAnalyzeEquity(svc, common.NewSilentLogger())

	result, err := handler(context.Background(), requestWith(map[string]any{
		"code":      "6758",
		"use_cache": false,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, []bool{false}, svc.useCache)
}

func TestHandleAnalyzeEquityMissingCode(t *testing.T) {
	handler := handleAnalyzeEquity(&stubAnalysis{}, common.NewSilentLogger())

	result, err := handler(context.Background(), requestWith(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleSearchCompanies(t *testing.T) {
	svc := &stubMaster{results: []models.Instrument{
		{Code: "67580", CompanyName: "ソニーグループ", CompanyNameEng: "Sony Group"},
	}}
	handler := handleSearchCompanies(svc, common.NewSilentLogger())

	result, err := handler(context.Background(), requestWith(map[string]any{"query": "sony"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, textOf(t, result), "67580")
}

func TestHandleSearchCompaniesNoMatches(t *testing.T) {
	handler := handleSearchCompanies(&stubMaster{}, common.NewSilentLogger())

	result, err := handler(context.Background(), requestWith(map[string]any{"query": "nothing"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, textOf(t, result), "No listed companies matched")
}

func TestHandleFinancialSummary(t *testing.T) {
	handler := handleFinancialSummary(&stubAnalysis{result: sampleResult()}, common.NewSilentLogger())

	result, err := handler(context.Background(), requestWith(map[string]any{"code": "6758"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := textOf(t, result)
	assert.Contains(t, text, "Annual metrics")
	assert.Contains(t, text, "16.49")
	assert.False(t, strings.Contains(text, "Quarterly"))
}

func TestFormatAnalysisMissingValues(t *testing.T) {
	r := sampleResult()
	r.Annual[0].ROE = nil
	r.Annual[0].FCF = nil

	text := formatAnalysis(r)
	assert.Contains(t, text, "| - |")
}

func TestToolDefinitions(t *testing.T) {
	assert.Equal(t, "get_version", createVersionTool().Name)
	assert.Equal(t, "analyze_equity", createAnalyzeEquityTool().Name)
	assert.Equal(t, "search_companies", createSearchCompaniesTool().Name)
	assert.Equal(t, "get_financial_summary", createFinancialSummaryTool().Name)

	analyze := createAnalyzeEquityTool()
	assert.Contains(t, analyze.InputSchema.Required, "code")
}
