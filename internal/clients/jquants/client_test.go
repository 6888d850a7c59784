package jquants

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(1000),
		WithRetry(2, 5*time.Millisecond, 5*time.Millisecond),
	)
	require.NoError(t, err)
	return client
}

func writePage(w http.ResponseWriter, data []map[string]any, paginationKey string) {
	body := map[string]any{"data": data}
	if paginationKey != "" {
		body["pagination_key"] = paginationKey
	}
	_ = json.NewEncoder(w).Encode(body)
}

func TestGetFinancialSummaryCoercesAndPaginates(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fins/summary", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, "67580", r.URL.Query().Get("code"))

		if r.URL.Query().Get("pagination_key") == "" {
			writePage(w, []map[string]any{{
				"Code":       "67580",
				"DiscDate":   "2024-05-14",
				"CurPerType": "FY",
				"CurFYEn":    "2024-03-31",
				"Sales":      "9,000,000,000",
				"OP":         1.1e9,
				"NP":         "",
				"EPS":        float64(120),
			}}, "page2")
			return
		}
		writePage(w, []map[string]any{{
			"Code":       "67580",
			"CurPerType": "Q2",
			"CurFYEn":    "2024-03-31",
			"Sales":      4.2e9,
		}}, "")
	}))

	records, err := client.GetFinancialSummary(context.Background(), "67580")
	require.NoError(t, err)
	require.Len(t, records, 2)

	fy := records[0]
	assert.Equal(t, "FY", fy.PeriodType)
	assert.Equal(t, "2024-03-31", fy.FiscalYearEnd)
	require.NotNil(t, fy.Sales)
	assert.InDelta(t, 9e9, *fy.Sales, 1)
	assert.Nil(t, fy.NetProfit)

	// Variant period spelling is normalized.
	assert.Equal(t, "2Q", records[1].PeriodType)
}

func TestGetFinancialSummaryPeriodTypeFilter(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, []map[string]any{
			{"Code": "67580", "CurPerType": "FY", "CurFYEn": "2024-03-31"},
			{"Code": "67580", "CurPerType": "Q2", "CurFYEn": "2024-03-31"},
			{"Code": "67580", "CurPerType": "1Q", "CurFYEn": "2024-03-31"},
		}, "")
	}))

	records, err := client.GetFinancialSummary(context.Background(), "67580", "FY", "Q2")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "FY", records[0].PeriodType)
	// The filter normalizes its arguments the same way the rows are.
	assert.Equal(t, "2Q", records[1].PeriodType)
}

func TestGetPricesAtDatesWalksBackFromWeekend(t *testing.T) {
	// 2024-03-31 is a Sunday; the prior Friday is 2024-03-29.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/equities/bars/daily", r.URL.Path)
		writePage(w, []map[string]any{
			{"Date": "2024-03-28", "C": float64(980), "AdjC": float64(980)},
			{"Date": "2024-03-29", "C": float64(1000), "AdjC": float64(1000)},
			{"Date": "2024-04-01", "C": float64(1010), "AdjC": float64(1010)},
		}, "")
	}))

	prices, err := client.GetPricesAtDates(context.Background(), "67580", []string{"2024-03-31", "20240401"})
	require.NoError(t, err)
	assert.InDelta(t, 1000, prices["2024-03-31"], 0.001)
	assert.InDelta(t, 1010, prices["2024-04-01"], 0.001)
}

func TestGetPricesAtDatesPrefersAdjustedClose(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, []map[string]any{
			{"Date": "2024-03-29", "C": float64(2000), "AdjC": float64(1000)},
		}, "")
	}))

	prices, err := client.GetPricesAtDates(context.Background(), "67580", []string{"2024-03-29"})
	require.NoError(t, err)
	assert.InDelta(t, 1000, prices["2024-03-29"], 0.001)
}

func TestRetryOnRateLimitThenSuccess(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writePage(w, []map[string]any{{"Code": "67580"}}, "")
	}))

	records, err := client.GetFinancialSummary(context.Background(), "67580")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNoRetryOnUnauthorized(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "invalid key")
	}))

	_, err := client.GetFinancialSummary(context.Background(), "67580")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryExhaustionOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetFinancialSummary(context.Background(), "67580")
	require.Error(t, err)
	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), calls.Load())
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("  ")
	assert.Error(t, err)
}
