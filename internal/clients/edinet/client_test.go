package edinet

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyofin/kessan/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key", t.TempDir(),
		WithBaseURL(srv.URL),
		WithWorkers(3),
		WithRetry(2, time.Millisecond),
		WithClock(fixedNow),
	)
	require.NoError(t, err)
	return client
}

func writeIndex(w http.ResponseWriter, docs []document) {
	_ = json.NewEncoder(w).Encode(indexResponse{StatusCode: 200, Results: docs})
}

func annualWindow(fyEnd, start, end string) models.SearchPeriod {
	return models.SearchPeriod{
		FiscalYearEnd: fyEnd,
		PeriodType:    models.PeriodFY,
		Window:        models.DateRange{Start: start, End: end},
		DocTypes:      []string{models.DocTypeAnnualReport},
	}
}

func TestSearchReportsFindsNewestMatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/documents.json", r.URL.Path)
		require.Equal(t, "test-key", r.URL.Query().Get("Subscription-Key"))

		switch r.URL.Query().Get("date") {
		case "2024-06-25":
			writeIndex(w, []document{{
				DocID:          "S100NEW",
				SecCode:        "67580",
				DocTypeCode:    "120",
				DocDescription: "有価証券報告書－第107期",
				SubmitDateTime: "2024-06-25 09:00",
				PeriodEnd:      "2024-03-31",
			}})
		case "2024-06-20":
			writeIndex(w, []document{{
				DocID:          "S100OLD",
				SecCode:        "67580",
				DocTypeCode:    "120",
				DocDescription: "有価証券報告書－第106期",
				SubmitDateTime: "2024-06-20 09:00",
			}})
		default:
			writeIndex(w, nil)
		}
	}))

	reports, err := client.SearchReports(context.Background(), "67580",
		[]models.SearchPeriod{annualWindow("2024-03-31", "2024-06-18", "2024-06-27")})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	// Newest-first scan stops at the later filing.
	assert.Equal(t, "S100NEW", reports[0].DocID)
	assert.Equal(t, "2024-03-31", reports[0].PeriodEnd)
}

func TestSearchReportsSkipsAmendmentsAndOtherIssuers(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") != "2024-06-25" {
			writeIndex(w, nil)
			return
		}
		writeIndex(w, []document{
			{DocID: "S100AMD", SecCode: "67580", DocTypeCode: "120", DocDescription: "訂正有価証券報告書"},
			{DocID: "S100OTH", SecCode: "99990", DocTypeCode: "120", DocDescription: "有価証券報告書"},
			{DocID: "S100QTR", SecCode: "67580", DocTypeCode: "140", DocDescription: "半期報告書"},
			{DocID: "S100HIT", SecCode: "67580", DocTypeCode: "120", DocDescription: "有価証券報告書"},
		})
	}))

	reports, err := client.SearchReports(context.Background(), "67580",
		[]models.SearchPeriod{annualWindow("2024-03-31", "2024-06-23", "2024-06-25")})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "S100HIT", reports[0].DocID)
}

func TestSearchReportsUsesDiskCache(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeIndex(w, []document{{
			DocID:          "S100HIT",
			SecCode:        "67580",
			DocTypeCode:    "120",
			DocDescription: "有価証券報告書",
		}})
	}))

	window := []models.SearchPeriod{annualWindow("2024-03-31", "2024-06-25", "2024-06-25")}

	_, err := client.SearchReports(context.Background(), "67580", window)
	require.NoError(t, err)
	first := calls.Load()
	require.Greater(t, first, int32(0))

	// Second search for the same date hits the cache, not the API.
	_, err = client.SearchReports(context.Background(), "67580", window)
	require.NoError(t, err)
	assert.Equal(t, first, calls.Load())
}

func TestSearchReportsClampsWindowToToday(t *testing.T) {
	var dates []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dates = append(dates, r.URL.Query().Get("date"))
		writeIndex(w, nil)
	}))
	// Workers=1 keeps the recorded order deterministic.
	client.workers = 1

	_, err := client.SearchReports(context.Background(), "67580",
		[]models.SearchPeriod{annualWindow("2024-03-31", "2024-07-14", "2024-12-31")})
	require.NoError(t, err)
	require.NotEmpty(t, dates)
	// fixedNow is 2024-07-15; nothing beyond it is requested.
	assert.Equal(t, "2024-07-15", dates[0])
	assert.Equal(t, "2024-07-14", dates[1])
}

func TestSearchReportsWithoutAPIKey(t *testing.T) {
	client, err := NewClient("", t.TempDir())
	require.NoError(t, err)

	reports, err := client.SearchReports(context.Background(), "67580",
		[]models.SearchPeriod{annualWindow("2024-03-31", "2024-06-01", "2024-06-30")})
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestDownloadDocumentExtractsArchive(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/documents/S100TEST", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("type"))
		calls.Add(1)

		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		f, err := zw.Create("XBRL/PublicDoc/report.xbrl")
		require.NoError(t, err)
		_, err = f.Write([]byte("<xbrl/>"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		_, _ = w.Write(buf.Bytes())
	}))

	dir := t.TempDir()
	path, err := client.DownloadDocument(context.Background(), "S100TEST", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "S100TEST_xbrl"), path)

	content, err := os.ReadFile(filepath.Join(path, "XBRL", "PublicDoc", "report.xbrl"))
	require.NoError(t, err)
	assert.Equal(t, "<xbrl/>", string(content))

	// A second call serves the already-extracted archive.
	again, err := client.DownloadDocument(context.Background(), "S100TEST", dir)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), calls.Load())
}
