package filings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyofin/kessan/internal/models"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func record(periodType, fyEnd, disclosed string) *models.PeriodRecord {
	return &models.PeriodRecord{
		Code:          "67580",
		PeriodType:    periodType,
		FiscalYearEnd: fyEnd,
		DisclosedDate: disclosed,
	}
}

func TestPrepareSearchPeriodsWindowBounds(t *testing.T) {
	windows := PrepareSearchPeriods([]*models.PeriodRecord{
		record(models.PeriodFY, "2023-03-31", "2023-04-28"),
	}, 5, testNow)

	require.Len(t, windows, 1)
	w := windows[0]
	assert.Equal(t, "2023-04-28", w.Window.Start)
	// Period end plus the 97 day submission deadline.
	assert.Equal(t, "2023-07-06", w.Window.End)
	assert.Equal(t, []string{models.DocTypeAnnualReport}, w.DocTypes)
}

func TestPrepareSearchPeriodsClampsToNow(t *testing.T) {
	windows := PrepareSearchPeriods([]*models.PeriodRecord{
		record(models.PeriodFY, "2024-03-31", "2024-05-10"),
	}, 5, testNow)

	require.Len(t, windows, 1)
	assert.Equal(t, "2024-06-01", windows[0].Window.End)
}

func TestPrepareSearchPeriodsUsesEarliestDisclosure(t *testing.T) {
	windows := PrepareSearchPeriods([]*models.PeriodRecord{
		record(models.PeriodFY, "2023-03-31", "2023-08-15"), // revision
		record(models.PeriodFY, "2023-03-31", "2023-04-28"), // original
	}, 5, testNow)

	require.Len(t, windows, 1)
	assert.Equal(t, "2023-04-28", windows[0].Window.Start)
}

func TestPrepareSearchPeriodsHalfYearDocTypes(t *testing.T) {
	windows := PrepareSearchPeriods([]*models.PeriodRecord{
		record(models.Period2Q, "2024-03-31", "2023-11-01"),
	}, 5, testNow)

	require.Len(t, windows, 1)
	assert.ElementsMatch(t,
		[]string{models.DocTypeHalfYearReport, models.DocTypeHalfYearReportAlt},
		windows[0].DocTypes)
}

func TestPrepareSearchPeriodsSkipsQuartersAndFuture(t *testing.T) {
	windows := PrepareSearchPeriods([]*models.PeriodRecord{
		record(models.Period1Q, "2024-03-31", "2023-08-01"),
		record(models.PeriodFY, "2025-03-31", "2025-05-10"), // future disclosure
		{Code: "67580", PeriodType: models.PeriodFY},        // no dates
	}, 5, testNow)

	assert.Empty(t, windows)
}

func TestPrepareSearchPeriodsNewestFirstAndCapped(t *testing.T) {
	windows := PrepareSearchPeriods([]*models.PeriodRecord{
		record(models.PeriodFY, "2021-03-31", "2021-04-28"),
		record(models.PeriodFY, "2023-03-31", "2023-04-28"),
		record(models.PeriodFY, "2022-03-31", "2022-04-28"),
	}, 2, testNow)

	require.Len(t, windows, 2)
	assert.Equal(t, "2023-03-31", windows[0].FiscalYearEnd)
	assert.Equal(t, "2022-03-31", windows[1].FiscalYearEnd)
}

type stubClient struct {
	gotWindows  []models.SearchPeriod
	reports     []models.FilingReport
	downloaded  []string
	downloadErr error
}

func (s *stubClient) SearchReports(ctx context.Context, code string, windows []models.SearchPeriod) ([]models.FilingReport, error) {
	s.gotWindows = windows
	return s.reports, nil
}

func (s *stubClient) DownloadDocument(ctx context.Context, docID, dir string) (string, error) {
	s.downloaded = append(s.downloaded, docID)
	if s.downloadErr != nil {
		return "", s.downloadErr
	}
	return dir + "/" + docID + "_xbrl", nil
}

func TestFindReportsDelegatesToClient(t *testing.T) {
	stub := &stubClient{reports: []models.FilingReport{{DocID: "S100TEST"}}}
	svc := NewService(stub, 5, WithClock(func() time.Time { return testNow }))

	reports, err := svc.FindReports(context.Background(), "67580", []*models.PeriodRecord{
		record(models.PeriodFY, "2023-03-31", "2023-04-28"),
	}, nil)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Len(t, stub.gotWindows, 1)
	assert.Equal(t, "2023-03-31", stub.gotWindows[0].FiscalYearEnd)
	// No document directory configured, so nothing is retrieved.
	assert.Empty(t, stub.downloaded)
}

func TestFindReportsNoWindows(t *testing.T) {
	stub := &stubClient{}
	svc := NewService(stub, 5, WithClock(func() time.Time { return testNow }))

	reports, err := svc.FindReports(context.Background(), "67580", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Empty(t, stub.gotWindows)
}

func TestFindReportsRetrievesAndEmitsEachReport(t *testing.T) {
	stub := &stubClient{reports: []models.FilingReport{
		{DocID: "S100AAA1"},
		{DocID: "S100AAA2"},
	}}
	svc := NewService(stub, 5,
		WithClock(func() time.Time { return testNow }),
		WithDocumentDir("/tmp/docs"),
	)

	var emitted []models.FilingReport
	reports, err := svc.FindReports(context.Background(), "67580", []*models.PeriodRecord{
		record(models.PeriodFY, "2023-03-31", "2023-04-28"),
	}, func(f models.FilingReport) { emitted = append(emitted, f) })
	require.NoError(t, err)

	require.Len(t, reports, 2)
	assert.Equal(t, []string{"S100AAA1", "S100AAA2"}, stub.downloaded)
	assert.Equal(t, "/tmp/docs/S100AAA1_xbrl", reports[0].LocalPath)
	assert.Equal(t, "/tmp/docs/S100AAA2_xbrl", reports[1].LocalPath)

	// Emission carries the retrieval path and arrives one report at a time.
	require.Len(t, emitted, 2)
	assert.Equal(t, "S100AAA1", emitted[0].DocID)
	assert.Equal(t, "/tmp/docs/S100AAA1_xbrl", emitted[0].LocalPath)
}

func TestFindReportsKeepsReportWhenRetrievalFails(t *testing.T) {
	stub := &stubClient{
		reports:     []models.FilingReport{{DocID: "S100TEST"}},
		downloadErr: errors.New("edinet unavailable"),
	}
	svc := NewService(stub, 5,
		WithClock(func() time.Time { return testNow }),
		WithDocumentDir("/tmp/docs"),
	)

	reports, err := svc.FindReports(context.Background(), "67580", []*models.PeriodRecord{
		record(models.PeriodFY, "2023-03-31", "2023-04-28"),
	}, nil)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].LocalPath)
}
