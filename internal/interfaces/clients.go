package interfaces

import (
	"context"

	"github.com/kyofin/kessan/internal/models"
)

// MarketDataClient provides financial summaries, prices, and the listed
// company master.
type MarketDataClient interface {
	// GetFinancialSummary returns the disclosed summary rows for the
	// instrument, coerced to typed records. When periodTypes are given,
	// only rows of those normalized period types are returned.
	GetFinancialSummary(ctx context.Context, code string, periodTypes ...string) ([]*models.PeriodRecord, error)

	// GetDailyBars returns adjusted daily bars for the inclusive date range.
	GetDailyBars(ctx context.Context, code, from, to string) ([]models.DailyBar, error)

	// GetPricesAtDates resolves a closing price for each requested date,
	// walking back up to ten days when a date falls on a non-trading day.
	// The returned map is keyed by the requested date (canonical form);
	// dates with no resolvable price are absent.
	GetPricesAtDates(ctx context.Context, code string, dates []string) (map[string]float64, error)

	// GetInstrumentMaster returns the full listed company master.
	GetInstrumentMaster(ctx context.Context) ([]models.Instrument, error)
}

// FilingsClient locates securities reports in the EDINET document index and
// retrieves their archives.
type FilingsClient interface {
	// SearchReports scans the given submission windows newest first for
	// annual or half-year reports filed by the instrument.
	SearchReports(ctx context.Context, code string, windows []models.SearchPeriod) ([]models.FilingReport, error)

	// DownloadDocument fetches a located document's archive and extracts
	// it under dir, returning the extraction path.
	DownloadDocument(ctx context.Context, docID, dir string) (string, error)
}
