package interfaces

import (
	"context"
	"time"

	"github.com/kyofin/kessan/internal/models"
)

// AnalysisService runs the full analysis pipeline for one instrument.
type AnalysisService interface {
	// Analyze returns the complete analysis. With useCache true a fresh
	// cached result is served; false bypasses the cache for this call
	// without discarding the stored entry. Either way the new result is
	// persisted.
	Analyze(ctx context.Context, code string, useCache bool) (*models.AnalysisResult, error)

	// AnalyzeStream runs the pipeline and emits progress snapshots. The
	// channel is closed after the terminal snapshot (complete or error).
	AnalyzeStream(ctx context.Context, code string) (<-chan models.AnalysisSnapshot, error)

	// ClearCache drops any cached result for the instrument.
	ClearCache(ctx context.Context, code string) error
}

// MasterService serves the listed company master.
type MasterService interface {
	// Search matches instruments by code prefix or name substring.
	Search(ctx context.Context, query string) ([]models.Instrument, error)

	// Get returns one instrument by normalized code.
	Get(ctx context.Context, code string) (*models.Instrument, error)

	// RefreshedAt reports when the master was last fetched upstream;
	// zero when it has never been loaded.
	RefreshedAt() time.Time
}

// FilingsService locates the securities reports backing an analysis.
type FilingsService interface {
	// FindReports searches EDINET for reports covering the given
	// reconciled periods, newest first. Disclosure dates bound the
	// submission windows searched. Each report is passed to emit (when
	// non-nil) as soon as it is located and its archive retrieved, ahead
	// of the full slice returning.
	FindReports(ctx context.Context, code string, periods []*models.PeriodRecord, emit func(models.FilingReport)) ([]models.FilingReport, error)
}
