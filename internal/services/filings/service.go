package filings

import (
	"context"
	"sort"
	"time"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/interfaces"
	"github.com/kyofin/kessan/internal/models"
)

// Reports must reach the regulator within roughly a quarter of the period
// end; 97 days bounds how far past the period end a submission is searched.
const submissionDeadlineDays = 97

// Service turns reconciled periods into EDINET search windows, runs the
// document search, and retrieves the located archives.
type Service struct {
	client      interfaces.FilingsClient
	logger      *common.Logger
	maxYears    int
	documentDir string
	now         func() time.Time
}

var _ interfaces.FilingsService = (*Service)(nil)

type Option func(*Service)

func WithLogger(l *common.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDocumentDir sets where retrieved archives are extracted. Empty skips
// retrieval; located reports are still returned.
func WithDocumentDir(dir string) Option {
	return func(s *Service) { s.documentDir = dir }
}

func NewService(client interfaces.FilingsClient, maxYears int, opts ...Option) *Service {
	s := &Service{
		client:   client,
		logger:   common.NewSilentLogger(),
		maxYears: maxYears,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindReports searches EDINET for the reports covering the given periods and
// retrieves each archive. Reports reach emit one at a time as they become
// ready, so callers can surface progress before the full set returns. A
// failed retrieval leaves LocalPath empty; the located report still counts.
func (s *Service) FindReports(ctx context.Context, code string, periods []*models.PeriodRecord, emit func(models.FilingReport)) ([]models.FilingReport, error) {
	windows := PrepareSearchPeriods(periods, s.maxYears, s.now())
	if len(windows) == 0 {
		return nil, nil
	}
	reports, err := s.client.SearchReports(ctx, code, windows)
	if err != nil {
		return nil, err
	}

	for i := range reports {
		if s.documentDir != "" {
			path, err := s.client.DownloadDocument(ctx, reports[i].DocID, s.documentDir)
			if err != nil {
				s.logger.Warn().Str("code", code).Str("docId", reports[i].DocID).Err(err).Msg("document retrieval failed")
			} else {
				reports[i].LocalPath = path
			}
		}
		if emit != nil {
			emit(reports[i])
		}
	}

	s.logger.Debug().Str("code", code).Int("windows", len(windows)).Int("reports", len(reports)).Msg("filing search finished")
	return reports, nil
}

// PrepareSearchPeriods builds one search window per fiscal period, newest
// first, capped at maxPeriods. The window runs from the earliest disclosure
// of the period (the earnings release always precedes the statutory report)
// to the submission deadline, clamped to now. Annual periods accept annual
// reports; half-year periods accept either half-year report form.
func PrepareSearchPeriods(periods []*models.PeriodRecord, maxPeriods int, now time.Time) []models.SearchPeriod {
	// Earliest disclosure per (fiscal year end, period type). Revisions
	// disclose later; searching from the first disclosure keeps the
	// window's left edge from drifting forward.
	type key struct{ fyEnd, periodType string }
	earliest := make(map[key]*models.PeriodRecord)
	for _, r := range periods {
		if r == nil || r.FiscalYearEnd == "" || r.DisclosedDate == "" {
			continue
		}
		if r.PeriodType != models.PeriodFY && r.PeriodType != models.Period2Q {
			continue
		}
		k := key{r.FiscalYearEnd, r.PeriodType}
		if cur, ok := earliest[k]; !ok || r.DisclosedDate < cur.DisclosedDate {
			earliest[k] = r
		}
	}

	reps := make([]*models.PeriodRecord, 0, len(earliest))
	for _, r := range earliest {
		reps = append(reps, r)
	}
	sort.Slice(reps, func(i, j int) bool {
		return reps[i].FiscalYearEnd > reps[j].FiscalYearEnd
	})
	if maxPeriods > 0 && len(reps) > maxPeriods {
		reps = reps[:maxPeriods]
	}

	var windows []models.SearchPeriod
	for _, r := range reps {
		disclosed, okD := common.ParseDate(r.DisclosedDate)
		periodEnd, okE := common.ParseDate(r.FiscalYearEnd)
		if !okD || !okE || disclosed.After(now) {
			continue
		}

		end := periodEnd.AddDate(0, 0, submissionDeadlineDays)
		if end.After(now) {
			end = now
		}
		if end.Before(disclosed) {
			continue
		}

		var docTypes []string
		switch r.PeriodType {
		case models.PeriodFY:
			docTypes = []string{models.DocTypeAnnualReport}
		case models.Period2Q:
			docTypes = []string{models.DocTypeHalfYearReport, models.DocTypeHalfYearReportAlt}
		}

		windows = append(windows, models.SearchPeriod{
			FiscalYearEnd: r.FiscalYearEnd,
			PeriodType:    r.PeriodType,
			Window: models.DateRange{
				Start: disclosed.Format("2006-01-02"),
				End:   end.Format("2006-01-02"),
			},
			DocTypes: docTypes,
		})
	}
	return windows
}
