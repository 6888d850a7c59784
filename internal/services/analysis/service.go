package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/interfaces"
	"github.com/kyofin/kessan/internal/models"
)

// Service coordinates fetch, reconciliation, price alignment, derivation,
// and filing discovery for one instrument, caching the final result.
type Service struct {
	market  interfaces.MarketDataClient
	filings interfaces.FilingsService
	master  interfaces.MasterService
	store   interfaces.AnalysisStore
	cfg     common.AnalysisConfig
	logger  *common.Logger
	now     func() time.Time

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

var _ interfaces.AnalysisService = (*Service)(nil)

type Option func(*Service)

func WithLogger(l *common.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	market interfaces.MarketDataClient,
	filings interfaces.FilingsService,
	master interfaces.MasterService,
	store interfaces.AnalysisStore,
	cfg common.AnalysisConfig,
	opts ...Option,
) *Service {
	s := &Service{
		market:   market,
		filings:  filings,
		master:   master,
		store:    store,
		cfg:      cfg,
		logger:   common.NewSilentLogger(),
		now:      time.Now,
		inflight: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockCode serializes analyses of the same instrument so concurrent requests
// do not duplicate upstream work; the second caller lands on the cache.
func (s *Service) lockCode(code string) func() {
	s.mu.Lock()
	lock, ok := s.inflight[code]
	if !ok {
		lock = &sync.Mutex{}
		s.inflight[code] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func normalizeAndValidate(code string) (string, error) {
	normalized := models.NormalizeCode(code)
	if len(normalized) != 5 {
		return "", newValidationError("instrument code %q must be 4 or 5 digits", code)
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return "", newValidationError("instrument code %q must be numeric", code)
		}
	}
	return normalized, nil
}

// Analyze runs the full pipeline synchronously. With useCache true a fresh
// cached result is served; false bypasses the lookup for this call only, and
// the stored entry survives until the new result replaces it.
func (s *Service) Analyze(ctx context.Context, code string, useCache bool) (*models.AnalysisResult, error) {
	normalized, err := normalizeAndValidate(code)
	if err != nil {
		return nil, err
	}

	unlock := s.lockCode(normalized)
	defer unlock()

	if useCache {
		if cached := s.cachedResult(normalized); cached != nil {
			return cached, nil
		}
	}

	result, err := s.run(ctx, normalized, func(models.AnalysisSnapshot) {})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AnalyzeStream runs the pipeline in a producer goroutine and emits progress
// snapshots on a bounded channel. The channel closes after the terminal
// snapshot. Consumer disconnection is signalled through ctx, which stops the
// producer; no background work outlives the stream.
func (s *Service) AnalyzeStream(ctx context.Context, code string) (<-chan models.AnalysisSnapshot, error) {
	normalized, err := normalizeAndValidate(code)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	ch := make(chan models.AnalysisSnapshot, 16)

	emit := func(snap models.AnalysisSnapshot) {
		snap.RequestID = requestID
		snap.Code = normalized
		if snap.Progress == 0 {
			snap.Progress = models.ProgressFor(snap.Status)
		}
		select {
		case ch <- snap:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(ch)

		unlock := s.lockCode(normalized)
		defer unlock()

		if cached := s.cachedResult(normalized); cached != nil {
			emit(models.AnalysisSnapshot{Status: models.StatusComplete, Result: cached, Message: "served from cache"})
			return
		}

		result, err := s.run(ctx, normalized, emit)
		if err != nil {
			s.logger.Error().Str("code", normalized).Str("requestId", requestID).Err(err).Msg("analysis failed")
			emit(models.AnalysisSnapshot{Status: models.StatusError, Err: userMessage(err)})
			return
		}
		emit(models.AnalysisSnapshot{Status: models.StatusComplete, Result: result})
	}()

	return ch, nil
}

// ClearCache drops the cached result for the instrument.
func (s *Service) ClearCache(ctx context.Context, code string) error {
	normalized, err := normalizeAndValidate(code)
	if err != nil {
		return err
	}
	return s.store.Delete(normalized)
}

func (s *Service) cachedResult(code string) *models.AnalysisResult {
	if !s.cfg.CacheEnabled || s.store == nil {
		return nil
	}
	cached, ok, err := s.store.Get(code, false)
	if err != nil {
		s.logger.Warn().Str("code", code).Err(err).Msg("cache read failed")
		return nil
	}
	if !ok {
		return nil
	}
	s.logger.Debug().Str("code", code).Msg("analysis served from cache")
	return cached
}

// run executes the pipeline, emitting a partial snapshot after each stage.
// Filing discovery runs concurrently with price alignment; the two write
// disjoint parts of the result, joined before the final emission.
func (s *Service) run(ctx context.Context, code string, emit func(models.AnalysisSnapshot)) (*models.AnalysisResult, error) {
	emit(models.AnalysisSnapshot{Status: models.StatusInitializing})

	result := &models.AnalysisResult{Code: code}
	if s.master != nil {
		if inst, err := s.master.Get(ctx, code); err == nil && inst != nil {
			result.CompanyName = inst.CompanyName
		}
	}

	records, err := s.market.GetFinancialSummary(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	annual := ReconcileAnnual(records, false, now)
	quarterly := ReconcileQuarterly(records, s.cfg.Quarters, now)

	// First partial emission: metrics without prices.
	result.Annual, result.Availability, result.Warnings = DeriveAnnual(annual, nil, s.cfg.MaxYears)
	result.Quarterly = DeriveQuarterly(quarterly, nil)
	result.DataValid = len(result.Warnings) == 0 && result.Availability != models.AvailabilityNoData
	emit(models.AnalysisSnapshot{Status: models.StatusFetchingMetrics, Result: result.Clone()})

	dates := make([]string, 0, len(annual)+len(quarterly))
	for _, p := range annual {
		dates = append(dates, p.FiscalYearEnd)
	}
	for _, q := range quarterly {
		dates = append(dates, q.QuarterEnd)
	}

	// Filing discovery and retrieval run concurrently with price
	// alignment. The worker owns nothing but its channel; each ready
	// filing crosses back here so only this goroutine touches result,
	// and per-filing snapshots stay ordered after the price stage.
	var (
		located   []models.FilingReport
		filingCh  chan models.FilingReport
		filingErr chan error
	)
	if s.filings != nil {
		filingCh = make(chan models.FilingReport, 16)
		filingErr = make(chan error, 1)
		go func() {
			defer close(filingCh)
			var err error
			located, err = s.filings.FindReports(ctx, code, annual, func(f models.FilingReport) {
				select {
				case filingCh <- f:
				case <-ctx.Done():
				}
			})
			filingErr <- err
		}()
	}

	prices := s.alignPrices(ctx, s.market, code, dates)
	result.Annual, result.Availability, result.Warnings = DeriveAnnual(annual, prices, s.cfg.MaxYears)
	result.Quarterly = DeriveQuarterly(quarterly, prices)
	result.DataValid = len(result.Warnings) == 0 && result.Availability != models.AvailabilityNoData
	emit(models.AnalysisSnapshot{Status: models.StatusFetchingPrices, Result: result.Clone()})

	emit(models.AnalysisSnapshot{Status: models.StatusFetchingFilings, Result: result.Clone()})
	if filingCh != nil {
		for f := range filingCh {
			result.Filings = append(result.Filings, f)
			emit(models.AnalysisSnapshot{Status: models.StatusFetchingFilings, Result: result.Clone()})
		}
		if err := <-filingErr; err != nil {
			// Filings are supplementary; the analysis stands without them.
			s.logger.Warn().Str("code", code).Err(err).Msg("filing discovery failed")
		} else {
			result.Filings = located
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.GeneratedAt = s.now()
	if s.cfg.CacheEnabled && s.store != nil {
		if err := s.store.Set(result); err != nil {
			s.logger.Warn().Str("code", code).Err(err).Msg("cache write failed")
		}
	}

	s.logger.Info().
		Str("code", code).
		Int("years", len(result.Annual)).
		Int("quarters", len(result.Quarterly)).
		Int("filings", len(result.Filings)).
		Str("availability", string(result.Availability)).
		Msg("analysis complete")
	return result, nil
}
