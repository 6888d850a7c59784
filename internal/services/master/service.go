package master

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/interfaces"
	"github.com/kyofin/kessan/internal/models"
)

const searchLimit = 50

// Only regular equity segments are searchable; ETFs, REITs, and PRO Market
// listings are excluded.
var allowedMarkets = map[string]bool{
	"プライム":   true,
	"スタンダード": true,
	"グロース":   true,
}

// Service serves the listed company master, refreshing it from upstream when
// the cached copy goes stale.
type Service struct {
	client interfaces.MarketDataClient
	store  interfaces.MasterStore
	logger *common.Logger

	mu sync.Mutex // serializes refreshes
}

var _ interfaces.MasterService = (*Service)(nil)

type Option func(*Service)

func WithLogger(l *common.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(client interfaces.MarketDataClient, store interfaces.MasterStore, opts ...Option) *Service {
	s := &Service{
		client: client,
		store:  store,
		logger: common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// instruments returns the master list, refreshing from upstream when the
// stored copy is older than a day. A failed refresh falls back to whatever
// is stored.
func (s *Service) instruments(ctx context.Context) ([]models.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, updated, err := s.store.GetAll()
	if err == nil && len(stored) > 0 && common.IsFresh(updated, common.FreshnessMaster) {
		return stored, nil
	}

	fetched, fetchErr := s.client.GetInstrumentMaster(ctx)
	if fetchErr != nil {
		if err == nil && len(stored) > 0 {
			s.logger.Warn().Err(fetchErr).Msg("master refresh failed, serving stale copy")
			return stored, nil
		}
		return nil, fetchErr
	}

	filtered := make([]models.Instrument, 0, len(fetched))
	for _, inst := range fetched {
		if allowedMarkets[cleanMarketName(inst.MarketName)] {
			inst.MarketName = cleanMarketName(inst.MarketName)
			filtered = append(filtered, inst)
		}
	}

	if err := s.store.SetAll(filtered); err != nil {
		s.logger.Warn().Err(err).Msg("master cache write failed")
	}
	s.logger.Info().Int("instruments", len(filtered)).Msg("instrument master refreshed")
	return filtered, nil
}

// cleanMarketName strips the parenthesized qualifiers upstream appends,
// e.g. "プライム（内国株式）".
func cleanMarketName(name string) string {
	if i := strings.IndexAny(name, "（("); i >= 0 {
		return name[:i]
	}
	return name
}

// Search matches instruments by code prefix or case-insensitive name
// substring, capped at 50 results.
func (s *Service) Search(ctx context.Context, query string) ([]models.Instrument, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}

	all, err := s.instruments(ctx)
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(query)
	var out []models.Instrument
	for _, inst := range all {
		if strings.HasPrefix(inst.Code, query) ||
			strings.Contains(strings.ToUpper(inst.CompanyName), upper) ||
			strings.Contains(strings.ToUpper(inst.CompanyNameEng), upper) {
			out = append(out, inst)
			if len(out) >= searchLimit {
				break
			}
		}
	}
	return out, nil
}

// Get returns one instrument by code, accepting the 4 or 5 digit form.
func (s *Service) Get(ctx context.Context, code string) (*models.Instrument, error) {
	normalized := models.NormalizeCode(code)

	all, err := s.instruments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Code == normalized {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("instrument %s not found", normalized)
}

// RefreshedAt reports when the stored master was last updated.
func (s *Service) RefreshedAt() time.Time {
	_, updated, err := s.store.GetAll()
	if err != nil {
		return time.Time{}
	}
	return updated
}
