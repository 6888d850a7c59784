package badger

import (
	"errors"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/interfaces"
	"github.com/kyofin/kessan/internal/models"
)

// analysisRecord wraps a cached result with its write time so retention can
// be enforced on read.
type analysisRecord struct {
	Code      string `badgerhold:"key"`
	Result    *models.AnalysisResult
	UpdatedAt time.Time
}

// AnalysisStorage caches completed analysis results for a week.
type AnalysisStorage struct {
	db     *badgerhold.Store
	logger *common.Logger
}

var _ interfaces.AnalysisStore = (*AnalysisStorage)(nil)

// Get returns the cached result. Entries older than the retention window
// are treated as absent unless skipDateCheck is set.
func (s *AnalysisStorage) Get(code string, skipDateCheck bool) (*models.AnalysisResult, bool, error) {
	var rec analysisRecord
	err := s.db.Get(models.NormalizeCode(code), &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !skipDateCheck && !common.IsFresh(rec.UpdatedAt, common.FreshnessAnalysis) {
		s.logger.Debug().Str("code", rec.Code).Time("updatedAt", rec.UpdatedAt).Msg("cached analysis expired")
		return nil, false, nil
	}
	return rec.Result.Clone(), true, nil
}

func (s *AnalysisStorage) Set(result *models.AnalysisResult) error {
	rec := analysisRecord{
		Code:      models.NormalizeCode(result.Code),
		Result:    result.Clone(),
		UpdatedAt: time.Now(),
	}
	return s.db.Upsert(rec.Code, rec)
}

// Delete removes the cached result, accepting either code form.
func (s *AnalysisStorage) Delete(code string) error {
	err := s.db.Delete(models.NormalizeCode(code), analysisRecord{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil
	}
	return err
}
