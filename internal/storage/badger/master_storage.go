package badger

import (
	"errors"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/interfaces"
	"github.com/kyofin/kessan/internal/models"
)

const masterKey = "instrument_master"

type masterRecord struct {
	Key         string `badgerhold:"key"`
	Instruments []models.Instrument
	UpdatedAt   time.Time
}

// MasterStorage persists the listed company master as one record; freshness
// policy lives with the consumer.
type MasterStorage struct {
	db     *badgerhold.Store
	logger *common.Logger
}

var _ interfaces.MasterStore = (*MasterStorage)(nil)

func (s *MasterStorage) GetAll() ([]models.Instrument, time.Time, error) {
	var rec masterRecord
	err := s.db.Get(masterKey, &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return rec.Instruments, rec.UpdatedAt, nil
}

func (s *MasterStorage) SetAll(instruments []models.Instrument) error {
	rec := masterRecord{
		Key:         masterKey,
		Instruments: instruments,
		UpdatedAt:   time.Now(),
	}
	s.logger.Debug().Int("instruments", len(instruments)).Msg("instrument master stored")
	return s.db.Upsert(rec.Key, rec)
}
