package badger

import (
	"fmt"
	"os"

	"github.com/timshannon/badgerhold/v4"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/interfaces"
)

// Store owns the badgerhold database and hands out the typed stores built
// on top of it.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger

	analysis *AnalysisStorage
	master   *MasterStorage
}

var _ interfaces.StorageManager = (*Store)(nil)

func NewStore(path string, logger *common.Logger) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	// Badger's own logger is noisy; application logging happens here.
	options.Logger = nil

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", path, err)
	}

	s := &Store{db: db, logger: logger}
	s.analysis = &AnalysisStorage{db: db, logger: logger}
	s.master = &MasterStorage{db: db, logger: logger}
	logger.Debug().Str("path", path).Msg("storage opened")
	return s, nil
}

func (s *Store) Analysis() interfaces.AnalysisStore { return s.analysis }
func (s *Store) Master() interfaces.MasterStore     { return s.master }

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
