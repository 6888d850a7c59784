package interfaces

import (
	"time"

	"github.com/kyofin/kessan/internal/models"
)

// StorageManager owns the persistent stores and their lifecycle.
type StorageManager interface {
	Analysis() AnalysisStore
	Master() MasterStore
	Close() error
}

// AnalysisStore caches completed analysis results.
type AnalysisStore interface {
	// Get returns the cached result for the code. When skipDateCheck is
	// false, results older than the retention window are treated as absent.
	Get(code string, skipDateCheck bool) (*models.AnalysisResult, bool, error)

	// Set stores the result, stamping it with the current time.
	Set(result *models.AnalysisResult) error

	// Delete removes any cached result for the code, matching both the
	// four and five digit forms.
	Delete(code string) error
}

// MasterStore caches the listed company master.
type MasterStore interface {
	GetAll() ([]models.Instrument, time.Time, error)
	SetAll(instruments []models.Instrument) error
}
