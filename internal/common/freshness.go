package common

import "time"

// Cache freshness windows. Analysis results are retained for a week because
// financial summaries update on disclosure, not daily.
const (
	FreshnessAnalysis    = 7 * 24 * time.Hour
	FreshnessMaster      = 24 * time.Hour
	FreshnessFilingIndex = 30 * 24 * time.Hour
)

// IsFresh reports whether a record updated at the given time is still inside
// the freshness window.
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
