package analysis

import (
	"time"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/models"
)

func quarterNumber(periodType string) int {
	switch periodType {
	case models.Period1Q:
		return 1
	case models.Period2Q:
		return 2
	case models.Period3Q:
		return 3
	case models.Period4Q:
		return 4
	}
	return 0
}

// quarterEndDate computes the calendar end of a quarter from the fiscal year
// end and the quarter number. Supports the four fiscal-year-end months seen
// in practice (March, June, September, December); other months fall back to
// the fiscal year end itself.
func quarterEndDate(fiscalYearEnd string, quarter int) (string, bool) {
	fyEnd, ok := common.ParseDate(fiscalYearEnd)
	if !ok || quarter < 1 || quarter > 4 {
		return "", false
	}
	if quarter == 4 {
		return fyEnd.Format("2006-01-02"), true
	}

	year := fyEnd.Year()
	var end time.Time
	switch fyEnd.Month() {
	case time.March:
		switch quarter {
		case 1:
			end = time.Date(year-1, 6, 30, 0, 0, 0, 0, time.UTC)
		case 2:
			end = time.Date(year-1, 9, 30, 0, 0, 0, 0, time.UTC)
		case 3:
			end = time.Date(year-1, 12, 31, 0, 0, 0, 0, time.UTC)
		}
	case time.December:
		switch quarter {
		case 1:
			end = time.Date(year, 3, 31, 0, 0, 0, 0, time.UTC)
		case 2:
			end = time.Date(year, 6, 30, 0, 0, 0, 0, time.UTC)
		case 3:
			end = time.Date(year, 9, 30, 0, 0, 0, 0, time.UTC)
		}
	case time.June:
		switch quarter {
		case 1:
			end = time.Date(year-1, 9, 30, 0, 0, 0, 0, time.UTC)
		case 2:
			end = time.Date(year-1, 12, 31, 0, 0, 0, 0, time.UTC)
		case 3:
			end = time.Date(year, 3, 31, 0, 0, 0, 0, time.UTC)
		}
	case time.September:
		switch quarter {
		case 1:
			end = time.Date(year-1, 12, 31, 0, 0, 0, 0, time.UTC)
		case 2:
			end = time.Date(year, 3, 31, 0, 0, 0, 0, time.UTC)
		case 3:
			end = time.Date(year, 6, 30, 0, 0, 0, 0, time.UTC)
		}
	default:
		return fyEnd.Format("2006-01-02"), true
	}
	return end.Format("2006-01-02"), true
}

// isFutureMonth reports whether a date string falls in a month strictly
// after the reference's month.
func isFutureMonth(date string, now time.Time) bool {
	year, month, ok := common.ExtractYearMonth(date)
	if !ok {
		return false
	}
	return year > now.Year() || (year == now.Year() && month > int(now.Month()))
}

// periodLabel renders a fiscal year end as the conventional Japanese form.
func periodLabel(fiscalYearEnd string) string {
	t, ok := common.ParseDate(fiscalYearEnd)
	if !ok {
		return ""
	}
	return t.Format("2006年01月期")
}
