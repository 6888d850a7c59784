package analysis

import (
	"sort"
	"time"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/models"
)

// ReconcileAnnual collapses raw disclosures into one composite record per
// fiscal year, newest first. Disclosures for the same year are folded
// oldest-first with later non-empty values winning, so revisions correct
// fields without ever blanking one out.
func ReconcileAnnual(records []*models.PeriodRecord, include2Q bool, now time.Time) []*models.PeriodRecord {
	var filtered []*models.PeriodRecord
	for _, r := range records {
		if r == nil {
			continue
		}
		if r.PeriodType != models.PeriodFY && !(include2Q && r.PeriodType == models.Period2Q) {
			continue
		}
		if !keepByDate(r, now) || !r.HasUsableData() {
			continue
		}
		if r.FiscalYearEnd == "" {
			continue
		}
		filtered = append(filtered, r)
	}

	sortAscending(filtered, func(r *models.PeriodRecord) string { return r.FiscalYearEnd })

	merged := foldByKey(filtered, func(r *models.PeriodRecord) string { return r.FiscalYearEnd })

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].FiscalYearEnd > merged[j].FiscalYearEnd
	})
	return merged
}

// ReconcileQuarterly builds a per-quarter timeline, newest first, capped at
// the requested number of quarters. The upstream schema reports fourth
// quarters only inside the FY row, so 4Q records are synthesized as FY minus
// 3Q per flow field when a 3Q disclosure exists; balance-sheet figures stay
// at their FY values.
func ReconcileQuarterly(records []*models.PeriodRecord, quarters int, now time.Time) []*models.PeriodRecord {
	q3ByYear := make(map[string]*models.PeriodRecord)
	for _, r := range records {
		if r != nil && r.PeriodType == models.Period3Q && r.FiscalYearEnd != "" {
			q3ByYear[r.FiscalYearEnd] = r
		}
	}

	working := make([]*models.PeriodRecord, 0, len(records))
	working = append(working, records...)
	for _, r := range records {
		if r != nil && r.PeriodType == models.PeriodFY && r.FiscalYearEnd != "" {
			working = append(working, synthesizeQ4(r, q3ByYear[r.FiscalYearEnd]))
		}
	}

	var filtered []*models.PeriodRecord
	for _, r := range working {
		if r == nil || quarterNumber(r.PeriodType) == 0 || r.FiscalYearEnd == "" {
			continue
		}
		end, ok := quarterEndDate(r.FiscalYearEnd, quarterNumber(r.PeriodType))
		if !ok {
			continue
		}
		if isFutureMonth(end, now) || !r.HasUsableData() {
			continue
		}
		cp := r.Clone()
		cp.QuarterEnd = end
		filtered = append(filtered, cp)
	}

	sortAscending(filtered, func(r *models.PeriodRecord) string { return r.QuarterEnd + "|" + r.PeriodType })

	merged := foldByKey(filtered, func(r *models.PeriodRecord) string { return r.QuarterEnd + "|" + r.PeriodType })

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].QuarterEnd != merged[j].QuarterEnd {
			return merged[i].QuarterEnd > merged[j].QuarterEnd
		}
		return merged[i].DisclosedDate > merged[j].DisclosedDate
	})
	if quarters > 0 && len(merged) > quarters {
		merged = merged[:quarters]
	}
	return merged
}

// keepByDate drops records disclosed in the future and records whose period
// end falls in a future month. Both checks apply independently.
func keepByDate(r *models.PeriodRecord, now time.Time) bool {
	if common.IsFutureDate(r.DisclosedDate, now) {
		return false
	}
	if isFutureMonth(r.FiscalYearEnd, now) {
		return false
	}
	return true
}

func sortAscending(records []*models.PeriodRecord, key func(*models.PeriodRecord) string) {
	sort.SliceStable(records, func(i, j int) bool {
		if key(records[i]) != key(records[j]) {
			return key(records[i]) < key(records[j])
		}
		return records[i].DisclosedDate < records[j].DisclosedDate
	})
}

// foldByKey merges records sharing a key, in input order. An incoming record
// keeps its own non-nil fields and backfills the rest from the accumulated
// composite, which is exactly "later non-empty values override".
func foldByKey(records []*models.PeriodRecord, key func(*models.PeriodRecord) string) []*models.PeriodRecord {
	byKey := make(map[string]*models.PeriodRecord)
	var order []string
	for _, r := range records {
		k := key(r)
		existing, ok := byKey[k]
		if !ok {
			byKey[k] = r.Clone()
			order = append(order, k)
			continue
		}
		composite := r.Clone()
		composite.MergeFrom(existing)
		if composite.DisclosedDate == "" {
			composite.DisclosedDate = existing.DisclosedDate
		}
		byKey[k] = composite
	}

	out := make([]*models.PeriodRecord, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}

// synthesizeQ4 derives a standalone fourth quarter from the FY cumulative
// row. Flow fields subtract the 3Q cumulative; a zero difference is treated
// as missing. Point-in-time fields (equity, BPS) keep the FY value.
func synthesizeQ4(fy, q3 *models.PeriodRecord) *models.PeriodRecord {
	q4 := fy.Clone()
	q4.PeriodType = models.Period4Q
	if q3 == nil {
		// No 3Q disclosure; the FY cumulative stands in for the quarter.
		return q4
	}
	q4.Sales = subtract(fy.Sales, q3.Sales)
	q4.OperatingProfit = subtract(fy.OperatingProfit, q3.OperatingProfit)
	q4.NetProfit = subtract(fy.NetProfit, q3.NetProfit)
	q4.EPS = subtract(fy.EPS, q3.EPS)
	q4.CashFlowOperating = subtract(fy.CashFlowOperating, q3.CashFlowOperating)
	q4.CashFlowInvesting = subtract(fy.CashFlowInvesting, q3.CashFlowInvesting)
	return q4
}

func subtract(a, b *float64) *float64 {
	diff := common.Float(a) - common.Float(b)
	if diff == 0 {
		return nil
	}
	return &diff
}
