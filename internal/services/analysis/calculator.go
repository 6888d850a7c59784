package analysis

import (
	"fmt"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/models"
)

// DeriveAnnual computes per-year metrics from reconciled annual records,
// newest first. The adjustment baseline is the most recent period's average
// share count; historical per-share figures are rescaled against it so they
// stay comparable across splits and buybacks. prices is keyed by fiscal year
// end in either date format; a missing price leaves the valuation ratios nil.
func DeriveAnnual(periods []*models.PeriodRecord, prices map[string]float64, window int) ([]models.PeriodMetrics, models.DataAvailability, []string) {
	if window > 0 && len(periods) > window {
		periods = periods[:window]
	}
	if len(periods) == 0 {
		return nil, models.AvailabilityNoData, []string{"no usable fiscal years were found"}
	}

	var baseline *float64
	if common.IsValidValue(periods[0].AvgShares) {
		baseline = periods[0].AvgShares
	}

	out := make([]models.PeriodMetrics, 0, len(periods))
	for _, p := range periods {
		m := models.PeriodMetrics{
			FiscalYearEnd: p.FiscalYearEnd,
			PeriodLabel:   periodLabel(p.FiscalYearEnd),

			Sales:           toMillions(p.Sales),
			OperatingProfit: toMillions(p.OperatingProfit),
			NetProfit:       toMillions(p.NetProfit),
			Equity:          toMillions(p.Equity),
			CFO:             toMillions(p.CashFlowOperating),
			CFI:             toMillions(p.CashFlowInvesting),
			Cash:            toMillions(p.Cash),
			AvgShares:       p.AvgShares,
		}

		if p.CashFlowOperating != nil && p.CashFlowInvesting != nil {
			m.FCF = toMillions(ptr(*p.CashFlowOperating + *p.CashFlowInvesting))
		}
		m.ROE = ratioPercent(p.NetProfit, p.Equity)
		m.SimpleROIC = ratioPercent(p.OperatingProfit, p.Equity)
		m.CFConversionRate = ratioPercent(p.CashFlowOperating, p.OperatingProfit)

		// The payout ratio arrives as a fraction; percentage conversion
		// happens here, not at ingestion.
		if p.PayoutRatioAnnual != nil {
			m.PayoutRatio = ptr(*p.PayoutRatioAnnual * 100)
		}
		if p.DividendTotalAnnual != nil && common.IsValidValue(p.AvgShares) {
			m.DividendPerShare = ptr(*p.DividendTotalAnnual / *p.AvgShares)
		}

		ratio := adjustmentRatio(baseline, p.AvgShares)
		if ratio != nil {
			m.AdjustmentRatio = *ratio
		}
		m.EPS = applyAdjustment(p.EPS, ratio)
		m.BPS = applyAdjustment(p.BPS, ratio)

		if price, ok := priceFor(prices, p.FiscalYearEnd); ok {
			m.StockPrice = ptr(price)
			m.PER = positiveQuotient(price, m.EPS)
			m.PBR = positiveQuotient(price, m.BPS)
		}

		out = append(out, m)
	}

	availability := classifyAvailability(len(out), window)
	warnings := append(validateMinimumYears(len(out), window), validateHeadline(out)...)
	return out, availability, warnings
}

// DeriveQuarterly computes per-quarter figures plus series indexed against
// the oldest quarter in the window (oldest = 100).
func DeriveQuarterly(quarters []*models.PeriodRecord, prices map[string]float64) []models.QuarterMetrics {
	if len(quarters) == 0 {
		return nil
	}

	out := make([]models.QuarterMetrics, 0, len(quarters))
	for _, q := range quarters {
		m := models.QuarterMetrics{
			PeriodEnd:       q.QuarterEnd,
			PeriodType:      q.PeriodType,
			Sales:           toMillions(q.Sales),
			OperatingProfit: toMillions(q.OperatingProfit),
			NetProfit:       toMillions(q.NetProfit),
			EPS:             q.EPS,
		}
		if price, ok := priceFor(prices, q.QuarterEnd); ok {
			m.StockPrice = ptr(price)
		}
		out = append(out, m)
	}

	if len(out) >= 2 {
		oldest := out[len(out)-1]
		for i := range out {
			out[i].SalesIndex = indexAgainst(out[i].Sales, oldest.Sales)
			out[i].EPSIndex = indexAgainst(out[i].EPS, oldest.EPS)
			out[i].PriceIndex = indexAgainst(out[i].StockPrice, oldest.StockPrice)
		}
	}
	return out
}

func toMillions(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(*v / 1_000_000)
}

// adjustmentRatio is baseline shares over period shares. A period with half
// the baseline's shares gets ratio 2, doubling its historical per-share
// figures onto the current share base.
func adjustmentRatio(baseline, periodShares *float64) *float64 {
	if baseline == nil || periodShares == nil || *baseline <= 0 || *periodShares <= 0 {
		return nil
	}
	return ptr(*baseline / *periodShares)
}

// applyAdjustment rescales a per-share value, passing it through untouched
// when no ratio could be computed.
func applyAdjustment(v, ratio *float64) *float64 {
	if v == nil || ratio == nil {
		return v
	}
	return ptr(*v * *ratio)
}

func ratioPercent(numerator, denominator *float64) *float64 {
	if numerator == nil || denominator == nil || *denominator == 0 {
		return nil
	}
	return ptr(*numerator / *denominator * 100)
}

// positiveQuotient divides price by a per-share figure, requiring a strictly
// positive denominator. A loss-making company gets a nil PER, not a negative
// multiple.
func positiveQuotient(price float64, denominator *float64) *float64 {
	if denominator == nil || *denominator <= 0 {
		return nil
	}
	return ptr(price / *denominator)
}

// priceFor looks up a price by date in either format.
func priceFor(prices map[string]float64, date string) (float64, bool) {
	if len(prices) == 0 || date == "" {
		return 0, false
	}
	if p, ok := prices[date]; ok {
		return p, true
	}
	if p, ok := prices[common.NormalizeDate(date)]; ok {
		return p, true
	}
	if p, ok := prices[common.CompactDate(date)]; ok {
		return p, true
	}
	return 0, false
}

func indexAgainst(current, base *float64) *float64 {
	if current == nil || base == nil || *base <= 0 {
		return nil
	}
	return ptr(*current / *base * 100)
}

func classifyAvailability(got, requested int) models.DataAvailability {
	switch {
	case got == 0:
		return models.AvailabilityNoData
	case requested > 0 && got < requested:
		return models.AvailabilityInsufficient
	default:
		return models.AvailabilitySufficient
	}
}

// validateMinimumYears flags results too short for year-over-year reading.
// Two years is the floor unless the caller asked for fewer.
func validateMinimumYears(got, requested int) []string {
	need := 2
	if requested > 0 && requested < need {
		need = requested
	}
	if got >= need {
		return nil
	}
	return []string{fmt.Sprintf(
		"only %d fiscal years available; at least %d are needed for a reliable trend",
		got, need)}
}

// validateHeadline checks that the latest period carries at least one
// headline figure. The result is still returned either way; the warning just
// marks it unreliable for downstream consumers.
func validateHeadline(metrics []models.PeriodMetrics) []string {
	if len(metrics) == 0 {
		return nil
	}
	latest := metrics[0]
	if latest.FCF != nil || latest.ROE != nil || latest.EPS != nil {
		return nil
	}
	return []string{fmt.Sprintf(
		"latest period %s has no free cash flow, ROE, or EPS; results may be unreliable",
		latest.FiscalYearEnd)}
}

func ptr(v float64) *float64 { return &v }
