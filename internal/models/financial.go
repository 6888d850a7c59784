package models

import (
	"strings"

	"github.com/kyofin/kessan/internal/common"
)

// Period type codes as reported in financial summaries.
const (
	PeriodFY = "FY"
	Period1Q = "1Q"
	Period2Q = "2Q"
	Period3Q = "3Q"
	// Period4Q only appears on synthesized records; the upstream schema
	// reports the fourth quarter inside the FY row.
	Period4Q = "4Q"
)

// NormalizePeriodType maps variant spellings ("Q2", "2q") onto the canonical
// codes. Unknown values are returned upper-cased so callers can still compare.
func NormalizePeriodType(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "Q1":
		return Period1Q
	case "Q2":
		return Period2Q
	case "Q3":
		return Period3Q
	case "Q4", "4Q":
		return PeriodFY
	}
	return s
}

// PeriodRecord is one disclosed financial summary row, coerced to typed
// values at the client boundary. Nil pointers mean the field was absent,
// blank, or unparseable upstream. Dates are canonical YYYY-MM-DD strings.
type PeriodRecord struct {
	Code            string `json:"code"`
	DisclosedDate   string `json:"disclosedDate"`
	PeriodType      string `json:"periodType"`
	FiscalYearStart string `json:"fiscalYearStart"`
	FiscalYearEnd   string `json:"fiscalYearEnd"`
	// QuarterEnd is the computed calendar end of the quarter, set during
	// quarterly reconciliation. Empty on annual records.
	QuarterEnd string `json:"quarterEnd,omitempty"`

	Sales               *float64 `json:"sales,omitempty"`
	OperatingProfit     *float64 `json:"operatingProfit,omitempty"`
	NetProfit           *float64 `json:"netProfit,omitempty"`
	Equity              *float64 `json:"equity,omitempty"`
	CashFlowOperating   *float64 `json:"cashFlowOperating,omitempty"`
	CashFlowInvesting   *float64 `json:"cashFlowInvesting,omitempty"`
	Cash                *float64 `json:"cash,omitempty"`
	EPS                 *float64 `json:"eps,omitempty"`
	BPS                 *float64 `json:"bps,omitempty"`
	AvgShares           *float64 `json:"avgShares,omitempty"`
	DividendTotalAnnual *float64 `json:"dividendTotalAnnual,omitempty"`
	PayoutRatioAnnual   *float64 `json:"payoutRatioAnnual,omitempty"`
}

// HasUsableData reports whether the record carries at least one core
// financial value, or failing that, enough identity to locate its filing.
// Zero counts as "no data" here, not a reported value.
func (r *PeriodRecord) HasUsableData() bool {
	if common.IsValidValue(r.Sales) ||
		common.IsValidValue(r.OperatingProfit) ||
		common.IsValidValue(r.NetProfit) ||
		common.IsValidValue(r.Equity) {
		return true
	}
	return r.FiscalYearEnd != "" && r.DisclosedDate != ""
}

// MergeFrom fills this record's nil fields from other. Used when a later
// disclosure (a revision) supersedes an earlier one for the same period:
// the revision wins where it has data, the earlier record backfills the rest.
func (r *PeriodRecord) MergeFrom(other *PeriodRecord) {
	if other == nil {
		return
	}
	fill := func(dst **float64, src *float64) {
		if *dst == nil && src != nil {
			v := *src
			*dst = &v
		}
	}
	fill(&r.Sales, other.Sales)
	fill(&r.OperatingProfit, other.OperatingProfit)
	fill(&r.NetProfit, other.NetProfit)
	fill(&r.Equity, other.Equity)
	fill(&r.CashFlowOperating, other.CashFlowOperating)
	fill(&r.CashFlowInvesting, other.CashFlowInvesting)
	fill(&r.Cash, other.Cash)
	fill(&r.EPS, other.EPS)
	fill(&r.BPS, other.BPS)
	fill(&r.AvgShares, other.AvgShares)
	fill(&r.DividendTotalAnnual, other.DividendTotalAnnual)
	fill(&r.PayoutRatioAnnual, other.PayoutRatioAnnual)
	if r.DisclosedDate == "" {
		r.DisclosedDate = other.DisclosedDate
	}
	if r.FiscalYearStart == "" {
		r.FiscalYearStart = other.FiscalYearStart
	}
	if r.FiscalYearEnd == "" {
		r.FiscalYearEnd = other.FiscalYearEnd
	}
}

// Clone returns a deep copy of the record.
func (r *PeriodRecord) Clone() *PeriodRecord {
	if r == nil {
		return nil
	}
	cp := *r
	dup := func(dst **float64) {
		if *dst != nil {
			v := **dst
			*dst = &v
		}
	}
	dup(&cp.Sales)
	dup(&cp.OperatingProfit)
	dup(&cp.NetProfit)
	dup(&cp.Equity)
	dup(&cp.CashFlowOperating)
	dup(&cp.CashFlowInvesting)
	dup(&cp.Cash)
	dup(&cp.EPS)
	dup(&cp.BPS)
	dup(&cp.AvgShares)
	dup(&cp.DividendTotalAnnual)
	dup(&cp.PayoutRatioAnnual)
	return &cp
}

// DailyBar is one trading day of adjusted price data.
type DailyBar struct {
	Date     string   `json:"date"`
	Open     *float64 `json:"open,omitempty"`
	High     *float64 `json:"high,omitempty"`
	Low      *float64 `json:"low,omitempty"`
	Close    *float64 `json:"close,omitempty"`
	AdjClose *float64 `json:"adjClose,omitempty"`
	Volume   *float64 `json:"volume,omitempty"`
}

// PriceAt returns the best closing price for the bar, preferring the
// adjusted close.
func (b *DailyBar) PriceAt() *float64 {
	if common.IsValidValue(b.AdjClose) {
		return b.AdjClose
	}
	return b.Close
}
