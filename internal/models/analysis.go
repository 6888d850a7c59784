package models

import "time"

// DataAvailability grades how complete the derived metrics are.
type DataAvailability string

const (
	AvailabilitySufficient   DataAvailability = "sufficient"
	AvailabilityInsufficient DataAvailability = "insufficient"
	AvailabilityNoData       DataAvailability = "no_data"
)

// AnalysisStatus is the orchestration state of an analysis run.
type AnalysisStatus string

const (
	StatusInitializing    AnalysisStatus = "initializing"
	StatusFetchingMetrics AnalysisStatus = "fetching_metrics"
	StatusFetchingPrices  AnalysisStatus = "fetching_prices"
	StatusFetchingFilings AnalysisStatus = "fetching_filings"
	StatusComplete        AnalysisStatus = "complete"
	StatusError           AnalysisStatus = "error"
)

// PeriodMetrics holds the derived figures for one fiscal year. Monetary
// fields are in millions of yen; ratios are percentages. Nil means the
// input needed for that figure was missing or its denominator unusable.
type PeriodMetrics struct {
	FiscalYearEnd string `json:"fiscalYearEnd"`
	// PeriodLabel is the human form of the period, e.g. "2024年03月期".
	PeriodLabel string `json:"periodLabel,omitempty"`

	Sales           *float64 `json:"sales,omitempty"`
	OperatingProfit *float64 `json:"operatingProfit,omitempty"`
	NetProfit       *float64 `json:"netProfit,omitempty"`
	Equity          *float64 `json:"equity,omitempty"`
	CFO             *float64 `json:"cfo,omitempty"`
	CFI             *float64 `json:"cfi,omitempty"`
	FCF             *float64 `json:"fcf,omitempty"`
	Cash            *float64 `json:"cash,omitempty"`

	ROE              *float64 `json:"roe,omitempty"`
	SimpleROIC       *float64 `json:"simpleRoic,omitempty"`
	CFConversionRate *float64 `json:"cfConversionRate,omitempty"`

	EPS              *float64 `json:"eps,omitempty"`
	BPS              *float64 `json:"bps,omitempty"`
	PER              *float64 `json:"per,omitempty"`
	PBR              *float64 `json:"pbr,omitempty"`
	DividendPerShare *float64 `json:"dividendPerShare,omitempty"`
	PayoutRatio      *float64 `json:"payoutRatio,omitempty"`

	StockPrice      *float64 `json:"stockPrice,omitempty"`
	AvgShares       *float64 `json:"avgShares,omitempty"`
	AdjustmentRatio float64  `json:"adjustmentRatio"`
}

// QuarterMetrics holds figures for one quarter plus indexed series relative
// to the oldest quarter in the window (oldest = 100).
type QuarterMetrics struct {
	PeriodEnd  string `json:"periodEnd"`
	PeriodType string `json:"periodType"`

	Sales           *float64 `json:"sales,omitempty"`
	OperatingProfit *float64 `json:"operatingProfit,omitempty"`
	NetProfit       *float64 `json:"netProfit,omitempty"`
	EPS             *float64 `json:"eps,omitempty"`
	StockPrice      *float64 `json:"stockPrice,omitempty"`

	SalesIndex *float64 `json:"salesIndex,omitempty"`
	EPSIndex   *float64 `json:"epsIndex,omitempty"`
	PriceIndex *float64 `json:"priceIndex,omitempty"`
}

// FilingReport references one securities report located on EDINET.
type FilingReport struct {
	DocID       string `json:"docId"`
	Description string `json:"description"`
	DocTypeCode string `json:"docTypeCode"`
	FilerName   string `json:"filerName,omitempty"`
	PeriodEnd   string `json:"periodEnd,omitempty"`
	SubmitDate  string `json:"submitDate,omitempty"`
	// LocalPath is where the extracted archive lives on disk; empty when
	// the document was located but not retrieved.
	LocalPath string `json:"localPath,omitempty"`
}

// AnalysisResult is the complete output of one analysis run. Annual periods
// are ordered newest first.
type AnalysisResult struct {
	Code         string           `json:"code" badgerhold:"key"`
	CompanyName  string           `json:"companyName,omitempty"`
	Annual       []PeriodMetrics  `json:"annual"`
	Quarterly    []QuarterMetrics `json:"quarterly,omitempty"`
	Filings      []FilingReport   `json:"filings,omitempty"`
	Availability DataAvailability `json:"availability"`
	// DataValid is false when the latest period lacks every headline
	// figure (free cash flow, ROE, adjusted EPS). The result is still
	// returned so partial data stays inspectable.
	DataValid   bool      `json:"dataValid"`
	Warnings    []string  `json:"warnings,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Clone returns a shallow-safe copy: slices are duplicated so callers can
// hold the result across cache updates.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Annual = append([]PeriodMetrics(nil), r.Annual...)
	cp.Quarterly = append([]QuarterMetrics(nil), r.Quarterly...)
	cp.Filings = append([]FilingReport(nil), r.Filings...)
	cp.Warnings = append([]string(nil), r.Warnings...)
	return &cp
}

// AnalysisSnapshot is one progress event emitted during a streaming run.
type AnalysisSnapshot struct {
	RequestID string          `json:"requestId"`
	Code      string          `json:"code"`
	Status    AnalysisStatus  `json:"status"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message,omitempty"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Err       string          `json:"error,omitempty"`
}

// Progress percentages reported per orchestration state.
func ProgressFor(status AnalysisStatus) int {
	switch status {
	case StatusInitializing:
		return 10
	case StatusFetchingMetrics:
		return 20
	case StatusFetchingPrices:
		return 40
	case StatusFetchingFilings:
		return 70
	case StatusComplete:
		return 100
	}
	return 0
}
