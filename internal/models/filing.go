package models

// EDINET document type codes for the reports the analysis surfaces.
const (
	DocTypeAnnualReport      = "120"
	DocTypeHalfYearReport    = "140"
	DocTypeHalfYearReportAlt = "160"
)

// DateRange is an inclusive window of YYYY-MM-DD dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SearchPeriod pairs a fiscal period with the submission window in which its
// securities report is expected to appear and the document types to accept.
type SearchPeriod struct {
	FiscalYearEnd string    `json:"fiscalYearEnd"`
	PeriodType    string    `json:"periodType"`
	Window        DateRange `json:"window"`
	DocTypes      []string  `json:"docTypes"`
}
