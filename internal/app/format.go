package app

import (
	"fmt"
	"strings"

	"github.com/kyofin/kessan/internal/models"
)

// formatAnalysis renders a full analysis as markdown for tool output.
func formatAnalysis(r *models.AnalysisResult) string {
	var b strings.Builder

	name := r.CompanyName
	if name == "" {
		name = r.Code
	}
	fmt.Fprintf(&b, "# %s (%s)\n\n", name, r.Code)
	fmt.Fprintf(&b, "Availability: %s\n", r.Availability)
	if !r.DataValid {
		b.WriteString("Note: the latest period lacks every headline figure.\n")
	}
	b.WriteString("\n")

	b.WriteString(formatSummaryTable(r))

	if len(r.Quarterly) > 0 {
		b.WriteString("\n## Quarterly (oldest quarter = 100)\n\n")
		b.WriteString("| Period | Type | Sales (M) | OP (M) | EPS | Sales idx | EPS idx | Price idx |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|\n")
		for _, q := range r.Quarterly {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
				q.PeriodEnd, q.PeriodType,
				fmtNum(q.Sales, 0), fmtNum(q.OperatingProfit, 0), fmtNum(q.EPS, 2),
				fmtNum(q.SalesIndex, 1), fmtNum(q.EPSIndex, 1), fmtNum(q.PriceIndex, 1))
		}
	}

	if len(r.Filings) > 0 {
		b.WriteString("\n## Filings\n\n")
		for _, f := range r.Filings {
			fmt.Fprintf(&b, "- %s: %s (submitted %s)\n", f.DocID, f.Description, f.SubmitDate)
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}

// formatSummaryTable renders the annual metrics as a markdown table, newest
// period first.
func formatSummaryTable(r *models.AnalysisResult) string {
	var b strings.Builder

	b.WriteString("## Annual metrics (millions of yen)\n\n")
	if len(r.Annual) == 0 {
		b.WriteString("No annual periods available.\n")
		return b.String()
	}

	b.WriteString("| Period | Sales | OP | NP | FCF | ROE % | EPS | BPS | PER | PBR | Div/Share | Payout % | Price |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|---|---|---|---|\n")
	for _, p := range r.Annual {
		label := p.PeriodLabel
		if label == "" {
			label = p.FiscalYearEnd
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			label,
			fmtNum(p.Sales, 0), fmtNum(p.OperatingProfit, 0), fmtNum(p.NetProfit, 0), fmtNum(p.FCF, 0),
			fmtNum(p.ROE, 1),
			fmtNum(p.EPS, 2), fmtNum(p.BPS, 2), fmtNum(p.PER, 2), fmtNum(p.PBR, 2),
			fmtNum(p.DividendPerShare, 2), fmtNum(p.PayoutRatio, 1),
			fmtNum(p.StockPrice, 0))
	}

	return b.String()
}

func fmtNum(v *float64, decimals int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", decimals, *v)
}
