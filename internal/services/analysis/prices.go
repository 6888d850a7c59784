package analysis

import (
	"context"
	"strings"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/interfaces"
)

// Prices before the market-data subscription start simply do not exist, so
// period ends older than this are never requested.
const subscriptionFloor = "2021-01-09"

// alignPrices maps each period end to a closing price. Missing prices are
// absent from the map rather than errors; a total fetch failure degrades to
// an empty map so derivation proceeds without valuation ratios. The result
// carries both date formats so lookups succeed either way.
func (s *Service) alignPrices(ctx context.Context, client interfaces.MarketDataClient, code string, dates []string) map[string]float64 {
	var wanted []string
	seen := make(map[string]bool)
	for _, d := range dates {
		n := common.NormalizeDate(d)
		if n == "" || n < subscriptionFloor || seen[n] {
			continue
		}
		seen[n] = true
		wanted = append(wanted, n)
	}
	if len(wanted) == 0 {
		return map[string]float64{}
	}

	prices, err := client.GetPricesAtDates(ctx, code, wanted)
	if err != nil {
		s.logger.Warn().Str("code", code).Err(err).Msg("price alignment failed, continuing without prices")
		return map[string]float64{}
	}

	out := make(map[string]float64, len(prices)*2)
	for date, price := range prices {
		n := common.NormalizeDate(date)
		if n == "" {
			continue
		}
		out[n] = price
		out[strings.ReplaceAll(n, "-", "")] = price
	}
	return out
}
