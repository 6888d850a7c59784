package jquants

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/interfaces"
	"github.com/kyofin/kessan/internal/models"
)

const (
	defaultBaseURL       = "https://api.jquants.com/v2"
	defaultMaxRetries    = 5
	defaultRetryDelay    = 2 * time.Second
	defaultRateLimitWait = 60 * time.Second
)

// Client talks to the J-Quants v2 API. All endpoints return pages shaped as
// {"data": [...], "pagination_key": "..."}.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *common.Logger

	maxRetries    int
	retryDelay    time.Duration
	rateLimitWait time.Duration
}

var _ interfaces.MarketDataClient = (*Client)(nil)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jquants api error %d on %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithLogger(l *common.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetry tunes the retry policy. Tests use short delays.
func WithRetry(maxRetries int, delay, rateLimitWait time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
		c.rateLimitWait = rateLimitWait
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("jquants: api key is required")
	}
	c := &Client{
		baseURL:       defaultBaseURL,
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		limiter:       rate.NewLimiter(rate.Limit(5), 1),
		logger:        common.NewSilentLogger(),
		maxRetries:    defaultMaxRetries,
		retryDelay:    defaultRetryDelay,
		rateLimitWait: defaultRateLimitWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type page struct {
	Data          []map[string]any `json:"data"`
	PaginationKey string           `json:"pagination_key"`
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*page, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		p, retryable, wait, err := c.doOnce(ctx, endpoint, params, attempt)
		if err == nil {
			return p, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxRetries {
			return nil, err
		}

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Err(err).
			Msg("retrying jquants request")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// doOnce performs a single request. It reports whether a failure is
// retryable and how long to back off before the next attempt.
func (c *Client) doOnce(ctx context.Context, endpoint string, params url.Values, attempt int) (*page, bool, time.Duration, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, 0, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection errors and timeouts back off exponentially.
		return nil, true, c.backoff(attempt), fmt.Errorf("jquants: request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, c.backoff(attempt), fmt.Errorf("jquants: read %s: %w", endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, false, 0, fmt.Errorf("jquants: decode %s: %w", endpoint, err)
		}
		return &p, false, 0, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		// Rate limits wait the long window on top of the backoff.
		wait := c.backoff(attempt) + c.rateLimitWait
		return nil, true, wait, &APIError{resp.StatusCode, "rate limited", endpoint}

	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		// Bad credentials never recover on retry.
		return nil, false, 0, &APIError{resp.StatusCode, strings.TrimSpace(string(body)), endpoint}

	case resp.StatusCode >= 500:
		return nil, true, c.backoff(attempt), &APIError{resp.StatusCode, strings.TrimSpace(string(body)), endpoint}

	default:
		return nil, false, 0, &APIError{resp.StatusCode, strings.TrimSpace(string(body)), endpoint}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryDelay * (1 << attempt)
	jitter := time.Duration(rand.Int63n(int64(c.retryDelay)/2 + 1))
	return d + jitter
}

// getAllPages follows pagination_key until the API stops returning one.
func (c *Client) getAllPages(ctx context.Context, endpoint string, params url.Values) ([]map[string]any, error) {
	var all []map[string]any
	if params == nil {
		params = url.Values{}
	}
	for {
		p, err := c.get(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Data...)
		if p.PaginationKey == "" {
			return all, nil
		}
		params.Set("pagination_key", p.PaginationKey)
	}
}

// GetFinancialSummary fetches every disclosed summary row for the code and
// coerces it to typed records at this boundary.
// GetFinancialSummary fetches every disclosed summary row for the
// instrument. Optional periodTypes narrow the result to the given normalized
// types (FY, 1Q, 2Q, 3Q); the API has no server-side filter, so rows are
// dropped after coercion.
func (c *Client) GetFinancialSummary(ctx context.Context, code string, periodTypes ...string) ([]*models.PeriodRecord, error) {
	params := url.Values{"code": {code}}
	rows, err := c.getAllPages(ctx, "/fins/summary", params)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(periodTypes))
	for _, pt := range periodTypes {
		wanted[models.NormalizePeriodType(pt)] = true
	}

	records := make([]*models.PeriodRecord, 0, len(rows))
	for _, row := range rows {
		rec := recordFromRow(row)
		if len(wanted) > 0 && !wanted[rec.PeriodType] {
			continue
		}
		records = append(records, rec)
	}
	c.logger.Debug().Str("code", code).Int("records", len(records)).Msg("fetched financial summary")
	return records, nil
}

func recordFromRow(row map[string]any) *models.PeriodRecord {
	return &models.PeriodRecord{
		Code:            str(row["Code"]),
		DisclosedDate:   common.NormalizeDate(str(row["DiscDate"])),
		PeriodType:      models.NormalizePeriodType(str(row["CurPerType"])),
		FiscalYearStart: common.NormalizeDate(str(row["CurFYSt"])),
		FiscalYearEnd:   common.NormalizeDate(str(row["CurFYEn"])),

		Sales:               common.ToFloat(row["Sales"]),
		OperatingProfit:     common.ToFloat(row["OP"]),
		NetProfit:           common.ToFloat(row["NP"]),
		Equity:              common.ToFloat(row["Eq"]),
		CashFlowOperating:   common.ToFloat(row["CFO"]),
		CashFlowInvesting:   common.ToFloat(row["CFI"]),
		Cash:                common.ToFloat(row["CashAndCashEquivalents"]),
		EPS:                 common.ToFloat(row["EPS"]),
		BPS:                 common.ToFloat(row["BPS"]),
		AvgShares:           common.ToFloat(row["AvgSh"]),
		DividendTotalAnnual: common.ToFloat(row["DivTotalAnn"]),
		PayoutRatioAnnual:   common.ToFloat(row["PayoutRatioAnn"]),
	}
}

// GetDailyBars fetches adjusted daily bars for the inclusive range.
func (c *Client) GetDailyBars(ctx context.Context, code, from, to string) ([]models.DailyBar, error) {
	params := url.Values{"code": {code}}
	if from != "" {
		params.Set("from", from)
	}
	if to != "" {
		params.Set("to", to)
	}
	rows, err := c.getAllPages(ctx, "/equities/bars/daily", params)
	if err != nil {
		return nil, err
	}

	bars := make([]models.DailyBar, 0, len(rows))
	for _, row := range rows {
		bars = append(bars, models.DailyBar{
			Date:     common.NormalizeDate(str(row["Date"])),
			Open:     common.ToFloat(row["O"]),
			High:     common.ToFloat(row["H"]),
			Low:      common.ToFloat(row["L"]),
			Close:    common.ToFloat(row["C"]),
			AdjClose: common.ToFloat(row["AdjC"]),
			Volume:   common.ToFloat(row["Vol"]),
		})
	}
	return bars, nil
}

// GetPricesAtDates resolves closing prices for the requested dates with a
// single padded range fetch. Dates on non-trading days walk back up to ten
// calendar days to the previous close. If the batch fetch fails, each date
// falls back to an individual narrow fetch.
func (c *Client) GetPricesAtDates(ctx context.Context, code string, dates []string) (map[string]float64, error) {
	results := make(map[string]float64)
	if len(dates) == 0 {
		return results, nil
	}

	var parsed []reqDate
	for _, d := range dates {
		if t, ok := common.ParseDate(d); ok {
			parsed = append(parsed, reqDate{common.NormalizeDate(d), t})
		}
	}
	if len(parsed) == 0 {
		return results, nil
	}

	minT, maxT := parsed[0].t, parsed[0].t
	for _, p := range parsed[1:] {
		if p.t.Before(minT) {
			minT = p.t
		}
		if p.t.After(maxT) {
			maxT = p.t
		}
	}

	// Pad the range so walk-back over weekends and holidays has bars to land on.
	from := minT.AddDate(0, 0, -10).Format("2006-01-02")
	to := maxT.AddDate(0, 0, 10).Format("2006-01-02")

	bars, err := c.GetDailyBars(ctx, code, from, to)
	if err != nil {
		c.logger.Warn().Str("code", code).Err(err).Msg("batch price fetch failed, falling back to per-date fetches")
		return c.pricesOneByOne(ctx, code, parsed, results)
	}

	byDate := indexBars(bars)
	for _, p := range parsed {
		if price, ok := resolvePrice(byDate, p.t); ok {
			results[p.key] = price
		}
	}
	return results, nil
}

type reqDate struct {
	key string
	t   time.Time
}

func (c *Client) pricesOneByOne(ctx context.Context, code string, parsed []reqDate, results map[string]float64) (map[string]float64, error) {
	var lastErr error
	for _, p := range parsed {
		from := p.t.AddDate(0, 0, -10).Format("2006-01-02")
		to := p.t.Format("2006-01-02")
		bars, err := c.GetDailyBars(ctx, code, from, to)
		if err != nil {
			lastErr = err
			continue
		}
		if price, ok := resolvePrice(indexBars(bars), p.t); ok {
			results[p.key] = price
		}
	}
	if len(results) == 0 && lastErr != nil {
		return results, lastErr
	}
	return results, nil
}

func indexBars(bars []models.DailyBar) map[string]float64 {
	byDate := make(map[string]float64, len(bars))
	for i := range bars {
		if p := bars[i].PriceAt(); p != nil && bars[i].Date != "" {
			byDate[bars[i].Date] = *p
		}
	}
	return byDate
}

// resolvePrice looks up the exact date, then walks back day by day up to ten
// days for the previous trading day's close.
func resolvePrice(byDate map[string]float64, t time.Time) (float64, bool) {
	if p, ok := byDate[t.Format("2006-01-02")]; ok {
		return p, true
	}
	for i := 1; i <= 10; i++ {
		if p, ok := byDate[t.AddDate(0, 0, -i).Format("2006-01-02")]; ok {
			return p, true
		}
	}
	return 0, false
}

// GetInstrumentMaster fetches the full listed company master.
func (c *Client) GetInstrumentMaster(ctx context.Context) ([]models.Instrument, error) {
	rows, err := c.getAllPages(ctx, "/equities/master", nil)
	if err != nil {
		return nil, err
	}

	instruments := make([]models.Instrument, 0, len(rows))
	for _, row := range rows {
		instruments = append(instruments, models.Instrument{
			Code:           str(row["Code"]),
			CompanyName:    str(row["CoName"]),
			CompanyNameEng: str(row["CoNameEn"]),
			MarketCode:     str(row["MktCd"]),
			MarketName:     str(row["MktNm"]),
			SectorCode:     str(row["Sec33Cd"]),
			SectorName:     str(row["Sec33Nm"]),
			Date:           common.NormalizeDate(str(row["Date"])),
		})
	}
	return instruments, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
