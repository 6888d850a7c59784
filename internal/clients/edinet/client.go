package edinet

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/interfaces"
	"github.com/kyofin/kessan/internal/models"
)

const (
	defaultBaseURL    = "https://api.edinet-fsa.go.jp/api/v2"
	defaultWorkers    = 10
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second

	// One matching report per search window is enough.
	maxDocumentsPerSearch = 10
)

// Client talks to the EDINET v2 document API. Per-date document indexes are
// cached on disk because they are immutable once the date has passed.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	cacheDir   string
	workers    int
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time

	mu sync.Mutex // serializes cache writes
}

var _ interfaces.FilingsClient = (*Client)(nil)

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

func WithWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(apiKey, cacheDir string, opts ...Option) (*Client, error) {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "edinet_index")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("edinet: create cache dir: %w", err)
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     common.NewSilentLogger(),
		cacheDir:   cacheDir,
		workers:    defaultWorkers,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// document is one row of the per-date index.
type document struct {
	DocID          string `json:"docID"`
	EdinetCode     string `json:"edinetCode"`
	SecCode        string `json:"secCode"`
	FilerName      string `json:"filerName"`
	DocTypeCode    string `json:"docTypeCode"`
	DocDescription string `json:"docDescription"`
	PeriodEnd      string `json:"periodEnd"`
	SubmitDateTime string `json:"submitDateTime"`
}

type indexResponse struct {
	StatusCode int        `json:"statusCode"`
	Message    string     `json:"message"`
	Results    []document `json:"results"`
}

func (c *Client) request(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("edinet: api key is not set")
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("Subscription-Key", c.apiKey)
	u := c.baseURL + endpoint + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retryDelay * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("edinet: request %s: %w", endpoint, err)
			continue
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			return nil, fmt.Errorf("edinet: invalid api key (401)")
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("edinet: %s returned %d", endpoint, resp.StatusCode)
			continue
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("edinet: %s returned %d", endpoint, resp.StatusCode)
		}
	}
	return nil, lastErr
}

func (c *Client) cachePath(date string) string {
	return filepath.Join(c.cacheDir, "search_"+date+".json")
}

func (c *Client) loadIndexCache(date string) ([]document, bool) {
	data, err := os.ReadFile(c.cachePath(date))
	if err != nil {
		return nil, false
	}
	var docs []document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, false
	}
	return docs, true
}

func (c *Client) saveIndexCache(date string, docs []document) {
	data, err := json.Marshal(docs)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.WriteFile(c.cachePath(date), data, 0o644); err != nil {
		c.logger.Warn().Str("date", date).Err(err).Msg("filing index cache write failed")
	}
}

// documentsForDate returns the filed-document index for one date, serving
// from the disk cache when present. Fetch errors degrade to an empty list so
// one bad date does not abort a whole search.
func (c *Client) documentsForDate(ctx context.Context, date string) []document {
	if docs, ok := c.loadIndexCache(date); ok {
		return docs
	}

	resp, err := c.request(ctx, "/documents.json", url.Values{"date": {date}, "type": {"2"}})
	if err != nil {
		c.logger.Warn().Str("date", date).Err(err).Msg("filing index fetch failed")
		return nil
	}
	defer resp.Body.Close()

	var idx indexResponse
	if err := json.NewDecoder(resp.Body).Decode(&idx); err != nil {
		c.logger.Warn().Str("date", date).Err(err).Msg("filing index decode failed")
		return nil
	}
	if idx.StatusCode != 0 && idx.StatusCode != http.StatusOK {
		c.logger.Warn().Str("date", date).Int("status", idx.StatusCode).Str("message", idx.Message).Msg("filing index error response")
		return nil
	}

	c.saveIndexCache(date, idx.Results)
	return idx.Results
}

// SearchReports scans each submission window newest first for a matching
// report. Dates are fetched in bounded parallel batches; scanning stays in
// newest-first order so the first hit per window is also the latest filing.
func (c *Client) SearchReports(ctx context.Context, code string, windows []models.SearchPeriod) ([]models.FilingReport, error) {
	if c.apiKey == "" || len(windows) == 0 {
		return nil, nil
	}

	shortCode := models.ShortCode(code)
	seen := make(map[string]bool)
	var reports []models.FilingReport

	for _, window := range windows {
		if len(reports) >= maxDocumentsPerSearch {
			break
		}
		doc, ok := c.searchWindow(ctx, shortCode, window)
		if !ok || seen[doc.DocID] {
			continue
		}
		seen[doc.DocID] = true
		reports = append(reports, models.FilingReport{
			DocID:       doc.DocID,
			Description: doc.DocDescription,
			DocTypeCode: doc.DocTypeCode,
			FilerName:   doc.FilerName,
			PeriodEnd:   common.NormalizeDate(doc.PeriodEnd),
			SubmitDate:  common.NormalizeDate(doc.SubmitDateTime),
		})
	}
	return reports, nil
}

func (c *Client) searchWindow(ctx context.Context, shortCode string, window models.SearchPeriod) (document, bool) {
	dates := datesNewestFirst(window.Window, c.now())
	if len(dates) == 0 {
		return document{}, false
	}

	for i := 0; i < len(dates); i += c.workers {
		batch := dates[i:min(i+c.workers, len(dates))]

		results := make([][]document, len(batch))
		var wg sync.WaitGroup
		for j, date := range batch {
			wg.Add(1)
			go func(j int, date string) {
				defer wg.Done()
				results[j] = c.documentsForDate(ctx, date)
			}(j, date)
		}
		wg.Wait()

		for j, date := range batch {
			for _, doc := range results[j] {
				if !matches(doc, shortCode, window.DocTypes) {
					continue
				}
				c.logger.Info().
					Str("code", shortCode).
					Str("docId", doc.DocID).
					Str("date", date).
					Str("description", doc.DocDescription).
					Msg("filing located")
				return doc, true
			}
		}
		if ctx.Err() != nil {
			return document{}, false
		}
	}
	return document{}, false
}

func matches(doc document, shortCode string, docTypes []string) bool {
	if !strings.HasPrefix(strings.TrimSpace(doc.SecCode), shortCode) {
		return false
	}
	if len(docTypes) > 0 {
		found := false
		for _, dt := range docTypes {
			if doc.DocTypeCode == dt {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	// Amendments and corrections are not the primary filing.
	if strings.Contains(doc.DocDescription, "訂正") || strings.Contains(doc.DocDescription, "補正") {
		return false
	}
	return true
}

// datesNewestFirst expands a window into YYYY-MM-DD dates, newest first,
// clamped to today.
func datesNewestFirst(window models.DateRange, now time.Time) []string {
	start, okS := common.ParseDate(window.Start)
	end, okE := common.ParseDate(window.End)
	if !okS || !okE {
		return nil
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if end.After(today) {
		end = today
	}
	var dates []string
	for d := end; !d.Before(start); d = d.AddDate(0, 0, -1) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates
}

// DownloadDocument fetches the XBRL archive for a document and extracts it
// under dir, returning the extraction path. Already-extracted documents are
// returned as-is.
func (c *Client) DownloadDocument(ctx context.Context, docID, dir string) (string, error) {
	if dir == "" {
		dir = c.cacheDir
	}
	dest := filepath.Join(dir, docID+"_xbrl")
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return dest, nil
	}

	resp, err := c.request(ctx, "/documents/"+docID, url.Values{"type": {"1"}})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("edinet: read document %s: %w", docID, err)
	}

	zr, err := zip.NewReader(strings.NewReader(string(body)), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("edinet: open archive %s: %w", docID, err)
	}
	if err := extractArchive(zr, dest); err != nil {
		return "", fmt.Errorf("edinet: extract %s: %w", docID, err)
	}
	return dest, nil
}

func extractArchive(zr *zip.Reader, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	for _, f := range zr.File {
		path := filepath.Join(dest, f.Name)
		// Reject entries escaping the destination.
		if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(path)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
