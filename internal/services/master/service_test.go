package master

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyofin/kessan/internal/models"
)

type stubClient struct {
	calls       int
	instruments []models.Instrument
	err         error
}

func (c *stubClient) GetInstrumentMaster(ctx context.Context) ([]models.Instrument, error) {
	c.calls++
	return c.instruments, c.err
}

func (c *stubClient) GetFinancialSummary(ctx context.Context, code string, periodTypes ...string) ([]*models.PeriodRecord, error) {
	return nil, nil
}

func (c *stubClient) GetDailyBars(ctx context.Context, code, from, to string) ([]models.DailyBar, error) {
	return nil, nil
}

func (c *stubClient) GetPricesAtDates(ctx context.Context, code string, dates []string) (map[string]float64, error) {
	return nil, nil
}

type memStore struct {
	instruments []models.Instrument
	updated     time.Time
}

func (s *memStore) GetAll() ([]models.Instrument, time.Time, error) {
	return s.instruments, s.updated, nil
}

func (s *memStore) SetAll(instruments []models.Instrument) error {
	s.instruments = instruments
	s.updated = time.Now()
	return nil
}

func masterRows() []models.Instrument {
	return []models.Instrument{
		{Code: "67580", CompanyName: "ソニーグループ", CompanyNameEng: "Sony Group", MarketName: "プライム（内国株式）"},
		{Code: "72030", CompanyName: "トヨタ自動車", CompanyNameEng: "Toyota Motor", MarketName: "プライム（内国株式）"},
		{Code: "40050", CompanyName: "住友化学", MarketName: "プライム"},
		{Code: "13050", CompanyName: "ＥＴＦダイワ", MarketName: "ETF・ETN"},
	}
}

func TestSearchFiltersMarketsAndMatches(t *testing.T) {
	client := &stubClient{instruments: masterRows()}
	svc := NewService(client, &memStore{})

	// ETF rows never enter the searchable set.
	results, err := svc.Search(context.Background(), "ＥＴＦ")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = svc.Search(context.Background(), "6758")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ソニーグループ", results[0].CompanyName)
	assert.Equal(t, "プライム", results[0].MarketName)

	// English names match case-insensitively.
	results, err = svc.Search(context.Background(), "toyota")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "72030", results[0].Code)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := NewService(&stubClient{instruments: masterRows()}, &memStore{})
	_, err := svc.Search(context.Background(), "   ")
	assert.Error(t, err)
}

func TestSearchLimit(t *testing.T) {
	var rows []models.Instrument
	for i := 0; i < 80; i++ {
		rows = append(rows, models.Instrument{
			Code:        "60000",
			CompanyName: "テスト会社",
			MarketName:  "グロース",
		})
	}
	svc := NewService(&stubClient{instruments: rows}, &memStore{})

	results, err := svc.Search(context.Background(), "テスト")
	require.NoError(t, err)
	assert.Len(t, results, searchLimit)
}

func TestGetNormalizesCode(t *testing.T) {
	svc := NewService(&stubClient{instruments: masterRows()}, &memStore{})

	inst, err := svc.Get(context.Background(), "6758")
	require.NoError(t, err)
	assert.Equal(t, "67580", inst.Code)

	_, err = svc.Get(context.Background(), "9999")
	assert.Error(t, err)
}

func TestFreshStoreSkipsUpstream(t *testing.T) {
	client := &stubClient{instruments: masterRows()}
	store := &memStore{
		instruments: []models.Instrument{{Code: "67580", CompanyName: "ソニーグループ", MarketName: "プライム"}},
		updated:     time.Now(),
	}
	svc := NewService(client, store)

	_, err := svc.Get(context.Background(), "67580")
	require.NoError(t, err)
	assert.Zero(t, client.calls)
}

func TestStaleStoreTriggersRefresh(t *testing.T) {
	client := &stubClient{instruments: masterRows()}
	store := &memStore{
		instruments: []models.Instrument{{Code: "67580", CompanyName: "旧名", MarketName: "プライム"}},
		updated:     time.Now().Add(-48 * time.Hour),
	}
	svc := NewService(client, store)

	inst, err := svc.Get(context.Background(), "67580")
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "ソニーグループ", inst.CompanyName)
}
