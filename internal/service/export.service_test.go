package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dcabacktest/internal/calculator"
	"dcabacktest/internal/domain"
	"dcabacktest/internal/feargreed"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

func TestExportService_SaveHistory(t *testing.T) {
	s := ExportService{Dir: t.TempDir()}
	fg := 62.5

	path, err := s.SaveHistory([]domain.PortfolioSnapshot{
		{
			Date:        time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC),
			Cash:        0,
			AssetsValue: 500,
			TotalValue:  500,
			Investment:  500,
			FearGreed:   &fg,
		},
		{
			Date:        time.Date(2023, 6, 9, 0, 0, 0, 0, time.UTC),
			Cash:        1.5,
			AssetsValue: 1000,
			TotalValue:  1001.5,
			Investment:  500,
		},
	})
	require.NoError(t, err)

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	require.Equal(t, "date,cash,assets_value,total_value,investment,fear_greed_index", lines[0])
	require.Equal(t, "2023-06-02,0,500,500,500,62.5", lines[1])
	require.Equal(t, "2023-06-09,1.5,1000,1001.5,500,", lines[2])
}

func TestExportService_SaveTransactions(t *testing.T) {
	s := ExportService{Dir: t.TempDir()}

	path, err := s.SaveTransactions([]domain.Transaction{
		{
			ID:     uuid.New(),
			Date:   time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC),
			Symbol: "SPY",
			Price:  decimal.NewFromInt(100),
			Shares: decimal.NewFromInt(5),
			Amount: decimal.NewFromInt(500),
			Kind:   domain.TransactionKindBuy,
		},
	})
	require.NoError(t, err)

	lines := readLines(t, path)
	require.Equal(t, "date,symbol,price,shares,amount,type", lines[0])
	require.Equal(t, "2023-06-02,SPY,100,5,500,buy", lines[1])
}

func TestExportService_SaveSentiment(t *testing.T) {
	s := ExportService{Dir: t.TempDir()}

	path, err := s.SaveSentiment(&feargreed.Index{Symbol: "SPY", Points: []feargreed.Point{
		{Date: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), Value: 71.236},
		{Date: time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC), Value: 18},
	}})
	require.NoError(t, err)
	require.Equal(t, "SPY_fear_greed.csv", filepath.Base(path))

	lines := readLines(t, path)
	require.Equal(t, "Date,Fear_Greed_Index,Sentiment", lines[0])
	require.Equal(t, "2023-06-01,71.24,Greed", lines[1])
	require.Equal(t, "2023-06-02,18,Extreme Fear", lines[2])
}

func TestExportService_SaveBarsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := ExportService{Dir: dir}

	high := 101.0
	low := 99.0
	series := domain.NewPriceSeries("^VIX", []domain.Bar{
		{Date: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), Close: 100, High: &high, Low: &low},
		{Date: time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC), Close: 102},
	})

	path, err := s.SaveBars(series)
	require.NoError(t, err)
	require.Equal(t, "VIX_data.csv", filepath.Base(path))

	loaded, err := LoadSeriesFromCSV(path, "^VIX")
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	require.Equal(t, series.Closes(), loaded.Closes())
	require.Equal(t, series.Dates(), loaded.Dates())
	require.NotNil(t, loaded.Bars[0].High)
	require.Equal(t, high, *loaded.Bars[0].High)
	require.Nil(t, loaded.Bars[1].High)
}

func TestExportService_SaveFinalPortfolio(t *testing.T) {
	s := ExportService{Dir: t.TempDir()}

	final := domain.Portfolio{
		Cash: decimal.NewFromFloat(1.5),
		Holdings: map[string]decimal.Decimal{
			"SPY": decimal.NewFromInt(10),
		},
	}
	history := []domain.PortfolioSnapshot{
		{Date: time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC), TotalValue: 1001.5},
	}
	metrics := &calculator.PerformanceMetrics{TotalInvested: 1000, FinalValue: 1001.5}

	path, err := s.SaveFinalPortfolio(final, history, metrics)
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Cash       float64            `json:"cash"`
		Assets     map[string]float64 `json:"assets"`
		TotalValue float64            `json:"total_value"`
		Metrics    *struct {
			TotalInvested float64 `json:"totalInvested"`
		} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(b, &doc))
	require.Equal(t, 1.5, doc.Cash)
	require.Equal(t, 10.0, doc.Assets["SPY"])
	require.Equal(t, 1001.5, doc.TotalValue)
	require.NotNil(t, doc.Metrics)
	require.Equal(t, 1000.0, doc.Metrics.TotalInvested)
}
