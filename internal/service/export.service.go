package service

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dcabacktest/internal/calculator"
	"dcabacktest/internal/domain"
	"dcabacktest/internal/feargreed"

	"github.com/gocarina/gocsv"
)

// ExportService writes run artifacts (history, transactions, sentiment,
// final portfolio) under Dir with timestamped names so repeated runs never
// clobber each other.
type ExportService struct {
	Dir string
}

type historyRow struct {
	Date        string   `csv:"date"`
	Cash        float64  `csv:"cash"`
	AssetsValue float64  `csv:"assets_value"`
	TotalValue  float64  `csv:"total_value"`
	Investment  float64  `csv:"investment"`
	FearGreed   *float64 `csv:"fear_greed_index,omitempty"`
}

type transactionRow struct {
	Date   string  `csv:"date"`
	Symbol string  `csv:"symbol"`
	Price  float64 `csv:"price"`
	Shares float64 `csv:"shares"`
	Amount float64 `csv:"amount"`
	Kind   string  `csv:"type"`
}

type sentimentRow struct {
	Date      string  `csv:"Date"`
	Value     float64 `csv:"Fear_Greed_Index"`
	Sentiment string  `csv:"Sentiment"`
}

func (s ExportService) SaveHistory(history []domain.PortfolioSnapshot) (string, error) {
	rows := make([]historyRow, len(history))
	for i, snapshot := range history {
		rows[i] = historyRow{
			Date:        snapshot.Date.Format(time.DateOnly),
			Cash:        snapshot.Cash,
			AssetsValue: snapshot.AssetsValue,
			TotalValue:  snapshot.TotalValue,
			Investment:  snapshot.Investment,
			FearGreed:   snapshot.FearGreed,
		}
	}
	return s.writeCSV(fmt.Sprintf("portfolio_history_%s.csv", s.timestamp()), rows)
}

func (s ExportService) SaveTransactions(transactions []domain.Transaction) (string, error) {
	rows := make([]transactionRow, len(transactions))
	for i, txn := range transactions {
		rows[i] = transactionRow{
			Date:   txn.Date.Format(time.DateOnly),
			Symbol: txn.Symbol,
			Price:  txn.Price.InexactFloat64(),
			Shares: txn.Shares.InexactFloat64(),
			Amount: txn.Amount.InexactFloat64(),
			Kind:   txn.Kind,
		}
	}
	return s.writeCSV(fmt.Sprintf("transactions_%s.csv", s.timestamp()), rows)
}

func (s ExportService) SaveSentiment(idx *feargreed.Index) (string, error) {
	rows := make([]sentimentRow, len(idx.Points))
	for i, p := range idx.Points {
		rows[i] = sentimentRow{
			Date:      p.Date.Format(time.DateOnly),
			Value:     roundTo(p.Value, 2),
			Sentiment: feargreed.Label(p.Value),
		}
	}
	return s.writeCSV(fmt.Sprintf("%s_fear_greed.csv", idx.Symbol), rows)
}

// SaveBars writes a series in the <symbol>_data.csv layout that
// LoadSeriesFromDir reads back.
func (s ExportService) SaveBars(series domain.PriceSeries) (string, error) {
	rows := make([]priceRow, len(series.Bars))
	for i, bar := range series.Bars {
		c := bar.Close
		rows[i] = priceRow{
			Date:   bar.Date.Format(time.DateOnly),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  &c,
			Volume: bar.Volume,
		}
	}
	name := fmt.Sprintf("%s_data.csv", strings.ReplaceAll(series.Symbol, "^", ""))
	return s.writeCSV(name, rows)
}

type finalPortfolioDoc struct {
	Cash       float64            `json:"cash"`
	Assets     map[string]float64 `json:"assets"`
	TotalValue float64            `json:"total_value"`

	Metrics *calculator.PerformanceMetrics `json:"metrics,omitempty"`
}

func (s ExportService) SaveFinalPortfolio(final domain.Portfolio, history []domain.PortfolioSnapshot, metrics *calculator.PerformanceMetrics) (string, error) {
	assets := map[string]float64{}
	for symbol, shares := range final.Holdings {
		assets[symbol] = shares.InexactFloat64()
	}

	totalValue := 0.0
	if len(history) > 0 {
		totalValue = history[len(history)-1].TotalValue
	}

	doc := finalPortfolioDoc{
		Cash:       final.Cash.InexactFloat64(),
		Assets:     assets,
		TotalValue: totalValue,
		Metrics:    metrics,
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, fmt.Sprintf("final_portfolio_%s.json", s.timestamp()))

	bytes, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal final portfolio: %w", err)
	}
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s ExportService) writeCSV(name string, rows interface{}) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := gocsv.MarshalFile(rows, f); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func (s ExportService) timestamp() string {
	return time.Now().Format("20060102_150405")
}

func roundTo(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}
