package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dcabacktest/internal/domain"

	"github.com/gocarina/gocsv"
)

/**

behavior - all price data is materialized up front, before the simulation
loop starts. the loop then answers "price for symbol on date" and "is this a
trading day" with no I/O behind them.

a trading day is any date where at least one tracked symbol has a close.

*/

type PriceService struct {
	cache         map[string]map[string]float64
	tradingDaySet map[string]bool
}

func NewPriceService(seriesBySymbol map[string]domain.PriceSeries) *PriceService {
	cache := map[string]map[string]float64{}
	tradingDaySet := map[string]bool{}

	for symbol, series := range seriesBySymbol {
		cache[symbol] = map[string]float64{}
		for _, bar := range series.Bars {
			key := bar.Date.Format(time.DateOnly)
			if price, ok := series.CloseOn(bar.Date); ok {
				cache[symbol][key] = price
				tradingDaySet[key] = true
			}
		}
	}

	return &PriceService{
		cache:         cache,
		tradingDaySet: tradingDaySet,
	}
}

func (s *PriceService) Get(symbol string, date time.Time) (float64, bool) {
	prices, ok := s.cache[symbol]
	if !ok {
		return 0, false
	}
	price, ok := prices[date.Format(time.DateOnly)]
	return price, ok
}

func (s *PriceService) TradingDay(date time.Time) bool {
	return s.tradingDaySet[date.Format(time.DateOnly)]
}

type priceRow struct {
	Date   string   `csv:"Date"`
	Open   *float64 `csv:"Open"`
	High   *float64 `csv:"High"`
	Low    *float64 `csv:"Low"`
	Close  *float64 `csv:"Close"`
	Volume *float64 `csv:"Volume"`
}

// LoadSeriesFromDir reads <dir>/<symbol>_data.csv per symbol. Index symbols
// keep their file name without the leading caret. Symbols with no file are
// skipped with a warning from the caller's side: the returned map simply
// omits them.
func LoadSeriesFromDir(dir string, symbols []string) (map[string]domain.PriceSeries, error) {
	out := map[string]domain.PriceSeries{}
	for _, symbol := range symbols {
		path := filepath.Join(dir, fmt.Sprintf("%s_data.csv", strings.ReplaceAll(symbol, "^", "")))
		series, err := LoadSeriesFromCSV(path, symbol)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to load prices for %s: %w", symbol, err)
		}
		out[symbol] = series
	}
	return out, nil
}

func LoadSeriesFromCSV(path string, symbol string) (domain.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.PriceSeries{}, err
	}
	defer f.Close()

	rows := []priceRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return domain.PriceSeries{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	bars := []domain.Bar{}
	for _, row := range rows {
		if row.Close == nil {
			// missing close, tolerate the gap
			continue
		}
		date, err := parseBarDate(row.Date)
		if err != nil {
			return domain.PriceSeries{}, fmt.Errorf("bad date %q in %s: %w", row.Date, path, err)
		}
		bars = append(bars, domain.Bar{
			Date:   date,
			Close:  *row.Close,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Volume: row.Volume,
		})
	}

	return domain.NewPriceSeries(symbol, bars), nil
}

// parseBarDate accepts plain dates and the timestamped form market data
// exports tend to carry.
func parseBarDate(raw string) (time.Time, error) {
	if len(raw) > len(time.DateOnly) {
		raw = raw[:len(time.DateOnly)]
	}
	return time.Parse(time.DateOnly, raw)
}
