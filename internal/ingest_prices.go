package internal

import (
	"fmt"
	"time"

	"dcabacktest/internal/domain"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

// FetchDailyBars pulls daily bars for a symbol from Yahoo. This is a
// data-loading collaborator: it runs before a backtest, never inside the
// simulation loop.
func FetchDailyBars(symbol string, start, end time.Time) (domain.PriceSeries, error) {
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	bars := []domain.Bar{}
	for iter.Next() {
		b := iter.Bar()
		open := b.Open.InexactFloat64()
		high := b.High.InexactFloat64()
		low := b.Low.InexactFloat64()
		volume := float64(b.Volume)
		bars = append(bars, domain.Bar{
			Date:   time.Unix(int64(b.Timestamp), 0).UTC(),
			Close:  b.AdjClose.InexactFloat64(),
			Open:   &open,
			High:   &high,
			Low:    &low,
			Volume: &volume,
		})
	}
	if err := iter.Err(); err != nil {
		return domain.PriceSeries{}, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}

	return domain.NewPriceSeries(symbol, bars), nil
}

// FetchUniverse fetches bars for every symbol, tolerating per-symbol
// failures so one bad ticker does not sink the batch.
func FetchUniverse(symbols []string, start, end time.Time) (map[string]domain.PriceSeries, error) {
	out := map[string]domain.PriceSeries{}
	errs := []error{}

	for _, symbol := range symbols {
		series, err := FetchDailyBars(symbol, start, end)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to ingest %s: %w", symbol, err))
			continue
		}
		out[symbol] = series
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("failed to ingest all %d symbols. first err: %w", len(symbols), errs[0])
	}
	return out, nil
}
