package domain

import (
	"math"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// Bar is one daily sample. Close is required; the other fields are only
// needed for sentiment computation and may be missing.
type Bar struct {
	Date   time.Time
	Close  float64
	Open   *float64
	High   *float64
	Low    *float64
	Volume *float64
}

// PriceSeries holds an instrument's daily bars, ascending by date with
// unique dates. Gaps (missing trading days) are allowed.
type PriceSeries struct {
	Symbol string
	Bars   []Bar

	closeByDate map[string]float64
}

func NewPriceSeries(symbol string, bars []Bar) PriceSeries {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	closeByDate := make(map[string]float64, len(sorted))
	for _, b := range sorted {
		closeByDate[b.Date.Format(dateLayout)] = b.Close
	}

	return PriceSeries{
		Symbol:      symbol,
		Bars:        sorted,
		closeByDate: closeByDate,
	}
}

func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// CloseOn returns the closing price for the exact date. A NaN close counts
// as missing.
func (s PriceSeries) CloseOn(date time.Time) (float64, bool) {
	price, ok := s.closeByDate[date.Format(dateLayout)]
	if !ok || math.IsNaN(price) {
		return 0, false
	}
	return price, true
}

func (s PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		dates[i] = b.Date
	}
	return dates
}

func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}
