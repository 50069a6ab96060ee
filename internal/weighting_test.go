package internal

import (
	"testing"
	"time"

	"dcabacktest/internal/domain"
	"dcabacktest/internal/feargreed"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func emptyPortfolio(symbols ...string) domain.Portfolio {
	return *domain.NewPortfolio(decimal.Zero, symbols)
}

func TestDCAPolicy(t *testing.T) {
	t.Run("equal weights when none configured", func(t *testing.T) {
		p := DCAPolicy{}
		weights, err := p.GenerateAllocations(date(2023, 6, 2), []string{"SPY", "QQQ", "VTI"}, emptyPortfolio("SPY", "QQQ", "VTI"))
		require.NoError(t, err)
		require.Len(t, weights, 3)
		for _, w := range weights {
			require.InDelta(t, 1.0/3, w, 1e-9)
		}
		require.NoError(t, ValidateWeights(weights))
	})

	t.Run("configured weights normalized over tradable symbols", func(t *testing.T) {
		p := DCAPolicy{Weights: map[string]float64{"SPY": 50, "QQQ": 30, "VTI": 20}}

		weights, err := p.GenerateAllocations(date(2023, 6, 2), []string{"SPY", "QQQ"}, emptyPortfolio("SPY", "QQQ"))
		require.NoError(t, err)
		require.InDelta(t, 0.625, weights["SPY"], 1e-9)
		require.InDelta(t, 0.375, weights["QQQ"], 1e-9)

		sum := 0.0
		for _, w := range weights {
			sum += w
		}
		require.InDelta(t, 1.0, sum, 1e-9)
	})

	t.Run("no weight for symbols outside the set", func(t *testing.T) {
		p := DCAPolicy{Weights: map[string]float64{"SPY": 1, "QQQ": 1}}
		weights, err := p.GenerateAllocations(date(2023, 6, 2), []string{"SPY"}, emptyPortfolio("SPY"))
		require.NoError(t, err)
		require.Len(t, weights, 1)
		require.InDelta(t, 1.0, weights["SPY"], 1e-9)
	})

	t.Run("empty instrument set fails", func(t *testing.T) {
		p := DCAPolicy{}
		_, err := p.GenerateAllocations(date(2023, 6, 2), []string{}, emptyPortfolio())
		require.ErrorIs(t, err, ErrEmptyInstrumentSet)
	})

	t.Run("zero coverage yields the hold-cash sentinel", func(t *testing.T) {
		p := DCAPolicy{Weights: map[string]float64{"SPY": 1}}
		_, err := p.GenerateAllocations(date(2023, 6, 2), []string{"QQQ"}, emptyPortfolio("QQQ"))
		require.ErrorIs(t, err, ErrNoCoveredInstruments)
	})
}

func constantIndex(symbol string, value float64, dates ...time.Time) *feargreed.Index {
	points := make([]feargreed.Point, len(dates))
	for i, d := range dates {
		points[i] = feargreed.Point{Date: d, Value: value}
	}
	return &feargreed.Index{Symbol: symbol, Points: points}
}

func TestFearGreedPolicy(t *testing.T) {
	d := date(2023, 6, 2)

	t.Run("extreme fear tilts weight above baseline", func(t *testing.T) {
		p := NewFearGreedPolicy(nil, map[string]*feargreed.Index{
			"SPY": constantIndex("SPY", 0, d),
			"QQQ": constantIndex("QQQ", 50, d),
		})

		weights, err := p.GenerateAllocations(d, []string{"SPY", "QQQ"}, emptyPortfolio("SPY", "QQQ"))
		require.NoError(t, err)

		// baseline 0.5, adjustment +1.0*0.2 -> 0.6 pre-normalization
		require.Greater(t, weights["SPY"], 0.5)
		require.InDelta(t, 0.6/1.1, weights["SPY"], 1e-9)
		require.NoError(t, ValidateWeights(weights))
	})

	t.Run("greed tilts weight below baseline", func(t *testing.T) {
		p := NewFearGreedPolicy(nil, map[string]*feargreed.Index{
			"SPY": constantIndex("SPY", 100, d),
			"QQQ": constantIndex("QQQ", 50, d),
		})

		weights, err := p.GenerateAllocations(d, []string{"SPY", "QQQ"}, emptyPortfolio("SPY", "QQQ"))
		require.NoError(t, err)
		require.Less(t, weights["SPY"], 0.5)
		require.NoError(t, ValidateWeights(weights))
	})

	t.Run("missing sentiment falls back to baseline weight", func(t *testing.T) {
		p := NewFearGreedPolicy(nil, map[string]*feargreed.Index{})

		weights, err := p.GenerateAllocations(d, []string{"SPY", "QQQ"}, emptyPortfolio("SPY", "QQQ"))
		require.NoError(t, err)
		require.InDelta(t, 0.5, weights["SPY"], 1e-9)
		require.InDelta(t, 0.5, weights["QQQ"], 1e-9)
	})

	t.Run("nearest date lookup is used when the exact date is missing", func(t *testing.T) {
		p := NewFearGreedPolicy(nil, map[string]*feargreed.Index{
			"SPY": constantIndex("SPY", 0, date(2023, 6, 1)),
			"QQQ": constantIndex("QQQ", 50, date(2023, 6, 1)),
		})

		weights, err := p.GenerateAllocations(d, []string{"SPY", "QQQ"}, emptyPortfolio("SPY", "QQQ"))
		require.NoError(t, err)
		require.Greater(t, weights["SPY"], 0.5)
	})

	t.Run("neutral sentiment collapses to baseline", func(t *testing.T) {
		p := NewFearGreedPolicy(map[string]float64{"SPY": 3, "QQQ": 1}, map[string]*feargreed.Index{
			"SPY": constantIndex("SPY", 50, d),
			"QQQ": constantIndex("QQQ", 50, d),
		})

		weights, err := p.GenerateAllocations(d, []string{"SPY", "QQQ"}, emptyPortfolio("SPY", "QQQ"))
		require.NoError(t, err)
		require.InDelta(t, 0.75, weights["SPY"], 1e-9)
		require.InDelta(t, 0.25, weights["QQQ"], 1e-9)
	})
}

func TestValidateWeights(t *testing.T) {
	require.NoError(t, ValidateWeights(map[string]float64{"A": 0.5, "B": 0.5}))
	require.Error(t, ValidateWeights(map[string]float64{"A": 0.5, "B": 0.4}))
}
