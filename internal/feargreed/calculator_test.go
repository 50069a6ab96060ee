package feargreed

import (
	"math"
	"testing"
	"time"

	"dcabacktest/internal/domain"

	"github.com/stretchr/testify/require"
)

// syntheticSeries builds n weekdays of gently trending, oscillating prices
// with volume, enough structure to move every factor off its clip bounds.
func syntheticSeries(symbol string, n int) domain.PriceSeries {
	bars := []domain.Bar{}
	d := time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)
	i := 0
	for len(bars) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			close := 100 + 10*math.Sin(float64(i)/10) + float64(i)*0.05
			high := close * 1.01
			low := close * 0.99
			volume := 1e6 + 1e5*math.Cos(float64(i)/7)
			bars = append(bars, domain.Bar{
				Date:   d,
				Close:  close,
				High:   &high,
				Low:    &low,
				Volume: &volume,
			})
			i++
		}
		d = d.AddDate(0, 0, 1)
	}
	return domain.NewPriceSeries(symbol, bars)
}

func TestCompute_InsufficientHistory(t *testing.T) {
	calc := NewCalculator(1)
	_, err := calc.Compute(syntheticSeries("SPY", 251))
	require.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestCompute_OneValuePerDateWithinBounds(t *testing.T) {
	series := syntheticSeries("SPY", 300)
	calc := NewCalculator(1)

	idx, err := calc.Compute(series)
	require.NoError(t, err)
	require.Len(t, idx.Points, series.Len())

	for i, p := range idx.Points {
		require.True(t, p.Date.Equal(series.Bars[i].Date))
		require.False(t, math.IsNaN(p.Value))
		require.GreaterOrEqual(t, p.Value, 0.0)
		require.LessOrEqual(t, p.Value, 100.0)
	}
}

func TestCompute_SeededRunsAreIdentical(t *testing.T) {
	series := syntheticSeries("SPY", 300)

	first, err := NewCalculator(7).Compute(series)
	require.NoError(t, err)
	second, err := NewCalculator(7).Compute(series)
	require.NoError(t, err)
	require.Equal(t, first.Points, second.Points)

	other, err := NewCalculator(8).Compute(series)
	require.NoError(t, err)
	require.NotEqual(t, first.Points, other.Points)
}

func TestCompute_NoiseOptOut(t *testing.T) {
	series := syntheticSeries("SPY", 300)

	calc := Calculator{NoiseSigma: 0, Seed: 1}
	first, err := calc.Compute(series)
	require.NoError(t, err)

	// with the perturbation disabled the seed is irrelevant
	calc.Seed = 99
	second, err := calc.Compute(series)
	require.NoError(t, err)
	require.Equal(t, first.Points, second.Points)
}

func TestCompute_MissingOptionalFields(t *testing.T) {
	// close-only bars: high/low fall back to the close, volume to zero
	base := syntheticSeries("SPY", 300)
	bars := make([]domain.Bar, base.Len())
	for i, b := range base.Bars {
		bars[i] = domain.Bar{Date: b.Date, Close: b.Close}
	}

	idx, err := Calculator{NoiseSigma: 0}.Compute(domain.NewPriceSeries("SPY", bars))
	require.NoError(t, err)
	for _, p := range idx.Points {
		require.False(t, math.IsNaN(p.Value))
		require.GreaterOrEqual(t, p.Value, 0.0)
		require.LessOrEqual(t, p.Value, 100.0)
	}
}

func TestComputeAll(t *testing.T) {
	seriesBySymbol := map[string]domain.PriceSeries{
		"SPY":   syntheticSeries("SPY", 300),
		"QQQ":   syntheticSeries("QQQ", 280),
		"SHORT": syntheticSeries("SHORT", 100),
	}
	calc := NewCalculator(3)

	indexes, errs := calc.ComputeAll(seriesBySymbol)
	require.Len(t, indexes, 2)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs["SHORT"], ErrInsufficientHistory)

	// concurrent scheduling must not leak into the values
	again, _ := calc.ComputeAll(seriesBySymbol)
	require.Equal(t, indexes["SPY"].Points, again["SPY"].Points)
	require.Equal(t, indexes["QQQ"].Points, again["QQQ"].Points)

	// and each symbol matches its standalone computation
	solo, err := calc.Compute(seriesBySymbol["SPY"])
	require.NoError(t, err)
	require.Equal(t, solo.Points, indexes["SPY"].Points)
}

func TestIndexLookups(t *testing.T) {
	d := func(day int) time.Time {
		return time.Date(2023, 6, day, 0, 0, 0, 0, time.UTC)
	}
	idx := Index{Symbol: "SPY", Points: []Point{
		{Date: d(1), Value: 10},
		{Date: d(5), Value: 20},
		{Date: d(9), Value: 30},
	}}

	t.Run("exact", func(t *testing.T) {
		v, ok := idx.At(d(5))
		require.True(t, ok)
		require.Equal(t, 20.0, v)

		_, ok = idx.At(d(6))
		require.False(t, ok)
	})

	t.Run("nearest", func(t *testing.T) {
		v, ok := idx.Nearest(d(6))
		require.True(t, ok)
		require.Equal(t, 20.0, v)

		// equidistant dates resolve to the earlier one
		v, ok = idx.Nearest(d(7))
		require.True(t, ok)
		require.Equal(t, 20.0, v)
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := Index{}.Nearest(d(1))
		require.False(t, ok)
	})
}

func TestLabel(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{100, LabelExtremeGreed},
		{75, LabelExtremeGreed},
		{74.9, LabelGreed},
		{55, LabelGreed},
		{50, LabelNeutral},
		{45, LabelNeutral},
		{44.9, LabelFear},
		{25, LabelFear},
		{24.9, LabelExtremeFear},
		{0, LabelExtremeFear},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, Label(tc.value), "value %f", tc.value)
	}
}
