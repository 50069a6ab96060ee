package feargreed

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"dcabacktest/internal/domain"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// MinSamples is one trading year - the rolling windows are meaningless on
// anything shorter.
const MinSamples = 252

const (
	rsiPeriod         = 14
	smoothingSpan     = 10
	DefaultNoiseSigma = 5.0
)

var ErrInsufficientHistory = errors.New("insufficient history: need at least one trading year of samples")

type Point struct {
	Date  time.Time
	Value float64
}

// Index is the computed 0-100 fear/greed series for one instrument,
// read-only after computation.
type Index struct {
	Symbol string
	Points []Point
}

// At returns the value for the exact date.
func (idx Index) At(date time.Time) (float64, bool) {
	for _, p := range idx.Points {
		if p.Date.Format("2006-01-02") == date.Format("2006-01-02") {
			return p.Value, true
		}
	}
	return 0, false
}

// Nearest returns the value for the closest available date, never
// interpolated. Ties in distance resolve to the earlier date.
func (idx Index) Nearest(date time.Time) (float64, bool) {
	if len(idx.Points) == 0 {
		return 0, false
	}
	best := idx.Points[0]
	bestDist := absDuration(date.Sub(best.Date))
	for _, p := range idx.Points[1:] {
		dist := absDuration(date.Sub(p.Date))
		if dist < bestDist {
			best = p
			bestDist = dist
		}
	}
	return best.Value, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Calculator turns a price series into a composite fear/greed index using
// CNN's seven-factor methodology. The final perturbation step is seeded so
// backtests stay reproducible; set NoiseSigma to 0 to disable it.
type Calculator struct {
	NoiseSigma float64
	Seed       int64
}

func NewCalculator(seed int64) Calculator {
	return Calculator{
		NoiseSigma: DefaultNoiseSigma,
		Seed:       seed,
	}
}

// Compute produces one index value per input date. Rolling windows shrink to
// the available prefix during warm-up instead of rejecting early dates; any
// date whose arithmetic goes non-finite comes out as neutral 50.
func (c Calculator) Compute(series domain.PriceSeries) (*Index, error) {
	if series.Len() < MinSamples {
		return nil, fmt.Errorf("%w: %s has %d samples", ErrInsufficientHistory, series.Symbol, series.Len())
	}

	n := series.Len()
	closes := series.Closes()
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range series.Bars {
		highs[i], lows[i] = b.Close, b.Close
		if b.High != nil {
			highs[i] = *b.High
		}
		if b.Low != nil {
			lows[i] = *b.Low
		}
		if b.Volume != nil {
			volumes[i] = *b.Volume
		}
	}

	momentum := momentumFactor(closes)
	strength := strengthFactor(closes, highs, lows)
	breadth := breadthFactor(closes, volumes)
	options := optionsFactor(closes)
	junkBond := junkBondFactor(closes)
	// market volatility reuses the junk-bond score, so it carries double
	// weight in the blend
	safeHaven := safeHavenFactor(closes)

	composite := make([]float64, n)
	for i := 0; i < n; i++ {
		composite[i] = (momentum[i] + strength[i] + breadth[i] + options[i] +
			junkBond[i] + junkBond[i] + safeHaven[i]) / 7.0
	}

	smoothed := ewmSpan(composite, smoothingSpan)

	rng := c.rng(series.Symbol)
	points := make([]Point, n)
	for i, date := range series.Dates() {
		v := clip((smoothed[i]-40)*1.5+50, 0, 100)
		if !isFinite(v) {
			v = 50
		}
		if c.NoiseSigma > 0 {
			v = clip(v+rng.NormFloat64()*c.NoiseSigma, 0, 100)
		}
		points[i] = Point{Date: date, Value: v}
	}

	return &Index{Symbol: series.Symbol, Points: points}, nil
}

// ComputeAll runs Compute per symbol concurrently; the per-instrument
// computations share no state. Instruments that fail (usually short history)
// are returned in the error map and omitted from the result.
func (c Calculator) ComputeAll(seriesBySymbol map[string]domain.PriceSeries) (map[string]*Index, map[string]error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		indexes = map[string]*Index{}
		errs    = map[string]error{}
	)

	for symbol, series := range seriesBySymbol {
		wg.Add(1)
		go func(symbol string, series domain.PriceSeries) {
			defer wg.Done()
			idx, err := c.Compute(series)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[symbol] = err
				return
			}
			indexes[symbol] = idx
		}(symbol, series)
	}
	wg.Wait()

	return indexes, errs
}

// rng derives a per-symbol source so ComputeAll stays deterministic no
// matter which goroutine finishes first.
func (c Calculator) rng(symbol string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return rand.New(rand.NewSource(c.Seed ^ int64(h.Sum64())))
}

// momentumFactor scores the close against its 125-sample trailing mean.
func momentumFactor(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		window := closes[max(0, i-124) : i+1]
		ma := stat.Mean(window, nil)
		pct := (closes[i] - ma) / ma * 100
		out[i] = clip((pct+20)*2.5, 0, 100)
	}
	return out
}

// strengthFactor marks closes near the 52-week high vs near the 52-week low.
func strengthFactor(closes, highs, lows []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		lo := max(0, i-(MinSamples-1))
		high52 := maxOf(highs[lo : i+1])
		low52 := minOf(lows[lo : i+1])

		score := 0.0
		if closes[i] > high52*0.95 {
			score += 100
		}
		if closes[i] < low52*1.05 {
			score -= 100
		}
		out[i] = clip((score+40)*1.25, 0, 100)
	}
	return out
}

// breadthFactor is a McClellan-style oscillator on volume-weighted advances
// and declines.
func breadthFactor(closes, volumes []float64) []float64 {
	n := len(closes)
	advances := make([]float64, n)
	declines := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			advances[i] = volumes[i]
		} else if change < 0 {
			declines[i] = volumes[i]
		}
	}

	ema19 := ewmSpan(advances, 19)
	ema39 := ewmSpan(declines, 39)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		breadth := (ema19[i] - ema39[i]) / (ema39[i] + 1e-6) * 100
		out[i] = clip((breadth+30)*1.5, 0, 100)
	}
	return out
}

// optionsFactor proxies the put/call ratio with the 5-sample price change.
func optionsFactor(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i < 5 {
			out[i] = math.NaN()
			continue
		}
		pct := (closes[i] - closes[i-5]) / closes[i-5] * 100
		out[i] = clip((pct+10)*3, 0, 100)
	}
	return out
}

// junkBondFactor proxies credit appetite with short-window annualized
// volatility; higher volatility scores lower.
func junkBondFactor(closes []float64) []float64 {
	n := len(closes)
	returns := make([]float64, n)
	returns[0] = math.NaN()
	for i := 1; i < n; i++ {
		returns[i] = closes[i]/closes[i-1] - 1
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		window := validOnly(returns[max(0, i-9) : i+1])
		if len(window) < 2 {
			out[i] = math.NaN()
			continue
		}
		volatility := stat.StdDev(window, nil) * math.Sqrt(252) * 100
		out[i] = clip(100-2*volatility, 0, 100)
	}
	return out
}

// safeHavenFactor uses RSI-14 directly as the factor score.
func safeHavenFactor(closes []float64) []float64 {
	rsi := talib.Rsi(closes, rsiPeriod)
	out := make([]float64, len(closes))
	for i := range out {
		if i < rsiPeriod {
			out[i] = math.NaN()
			continue
		}
		out[i] = rsi[i]
	}
	return out
}

// ewmSpan is pandas-style exponential smoothing (adjust=False,
// min_periods=1): alpha = 2/(span+1), seeded from the first finite sample,
// carrying the running mean across non-finite gaps.
func ewmSpan(values []float64, span float64) []float64 {
	alpha := 2 / (span + 1)
	out := make([]float64, len(values))
	state := math.NaN()
	for i, v := range values {
		if !isFinite(v) {
			out[i] = state
			continue
		}
		if !isFinite(state) {
			state = v
		} else {
			state = alpha*v + (1-alpha)*state
		}
		out[i] = state
	}
	return out
}

func validOnly(values []float64) []float64 {
	out := []float64{}
	for _, v := range values {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
