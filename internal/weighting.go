package internal

import (
	"errors"
	"fmt"
	"math"
	"time"

	"dcabacktest/internal/domain"
	"dcabacktest/internal/feargreed"
)

var (
	ErrEmptyInstrumentSet = errors.New("cannot allocate over an empty instrument set")

	// ErrNoCoveredInstruments means the configured weights assign nothing to
	// any tradable instrument this step. Callers treat it as "hold cash",
	// not as a failed run.
	ErrNoCoveredInstruments = errors.New("configured weights cover none of the tradable instruments")
)

const DefaultDampening = 0.2

// AllocationPolicy decides how the step's available cash is split across the
// instruments that actually have a price that day. Implementations must
// return weights that sum to 1 over exactly the symbols passed in. The
// portfolio is passed for policies that want to react to current holdings;
// the built-in policies ignore it.
type AllocationPolicy interface {
	GenerateAllocations(date time.Time, symbols []string, portfolio domain.Portfolio) (map[string]float64, error)
}

// DCAPolicy assigns equal weights, or normalizes a configured fixed weight
// map over whichever of its symbols are tradable that day.
type DCAPolicy struct {
	// Weights is optional; nil means equal weighting.
	Weights map[string]float64
}

func (p DCAPolicy) GenerateAllocations(date time.Time, symbols []string, portfolio domain.Portfolio) (map[string]float64, error) {
	if len(symbols) == 0 {
		return nil, ErrEmptyInstrumentSet
	}

	if p.Weights == nil {
		weight := 1.0 / float64(len(symbols))
		allocations := map[string]float64{}
		for _, symbol := range symbols {
			allocations[symbol] = weight
		}
		return allocations, nil
	}

	totalWeight := 0.0
	for _, symbol := range symbols {
		totalWeight += p.Weights[symbol]
	}
	if totalWeight == 0 {
		return nil, fmt.Errorf("%w on %s", ErrNoCoveredInstruments, date.Format("2006-01-02"))
	}

	allocations := map[string]float64{}
	for _, symbol := range symbols {
		allocations[symbol] = p.Weights[symbol] / totalWeight
	}
	return allocations, nil
}

// FearGreedPolicy starts from DCAPolicy's baseline and tilts each weight by
// the instrument's sentiment reading: high fear increases the weight, high
// greed decreases it, by at most Dampening. Instruments without sentiment
// data keep their baseline weight.
type FearGreedPolicy struct {
	Baseline  DCAPolicy
	Indexes   map[string]*feargreed.Index
	Dampening float64
}

func NewFearGreedPolicy(weights map[string]float64, indexes map[string]*feargreed.Index) FearGreedPolicy {
	return FearGreedPolicy{
		Baseline:  DCAPolicy{Weights: weights},
		Indexes:   indexes,
		Dampening: DefaultDampening,
	}
}

func (p FearGreedPolicy) GenerateAllocations(date time.Time, symbols []string, portfolio domain.Portfolio) (map[string]float64, error) {
	baseline, err := p.Baseline.GenerateAllocations(date, symbols, portfolio)
	if err != nil {
		return nil, err
	}

	adjusted := map[string]float64{}
	total := 0.0
	for _, symbol := range symbols {
		weight := baseline[symbol]
		if idx, ok := p.Indexes[symbol]; ok {
			if value, ok := idx.Nearest(date); ok {
				adjustment := (50 - value) / 50 * p.Dampening
				weight = baseline[symbol] * (1 + adjustment)
			}
		}
		adjusted[symbol] = weight
		total += weight
	}

	if total == 0 {
		return nil, fmt.Errorf("adjusted weights collapsed to zero on %s", date.Format("2006-01-02"))
	}
	for symbol := range adjusted {
		adjusted[symbol] /= total
	}
	return adjusted, nil
}

// ValidateWeights checks the sum-to-1 contract every policy must satisfy.
func ValidateWeights(weights map[string]float64) error {
	sum := 0.0
	for symbol, w := range weights {
		if math.IsNaN(w) {
			return fmt.Errorf("invalid weight NaN for %s", symbol)
		}
		sum += w
	}
	if math.Abs(sum-1) > 0.0001 {
		return fmt.Errorf("weights should sum to 1, got %f", sum)
	}
	return nil
}
