package calculator

import (
	"errors"
	"fmt"
	"math"

	"dcabacktest/internal/domain"

	"github.com/montanaflynn/stats"
)

var ErrNoHistory = errors.New("no history to analyze")

type PerformanceMetrics struct {
	TotalInvested       float64 `json:"totalInvested"`
	FinalValue          float64 `json:"finalValue"`
	TotalReturnPct      float64 `json:"totalReturnPct"`
	AnnualizedReturnPct float64 `json:"annualizedReturnPct"`
	SharpeRatio         float64 `json:"sharpeRatio"`
	MaxDrawdownPct      float64 `json:"maxDrawdownPct"`
}

type MetricsInput struct {
	History          []domain.PortfolioSnapshot
	WeeklyInvestment float64
	InitialCapital   float64

	// SumActualInvestments switches total-invested accounting from the
	// fixed-cadence formula to the sum of per-step injections, which is how
	// the sentiment-modulated variant counts its contributions.
	SumActualInvestments bool
}

// CalculateMetrics recomputes the summary statistics from the full history;
// there is no incremental variant. Snapshots are assumed to be in step order.
func CalculateMetrics(in MetricsInput) (*PerformanceMetrics, error) {
	if len(in.History) == 0 {
		return nil, ErrNoHistory
	}

	// every snapshot corresponds to one cash injection
	totalInvested := in.InitialCapital + in.WeeklyInvestment*float64(len(in.History))
	if in.SumActualInvestments {
		totalInvested = in.InitialCapital
		for _, snapshot := range in.History {
			totalInvested += snapshot.Investment
		}
	}
	if totalInvested <= 0 {
		return nil, fmt.Errorf("total invested must be positive, got %f", totalInvested)
	}

	finalValue := in.History[len(in.History)-1].TotalValue
	totalReturn := (finalValue - totalInvested) / totalInvested * 100

	days := in.History[len(in.History)-1].Date.Sub(in.History[0].Date).Hours() / 24
	years := days / 365.25
	annualizedReturn := 0.0
	if years > 0 {
		annualizedReturn = (math.Pow(1+totalReturn/100, 1/years) - 1) * 100
	}

	returns := stepReturns(in.History)

	return &PerformanceMetrics{
		TotalInvested:       totalInvested,
		FinalValue:          finalValue,
		TotalReturnPct:      totalReturn,
		AnnualizedReturnPct: annualizedReturn,
		SharpeRatio:         sharpeRatio(returns),
		MaxDrawdownPct:      maxDrawdown(returns),
	}, nil
}

// stepReturns is the period-over-period percent change of total value. The
// first snapshot has no defined return.
func stepReturns(history []domain.PortfolioSnapshot) []float64 {
	returns := []float64{}
	for i := 1; i < len(history); i++ {
		prev := history[i-1].TotalValue
		if prev == 0 {
			continue
		}
		returns = append(returns, history[i].TotalValue/prev-1)
	}
	return returns
}

// sharpeRatio annualizes weekly step returns with sqrt(52). Zero when the
// deviation is zero or undefined.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil || stdev == 0 {
		return 0
	}

	return math.Sqrt(52) * mean / stdev
}

// maxDrawdown is the deepest peak-to-trough decline of the cumulative
// return curve, as a negative percentage.
func maxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	cumulative := 1.0
	runningMax := 1.0
	drawdown := 0.0
	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > runningMax {
			runningMax = cumulative
		}
		dd := (cumulative/runningMax - 1) * 100
		if dd < drawdown {
			drawdown = dd
		}
	}
	return drawdown
}
