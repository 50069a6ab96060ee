package app

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"dcabacktest/internal"
	"dcabacktest/internal/domain"
	"dcabacktest/internal/feargreed"
	"dcabacktest/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceProvider is the fully-materialized price data the loop runs against.
// No I/O happens behind it during a run.
type PriceProvider interface {
	Get(symbol string, date time.Time) (float64, bool)
	TradingDay(date time.Time) bool
}

type BacktestHandler struct {
	Prices PriceProvider
	Log    *zap.SugaredLogger
}

type BacktestInput struct {
	Symbols          []string
	Start            time.Time
	End              time.Time
	WeeklyInvestment float64
	InitialCapital   float64
	Policy           internal.AllocationPolicy

	// ModulateInvestment scales the weekly injection by the market
	// indicator's fear/greed reading: more cash in during fear, less during
	// greed. ModulationFactor bounds the scaling (default 0.5 gives the
	// 0.5x-1.5x range).
	ModulateInvestment bool
	ModulationFactor   float64
	IndicatorSymbol    string
	Indexes            map[string]*feargreed.Index
}

type BacktestResult struct {
	History        []domain.PortfolioSnapshot
	Transactions   []domain.Transaction
	FinalPortfolio domain.Portfolio
}

const minTradeAmount = 1 // currency units; avoids micro-trades

func (in BacktestInput) validate() error {
	if in.Policy == nil {
		return fmt.Errorf("no allocation policy set")
	}
	if len(in.Symbols) == 0 {
		return fmt.Errorf("cannot backtest with an empty instrument list")
	}
	if in.WeeklyInvestment <= 0 {
		return fmt.Errorf("weekly investment must be positive, got %f", in.WeeklyInvestment)
	}
	if in.InitialCapital < 0 {
		return fmt.Errorf("initial capital cannot be negative, got %f", in.InitialCapital)
	}
	if in.End.Before(in.Start) {
		return fmt.Errorf("end date cannot be before start date")
	}
	if in.ModulateInvestment && len(in.Indexes) == 0 {
		return fmt.Errorf("investment modulation requires a fear/greed index")
	}
	return nil
}

// Run drives the weekly loop: credit cash, ask the policy for weights over
// the instruments priced that day, buy fractional shares, revalue, snapshot.
// The portfolio is created fresh per run; data gaps are recovered locally
// and never abort the run.
func (h BacktestHandler) Run(in BacktestInput) (*BacktestResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.ModulationFactor == 0 {
		in.ModulationFactor = 0.5
	}
	if in.IndicatorSymbol == "" && len(in.Symbols) > 0 {
		in.IndicatorSymbol = in.Symbols[0]
	}

	portfolio := domain.NewPortfolio(decimal.NewFromFloat(in.InitialCapital), in.Symbols)
	result := &BacktestResult{
		History:      []domain.PortfolioSnapshot{},
		Transactions: []domain.Transaction{},
	}

	for _, friday := range util.Fridays(in.Start, in.End) {
		date, ok := h.resolveTradingDay(friday, in.Start)
		if !ok {
			h.Log.Warnw("no trading day available, skipping week", "target", friday.Format(time.DateOnly))
			continue
		}

		priced := h.pricedSymbols(in.Symbols, date)
		if len(priced) == 0 {
			h.Log.Warnw("no instruments priced, skipping week", "date", date.Format(time.DateOnly))
			continue
		}

		investment := in.WeeklyInvestment
		var fearGreed *float64
		if in.ModulateInvestment {
			fg := 50.0
			if idx, ok := in.Indexes[in.IndicatorSymbol]; ok {
				if v, ok := idx.At(date); ok {
					fg = v
				}
			}
			investment = in.WeeklyInvestment * (1 + (50-fg)/50*in.ModulationFactor)
			fearGreed = &fg
		}

		portfolio.Cash = portfolio.Cash.Add(decimal.NewFromFloat(investment))

		weights, err := in.Policy.GenerateAllocations(date, priced, *portfolio)
		switch {
		case errors.Is(err, internal.ErrNoCoveredInstruments):
			// transient data gap: hold the cash this week and keep going
			h.Log.Warnw("no allocations possible, holding cash", "date", date.Format(time.DateOnly))
		case err != nil:
			return nil, fmt.Errorf("failed to generate allocations on %v: %w", date, err)
		default:
			if err := internal.ValidateWeights(weights); err != nil {
				return nil, fmt.Errorf("policy returned invalid weights on %v: %w", date, err)
			}
			trades := h.executeTrades(portfolio, weights, date)
			result.Transactions = append(result.Transactions, trades...)
		}

		priceMap := map[string]decimal.Decimal{}
		for _, symbol := range priced {
			price, _ := h.Prices.Get(symbol, date)
			priceMap[symbol] = decimal.NewFromFloat(price)
		}
		assetsValue := portfolio.AssetsValue(priceMap)

		result.History = append(result.History, domain.PortfolioSnapshot{
			Date:        date,
			Cash:        portfolio.Cash.InexactFloat64(),
			AssetsValue: assetsValue.InexactFloat64(),
			TotalValue:  portfolio.Cash.Add(assetsValue).InexactFloat64(),
			Investment:  investment,
			FearGreed:   fearGreed,
		})
	}

	if len(result.History) == 0 {
		h.Log.Warnw("backtest produced no history",
			"start", in.Start.Format(time.DateOnly),
			"end", in.End.Format(time.DateOnly),
		)
	}

	result.FinalPortfolio = *portfolio.DeepCopy()
	return result, nil
}

// executeTrades spends weight * step-start cash per instrument. Spends under
// the minimum trade amount are dropped without a transaction.
func (h BacktestHandler) executeTrades(
	portfolio *domain.Portfolio,
	weights map[string]float64,
	date time.Time,
) []domain.Transaction {
	availableCash := portfolio.Cash
	minTrade := decimal.NewFromInt(minTradeAmount)

	symbols := make([]string, 0, len(weights))
	for symbol := range weights {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	trades := []domain.Transaction{}
	for _, symbol := range symbols {
		weight := weights[symbol]
		if weight <= 0 {
			continue
		}

		price, ok := h.Prices.Get(symbol, date)
		if !ok {
			// policy gave weight to something unpriced; ignore it
			h.Log.Warnw("allocation for unpriced instrument ignored", "symbol", symbol, "date", date.Format(time.DateOnly))
			continue
		}

		spend := availableCash.Mul(decimal.NewFromFloat(weight))
		if spend.LessThan(minTrade) {
			continue
		}

		priceDec := decimal.NewFromFloat(price)
		shares := spend.Div(priceDec)

		portfolio.Cash = portfolio.Cash.Sub(spend)
		portfolio.Holdings[symbol] = portfolio.Holdings[symbol].Add(shares)

		trades = append(trades, domain.Transaction{
			ID:     uuid.New(),
			Date:   date,
			Symbol: symbol,
			Price:  priceDec,
			Shares: shares,
			Amount: spend,
			Kind:   domain.TransactionKindBuy,
		})
	}

	return trades
}

// resolveTradingDay walks backward day-by-day from the target Friday until
// it hits a day with price data, bounded by the backtest start.
func (h BacktestHandler) resolveTradingDay(target, start time.Time) (time.Time, bool) {
	date := target
	for !h.Prices.TradingDay(date) {
		if util.DateLte(date, start) {
			return time.Time{}, false
		}
		date = date.AddDate(0, 0, -1)
	}
	return date, true
}

func (h BacktestHandler) pricedSymbols(symbols []string, date time.Time) []string {
	priced := []string{}
	for _, symbol := range symbols {
		if _, ok := h.Prices.Get(symbol, date); ok {
			priced = append(priced, symbol)
		}
	}
	return priced
}
