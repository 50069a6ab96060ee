package domain

import (
	"github.com/shopspring/decimal"
)

// Portfolio is the mutable ledger owned by one backtest run: cash plus
// fractional share holdings. It must not be shared across concurrent runs
// without a DeepCopy.
type Portfolio struct {
	Cash     decimal.Decimal
	Holdings map[string]decimal.Decimal
}

func NewPortfolio(initialCapital decimal.Decimal, symbols []string) *Portfolio {
	holdings := map[string]decimal.Decimal{}
	for _, symbol := range symbols {
		holdings[symbol] = decimal.Zero
	}
	return &Portfolio{
		Cash:     initialCapital,
		Holdings: holdings,
	}
}

func (p Portfolio) DeepCopy() *Portfolio {
	newPortfolio := &Portfolio{
		Cash:     p.Cash,
		Holdings: map[string]decimal.Decimal{},
	}
	for symbol, shares := range p.Holdings {
		newPortfolio.Holdings[symbol] = shares
	}
	return newPortfolio
}

// AssetsValue sums holdings at the given prices. Symbols missing from the
// price map are excluded from the valuation, not treated as errors.
func (p Portfolio) AssetsValue(priceMap map[string]decimal.Decimal) decimal.Decimal {
	value := decimal.Zero
	for symbol, shares := range p.Holdings {
		price, ok := priceMap[symbol]
		if !ok {
			continue
		}
		value = value.Add(shares.Mul(price))
	}
	return value
}
