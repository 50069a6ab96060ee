package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const TransactionKindBuy = "buy"

// Transaction is one executed trade. The log is append-only; records are
// never mutated after the fact.
type Transaction struct {
	ID     uuid.UUID
	Date   time.Time
	Symbol string
	Price  decimal.Decimal
	Shares decimal.Decimal
	Amount decimal.Decimal
	Kind   string
}

// PortfolioSnapshot is the end-of-step valuation. Investment holds the cash
// injected that step; FearGreed is only set when the injection was modulated
// by the sentiment index.
type PortfolioSnapshot struct {
	Date        time.Time `json:"date"`
	Cash        float64   `json:"cash"`
	AssetsValue float64   `json:"assetsValue"`
	TotalValue  float64   `json:"totalValue"`
	Investment  float64   `json:"investment"`
	FearGreed   *float64  `json:"fearGreedIndex,omitempty"`
}
