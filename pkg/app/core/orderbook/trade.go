package orderbook

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is one execution emitted by Match. The book keeps no history of
// trades; settlement belongs to the caller.
type Trade struct {
	ID          uuid.UUID       `json:"id"`
	Good        string          `json:"good"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	Buyer       string          `json:"buyer"`
	Seller      string          `json:"seller"`
	BuyOrderID  uint64          `json:"buyOrderId"`
	SellOrderID uint64          `json:"sellOrderId"`
	Timestamp   time.Time       `json:"ts"`
}

// Notional is price × quantity, the cash moved from buyer to seller.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// PriceLevel aggregates resting quantity at one price.
type PriceLevel struct {
	Price  decimal.Decimal
	Qty    int64 // total qty at this price level
	Orders int
}
