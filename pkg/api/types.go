package api

import "github.com/shopspring/decimal"

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// BookSnapshot represents the current state of one good's book
type BookSnapshot struct {
	Good      string           `json:"good"`
	Bids      []PriceLevel     `json:"bids"` // Sorted high to low
	Asks      []PriceLevel     `json:"asks"` // Sorted low to high
	BestBid   *OrderInfo       `json:"bestBid,omitempty"`
	BestAsk   *OrderInfo       `json:"bestAsk,omitempty"`
	Spread    *decimal.Decimal `json:"spread,omitempty"` // Absent when a side is empty
	BidDepth  int64            `json:"bidDepth"`
	AskDepth  int64            `json:"askDepth"`
	Timestamp int64            `json:"timestamp"` // Unix milliseconds
}

// PriceLevel represents aggregated resting quantity at one price
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Size   int64           `json:"size"`
	Orders int             `json:"orders"`
}

// OrderInfo represents a resting, filled or cancelled order
type OrderInfo struct {
	ID        uint64          `json:"id"`
	Good      string          `json:"good"`
	Side      string          `json:"side"` // "bid" or "ask"
	Price     decimal.Decimal `json:"price"`
	Remaining int64           `json:"remaining"`
	Owner     string          `json:"owner"`
	Status    string          `json:"status"`    // "open", "filled", "cancelled"
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

// TradeInfo represents an executed trade
type TradeInfo struct {
	ID          string          `json:"id"`
	Good        string          `json:"good"`
	Price       decimal.Decimal `json:"price"`
	Size        int64           `json:"size"`
	Buyer       string          `json:"buyer"`
	Seller      string          `json:"seller"`
	BuyOrderID  uint64          `json:"buyOrderId"`
	SellOrderID uint64          `json:"sellOrderId"`
	Timestamp   int64           `json:"timestamp"` // Unix milliseconds
}

// AccountInfo represents an agent's settled cash and inventory
type AccountInfo struct {
	Owner      string           `json:"owner"`
	Cash       decimal.Decimal  `json:"cash"`
	Inventory  map[string]int64 `json:"inventory"`
	Bought     int64            `json:"bought"`
	Sold       int64            `json:"sold"`
	Volume     decimal.Decimal  `json:"volume"`
	TradeCount int64            `json:"tradeCount"`
}

// MatchResponse summarises one matching cycle triggered over REST
type MatchResponse struct {
	Trades map[string][]TradeInfo `json:"trades"` // Goods without trades are omitted
	Count  int                    `json:"count"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["book:Arroz", "trades:Arroz"]
}

// BookUpdate is broadcast after every cycle that traded the good
type BookUpdate struct {
	Type string `json:"type"` // "book"
	BookSnapshot
}

// TradeUpdate is broadcast when a trade executes
type TradeUpdate struct {
	Type string `json:"type"` // "trade"
	TradeInfo
}

// ==============================
// REST Request Types
// ==============================

// SubmitOrderRequest is the payload for POST /api/v1/orders
type SubmitOrderRequest struct {
	Good     string          `json:"good"`
	Side     string          `json:"side"` // "bid"/"buy" or "ask"/"sell"
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Owner    string          `json:"owner"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	Good    string `json:"good"`
	OrderID uint64 `json:"orderId"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
