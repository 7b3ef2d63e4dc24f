package orderbook

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side int8

const (
	Bid Side = 1
	Ask Side = -1
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

func (s Side) valid() bool { return s == Bid || s == Ask }

// ParseSide accepts "bid"/"buy" and "ask"/"sell" in any case.
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "bid", "buy":
		return Bid, nil
	case "ask", "sell":
		return Ask, nil
	}
	return 0, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, v)
}

// SortKey is the priority key of a resting order. Ascending key order is the
// book's priority order: (-price, ts, id) for bids, (price, ts, id) for asks.
type SortKey struct {
	Price decimal.Decimal
	TS    time.Time
	ID    uint64
}

// Less reports whether k has strictly higher priority than o.
func (k SortKey) Less(o SortKey) bool {
	if c := k.Price.Cmp(o.Price); c != 0 {
		return c < 0
	}
	if !k.TS.Equal(o.TS) {
		return k.TS.Before(o.TS)
	}
	return k.ID < o.ID
}

func sortKeyFor(side Side, price decimal.Decimal, ts time.Time, id uint64) SortKey {
	if side == Bid {
		price = price.Neg()
	}
	return SortKey{Price: price, TS: ts, ID: id}
}

type Status int8

const (
	Open Status = iota
	Filled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is one resting interest in a book. Values handed out by the book are
// snapshots; only the owning OrderBook mutates Quantity.
type Order struct {
	ID        uint64
	Side      Side
	Good      string
	Price     decimal.Decimal
	Quantity  int64
	Owner     string
	Timestamp time.Time
	Status    Status

	key   SortKey
	index int // heap slot, -1 once removed
}

// Key returns the priority key fixed when the order was created.
func (o Order) Key() SortKey { return o.key }

func (o Order) snapshot() Order {
	cp := o
	cp.index = -1
	return cp
}
