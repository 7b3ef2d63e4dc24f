package orderbook

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/cdabook/pkg/util"
)

// OrderBook holds the bid and ask sides of a single good and crosses them
// under price-time priority. One mutex covers submission, cancellation,
// matching and queries so no submission is observed mid-match.
type OrderBook struct {
	mu sync.Mutex

	good  string
	clock util.Clock

	// Heap-based priority per side (O(1) peek)
	bids orderHeap
	asks orderHeap

	// Order index for O(log n) cancellation
	index map[uint64]*Order

	seq uint64 // last assigned order id
}

func NewOrderBook(good string) *OrderBook {
	return NewOrderBookWithClock(good, util.RealClock{})
}

// NewOrderBookWithClock is NewOrderBook with an explicit time source for
// order and trade timestamps.
func NewOrderBookWithClock(good string, clock util.Clock) *OrderBook {
	if clock == nil {
		clock = util.RealClock{}
	}
	ob := &OrderBook{
		good:  good,
		clock: clock,
		index: make(map[uint64]*Order),
	}
	heap.Init(&ob.bids)
	heap.Init(&ob.asks)
	return ob
}

func (ob *OrderBook) Good() string { return ob.good }

func (ob *OrderBook) side(s Side) *orderHeap {
	if s == Bid {
		return &ob.bids
	}
	return &ob.asks
}

// Submit validates and rests a new order. Nothing changes on error.
func (ob *OrderBook) Submit(side Side, price decimal.Decimal, qty int64, owner string) (Order, error) {
	if !side.valid() {
		return Order{}, fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, side)
	}
	if qty <= 0 || !price.IsPositive() {
		return Order{}, fmt.Errorf("%w: price %s and quantity %d must be > 0", ErrInvalidOrder, price, qty)
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.seq++
	o := &Order{
		ID:        ob.seq,
		Side:      side,
		Good:      ob.good,
		Price:     price,
		Quantity:  qty,
		Owner:     owner,
		Timestamp: ob.clock.Now(),
		Status:    Open,
	}
	o.key = sortKeyFor(side, o.Price, o.Timestamp, o.ID)

	heap.Push(ob.side(side), o)
	ob.index[o.ID] = o
	return o.snapshot(), nil
}

// BestBid returns the highest-priority bid.
func (ob *OrderBook) BestBid() (Order, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return peek(ob.bids)
}

// BestAsk returns the highest-priority ask.
func (ob *OrderBook) BestAsk() (Order, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return peek(ob.asks)
}

func peek(h orderHeap) (Order, bool) {
	o := h.Peek()
	if o == nil {
		return Order{}, false
	}
	return o.snapshot(), true
}

// Spread returns max(0, bestAsk - bestBid), or false when a side is empty.
func (ob *OrderBook) Spread() (decimal.Decimal, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	bid, ask := ob.bids.Peek(), ob.asks.Peek()
	if bid == nil || ask == nil {
		return decimal.Zero, false
	}
	return decimal.Max(decimal.Zero, ask.Price.Sub(bid.Price)), true
}

// Depth sums the resting quantity on one side.
func (ob *OrderBook) Depth(side Side) int64 {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	var total int64
	for _, o := range *ob.side(side) {
		total += o.Quantity
	}
	return total
}

// Len returns the number of resting orders on one side.
func (ob *OrderBook) Len(side Side) int {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.side(side).Len()
}

// Orders returns snapshots of one side in priority order.
func (ob *OrderBook) Orders(side Side) []Order {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	h := *ob.side(side)
	out := make([]Order, 0, len(h))
	for _, o := range h {
		out = append(out, o.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].key.Less(out[j].key)
	})
	return out
}

// Levels aggregates one side per price, best price first.
func (ob *OrderBook) Levels(side Side) []PriceLevel {
	orders := ob.Orders(side)

	var levels []PriceLevel
	for _, o := range orders {
		if n := len(levels); n > 0 && levels[n-1].Price.Equal(o.Price) {
			levels[n-1].Qty += o.Quantity
			levels[n-1].Orders++
			continue
		}
		levels = append(levels, PriceLevel{Price: o.Price, Qty: o.Quantity, Orders: 1})
	}
	return levels
}

// Cancel removes a resting order by id.
func (ob *OrderBook) Cancel(id uint64) (Order, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	o, ok := ob.index[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s #%d", ErrOrderNotFound, ob.good, id)
	}
	heap.Remove(ob.side(o.Side), o.index)
	delete(ob.index, id)
	o.Status = Cancelled
	return o.snapshot(), nil
}

// Match crosses the book while best bid >= best ask. Each step executes at
// the resting ask's price for min(bid, ask) quantity. The returned trades are
// in execution order; the book is uncrossed afterwards.
func (ob *OrderBook) Match() []Trade {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	var trades []Trade
	for {
		bid, ask := ob.bids.Peek(), ob.asks.Peek()
		if bid == nil || ask == nil || bid.Price.LessThan(ask.Price) {
			break
		}

		qty := min(bid.Quantity, ask.Quantity)
		trades = append(trades, Trade{
			ID:          uuid.New(),
			Good:        ob.good,
			Price:       ask.Price,
			Quantity:    qty,
			Buyer:       bid.Owner,
			Seller:      ask.Owner,
			BuyOrderID:  bid.ID,
			SellOrderID: ask.ID,
			Timestamp:   ob.clock.Now(),
		})

		bid.Quantity -= qty
		ask.Quantity -= qty
		if bid.Quantity == 0 {
			ob.fill(&ob.bids)
		}
		if ask.Quantity == 0 {
			ob.fill(&ob.asks)
		}
	}
	return trades
}

// fill drops the fully consumed head of a side.
func (ob *OrderBook) fill(h *orderHeap) {
	o := heap.Pop(h).(*Order)
	o.Status = Filled
	delete(ob.index, o.ID)
}
