package orderbook

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/uhyunpark/cdabook/pkg/util"
)

// checkSorted fails if a side is not in strict priority order.
func checkSorted(t *rapid.T, ob *OrderBook, side Side) {
	orders := ob.Orders(side)
	for i := 1; i < len(orders); i++ {
		prev, cur := orders[i-1], orders[i]
		if !prev.Key().Less(cur.Key()) {
			t.Fatalf("%s side out of order at %d: %+v then %+v", side, i, prev, cur)
		}
		if side == Bid && prev.Price.LessThan(cur.Price) {
			t.Fatalf("bid prices ascending at %d: %v < %v", i, prev.Price, cur.Price)
		}
		if side == Ask && prev.Price.GreaterThan(cur.Price) {
			t.Fatalf("ask prices descending at %d: %v > %v", i, prev.Price, cur.Price)
		}
		if prev.Price.Equal(cur.Price) && prev.Timestamp.After(cur.Timestamp) {
			t.Fatalf("later timestamp ahead at equal price on %s side", side)
		}
		if prev.Price.Equal(cur.Price) && prev.Timestamp.Equal(cur.Timestamp) && prev.ID > cur.ID {
			t.Fatalf("higher id ahead at equal price and time on %s side", side)
		}
	}
}

func TestPropertyBookInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Coarse clock steps force timestamp collisions.
		step := time.Duration(rapid.IntRange(0, 2).Draw(t, "step")) * time.Millisecond
		ob := NewOrderBookWithClock("G", util.NewManualClock(epoch, step))

		submitted := map[Side]int64{}
		var traded int64
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.IntRange(0, 4).Draw(t, "op") == 0 {
				trades := ob.Match()
				for _, tr := range trades {
					if tr.Quantity <= 0 {
						t.Fatalf("non-positive trade quantity %d", tr.Quantity)
					}
					traded += tr.Quantity
				}
				bb, okB := ob.BestBid()
				ba, okA := ob.BestAsk()
				if okB && okA && !bb.Price.LessThan(ba.Price) {
					t.Fatalf("book left crossed: bid %v >= ask %v", bb.Price, ba.Price)
				}
				if again := ob.Match(); len(again) != 0 {
					t.Fatalf("second match produced %d trades", len(again))
				}
				continue
			}

			side := Bid
			if rapid.Bool().Draw(t, "ask") {
				side = Ask
			}
			price := decimal.New(int64(rapid.IntRange(1, 40).Draw(t, "price")), -1)
			qty := int64(rapid.IntRange(1, 50).Draw(t, "qty"))
			if _, err := ob.Submit(side, price, qty, "agent"); err != nil {
				t.Fatalf("submit: %v", err)
			}
			submitted[side] += qty

			checkSorted(t, ob, Bid)
			checkSorted(t, ob, Ask)
		}

		for _, tr := range ob.Match() {
			traded += tr.Quantity
		}
		// Every traded unit leaves both sides.
		for _, side := range []Side{Bid, Ask} {
			if resting := ob.Depth(side); submitted[side] != resting+traded {
				t.Fatalf("%s quantity not conserved: submitted %d, resting %d, traded %d", side, submitted[side], resting, traded)
			}
		}
	})
}

func TestPropertyExecutionPriceIsAsk(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ask := int64(rapid.IntRange(1, 5000).Draw(t, "ask"))
		premium := int64(rapid.IntRange(0, 5000).Draw(t, "premium"))
		qty := int64(rapid.IntRange(1, 100).Draw(t, "qty"))

		ob := NewOrderBookWithClock("G", util.NewManualClock(epoch, time.Millisecond))
		if _, err := ob.Submit(Ask, decimal.NewFromInt(ask), qty, "S"); err != nil {
			t.Fatalf("ask: %v", err)
		}
		if _, err := ob.Submit(Bid, decimal.NewFromInt(ask+premium), qty, "B"); err != nil {
			t.Fatalf("bid: %v", err)
		}
		trades := ob.Match()
		if len(trades) != 1 {
			t.Fatalf("expected one trade, got %d", len(trades))
		}
		if !trades[0].Price.Equal(decimal.NewFromInt(ask)) {
			t.Fatalf("price = %v, want ask %d", trades[0].Price, ask)
		}
		if ob.Len(Bid) != 0 || ob.Len(Ask) != 0 {
			t.Fatalf("equal quantities should empty the book")
		}
	})
}
