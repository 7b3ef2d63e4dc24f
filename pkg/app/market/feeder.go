package market

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/cdabook/pkg/app/core/orderbook"
)

// FeederConfig controls simulated agent order flow
type FeederConfig struct {
	OrdersPerTick int             // Orders submitted per tick
	Interval      time.Duration   // How often to submit a batch
	NumAgents     int             // Number of simulated agents
	Goods         []string        // Goods to trade
	BasePrice     decimal.Decimal // Reference price orders scatter around
	Seed          int64           // 0 -> time-based
}

// DefaultFeederConfig returns reasonable defaults for a local run
func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		OrdersPerTick: 10,
		Interval:      100 * time.Millisecond,
		NumAgents:     50,
		Goods:         []string{"Arroz"},
		BasePrice:     decimal.NewFromInt(10),
	}
}

// AgentOrder is one generated submission.
type AgentOrder struct {
	Good  string
	Side  orderbook.Side
	Price decimal.Decimal
	Qty   int64
	Owner string
}

// OrderGenerator creates random agent orders: consumers bid, firms ask,
// prices within ±10% of the base price at two decimals.
type OrderGenerator struct {
	consumers []string
	firms     []string
	goods     []string
	base      decimal.Decimal
	rng       *rand.Rand
	generated int
}

func NewOrderGenerator(numAgents int, goods []string, base decimal.Decimal, seed int64) *OrderGenerator {
	if numAgents < 2 {
		numAgents = 2
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &OrderGenerator{
		goods: goods,
		base:  base,
		rng:   rand.New(rand.NewSource(seed)),
	}
	for i := 0; i < numAgents; i++ {
		if i%2 == 0 {
			g.consumers = append(g.consumers, fmt.Sprintf("C%d", len(g.consumers)+1))
		} else {
			g.firms = append(g.firms, fmt.Sprintf("E%d", len(g.firms)+1))
		}
	}
	return g
}

// Next creates one random order.
func (g *OrderGenerator) Next() AgentOrder {
	good := g.goods[g.rng.Intn(len(g.goods))]

	side := orderbook.Bid
	owner := g.consumers[g.rng.Intn(len(g.consumers))]
	if g.rng.Intn(2) == 1 {
		side = orderbook.Ask
		owner = g.firms[g.rng.Intn(len(g.firms))]
	}

	// ±10% in basis points, never below one cent
	bps := int64(g.rng.Intn(2001) - 1000)
	price := g.base.Mul(decimal.New(10000+bps, -4)).Round(2)
	if price.LessThan(decimal.New(1, -2)) {
		price = decimal.New(1, -2)
	}

	g.generated++
	return AgentOrder{
		Good:  good,
		Side:  side,
		Price: price,
		Qty:   int64(g.rng.Intn(20) + 1),
		Owner: owner,
	}
}

// Batch creates count random orders.
func (g *OrderGenerator) Batch(count int) []AgentOrder {
	batch := make([]AgentOrder, count)
	for i := range batch {
		batch[i] = g.Next()
	}
	return batch
}

// Generated returns how many orders were produced so far.
func (g *OrderGenerator) Generated() int { return g.generated }

// StartFeeder starts a background goroutine that submits generated orders
// to the app. Returns a cancel function to stop the feeder.
func StartFeeder(ctx context.Context, app *App, cfg FeederConfig) context.CancelFunc {
	if len(cfg.Goods) == 0 {
		cfg.Goods = DefaultFeederConfig().Goods
	}
	if !cfg.BasePrice.IsPositive() {
		cfg.BasePrice = DefaultFeederConfig().BasePrice
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultFeederConfig().Interval
	}

	gen := NewOrderGenerator(cfg.NumAgents, cfg.Goods, cfg.BasePrice, cfg.Seed)
	feedCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		start := time.Now()
		app.logger.Infow("feeder_started", "orders_per_tick", cfg.OrdersPerTick, "interval_ms", cfg.Interval.Milliseconds(), "goods", cfg.Goods)

		for {
			select {
			case <-feedCtx.Done():
				app.logger.Infow("feeder_stopped", "orders", gen.Generated(), "elapsed", time.Since(start).Round(time.Second).String())
				return
			case <-ticker.C:
				for _, o := range gen.Batch(cfg.OrdersPerTick) {
					if _, err := app.Submit(o.Good, o.Side, o.Price, o.Qty, o.Owner); err != nil {
						app.logger.Warnw("feeder_submit_failed", "good", o.Good, "err", err)
					}
				}
			}
		}
	}()

	return cancel
}
