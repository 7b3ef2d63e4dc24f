package market

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/cdabook/params"
	"github.com/uhyunpark/cdabook/pkg/app/core/orderbook"
	"github.com/uhyunpark/cdabook/pkg/app/settlement"
	"github.com/uhyunpark/cdabook/pkg/storage"
	"github.com/uhyunpark/cdabook/pkg/util"
)

// TradeSink receives every settled batch, in execution order.
type TradeSink interface {
	Publish(ctx context.Context, trades []orderbook.Trade) error
}

type Options struct {
	Clock   util.Clock
	Logger  *zap.SugaredLogger
	Journal storage.Journal // nil -> in-memory journal
	Sinks   []TradeSink
}

// App is the simulation-facing market: agents submit orders, a cycle
// scheduler calls MatchAll, and executed trades are settled, journaled and
// published in the order the books produced them.
type App struct {
	books   *orderbook.Manager
	ledger  *settlement.Ledger
	journal storage.Journal
	sinks   []TradeSink
	logger  *zap.SugaredLogger

	// cycle serialises MatchAll so batches settle one after another.
	cycle  sync.Mutex
	cycles uint64

	// Hooks fired after a batch is settled.
	OnTrade func(tr orderbook.Trade)
	OnMatch func(good string, trades []orderbook.Trade)
}

func NewApp(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = util.RealClock{}
	}
	if opts.Journal == nil {
		opts.Journal = storage.NewInMemoryJournal()
	}
	return &App{
		books:   orderbook.NewManagerWithClock(opts.Clock, opts.Logger.Named("books")),
		ledger:  settlement.NewLedger(),
		journal: opts.Journal,
		sinks:   opts.Sinks,
		logger:  opts.Logger,
	}
}

func (a *App) Books() *orderbook.Manager  { return a.books }
func (a *App) Ledger() *settlement.Ledger { return a.ledger }
func (a *App) Journal() storage.Journal   { return a.journal }

// Endow opens a book for every catalogued good and applies the agents'
// opening cash and inventory.
func (a *App) Endow(c params.Catalog) error {
	for _, g := range c.Goods {
		a.books.Get(g.Name)
	}
	for _, ag := range c.Agents {
		if ag.Cash.IsPositive() {
			if err := a.ledger.Deposit(ag.Name, ag.Cash); err != nil {
				return fmt.Errorf("endow %s: %w", ag.Name, err)
			}
		}
		for good, qty := range ag.Inventory {
			a.ledger.SetInventory(ag.Name, good, qty)
		}
	}
	a.logger.Infow("market_endowed", "goods", len(c.Goods), "agents", len(c.Agents))
	return nil
}

// Submit routes an order to the good's book, creating the book on demand.
func (a *App) Submit(good string, side orderbook.Side, price decimal.Decimal, qty int64, owner string) (orderbook.Order, error) {
	o, err := a.books.Submit(good, side, price, qty, owner)
	if err != nil {
		return orderbook.Order{}, fmt.Errorf("submit %s %s: %w", good, side, err)
	}
	return o, nil
}

// Cancel removes a resting order.
func (a *App) Cancel(good string, id uint64) (orderbook.Order, error) {
	o, err := a.books.Cancel(good, id)
	if err != nil {
		return orderbook.Order{}, err
	}
	a.logger.Infow("order_cancelled", "good", good, "id", id, "owner", o.Owner, "remaining", o.Quantity)
	return o, nil
}

// MatchAll runs one matching cycle over every book, then settles and
// journals the trades. Books are already crossed when settlement starts, so a
// failing good does not stop the others: every batch is offered to the ledger
// and journal, and the failures come back joined. Sink failures are logged
// and do not fail the cycle.
func (a *App) MatchAll(ctx context.Context) (map[string][]orderbook.Trade, error) {
	a.cycle.Lock()
	defer a.cycle.Unlock()

	a.cycles++
	results := a.books.MatchAll()

	var errs []error
	total := 0
	for _, good := range a.books.Goods() {
		trades, ok := results[good]
		if !ok {
			continue
		}
		total += len(trades)

		if err := a.ledger.Apply(trades); err != nil {
			a.logger.Errorw("settle_failed", "good", good, "trades", len(trades), "err", err)
			errs = append(errs, fmt.Errorf("settle %s: %w", good, err))
			continue
		}
		if err := a.journal.Append(trades); err != nil {
			a.logger.Errorw("journal_append_failed", "good", good, "trades", len(trades), "err", err)
			errs = append(errs, fmt.Errorf("journal %s: %w", good, err))
		}
		for _, sink := range a.sinks {
			if err := sink.Publish(ctx, trades); err != nil {
				a.logger.Warnw("trade_publish_failed", "good", good, "trades", len(trades), "err", err)
			}
		}
		if a.OnTrade != nil {
			for _, tr := range trades {
				a.OnTrade(tr)
			}
		}
		if a.OnMatch != nil {
			a.OnMatch(good, trades)
		}
	}

	if total > 0 {
		a.logger.Infow("match_cycle", "cycle", a.cycles, "goods", len(results), "trades", total)
	}
	return results, errors.Join(errs...)
}

// Run calls MatchAll every interval until ctx is done. A failed cycle is
// logged and the loop keeps going.
func (a *App) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("match interval must be positive: %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Infow("match_loop_started", "interval_ms", interval.Milliseconds())
	for {
		select {
		case <-ctx.Done():
			a.logger.Infow("match_loop_stopped", "cycles", a.Cycles())
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.MatchAll(ctx); err != nil {
				a.logger.Errorw("match_cycle_failed", "cycle", a.Cycles(), "err", err)
			}
		}
	}
}

// Cycles returns how many matching cycles have run.
func (a *App) Cycles() uint64 {
	a.cycle.Lock()
	defer a.cycle.Unlock()
	return a.cycles
}

// Snapshot is a read-only view of one book.
type Snapshot struct {
	Good     string
	Bids     []orderbook.PriceLevel // Sorted high to low
	Asks     []orderbook.PriceLevel // Sorted low to high
	BestBid  *orderbook.Order
	BestAsk  *orderbook.Order
	Spread   *decimal.Decimal
	BidDepth int64
	AskDepth int64
}

// Snapshot returns the book of good without creating it.
func (a *App) Snapshot(good string) (Snapshot, bool) {
	ob, ok := a.books.Lookup(good)
	if !ok {
		return Snapshot{}, false
	}
	s := Snapshot{
		Good:     good,
		Bids:     ob.Levels(orderbook.Bid),
		Asks:     ob.Levels(orderbook.Ask),
		BidDepth: ob.Depth(orderbook.Bid),
		AskDepth: ob.Depth(orderbook.Ask),
	}
	if o, ok := ob.BestBid(); ok {
		s.BestBid = &o
	}
	if o, ok := ob.BestAsk(); ok {
		s.BestAsk = &o
	}
	if sp, ok := ob.Spread(); ok {
		s.Spread = &sp
	}
	return s, true
}

// StateHash is a deterministic digest of every book's resting orders.
// Two apps fed the same submissions and cycles produce the same hash.
//
// Hashed in order, per good (sorted): good name, then for each side its
// side byte, order count and orders in priority order as
// (id, price, quantity, owner). Strings are length-prefixed.
func (a *App) StateHash() [32]byte {
	h := sha256.New()

	for _, good := range a.books.Goods() {
		ob, _ := a.books.Lookup(good)
		writeString(h, good)
		for _, side := range []orderbook.Side{orderbook.Bid, orderbook.Ask} {
			orders := ob.Orders(side)
			h.Write([]byte{byte(side)})
			writeUint64(h, uint64(len(orders)))
			for _, o := range orders {
				writeUint64(h, o.ID)
				writeString(h, o.Price.String())
				writeUint64(h, uint64(o.Quantity))
				writeString(h, o.Owner)
			}
		}
	}
	return sha256.Sum256(h.Sum(nil))
}

func writeUint64(w io.Writer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.Write(buf[:])
}

func writeString(w io.Writer, s string) {
	writeUint64(w, uint64(len(s)))
	io.WriteString(w, s)
}
