package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/cdabook/params"
	"github.com/uhyunpark/cdabook/pkg/app/core/orderbook"
	"github.com/uhyunpark/cdabook/pkg/storage"
	"github.com/uhyunpark/cdabook/pkg/util"
)

type recordingSink struct {
	mu     sync.Mutex
	trades []orderbook.Trade
	err    error
}

func (s *recordingSink) Publish(_ context.Context, trades []orderbook.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trades...)
	return s.err
}

// failingJournal rejects its first `fails` appends, then records normally.
type failingJournal struct {
	*storage.InMemoryJournal
	mu    sync.Mutex
	fails int
}

func (j *failingJournal) Append(trades []orderbook.Trade) error {
	j.mu.Lock()
	if j.fails > 0 {
		j.fails--
		j.mu.Unlock()
		return errors.New("disk full")
	}
	j.mu.Unlock()
	return j.InMemoryJournal.Append(trades)
}

func newTestApp(sinks ...TradeSink) *App {
	return NewApp(Options{
		Clock: util.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond),
		Sinks: sinks,
	})
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestAppMatchAllSettlesAndJournals(t *testing.T) {
	sink := &recordingSink{}
	app := newTestApp(sink)

	if err := app.Ledger().Deposit("C1", d(1000)); err != nil {
		t.Fatal(err)
	}
	app.Ledger().SetInventory("E1", "Arroz", 20)

	var hooked []orderbook.Trade
	app.OnTrade = func(tr orderbook.Trade) { hooked = append(hooked, tr) }
	matched := map[string]int{}
	app.OnMatch = func(good string, trades []orderbook.Trade) { matched[good] += len(trades) }

	if _, err := app.Submit("Arroz", orderbook.Ask, d(10), 5, "E1"); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Submit("Arroz", orderbook.Bid, d(9), 5, "C1"); err != nil {
		t.Fatal(err)
	}
	if s, ok := app.Snapshot("Arroz"); !ok || s.Spread == nil || !s.Spread.Equal(d(1)) {
		t.Fatalf("snapshot = %+v", s)
	}

	// Consumer improves the bid and crosses.
	if _, err := app.Submit("Arroz", orderbook.Bid, d(10), 3, "C1"); err != nil {
		t.Fatal(err)
	}
	res, err := app.MatchAll(context.Background())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res["Arroz"]) != 1 || res["Arroz"][0].Quantity != 3 {
		t.Fatalf("results = %+v", res)
	}

	c1, _ := app.Ledger().Account("C1")
	if c1.Holding("Arroz") != 3 || !c1.Cash.Equal(d(970)) {
		t.Fatalf("C1 = %+v", c1)
	}
	e1, _ := app.Ledger().Account("E1")
	if e1.Holding("Arroz") != 17 || !e1.Cash.Equal(d(30)) {
		t.Fatalf("E1 = %+v", e1)
	}

	recent, err := app.Journal().Recent("Arroz", 10)
	if err != nil || len(recent) != 1 {
		t.Fatalf("journal = %+v, %v", recent, err)
	}
	if len(sink.trades) != 1 || len(hooked) != 1 || matched["Arroz"] != 1 {
		t.Fatalf("sink=%d hook=%d match=%v", len(sink.trades), len(hooked), matched)
	}
	if app.Cycles() != 1 {
		t.Fatalf("cycles = %d", app.Cycles())
	}
}

func TestAppSinkFailureDoesNotFailCycle(t *testing.T) {
	app := newTestApp(&recordingSink{err: errors.New("down")})
	app.Submit("Arroz", orderbook.Ask, d(1), 1, "E1")
	app.Submit("Arroz", orderbook.Bid, d(1), 1, "C1")

	if _, err := app.MatchAll(context.Background()); err != nil {
		t.Fatalf("match: %v", err)
	}
	if app.Ledger().Settled() != 1 {
		t.Fatalf("trade not settled")
	}
}

func TestAppSubmitInvalid(t *testing.T) {
	app := newTestApp()
	_, err := app.Submit("Arroz", orderbook.Bid, decimal.Zero, 5, "X")
	if !errors.Is(err, orderbook.ErrInvalidOrder) {
		t.Fatalf("err = %v, want ErrInvalidOrder", err)
	}
}

func TestAppCancel(t *testing.T) {
	app := newTestApp()
	o, _ := app.Submit("Arroz", orderbook.Bid, d(3), 4, "C1")
	got, err := app.Cancel("Arroz", o.ID)
	if err != nil || got.Status != orderbook.Cancelled {
		t.Fatalf("cancel = %+v, %v", got, err)
	}
	if _, err := app.Cancel("Arroz", o.ID); !errors.Is(err, orderbook.ErrOrderNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestAppSnapshotUnknownGood(t *testing.T) {
	app := newTestApp()
	if _, ok := app.Snapshot("Nada"); ok {
		t.Fatalf("snapshot of unknown good")
	}
	if app.Books().Count() != 0 {
		t.Fatalf("snapshot created a book")
	}
}

func TestAppStateHashDeterministic(t *testing.T) {
	run := func() [32]byte {
		app := newTestApp()
		gen := NewOrderGenerator(10, []string{"Arroz", "Trigo"}, d(10), 42)
		for i := 0; i < 20; i++ {
			for _, o := range gen.Batch(25) {
				if _, err := app.Submit(o.Good, o.Side, o.Price, o.Qty, o.Owner); err != nil {
					t.Fatalf("submit: %v", err)
				}
			}
			if _, err := app.MatchAll(context.Background()); err != nil {
				t.Fatalf("match: %v", err)
			}
		}
		return app.StateHash()
	}
	if a, b := run(), run(); a != b {
		t.Fatalf("state hash differs across identical runs: %x vs %x", a, b)
	}
}

func TestAppRunStopsOnCancel(t *testing.T) {
	app := newTestApp()
	app.Submit("Arroz", orderbook.Ask, d(1), 1, "E1")
	app.Submit("Arroz", orderbook.Bid, d(1), 1, "C1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, 5*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for app.Ledger().Settled() == 0 {
		select {
		case <-deadline:
			t.Fatalf("run loop never matched")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v", err)
	}
	if err := app.Run(context.Background(), 0); err == nil {
		t.Fatalf("zero interval accepted")
	}
}

func TestAppEndow(t *testing.T) {
	app := newTestApp()
	err := app.Endow(params.Catalog{
		Goods:  []params.Good{{Name: "Arroz"}, {Name: "Trigo"}},
		Agents: []params.Agent{{Name: "C1", Cash: d(500)}, {Name: "E1", Inventory: map[string]int64{"Arroz": 20}}},
	})
	if err != nil {
		t.Fatalf("endow: %v", err)
	}
	if goods := app.Books().Goods(); len(goods) != 2 {
		t.Fatalf("goods = %v", goods)
	}
	if c1, _ := app.Ledger().Account("C1"); !c1.Cash.Equal(d(500)) {
		t.Fatalf("C1 cash = %v", c1.Cash)
	}
	if e1, _ := app.Ledger().Account("E1"); e1.Holding("Arroz") != 20 {
		t.Fatalf("E1 = %+v", e1)
	}
}

func TestAppMatchAllSettlesEveryGoodWhenJournalFails(t *testing.T) {
	journal := &failingJournal{InMemoryJournal: storage.NewInMemoryJournal(), fails: 1}
	app := NewApp(Options{
		Clock:   util.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond),
		Journal: journal,
	})

	app.Submit("A", orderbook.Ask, d(5), 2, "E1")
	app.Submit("A", orderbook.Bid, d(5), 2, "C1")
	app.Submit("B", orderbook.Ask, d(7), 1, "E2")
	app.Submit("B", orderbook.Bid, d(7), 1, "C2")

	res, err := app.MatchAll(context.Background())
	if err == nil {
		t.Fatalf("journal failure not reported")
	}
	if len(res["A"]) != 1 || len(res["B"]) != 1 {
		t.Fatalf("results = %+v", res)
	}
	if app.Ledger().Settled() != 2 {
		t.Fatalf("settled = %d, want 2", app.Ledger().Settled())
	}
	for owner, qty := range map[string]int64{"C1": 2, "C2": 1} {
		acc, ok := app.Ledger().Account(owner)
		if !ok || acc.Bought != qty {
			t.Fatalf("%s = %+v", owner, acc)
		}
	}
	if recent, _ := journal.Recent("B", 10); len(recent) != 1 {
		t.Fatalf("B journal = %+v", recent)
	}

	res, err = app.MatchAll(context.Background())
	if err != nil || len(res) != 0 {
		t.Fatalf("second cycle = %+v, %v", res, err)
	}
}

func TestAppRunSurvivesFailedCycle(t *testing.T) {
	journal := &failingJournal{InMemoryJournal: storage.NewInMemoryJournal(), fails: 1}
	app := NewApp(Options{Journal: journal})
	app.Submit("Arroz", orderbook.Ask, d(1), 1, "E1")
	app.Submit("Arroz", orderbook.Bid, d(1), 1, "C1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, 5*time.Millisecond) }()

	waitSettled := func(n int) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for app.Ledger().Settled() < n {
			select {
			case <-deadline:
				t.Fatalf("settled = %d, want %d", app.Ledger().Settled(), n)
			case err := <-done:
				t.Fatalf("run exited: %v", err)
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
	waitSettled(1)

	app.Submit("Arroz", orderbook.Ask, d(1), 1, "E1")
	app.Submit("Arroz", orderbook.Bid, d(1), 1, "C1")
	waitSettled(2)

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v", err)
	}
	if recent, _ := journal.Recent("Arroz", 10); len(recent) != 1 {
		t.Fatalf("journal = %+v", recent)
	}
}

func TestAppStateHashSeparatesFields(t *testing.T) {
	split, joined := newTestApp(), newTestApp()
	split.Books().Get("A")
	split.Books().Get("B")
	joined.Books().Get("AB")
	if split.StateHash() == joined.StateHash() {
		t.Fatalf("goods A,B hash like AB")
	}

	bid, ask := newTestApp(), newTestApp()
	bid.Submit("Arroz", orderbook.Bid, d(5), 1, "C1")
	ask.Submit("Arroz", orderbook.Ask, d(5), 1, "C1")
	if bid.StateHash() == ask.StateHash() {
		t.Fatalf("bid and ask with the same fields hash alike")
	}
}
