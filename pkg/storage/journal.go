package storage

import (
	"sync"

	"github.com/uhyunpark/cdabook/pkg/app/core/orderbook"
)

// Journal records executed trades outside the matching core.
type Journal interface {
	Append(trades []orderbook.Trade) error
	Recent(good string, limit int) ([]orderbook.Trade, error)
	Close() error
}

// InMemoryJournal keeps trades in process memory; used when no data
// directory is configured and in tests.
type InMemoryJournal struct {
	mu     sync.Mutex
	trades map[string][]orderbook.Trade // good -> trades, oldest first
}

func NewInMemoryJournal() *InMemoryJournal {
	return &InMemoryJournal{trades: make(map[string][]orderbook.Trade)}
}

func (j *InMemoryJournal) Append(trades []orderbook.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, tr := range trades {
		j.trades[tr.Good] = append(j.trades[tr.Good], tr)
	}
	return nil
}

// Recent returns up to limit trades of good, newest first.
func (j *InMemoryJournal) Recent(good string, limit int) ([]orderbook.Trade, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	all := j.trades[good]
	var out []orderbook.Trade
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (j *InMemoryJournal) Close() error { return nil }

var _ Journal = (*InMemoryJournal)(nil)
var _ Journal = (*PebbleJournal)(nil)
