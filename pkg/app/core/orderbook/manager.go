package orderbook

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/cdabook/pkg/util"
)

// Manager maps goods to their order books. Books are created on first
// reference and live as long as the manager.
type Manager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook // good -> book

	clock  util.Clock
	logger *zap.SugaredLogger
}

// NewManager creates an empty manager. A nil logger disables logging.
func NewManager(logger *zap.SugaredLogger) *Manager {
	return NewManagerWithClock(util.RealClock{}, logger)
}

// NewManagerWithClock creates a manager whose books share the given clock.
func NewManagerWithClock(clock util.Clock, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Manager{
		books:  make(map[string]*OrderBook),
		clock:  clock,
		logger: logger,
	}
}

// Get returns the book for good, creating an empty one if none exists.
func (m *Manager) Get(good string) *OrderBook {
	m.mu.RLock()
	ob, ok := m.books[good]
	m.mu.RUnlock()
	if ok {
		return ob
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ob, ok := m.books[good]; ok {
		return ob
	}
	ob = NewOrderBookWithClock(good, m.clock)
	m.books[good] = ob
	m.logger.Debugw("book_created", "good", good)
	return ob
}

// Lookup returns the book for good without creating it.
func (m *Manager) Lookup(good string) (*OrderBook, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ob, ok := m.books[good]
	return ob, ok
}

// Submit delegates to Get(good).Submit.
func (m *Manager) Submit(good string, side Side, price decimal.Decimal, qty int64, owner string) (Order, error) {
	o, err := m.Get(good).Submit(side, price, qty, owner)
	if err != nil {
		m.logger.Debugw("order_rejected", "good", good, "side", side, "price", price, "qty", qty, "owner", owner, "err", err)
		return Order{}, err
	}
	m.logger.Debugw("order_submitted", "good", good, "id", o.ID, "side", side, "price", price, "qty", qty, "owner", owner)
	return o, nil
}

// Cancel delegates to the good's book. Unknown goods report ErrOrderNotFound
// and do not open a book.
func (m *Manager) Cancel(good string, id uint64) (Order, error) {
	ob, ok := m.Lookup(good)
	if !ok {
		return Order{}, fmt.Errorf("%w: %s #%d", ErrOrderNotFound, good, id)
	}
	return ob.Cancel(id)
}

// MatchAll matches every registered book. Goods whose match produced no
// trades are left out of the result.
func (m *Manager) MatchAll() map[string][]Trade {
	out := make(map[string][]Trade)
	for _, good := range m.Goods() {
		ob, _ := m.Lookup(good)
		trades := ob.Match()
		if len(trades) == 0 {
			continue
		}
		out[good] = trades
		m.logger.Debugw("match_completed", "good", good, "trades", len(trades))
	}
	return out
}

// Goods returns the registered goods in lexical order.
func (m *Manager) Goods() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	goods := make([]string, 0, len(m.books))
	for g := range m.books {
		goods = append(goods, g)
	}
	sort.Strings(goods)
	return goods
}

// Count returns the number of registered books.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.books)
}
