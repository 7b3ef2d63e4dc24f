package settlement

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/cdabook/pkg/app/core/orderbook"
)

var (
	// ErrDuplicateTrade is returned when a trade id was already settled.
	ErrDuplicateTrade = errors.New("trade already settled")

	// ErrInvalidAmount is returned for non-positive deposits.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Ledger applies executed trades to agent cash and inventory. Each trade is
// applied exactly once, in the order given: the seller delivers quantity
// units to the buyer, and price × quantity cash moves from buyer to seller.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*Account // owner -> account
	settled  map[uuid.UUID]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[string]*Account),
		settled:  make(map[uuid.UUID]struct{}),
	}
}

// Deposit adds cash to an account, creating it if needed.
func (l *Ledger) Deposit(owner string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("deposit %s for %s: %w", amount, owner, ErrInvalidAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accountLocked(owner)
	acc.Cash = acc.Cash.Add(amount)
	return nil
}

// SetInventory overwrites an agent's holding of one good.
func (l *Ledger) SetInventory(owner, good string, qty int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accountLocked(owner).Inventory[good] = qty
}

// Apply settles a batch of trades. The batch is rejected as a whole if any
// trade id was seen before or repeats inside the batch.
func (l *Ledger) Apply(trades []orderbook.Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := make(map[uuid.UUID]struct{}, len(trades))
	for _, tr := range trades {
		if _, ok := l.settled[tr.ID]; ok {
			return fmt.Errorf("trade %s: %w", tr.ID, ErrDuplicateTrade)
		}
		if _, ok := batch[tr.ID]; ok {
			return fmt.Errorf("trade %s repeated in batch: %w", tr.ID, ErrDuplicateTrade)
		}
		batch[tr.ID] = struct{}{}
	}

	for _, tr := range trades {
		notional := tr.Notional()

		seller := l.accountLocked(tr.Seller)
		seller.Inventory[tr.Good] -= tr.Quantity
		seller.Cash = seller.Cash.Add(notional)
		seller.Sold += tr.Quantity
		seller.Volume = seller.Volume.Add(notional)
		seller.TradeCount++

		buyer := l.accountLocked(tr.Buyer)
		buyer.Inventory[tr.Good] += tr.Quantity
		buyer.Cash = buyer.Cash.Sub(notional)
		buyer.Bought += tr.Quantity
		buyer.Volume = buyer.Volume.Add(notional)
		buyer.TradeCount++

		l.settled[tr.ID] = struct{}{}
	}
	return nil
}

// Account returns a copy of an account and whether it exists.
func (l *Ledger) Account(owner string) (Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[owner]
	if !ok {
		return Account{}, false
	}
	return acc.clone(), true
}

// Settled reports how many trades have been applied.
func (l *Ledger) Settled() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.settled)
}

// accountLocked is an internal helper that gets account (assumes lock is held)
func (l *Ledger) accountLocked(owner string) *Account {
	acc, ok := l.accounts[owner]
	if !ok {
		acc = newAccount(owner)
		l.accounts[owner] = acc
	}
	return acc
}
