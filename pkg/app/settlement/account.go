package settlement

import "github.com/shopspring/decimal"

// Account is the settlement view of one agent: cash plus per-good inventory.
type Account struct {
	Owner     string
	Cash      decimal.Decimal
	Inventory map[string]int64 // good -> units held

	// Cumulative statistics
	Bought     int64           // units received across all goods
	Sold       int64           // units delivered across all goods
	Volume     decimal.Decimal // cash moved in either direction
	TradeCount int64
}

func newAccount(owner string) *Account {
	return &Account{
		Owner:     owner,
		Cash:      decimal.Zero,
		Inventory: make(map[string]int64),
		Volume:    decimal.Zero,
	}
}

// Holding returns the units of good held by the account.
func (a *Account) Holding(good string) int64 { return a.Inventory[good] }

func (a *Account) clone() Account {
	cp := *a
	cp.Inventory = make(map[string]int64, len(a.Inventory))
	for g, q := range a.Inventory {
		cp.Inventory[g] = q
	}
	return cp
}
