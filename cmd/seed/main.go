package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/cdabook/pkg/app/core/orderbook"
	"github.com/uhyunpark/cdabook/pkg/util"
)

func main() {
	logger, err := util.NewLogger(os.Getenv("VERBOSE") == "true")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	books := orderbook.NewManager(logger.Sugar())
	arroz := books.Get("Arroz")

	// Step 1: resting bid and ask that do not cross
	fmt.Println("Step 1: bid 9.0 x10 (C1), ask 10.0 x5 (E1)")
	mustSubmit(books, "Arroz", orderbook.Bid, "9.0", 10, "C1")
	mustSubmit(books, "Arroz", orderbook.Ask, "10.0", 5, "E1")
	printBook(arroz)
	printTrades(arroz.Match())

	// Step 2: second bid queues behind the better one
	fmt.Println("Step 2: bid 8.5 x20 (C2)")
	mustSubmit(books, "Arroz", orderbook.Bid, "8.5", 20, "C2")
	printBook(arroz)

	// Step 3: aggressive ask crosses the best bid
	fmt.Println("Step 3: ask 8.0 x7 (E2), then match")
	mustSubmit(books, "Arroz", orderbook.Ask, "8.0", 7, "E2")
	printTrades(arroz.Match())
	printBook(arroz)

	// Step 4: zero price is rejected and leaves the book alone
	fmt.Println("Step 4: bid 0 x5 (X)")
	before := arroz.Depth(orderbook.Bid)
	_, err = books.Submit("Arroz", orderbook.Bid, decimal.Zero, 5, "X")
	if !errors.Is(err, orderbook.ErrInvalidOrder) {
		fmt.Printf("Error: expected invalid order, got %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  rejected: %v (bid depth %d -> %d)\n\n", err, before, arroz.Depth(orderbook.Bid))

	// Step 5: first reference to a good opens an empty book
	fmt.Println("Step 5: get NewGood")
	printBook(books.Get("NewGood"))

	fmt.Printf("Goods: %v\n", books.Goods())
}

func mustSubmit(books *orderbook.Manager, good string, side orderbook.Side, price string, qty int64, owner string) {
	o, err := books.Submit(good, side, decimal.RequireFromString(price), qty, owner)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  order #%d %s %s x%d (%s)\n", o.ID, o.Side, o.Price, o.Quantity, o.Owner)
}

func printBook(ob *orderbook.OrderBook) {
	fmt.Printf("  %s book:\n", ob.Good())
	for _, side := range []orderbook.Side{orderbook.Bid, orderbook.Ask} {
		fmt.Printf("    %-3s depth=%d", side, ob.Depth(side))
		for _, o := range ob.Orders(side) {
			fmt.Printf(" [%s x%d %s]", o.Price, o.Quantity, o.Owner)
		}
		fmt.Println()
	}
	if spread, ok := ob.Spread(); ok {
		fmt.Printf("    spread=%s\n", spread)
	}
	fmt.Println()
}

func printTrades(trades []orderbook.Trade) {
	if len(trades) == 0 {
		fmt.Println("  no trades")
		fmt.Println()
		return
	}
	out, err := json.MarshalIndent(trades, "  ", "  ")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  trades: %s\n\n", out)
}
