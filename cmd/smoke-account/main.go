// Command smoke-account drives a running tradebook-api through the demo
// account flow and checks every balance along the way. It expects the
// server's default static price board; any mismatch exits non-zero.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"tradebook.org/internal/ledger"
	"tradebook.org/internal/ledger/remote"
)

func main() {
	base := os.Getenv("TRADEBOOK_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	ctx, cancel := remote.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := remote.New(base)
	if err := client.Authenticate(ctx, "demo_user"); err != nil {
		log.Fatalf("authenticate against %s: %v", base, err)
	}

	st, err := client.Open(ctx, "demo_user", ledger.MustMoney("10000.00"))
	if err != nil {
		log.Fatalf("open account: %v", err)
	}
	expect("opening balance", st.CashBalance, "10000.00")

	// The deposit carries an idempotency key; replaying it must return the
	// original transaction without moving cash twice.
	idem := fmt.Sprintf("smoke-%d", rand.Int())
	dep, err := client.Deposit(ctx, st.ID, ledger.MustMoney("1000.00"), idem)
	if err != nil {
		log.Fatalf("deposit: %v", err)
	}
	expect("deposit amount", dep.Amount, "1000.00")

	replay, err := client.Deposit(ctx, st.ID, ledger.MustMoney("1000.00"), idem)
	if err != nil {
		log.Fatalf("deposit replay: %v", err)
	}
	if replay.ID != dep.ID {
		log.Fatalf("idempotent replay returned a new transaction: %s vs %s", replay.ID, dep.ID)
	}

	buy, err := client.Buy(ctx, st.ID, "AAPL", 2, "")
	if err != nil {
		log.Fatalf("buy 2 AAPL: %v", err)
	}
	expect("buy cost", buy.Amount, "350.50")
	if buy.SharePrice == nil || buy.SharePrice.String() != "175.25" {
		log.Fatalf("unexpected fill price: %v", buy.SharePrice)
	}

	sell, err := client.Sell(ctx, st.ID, "AAPL", 1, "")
	if err != nil {
		log.Fatalf("sell 1 AAPL: %v", err)
	}
	expect("sell proceeds", sell.Amount, "175.25")

	st, err = client.Account(ctx, st.ID)
	if err != nil {
		log.Fatalf("account state: %v", err)
	}
	expect("cash after round trip", st.CashBalance, "10824.75")
	expect("total deposits", st.TotalDeposits, "11000.00")

	holdings, err := client.Holdings(ctx, st.ID)
	if err != nil {
		log.Fatalf("holdings: %v", err)
	}
	if len(holdings) != 1 || holdings["AAPL"] != 1 {
		log.Fatalf("unexpected holdings: %v", holdings)
	}

	pf, err := client.PortfolioValue(ctx, st.ID)
	if err != nil {
		log.Fatalf("portfolio: %v", err)
	}
	expect("portfolio value", pf.PortfolioValue, "11000.00")
	// Prices have not moved, so the whole session nets out flat.
	expect("profit or loss", pf.ProfitOrLoss, "0.00")

	page, err := client.Transactions(ctx, st.ID, 100, 0)
	if err != nil {
		log.Fatalf("transactions: %v", err)
	}
	if page.Total != 4 || len(page.Items) != 4 {
		log.Fatalf("expected 4 transactions, got total=%d items=%d", page.Total, len(page.Items))
	}

	printHistory(page.Items)

	fmt.Printf("✅ account smoke test passed: account=%s cash=%s\n", st.ID, st.CashBalance)
}

func expect(what string, got ledger.Money, want string) {
	if got.String() != want {
		log.Fatalf("%s: got %s, want %s", what, got, want)
	}
}

// printHistory renders the statement newest first, cash rows padded with
// "---" in the order columns.
func printHistory(items []ledger.Transaction) {
	fmt.Printf("%-4s %-9s %12s  %-7s %s\n", "SEQ", "KIND", "AMOUNT", "SYMBOL", "QTY")
	for i := len(items) - 1; i >= 0; i-- {
		tx := items[i]
		symbol, qty := "---", "---"
		if tx.Symbol != "" {
			symbol = tx.Symbol
			qty = fmt.Sprintf("%d", tx.Quantity)
		}
		fmt.Printf("%-4d %-9s %12s  %-7s %s\n", tx.Sequence, tx.Kind, tx.Amount, symbol, qty)
	}
}
