package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// staticQuotes is a mutable test board; deleting a key makes a held symbol
// unpriceable.
type staticQuotes map[string]string

func (q staticQuotes) Price(symbol string) (Money, error) {
	s, ok := q[symbol]
	if !ok {
		return Money{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return MustMoney(s), nil
}

func testQuotes() staticQuotes {
	return staticQuotes{"AAPL": "175.25", "TSLA": "250.80", "GOOGL": "135.50"}
}

func TestNewAccountValidation(t *testing.T) {
	if _, err := NewAccount("", MustMoney("0"), testQuotes()); !errors.Is(err, ErrEmptyOwner) {
		t.Fatalf("expected ErrEmptyOwner, got %v", err)
	}
	// Owner ids are not trimmed; a blank-padded owner is legal.
	acc, err := NewAccount("  ", MustMoney("0"), testQuotes())
	if err != nil {
		t.Fatal(err)
	}
	if acc.Owner() != "  " {
		t.Fatalf("owner mangled: %q", acc.Owner())
	}
}

func TestNewAccountInitialDeposit(t *testing.T) {
	acc, err := NewAccount("alice", MustMoney("1000"), testQuotes())
	if err != nil {
		t.Fatal(err)
	}
	if got := acc.CashBalance().String(); got != "1000.00" {
		t.Fatalf("cash = %s", got)
	}
	if got := acc.TotalDeposits().String(); got != "1000.00" {
		t.Fatalf("total deposits = %s", got)
	}
	txs := acc.Transactions()
	if len(txs) != 1 || txs[0].Kind != KindDeposit {
		t.Fatalf("expected one deposit transaction, got %+v", txs)
	}

	acc, err = NewAccount("bob", MustMoney("0"), testQuotes())
	if err != nil {
		t.Fatal(err)
	}
	if n := len(acc.Transactions()); n != 0 {
		t.Fatalf("zero initial deposit left %d transactions", n)
	}
}

func TestNewAccountNegativeInitialDepositIgnored(t *testing.T) {
	// A negative initial deposit opens the account empty: no error, no
	// transaction.
	acc, err := NewAccount("carol", MustMoney("-50"), testQuotes())
	if err != nil {
		t.Fatal(err)
	}
	if !acc.CashBalance().IsZero() || len(acc.Transactions()) != 0 {
		t.Fatalf("negative initial deposit mutated account: cash=%s txs=%d",
			acc.CashBalance(), len(acc.Transactions()))
	}
}

func TestDeposit(t *testing.T) {
	acc, _ := NewAccount("alice", Money{}, testQuotes())

	tx, err := acc.Deposit(MustMoney("100.12345"))
	if err != nil {
		t.Fatal(err)
	}
	if tx.Amount.String() != "100.12" {
		t.Fatalf("amount not truncated: %s", tx.Amount)
	}
	if got := acc.CashBalance().String(); got != "100.12" {
		t.Fatalf("cash = %s", got)
	}

	for _, bad := range []string{"0", "-5"} {
		if _, err := acc.Deposit(MustMoney(bad)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Deposit(%s): expected ErrInvalidAmount, got %v", bad, err)
		}
	}
	if n := len(acc.Transactions()); n != 1 {
		t.Fatalf("failed deposits must not append transactions, have %d", n)
	}
}

func TestDepositPositiveButTruncatesToZero(t *testing.T) {
	// Positivity is checked on the raw amount, so 0.004 passes validation
	// and is applied as 0.00. Kept as-is.
	acc, _ := NewAccount("alice", Money{}, testQuotes())
	tx, err := acc.Deposit(MustMoney("0.004"))
	if err != nil {
		t.Fatal(err)
	}
	if !tx.Amount.IsZero() || !acc.CashBalance().IsZero() {
		t.Fatalf("expected 0.00 applied, tx=%s cash=%s", tx.Amount, acc.CashBalance())
	}
	if n := len(acc.Transactions()); n != 1 {
		t.Fatalf("expected the 0.00 deposit on record, have %d transactions", n)
	}
}

func TestWithdraw(t *testing.T) {
	acc, _ := NewAccount("alice", MustMoney("100"), testQuotes())

	if _, err := acc.Withdraw(MustMoney("150")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := acc.CashBalance().String(); got != "100.00" {
		t.Fatalf("failed withdraw changed balance: %s", got)
	}

	if _, err := acc.Withdraw(MustMoney("30.5")); err != nil {
		t.Fatal(err)
	}
	if got := acc.CashBalance().String(); got != "69.50" {
		t.Fatalf("cash = %s", got)
	}
	// Withdrawals never reduce the deposit cost basis.
	if got := acc.TotalDeposits().String(); got != "100.00" {
		t.Fatalf("total deposits = %s", got)
	}
	if _, err := acc.Withdraw(MustMoney("-1")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestBuySellFlow(t *testing.T) {
	acc, _ := NewAccount("alice", MustMoney("1000"), testQuotes())

	if _, err := acc.Buy("AAPL", 2); err != nil {
		t.Fatal(err)
	}
	if got := acc.CashBalance().String(); got != "649.50" {
		t.Fatalf("cash after buy = %s", got)
	}
	holdings := acc.Holdings()
	if len(holdings) != 1 || holdings["AAPL"] != 2 {
		t.Fatalf("holdings = %v", holdings)
	}

	if _, err := acc.Sell("AAPL", 1); err != nil {
		t.Fatal(err)
	}
	if got := acc.CashBalance().String(); got != "824.75" {
		t.Fatalf("cash after sell = %s", got)
	}
	if got := acc.Holdings()["AAPL"]; got != 1 {
		t.Fatalf("AAPL holding = %d", got)
	}

	txs := acc.Transactions()
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	buy := txs[1]
	if buy.Kind != KindBuy || buy.Amount.String() != "350.50" || buy.Symbol != "AAPL" ||
		buy.Quantity != 2 || buy.SharePrice == nil || buy.SharePrice.String() != "175.25" {
		t.Fatalf("buy transaction = %+v", buy)
	}

	// Prices unchanged, so the round trip is exactly flat.
	v, err := acc.PortfolioValue()
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "1000.00" {
		t.Fatalf("portfolio value = %s", v)
	}
	pl, err := acc.ProfitOrLoss()
	if err != nil {
		t.Fatal(err)
	}
	if pl.String() != "0.00" {
		t.Fatalf("profit/loss = %s", pl)
	}
}

func TestBuyValidation(t *testing.T) {
	acc, _ := NewAccount("alice", MustMoney("1000"), testQuotes())

	if _, err := acc.Buy("AAPL", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := acc.Buy("ZZZZ", 1); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
	if _, err := acc.Buy("TSLA", 100); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := acc.CashBalance().String(); got != "1000.00" {
		t.Fatalf("failed buys changed balance: %s", got)
	}
	if n := len(acc.Transactions()); n != 1 {
		t.Fatalf("failed buys appended transactions: %d", n)
	}

	// Symbols are case-insensitive on the way in, uppercase at rest.
	if _, err := acc.Buy("aapl", 1); err != nil {
		t.Fatal(err)
	}
	if acc.Holdings()["AAPL"] != 1 {
		t.Fatalf("holdings = %v", acc.Holdings())
	}
}

func TestBuyExactBalance(t *testing.T) {
	acc, _ := NewAccount("alice", MustMoney("350.50"), testQuotes())
	if _, err := acc.Buy("AAPL", 2); err != nil {
		t.Fatal(err)
	}
	if !acc.CashBalance().IsZero() {
		t.Fatalf("cash = %s, want 0.00", acc.CashBalance())
	}
}

func TestSellValidation(t *testing.T) {
	acc, _ := NewAccount("alice", MustMoney("1000"), testQuotes())
	if _, err := acc.Buy("AAPL", 2); err != nil {
		t.Fatal(err)
	}

	if _, err := acc.Sell("AAPL", -1); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := acc.Sell("AAPL", 3); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
	// Ownership is checked before pricing: an unowned symbol reports
	// insufficient shares even when it is also unknown to the board.
	if _, err := acc.Sell("ZZZZ", 1); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares for unowned symbol, got %v", err)
	}

	// Selling the full position removes the holdings entry.
	if _, err := acc.Sell("aapl", 2); err != nil {
		t.Fatal(err)
	}
	if h := acc.Holdings(); len(h) != 0 {
		t.Fatalf("holdings not cleared: %v", h)
	}
}

func TestSellHeldSymbolNoLongerPriceable(t *testing.T) {
	quotes := testQuotes()
	acc, _ := NewAccount("alice", MustMoney("1000"), quotes)
	if _, err := acc.Buy("AAPL", 2); err != nil {
		t.Fatal(err)
	}

	delete(quotes, "AAPL")

	if _, err := acc.Sell("AAPL", 1); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
	if got := acc.Holdings()["AAPL"]; got != 2 {
		t.Fatalf("failed sell changed holdings: %d", got)
	}
	if _, err := acc.PortfolioValue(); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol from valuation, got %v", err)
	}
}

func TestProfitOrLossTracksPrices(t *testing.T) {
	quotes := testQuotes()
	acc, _ := NewAccount("alice", MustMoney("1000"), quotes)
	if _, err := acc.Buy("AAPL", 2); err != nil {
		t.Fatal(err)
	}

	quotes["AAPL"] = "100.00"

	pl, err := acc.ProfitOrLoss()
	if err != nil {
		t.Fatal(err)
	}
	if pl.String() != "-150.50" {
		t.Fatalf("profit/loss = %s, want -150.50", pl)
	}

	quotes["AAPL"] = "200.00"
	pl, err = acc.ProfitOrLoss()
	if err != nil {
		t.Fatal(err)
	}
	if pl.String() != "49.50" {
		t.Fatalf("profit/loss = %s, want 49.50", pl)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	acc, _ := NewAccount("alice", MustMoney("1000"), testQuotes())
	if _, err := acc.Buy("AAPL", 1); err != nil {
		t.Fatal(err)
	}

	h := acc.Holdings()
	h["AAPL"] = 999
	h["EVIL"] = 1
	if got := acc.Holdings()["AAPL"]; got != 1 {
		t.Fatalf("holdings snapshot writes leaked: %d", got)
	}

	txs := acc.Transactions()
	txs[0].Amount = MustMoney("999999")
	if got := acc.Transactions()[0].Amount.String(); got != "1000.00" {
		t.Fatalf("history snapshot writes leaked: %s", got)
	}
}

func TestTransactionOrdering(t *testing.T) {
	acc, _ := NewAccount("alice", MustMoney("1000"), testQuotes())
	for i := 0; i < 5; i++ {
		if _, err := acc.Deposit(MustMoney("1")); err != nil {
			t.Fatal(err)
		}
	}
	txs := acc.Transactions()
	for i, tx := range txs {
		if tx.Sequence != uint64(i+1) {
			t.Fatalf("sequence at %d = %d", i, tx.Sequence)
		}
		if i > 0 && tx.CreatedAt.Before(txs[i-1].CreatedAt) {
			t.Fatalf("timestamps went backwards at %d", i)
		}
	}
}

func TestConcurrentMixedOperations(t *testing.T) {
	acc, _ := NewAccount("alice", MustMoney("10000"), testQuotes())

	var wg sync.WaitGroup
	const n = 20
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := acc.Buy("AAPL", 1); err != nil {
				t.Error(err)
				return
			}
			if _, err := acc.Sell("AAPL", 1); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := acc.CashBalance().String(); got != "10000.00" {
		t.Fatalf("cash = %s", got)
	}
	if h := acc.Holdings(); len(h) != 0 {
		t.Fatalf("holdings = %v", h)
	}
	// Fixed board: any interleaving nets out flat.
	pl, err := acc.ProfitOrLoss()
	if err != nil {
		t.Fatal(err)
	}
	if pl.String() != "0.00" {
		t.Fatalf("profit/loss = %s", pl)
	}
	if n := len(acc.Transactions()); n != 1+2*20 {
		t.Fatalf("transaction count = %d", n)
	}
}
