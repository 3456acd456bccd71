package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Account is a single-owner trading account: a cash balance, share holdings
// and an append-only transaction history. Operations are all-or-nothing:
// every precondition is checked before the first write, under one mutex
// held for the whole call.
type Account struct {
	mu sync.Mutex

	id        string
	ownerID   string
	createdAt time.Time

	cash          Money
	totalDeposits Money // deposit cost basis; never decremented
	holdings      map[string]int64
	txs           []Transaction

	quotes PriceSource

	seq    uint64
	lastAt time.Time
}

// NewAccount opens an account for ownerID. A positive initialDeposit is
// routed through Deposit so it is truncated and recorded like any other;
// zero or negative initial deposits leave the account empty with no
// transaction. The owner id must be non-empty; it is not trimmed.
func NewAccount(ownerID string, initialDeposit Money, quotes PriceSource) (*Account, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwner
	}
	a := &Account{
		id:        uuid.NewString(),
		ownerID:   ownerID,
		createdAt: time.Now().UTC(),
		holdings:  make(map[string]int64),
		quotes:    quotes,
	}
	if initialDeposit.IsPositive() {
		if _, err := a.Deposit(initialDeposit); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Deposit adds cash. The raw amount must be positive; it is truncated to
// the canonical scale before it is applied and recorded.
func (a *Account) Deposit(amount Money) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	q := amount.Truncate()
	a.cash = a.cash.Add(q)
	a.totalDeposits = a.totalDeposits.Add(q)
	return a.append(KindDeposit, q, "", 0, nil), nil
}

// Withdraw removes cash. TotalDeposits is untouched: it is the deposit cost
// basis for profit-or-loss, not a balance.
func (a *Account) Withdraw(amount Money) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	q := amount.Truncate()
	if q.GreaterThan(a.cash) {
		return Transaction{}, fmt.Errorf("%w: withdraw %s exceeds balance %s", ErrInsufficientFunds, q, a.cash)
	}
	a.cash = a.cash.Sub(q)
	return a.append(KindWithdraw, q, "", 0, nil), nil
}

// Buy purchases quantity shares of symbol at the quoted price. The cost is
// price*quantity truncated once; a cost equal to the cash balance is
// allowed and zeroes it.
func (a *Account) Buy(symbol string, quantity int64) (Transaction, error) {
	if quantity <= 0 {
		return Transaction{}, ErrInvalidQuantity
	}
	sym := strings.ToUpper(symbol)

	a.mu.Lock()
	defer a.mu.Unlock()

	price, err := a.quotes.Price(sym)
	if err != nil {
		return Transaction{}, err
	}
	cost := price.MulInt(quantity).Truncate()
	if cost.GreaterThan(a.cash) {
		return Transaction{}, fmt.Errorf("%w: need %s for %d %s, have %s", ErrInsufficientFunds, cost, quantity, sym, a.cash)
	}
	a.cash = a.cash.Sub(cost)
	a.adjustHolding(sym, quantity)
	return a.append(KindBuy, cost, sym, quantity, &price), nil
}

// Sell disposes quantity shares of symbol. Ownership is checked before the
// price lookup, so selling a symbol that was never bought reports
// insufficient shares even when the symbol is unknown to the price source.
func (a *Account) Sell(symbol string, quantity int64) (Transaction, error) {
	if quantity <= 0 {
		return Transaction{}, ErrInvalidQuantity
	}
	sym := strings.ToUpper(symbol)

	a.mu.Lock()
	defer a.mu.Unlock()

	held := a.holdings[sym]
	if quantity > held {
		return Transaction{}, fmt.Errorf("%w: sell %d %s, hold %d", ErrInsufficientShares, quantity, sym, held)
	}
	price, err := a.quotes.Price(sym)
	if err != nil {
		return Transaction{}, err
	}
	value := price.MulInt(quantity).Truncate()
	a.cash = a.cash.Add(value)
	a.adjustHolding(sym, -quantity)
	return a.append(KindSell, value, sym, quantity, &price), nil
}

// adjustHolding applies a share delta and drops the entry the moment it
// empties; holdings never store zero or negative counts. The caller holds
// a.mu and has already checked the position covers any negative delta.
func (a *Account) adjustHolding(sym string, delta int64) {
	next := a.holdings[sym] + delta
	if next <= 0 {
		delete(a.holdings, sym)
		return
	}
	a.holdings[sym] = next
}

// Holdings returns an independent copy of the current positions.
func (a *Account) Holdings() map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int64, len(a.holdings))
	for sym, qty := range a.holdings {
		out[sym] = qty
	}
	return out
}

// Transactions returns an independent copy of the full history, oldest
// first.
func (a *Account) Transactions() []Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Transaction, len(a.txs))
	copy(out, a.txs)
	return out
}

// PortfolioValue is the cash balance plus the market value of all holdings.
// The holdings value is accumulated exactly and truncated once.
func (a *Account) PortfolioValue() (Money, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.portfolioValueLocked()
}

// ProfitOrLoss is the portfolio value minus everything ever deposited;
// negative when the account is under water.
func (a *Account) ProfitOrLoss() (Money, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, err := a.portfolioValueLocked()
	if err != nil {
		return Money{}, err
	}
	return v.Sub(a.totalDeposits), nil
}

func (a *Account) portfolioValueLocked() (Money, error) {
	var holdingsValue Money
	for sym, qty := range a.holdings {
		price, err := a.quotes.Price(sym)
		if err != nil {
			return Money{}, err
		}
		holdingsValue = holdingsValue.Add(price.MulInt(qty))
	}
	return a.cash.Add(holdingsValue.Truncate()), nil
}

func (a *Account) ID() string           { return a.id }
func (a *Account) Owner() string        { return a.ownerID }
func (a *Account) CreatedAt() time.Time { return a.createdAt }

func (a *Account) CashBalance() Money {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

func (a *Account) TotalDeposits() Money {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalDeposits
}

// State returns a point-in-time snapshot of the account.
func (a *Account) State() AccountState {
	a.mu.Lock()
	defer a.mu.Unlock()
	holdings := make(map[string]int64, len(a.holdings))
	for sym, qty := range a.holdings {
		holdings[sym] = qty
	}
	return AccountState{
		ID:            a.id,
		OwnerID:       a.ownerID,
		CashBalance:   a.cash,
		TotalDeposits: a.totalDeposits,
		Holdings:      holdings,
		TxCount:       len(a.txs),
		CreatedAt:     a.createdAt,
	}
}

// append records a transaction; the caller holds a.mu. Timestamps are
// clamped so the sequence never goes backwards if the clock does.
func (a *Account) append(kind Kind, amount Money, symbol string, qty int64, price *Money) Transaction {
	a.seq++
	now := time.Now().UTC()
	if now.Before(a.lastAt) {
		now = a.lastAt
	}
	a.lastAt = now
	tx := Transaction{
		ID:         newID(),
		Sequence:   a.seq,
		Kind:       kind,
		Amount:     amount,
		Symbol:     symbol,
		Quantity:   qty,
		SharePrice: price,
		CreatedAt:  now,
	}
	a.txs = append(a.txs, tx)
	return tx
}
