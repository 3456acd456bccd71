package ledger

import (
	"errors"
	"time"

	"tradebook.org/internal/ids"
)

// Kind labels an entry in the account history.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
	KindBuy      Kind = "buy"
	KindSell     Kind = "sell"
)

// Transaction is one entry in an account's append-only history. Amount is
// the positive magnitude of the operation after truncation. Symbol,
// Quantity and SharePrice are set for buy/sell only.
type Transaction struct {
	ID         string    `json:"id"`
	Sequence   uint64    `json:"sequence"` // per-account, monotonic from 1
	Kind       Kind      `json:"kind"`
	Amount     Money     `json:"amount"`
	Symbol     string    `json:"symbol,omitempty"`
	Quantity   int64     `json:"quantity,omitempty"`
	SharePrice *Money    `json:"share_price,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AccountState is a point-in-time copy of an account, safe to retain.
type AccountState struct {
	ID            string           `json:"id"`
	OwnerID       string           `json:"owner_id"`
	CashBalance   Money            `json:"cash_balance"`
	TotalDeposits Money            `json:"total_deposits"`
	Holdings      map[string]int64 `json:"holdings"`
	TxCount       int              `json:"transaction_count"`
	CreatedAt     time.Time        `json:"created_at"`
}

// PriceSource quotes the current price for a ticker symbol. Implementations
// return an error wrapping ErrUnknownSymbol for symbols they cannot price;
// callers pass symbols already uppercased.
type PriceSource interface {
	Price(symbol string) (Money, error)
}

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmptyOwner         = errors.New("owner id must be non-empty")
	ErrInvalidAmount      = errors.New("invalid amount (must be > 0)")
	ErrInvalidQuantity    = errors.New("invalid quantity (must be a positive integer)")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrUnknownSymbol      = errors.New("unknown symbol")
)

func newID() string {
	return ids.New()
}
