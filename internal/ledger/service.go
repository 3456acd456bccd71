package ledger

import (
	"context"
	"sync"
)

// Service defines account operations for transport layers. Mutating calls
// accept an optional idempotency key; a replayed key returns the original
// transaction without reapplying the operation.
type Service interface {
	Open(ctx context.Context, ownerID string, initialDeposit Money) (AccountState, error)
	Get(ctx context.Context, id string) (AccountState, error)
	Deposit(ctx context.Context, id string, amount Money, idemKey string) (Transaction, error)
	Withdraw(ctx context.Context, id string, amount Money, idemKey string) (Transaction, error)
	Buy(ctx context.Context, id, symbol string, quantity int64, idemKey string) (Transaction, error)
	Sell(ctx context.Context, id, symbol string, quantity int64, idemKey string) (Transaction, error)
	Holdings(ctx context.Context, id string) (map[string]int64, error)
	Transactions(ctx context.Context, id string, limit, offset int) ([]Transaction, int, error)
	PortfolioValue(ctx context.Context, id string) (Money, error)
	ProfitOrLoss(ctx context.Context, id string) (Money, error)
}

// InMemory implements Service with in-process state only. Accounts do their
// own locking; the registry lock covers the account map, and a separate
// lock covers the idempotency index.
type InMemory struct {
	mu     sync.RWMutex
	accts  map[string]*Account
	quotes PriceSource

	idemMu sync.Mutex
	idem   map[string]Transaction // idemKey -> original tx
}

// NewInMemory creates an empty registry whose accounts quote prices from
// quotes.
func NewInMemory(quotes PriceSource) *InMemory {
	return &InMemory{
		accts:  make(map[string]*Account),
		quotes: quotes,
		idem:   make(map[string]Transaction),
	}
}

func (s *InMemory) Open(ctx context.Context, ownerID string, initialDeposit Money) (AccountState, error) {
	acc, err := NewAccount(ownerID, initialDeposit, s.quotes)
	if err != nil {
		return AccountState{}, err
	}
	s.mu.Lock()
	s.accts[acc.ID()] = acc
	s.mu.Unlock()
	return acc.State(), nil
}

func (s *InMemory) Get(ctx context.Context, id string) (AccountState, error) {
	acc, err := s.account(id)
	if err != nil {
		return AccountState{}, err
	}
	return acc.State(), nil
}

func (s *InMemory) Deposit(ctx context.Context, id string, amount Money, idemKey string) (Transaction, error) {
	return s.mutate(id, idemKey, func(acc *Account) (Transaction, error) {
		return acc.Deposit(amount)
	})
}

func (s *InMemory) Withdraw(ctx context.Context, id string, amount Money, idemKey string) (Transaction, error) {
	return s.mutate(id, idemKey, func(acc *Account) (Transaction, error) {
		return acc.Withdraw(amount)
	})
}

func (s *InMemory) Buy(ctx context.Context, id, symbol string, quantity int64, idemKey string) (Transaction, error) {
	return s.mutate(id, idemKey, func(acc *Account) (Transaction, error) {
		return acc.Buy(symbol, quantity)
	})
}

func (s *InMemory) Sell(ctx context.Context, id, symbol string, quantity int64, idemKey string) (Transaction, error) {
	return s.mutate(id, idemKey, func(acc *Account) (Transaction, error) {
		return acc.Sell(symbol, quantity)
	})
}

func (s *InMemory) Holdings(ctx context.Context, id string) (map[string]int64, error) {
	acc, err := s.account(id)
	if err != nil {
		return nil, err
	}
	return acc.Holdings(), nil
}

func (s *InMemory) Transactions(ctx context.Context, id string, limit, offset int) ([]Transaction, int, error) {
	acc, err := s.account(id)
	if err != nil {
		return nil, 0, err
	}
	all := acc.Transactions()
	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *InMemory) PortfolioValue(ctx context.Context, id string) (Money, error) {
	acc, err := s.account(id)
	if err != nil {
		return Money{}, err
	}
	return acc.PortfolioValue()
}

func (s *InMemory) ProfitOrLoss(ctx context.Context, id string) (Money, error) {
	acc, err := s.account(id)
	if err != nil {
		return Money{}, err
	}
	return acc.ProfitOrLoss()
}

func (s *InMemory) account(id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

// mutate runs op at most once per idempotency key. Keyed calls are
// serialized so a replay can never race its original; unkeyed calls go
// straight to the account.
func (s *InMemory) mutate(id, idemKey string, op func(*Account) (Transaction, error)) (Transaction, error) {
	acc, err := s.account(id)
	if err != nil {
		return Transaction{}, err
	}
	if idemKey == "" {
		return op(acc)
	}
	s.idemMu.Lock()
	defer s.idemMu.Unlock()
	if tx, ok := s.idem[idemKey]; ok {
		return tx, nil
	}
	tx, err := op(acc)
	if err != nil {
		return Transaction{}, err
	}
	s.idem[idemKey] = tx
	return tx, nil
}
