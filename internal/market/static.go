// Package market provides ledger.PriceSource implementations: a fixed demo
// board and a seeded random walk for load runs.
package market

import (
	"fmt"
	"sort"

	"tradebook.org/internal/ledger"
)

// Static is a fixed price board. Lookups are exact-key; the ledger
// uppercases symbols before asking.
type Static struct {
	prices map[string]ledger.Money
}

// DefaultBoard is the board the demo clients trade against.
func DefaultBoard() map[string]ledger.Money {
	return map[string]ledger.Money{
		"AAPL":  ledger.MustMoney("175.25"),
		"TSLA":  ledger.MustMoney("250.80"),
		"GOOGL": ledger.MustMoney("135.50"),
	}
}

// NewStatic builds a board from prices; nil means DefaultBoard. The input
// map is copied.
func NewStatic(prices map[string]ledger.Money) *Static {
	if prices == nil {
		prices = DefaultBoard()
	}
	cp := make(map[string]ledger.Money, len(prices))
	for sym, p := range prices {
		cp[sym] = p
	}
	return &Static{prices: cp}
}

// Price implements ledger.PriceSource.
func (s *Static) Price(symbol string) (ledger.Money, error) {
	p, ok := s.prices[symbol]
	if !ok {
		return ledger.Money{}, fmt.Errorf("%w: %s", ledger.ErrUnknownSymbol, symbol)
	}
	return p, nil
}

// Symbols lists the board's symbols, sorted.
func (s *Static) Symbols() []string {
	out := make([]string, 0, len(s.prices))
	for sym := range s.prices {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
