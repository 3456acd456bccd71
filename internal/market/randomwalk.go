package market

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradebook.org/internal/ledger"
)

// RandomWalk nudges a base board by a bounded step on every lookup. Prices
// stay positive and truncated to two digits. With a moving board the
// flat-profit property of a fixed board no longer holds.
type RandomWalk struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	spread int // max step per lookup, basis points
	prices map[string]ledger.Money
}

// NewRandomWalk seeds a walk over base (nil means DefaultBoard). spreadBP
// caps the per-lookup move; 0 defaults to 200 (2%). seed 0 uses the clock.
func NewRandomWalk(base map[string]ledger.Money, spreadBP int, seed int64) *RandomWalk {
	if base == nil {
		base = DefaultBoard()
	}
	if spreadBP <= 0 {
		spreadBP = 200
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	cp := make(map[string]ledger.Money, len(base))
	for sym, p := range base {
		cp[sym] = p
	}
	return &RandomWalk{
		rnd:    rand.New(rand.NewSource(seed)),
		spread: spreadBP,
		prices: cp,
	}
}

// Price implements ledger.PriceSource. Each call advances the symbol's
// price one step.
func (w *RandomWalk) Price(symbol string) (ledger.Money, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.prices[symbol]
	if !ok {
		return ledger.Money{}, fmt.Errorf("%w: %s", ledger.ErrUnknownSymbol, symbol)
	}
	step := int64(w.rnd.Intn(2*w.spread+1) - w.spread)
	next := p.Decimal().Mul(decimal.NewFromInt(10000 + step)).Div(decimal.NewFromInt(10000))
	price := ledger.MoneyFromDecimal(next).Truncate()
	if !price.IsPositive() {
		price = ledger.MustMoney("0.01")
	}
	w.prices[symbol] = price
	return price, nil
}

// Symbols lists the walk's symbols, sorted.
func (w *RandomWalk) Symbols() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.prices))
	for sym := range w.prices {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
