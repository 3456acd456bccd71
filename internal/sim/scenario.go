// Package sim generates randomized trading sessions for demo and load
// tooling.
package sim

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"tradebook.org/internal/ledger"
)

// Trader seeds one simulated participant.
type Trader struct {
	Owner   string
	Desk    string
	Initial ledger.Money
}

// Action is one generated order or cash movement. Symbol and Quantity are
// set for orders, Amount for cash movements.
type Action struct {
	Kind      ledger.Kind
	Symbol    string
	Quantity  int64
	Amount    ledger.Money
	Narrative string
}

// Scenario names the cast and flavor of a simulated session.
type Scenario struct {
	Name       string
	Traders    []Trader
	Symbols    []string
	Narratives []string
}

// RetailFlowScenario returns the default session: three retail traders
// working the built-in board.
func RetailFlowScenario() Scenario {
	return Scenario{
		Name: "RetailOpeningBell",
		Traders: []Trader{
			{Owner: "sim-ava", Desk: "Momentum retail", Initial: ledger.MustMoney("25000.00")},
			{Owner: "sim-ben", Desk: "Dividend drip", Initial: ledger.MustMoney("10000.00")},
			{Owner: "sim-chloe", Desk: "Swing trader", Initial: ledger.MustMoney("50000.00")},
		},
		Symbols: []string{"AAPL", "TSLA", "GOOGL"},
		Narratives: []string{
			"Chasing the opening gap after earnings",
			"Rebalancing into large caps before the weekend",
			"Taking profits on last week's runner",
			"Topping up cash after a margin scare",
		},
	}
}

type Generator struct {
	scenario Scenario
	rnd      *rand.Rand
}

func NewGenerator(seed int64) Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return Generator{scenario: RetailFlowScenario(), rnd: rand.New(rand.NewSource(seed))}
}

// NextAction draws one weighted action: mostly orders, with enough cash
// movements to keep balances shifting. Rejections downstream (insufficient
// funds or shares) are an expected part of the session.
func (g Generator) NextAction() Action {
	var kind ledger.Kind
	switch roll := g.rnd.Intn(10); {
	case roll < 2:
		kind = ledger.KindDeposit
	case roll < 3:
		kind = ledger.KindWithdraw
	case roll < 7:
		kind = ledger.KindBuy
	default:
		kind = ledger.KindSell
	}

	action := Action{
		Kind:      kind,
		Narrative: g.scenario.Narratives[g.rnd.Intn(len(g.scenario.Narratives))],
	}
	switch kind {
	case ledger.KindDeposit, ledger.KindWithdraw:
		// 10.00 to 2000.00, cent-granular.
		cents := int64(g.rnd.Intn(199_001) + 1_000)
		action.Amount = ledger.MoneyFromDecimal(decimal.New(cents, -2))
	default:
		action.Symbol = g.scenario.Symbols[g.rnd.Intn(len(g.scenario.Symbols))]
		action.Quantity = int64(g.rnd.Intn(9) + 1)
	}
	return action
}

func (g Generator) Traders() []Trader {
	return append([]Trader(nil), g.scenario.Traders...)
}

func (g *Generator) OverrideTraders(traders []Trader) {
	g.scenario.Traders = append([]Trader(nil), traders...)
}
