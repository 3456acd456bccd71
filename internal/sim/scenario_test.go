package sim

import (
	"testing"

	"tradebook.org/internal/ledger"
)

func TestGeneratorDeterministic(t *testing.T) {
	g1 := NewGenerator(99)
	g2 := NewGenerator(99)

	for i := 0; i < 50; i++ {
		a, b := g1.NextAction(), g2.NextAction()
		if a.Kind != b.Kind || a.Symbol != b.Symbol || a.Quantity != b.Quantity ||
			!a.Amount.Equal(b.Amount) || a.Narrative != b.Narrative {
			t.Fatalf("step %d diverged: %+v vs %+v", i, a, b)
		}
	}
}

func TestGeneratorCoversAllKinds(t *testing.T) {
	g := NewGenerator(7)
	seen := map[ledger.Kind]bool{}
	for i := 0; i < 1000; i++ {
		a := g.NextAction()
		seen[a.Kind] = true
		switch a.Kind {
		case ledger.KindDeposit, ledger.KindWithdraw:
			if !a.Amount.IsPositive() || a.Symbol != "" {
				t.Fatalf("malformed cash action: %+v", a)
			}
		case ledger.KindBuy, ledger.KindSell:
			if a.Quantity < 1 || a.Symbol == "" {
				t.Fatalf("malformed order: %+v", a)
			}
		}
	}
	for _, kind := range []ledger.Kind{ledger.KindDeposit, ledger.KindWithdraw, ledger.KindBuy, ledger.KindSell} {
		if !seen[kind] {
			t.Fatalf("kind %s never generated", kind)
		}
	}
}

func TestCounterRecord(t *testing.T) {
	var c Counter

	c.Record(Action{Kind: ledger.KindDeposit, Amount: ledger.MustMoney("100.00")}, true)
	c.Record(Action{Kind: ledger.KindBuy, Symbol: "AAPL", Quantity: 3}, true)
	c.Record(Action{Kind: ledger.KindSell, Symbol: "AAPL", Quantity: 5}, false)

	if c.Actions != 3 || c.Accepted != 2 || c.Rejected != 1 {
		t.Fatalf("unexpected counts: %+v", c)
	}
	if c.SharesTraded != 3 {
		t.Fatalf("unexpected shares: %d", c.SharesTraded)
	}
	if c.CashMoved.String() != "100.00" {
		t.Fatalf("unexpected cash moved: %s", c.CashMoved)
	}
}

func TestOverrideTraders(t *testing.T) {
	g := NewGenerator(1)
	custom := []Trader{{Owner: "sim-test", Initial: ledger.MustMoney("1.00")}}
	g.OverrideTraders(custom)

	got := g.Traders()
	if len(got) != 1 || got[0].Owner != "sim-test" {
		t.Fatalf("unexpected traders: %+v", got)
	}
	// The accessor hands out copies.
	got[0].Owner = "changed"
	if g.Traders()[0].Owner != "sim-test" {
		t.Fatal("Traders must return a copy")
	}
}
