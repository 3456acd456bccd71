package sim

import "tradebook.org/internal/ledger"

// Counter accumulates session statistics. Not safe for concurrent use;
// callers with multiple workers guard it themselves.
type Counter struct {
	Actions      int
	Accepted     int
	Rejected     int
	SharesTraded int64
	CashMoved    ledger.Money
}

// Record tallies one attempted action.
func (c *Counter) Record(a Action, accepted bool) {
	c.Actions++
	if !accepted {
		c.Rejected++
		return
	}
	c.Accepted++
	switch a.Kind {
	case ledger.KindBuy, ledger.KindSell:
		c.SharesTraded += a.Quantity
	default:
		c.CashMoved = c.CashMoved.Add(a.Amount)
	}
}
