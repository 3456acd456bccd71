package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal cash amount. The canonical scale is two
// fractional digits; Truncate applies it. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// ParseMoney parses a decimal string such as "100.50". The input keeps its
// full precision; callers truncate before storing or comparing.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

// MustMoney is ParseMoney for literals; it panics on bad input.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromDecimal wraps an existing decimal value.
func MoneyFromDecimal(d decimal.Decimal) Money { return Money{d: d} }

// Truncate drops everything past the second fractional digit, toward zero:
// 100.12345 -> 100.12, -0.999 -> -0.99. Never rounds up.
func (m Money) Truncate() Money { return Money{d: m.d.Truncate(2)} }

func (m Money) Add(o Money) Money    { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money    { return Money{d: m.d.Sub(o.d)} }
func (m Money) MulInt(n int64) Money { return Money{d: m.d.Mul(decimal.NewFromInt(n))} }

func (m Money) Cmp(o Money) int          { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool       { return m.d.Equal(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) IsPositive() bool         { return m.d.IsPositive() }
func (m Money) IsNegative() bool         { return m.d.IsNegative() }
func (m Money) IsZero() bool             { return m.d.IsZero() }

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String renders with exactly two fractional digits ("649.50", "-12.30").
func (m Money) String() string { return m.d.StringFixed(2) }

// MarshalJSON encodes Money as a decimal string. Amounts cross API
// boundaries as strings, never as binary floats.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(b))
	}
	m.d = d
	return nil
}
