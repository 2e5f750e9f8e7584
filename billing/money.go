package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Integer currency amounts with exact arithmetic
// =============================================================================

// Money is a currency amount in whole units. Backed by decimal.Decimal so
// arithmetic is exact; premiums, invoice amounts, and balances never pass
// through floating point.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(units int64) Money {
	return Money{Value: decimal.NewFromInt(units)}
}

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func (m Money) Add(other Money) Money { return Money{Value: m.Value.Add(other.Value)} }
func (m Money) Sub(other Money) Money { return Money{Value: m.Value.Sub(other.Value)} }
func (m Money) Neg() Money            { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool          { return m.Value.IsZero() }
func (m Money) IsPositive() bool      { return m.Value.IsPositive() }
func (m Money) IsNegative() bool      { return m.Value.IsNegative() }
func (m Money) Equal(other Money) bool {
	return m.Value.Equal(other.Value)
}
func (m Money) GreaterThan(other Money) bool {
	return m.Value.GreaterThan(other.Value)
}

// SplitBy returns the per-period share of m over n periods, flooring the
// way integer division does. The remainder is NOT redistributed: n invoices
// of SplitBy(n) may sum to less than m. That drift matches the historical
// generation behavior and stays until the rounding policy is revisited with
// the business.
func (m Money) SplitBy(n int) Money {
	return Money{Value: m.Value.Div(decimal.NewFromInt(int64(n))).Floor()}
}

// Units returns the amount as whole currency units (for serialization).
func (m Money) Units() int64 {
	return m.Value.IntPart()
}

func (m Money) String() string {
	return m.Value.String()
}
