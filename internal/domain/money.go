package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount in a single currency. Currency codes are
// ISO 4217; arithmetic across currencies is a programming error and panics.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney builds Money from a decimal string such as "11.00".
// Panics on a malformed amount; use it for constants and config, not input.
func NewMoney(amount, currency string) Money {
	return Money{Amount: decimal.RequireFromString(amount), Currency: currency}
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) IsZero() bool { return m.Amount.IsZero() }

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}

// Add returns m + other. Currencies must match.
func (m Money) Add(other Money) Money {
	m.assertCurrency(other)
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

// Sub returns m - other. Currencies must match.
func (m Money) Sub(other Money) Money {
	m.assertCurrency(other)
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}
}

// MulInt returns m * n.
func (m Money) MulInt(n int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(n))), Currency: m.Currency}
}

// MulFraction returns m * f rounded to two decimal places.
func (m Money) MulFraction(f decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(f).Round(2), Currency: m.Currency}
}

// Equal reports amount and currency equality.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) assertCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("currency mismatch: %s vs %s", m.Currency, other.Currency))
	}
}
