package money

import (
	"errors"
	"strings"
)

// DefaultCurrency is used for tiers and quotes that omit a currency code.
const DefaultCurrency = "VND"

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

// Money keeps amounts in integer minor units of the currency. VND has no
// minor unit so one unit is one dong.
type Money struct {
	Amount   int64
	Currency string
}

func New(amount int64, currency string) (Money, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}, nil
}

// Must panics on an invalid currency; fixtures and tests only.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// SubFloor subtracts other and clamps the result at zero.
func (m Money) SubFloor(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	amount := m.Amount - other.Amount
	if amount < 0 {
		amount = 0
	}
	return Money{Amount: amount, Currency: m.Currency}, nil
}

func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount * times, Currency: m.Currency}
}

// Percent returns pct percent of the amount rounded half up to a whole unit.
func (m Money) Percent(pct int64) Money {
	return Money{Amount: (m.Amount*pct + 50) / 100, Currency: m.Currency}
}

// Distance is the absolute difference between two amounts in the same currency.
func (m Money) Distance(other Money) (int64, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return 0, err
	}
	d := m.Amount - other.Amount
	if d < 0 {
		d = -d
	}
	return d, nil
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
