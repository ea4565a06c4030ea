// Package money converts between store numerics and exact decimals.
// All arithmetic happens on decimal.Decimal; rounding to currency precision
// happens only when a value leaves the process (store writes, JSON).
package money

import (
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Places is the currency precision.
const Places = 2

// QuantityPlaces is the precision of inventory quantities.
const QuantityPlaces = 3

// FromNumeric converts a pgtype.Numeric to a decimal. NULL and malformed values are zero.
func FromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	s, ok := val.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ToNumeric rounds d to currency precision and converts it for the store.
func ToNumeric(d decimal.Decimal) pgtype.Numeric {
	return toNumeric(d, Places)
}

// QuantityToNumeric rounds d to quantity precision and converts it for the store.
func QuantityToNumeric(d decimal.Decimal) pgtype.Numeric {
	return toNumeric(d, QuantityPlaces)
}

func toNumeric(d decimal.Decimal, places int32) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(places))
	return n
}

// NullableToNumeric maps nil to SQL NULL.
func NullableToNumeric(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{}
	}
	return ToNumeric(*d)
}

// Round rounds half away from zero to currency precision.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// String formats d with exactly two decimals.
func String(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// Amount is a currency value that marshals as a plain JSON number with two decimals.
type Amount decimal.Decimal

// NewAmount converts a store numeric into an Amount.
func NewAmount(n pgtype.Numeric) Amount {
	return Amount(FromNumeric(n))
}

// NewAmountPtr is NewAmount for nullable columns.
func NewAmountPtr(n pgtype.Numeric) *Amount {
	if !n.Valid {
		return nil
	}
	a := NewAmount(n)
	return &a
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).StringFixed(Places)), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	*a = Amount(d)
	return nil
}

// Decimal returns the underlying decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.Decimal(a)
}

// Quantity is an inventory quantity that marshals as a JSON number with three decimals.
type Quantity decimal.Decimal

func NewQuantity(n pgtype.Numeric) Quantity {
	return Quantity(FromNumeric(n))
}

func NewQuantityPtr(n pgtype.Numeric) *Quantity {
	if !n.Valid {
		return nil
	}
	q := NewQuantity(n)
	return &q
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(q).StringFixed(QuantityPlaces)), nil
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	*q = Quantity(d)
	return nil
}

func (q Quantity) Decimal() decimal.Decimal {
	return decimal.Decimal(q)
}
