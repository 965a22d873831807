// Package money provides fixed-point monetary arithmetic for cost records.
// Amounts carry full precision through intermediate calculations and are
// quantized to six fractional digits (round-half-even) at record boundaries.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// CostScale is the number of fractional digits persisted on monetary fields.
const CostScale = 6

func newContext() *apd.Context {
	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Rounding = apd.RoundHalfEven
	return ctx
}

// Amount is an immutable fixed-point decimal value.
type Amount struct {
	value apd.Decimal
}

// Zero returns a zero amount.
func Zero() Amount {
	return Amount{}
}

// FromString parses a decimal string.
func FromString(s string) (Amount, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Amount{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Amount{value: d}, nil
}

// MustFromString parses a decimal string and panics on failure. Intended for
// constants and tests.
func MustFromString(s string) Amount {
	a, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromInt64 converts an integer to an amount.
func FromInt64(i int64) Amount {
	var d apd.Decimal
	d.SetInt64(i)
	return Amount{value: d}
}

// FromFloat64 converts a float to an amount. Precision is limited by the
// float representation; prefer FromString for exact inputs.
func FromFloat64(f float64) Amount {
	var d apd.Decimal
	if _, err := d.SetFloat64(f); err != nil {
		return Amount{}
	}
	return Amount{value: d}
}

func (a Amount) String() string {
	return a.value.Text('f')
}

// Float64 returns the closest float64 representation. Used by the analytics
// layer, which works in floating point.
func (a Amount) Float64() float64 {
	f, err := a.value.Float64()
	if err != nil {
		return 0
	}
	return f
}

func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

func (a Amount) IsNegative() bool {
	return a.value.Negative && !a.value.IsZero()
}

func (a Amount) Cmp(other Amount) int {
	return a.value.Cmp(&other.value)
}

func (a Amount) Add(other Amount) Amount {
	var result apd.Decimal
	newContext().Add(&result, &a.value, &other.value)
	return Amount{value: result}
}

func (a Amount) Sub(other Amount) Amount {
	var result apd.Decimal
	newContext().Sub(&result, &a.value, &other.value)
	return Amount{value: result}
}

func (a Amount) Mul(other Amount) Amount {
	var result apd.Decimal
	newContext().Mul(&result, &a.value, &other.value)
	return Amount{value: result}
}

// Div returns a/other, or zero when other is zero.
func (a Amount) Div(other Amount) Amount {
	if other.value.IsZero() {
		return Amount{}
	}
	var result apd.Decimal
	newContext().Quo(&result, &a.value, &other.value)
	return Amount{value: result}
}

// MulFloat multiplies by a float factor (rates, multipliers).
func (a Amount) MulFloat(f float64) Amount {
	return a.Mul(FromFloat64(f))
}

// Round quantizes to CostScale fractional digits using round-half-even.
func (a Amount) Round() Amount {
	var result apd.Decimal
	newContext().Quantize(&result, &a.value, -CostScale)
	return Amount{value: result}
}

// ClampZero returns zero when the amount is negative, otherwise the amount
// unchanged. Costing uses this so arithmetic never yields negative currency.
func (a Amount) ClampZero() (Amount, bool) {
	if a.IsNegative() {
		return Amount{}, true
	}
	return a, false
}

// Value implements driver.Valuer; amounts persist as decimal strings.
func (a Amount) Value() (driver.Value, error) {
	return a.Round().String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		parsed, err := FromString(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		return a.Scan(string(v))
	case float64:
		*a = FromFloat64(v)
		return nil
	case int64:
		*a = FromInt64(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into money.Amount", src)
	}
}

// MarshalJSON renders the amount as a JSON string to avoid float precision
// loss on the wire.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" || s == "" {
		*a = Amount{}
		return nil
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
