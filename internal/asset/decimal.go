package asset

import (
	"errors"

	"github.com/shopspring/decimal"
)

// DivPrecision is the number of fractional digits kept by Div. Every
// division in cost math goes through Div so results never depend on
// decimal.DivisionPrecision being mutated elsewhere.
const DivPrecision int32 = 18

// RoundingMode selects how a value is rounded to a scale or tick.
type RoundingMode int

const (
	RoundHalfEven RoundingMode = iota
	RoundHalfUp
	RoundFloor
	RoundCeil
	RoundDown
)

// ErrDivisionByZero is returned by SafeDiv.
var ErrDivisionByZero = errors.New("asset: division by zero")

// Div divides a by b at DivPrecision with banker's rounding. b must be
// non-zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.DivRound(b, DivPrecision+2), DivPrecision, RoundHalfEven)
}

// SafeDiv is Div that reports a zero divisor instead of panicking.
func SafeDiv(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, ErrDivisionByZero
	}
	return Div(a, b), nil
}

// Round rounds d to places fractional digits with the given mode.
func Round(d decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	switch mode {
	case RoundHalfUp:
		return d.Round(places)
	case RoundFloor:
		return d.RoundFloor(places)
	case RoundCeil:
		return d.RoundCeil(places)
	case RoundDown:
		return d.Truncate(places)
	default:
		return d.RoundBank(places)
	}
}

// Quantize snaps d onto a multiple of tick. Only RoundFloor and RoundCeil
// are meaningful for price grids; any other mode rounds half-even. A tick
// that is not positive returns d unchanged.
func Quantize(d, tick decimal.Decimal, mode RoundingMode) decimal.Decimal {
	if !tick.IsPositive() {
		return d
	}
	q := d.Div(tick)
	switch mode {
	case RoundFloor:
		q = q.Floor()
	case RoundCeil:
		q = q.Ceil()
	default:
		q = q.RoundBank(0)
	}
	return q.Mul(tick)
}

// ParseDecimal parses an exchange-formatted number.
func ParseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// Canonical returns the map key form of a price: trailing zeros removed so
// "100.50" and "100.5" collide.
func Canonical(d decimal.Decimal) string {
	return d.String()
}
