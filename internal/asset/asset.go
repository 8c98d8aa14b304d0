// Package asset holds asset symbols, trading pairs and the decimal rounding
// rules shared by every monetary calculation.
package asset

import (
	"fmt"
	"strings"
)

// Symbol is an upper-case asset ticker such as "BTC" or "USDT".
type Symbol string

// NewSymbol normalizes s to an upper-case Symbol.
func NewSymbol(s string) Symbol {
	return Symbol(strings.ToUpper(strings.TrimSpace(s)))
}

func (s Symbol) String() string {
	return string(s)
}

// IsZero reports whether the symbol is empty.
func (s Symbol) IsZero() bool {
	return s == ""
}

// Pair is a spot trading pair.
type Pair struct {
	Base  Symbol
	Quote Symbol
}

// NewPair builds a pair from two symbols.
func NewPair(base, quote string) Pair {
	return Pair{Base: NewSymbol(base), Quote: NewSymbol(quote)}
}

// ParsePair parses "BASE-QUOTE" or "BASE/QUOTE".
func ParsePair(s string) (Pair, error) {
	sep := "-"
	if strings.Contains(s, "/") {
		sep = "/"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return Pair{}, fmt.Errorf("asset: invalid pair %q, want BASE-QUOTE", s)
	}
	return NewPair(parts[0], parts[1]), nil
}

// String returns the canonical "BASE-QUOTE" form. Fee schedule pair sets and
// pair patterns match against this form.
func (p Pair) String() string {
	return string(p.Base) + "-" + string(p.Quote)
}

// Concat returns "BASEQUOTE", the symbol form used by Binance and Bybit.
func (p Pair) Concat() string {
	return string(p.Base) + string(p.Quote)
}

// Join returns the pair joined with sep, e.g. "BTC/USDT" for Kraken.
func (p Pair) Join(sep string) string {
	return string(p.Base) + sep + string(p.Quote)
}

// Other returns the counter asset of s within the pair.
func (p Pair) Other(s Symbol) Symbol {
	if s == p.Base {
		return p.Quote
	}
	return p.Base
}

// Contains reports whether s is the base or quote asset.
func (p Pair) Contains(s Symbol) bool {
	return s == p.Base || s == p.Quote
}
