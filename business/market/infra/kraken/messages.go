// Package kraken synchronizes Kraken spot order books from the v2 book
// channel.
package kraken

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type subscribeParams struct {
	Channel string   `json:"channel"`
	Symbol  []string `json:"symbol"`
	Depth   int      `json:"depth,omitempty"`
}

// wsRequest is a method frame.
type wsRequest struct {
	Method string          `json:"method"`
	Params subscribeParams `json:"params"`
	ReqID  int64           `json:"req_id"`
}

// wsMessage covers method acks, heartbeats, status and book pushes.
type wsMessage struct {
	Method  string `json:"method"`
	Success *bool  `json:"success"`
	Error   string `json:"error"`

	Channel string          `json:"channel"`
	Type    string          `json:"type"` // "snapshot" or "update"
	Data    json.RawMessage `json:"data"`
}

type wsLevel struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

// wsBook omits checksum: it is computed over the venue's own decimal
// formatting, which decimal.Decimal does not round-trip.
type wsBook struct {
	Symbol    string    `json:"symbol"`
	Bids      []wsLevel `json:"bids"`
	Asks      []wsLevel `json:"asks"`
	Timestamp string    `json:"timestamp"`
}

// restLevel is [price, volume, unix seconds].
type restLevel [3]json.RawMessage

type restBook struct {
	Asks []restLevel `json:"asks"`
	Bids []restLevel `json:"bids"`
}

type assetPairInfo struct {
	Altname  string `json:"altname"`
	Wsname   string `json:"wsname"`
	TickSize string `json:"tick_size"`
}

// envelope is the REST response wrapper; result is keyed by Kraken's
// internal pair name.
type envelope[T any] struct {
	Error  []string     `json:"error"`
	Result map[string]T `json:"result"`
}

// apiError carries Kraken's error strings, e.g. "EQuery:Unknown asset pair".
type apiError struct {
	Messages []string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("kraken API error: %s", strings.Join(e.Messages, "; "))
}
