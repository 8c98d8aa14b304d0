// Package bybit synchronizes Bybit spot order books from the v5 public
// orderbook topic.
package bybit

import (
	"encoding/json"
	"fmt"
)

// wsRequest is an op frame.
type wsRequest struct {
	Op    string   `json:"op"`
	Args  []string `json:"args"`
	ReqID string   `json:"req_id"`
}

// wsMessage covers both op acks and topic pushes.
type wsMessage struct {
	// Op acks
	Op      string `json:"op"`
	Success *bool  `json:"success"`
	RetMsg  string `json:"ret_msg"`

	// Topic pushes
	Topic string          `json:"topic"`
	Type  string          `json:"type"` // "snapshot" or "delta"
	TS    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

// bookData is the orderbook payload, shared by stream and REST.
type bookData struct {
	Symbol   string     `json:"s"`
	Bids     [][]string `json:"b"`
	Asks     [][]string `json:"a"`
	UpdateID int64      `json:"u"`
	Seq      int64      `json:"seq"`
}

// envelope is the REST response wrapper.
type envelope[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

type instrumentsResult struct {
	List []struct {
		Symbol      string `json:"symbol"`
		PriceFilter struct {
			TickSize string `json:"tickSize"`
		} `json:"priceFilter"`
	} `json:"list"`
}

// apiError is a non-zero retCode.
type apiError struct {
	Code    int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("bybit API error %d: %s", e.Code, e.Message)
}
