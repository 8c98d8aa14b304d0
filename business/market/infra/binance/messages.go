// Package binance synchronizes Binance spot order books from the diff depth
// stream and the REST depth snapshot.
package binance

import "encoding/json"

// wsRequest is a SUBSCRIBE or UNSUBSCRIBE frame.
type wsRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// wsResponse acknowledges a request. Result is null on success.
type wsResponse struct {
	Result json.RawMessage `json:"result"`
	ID     *int64          `json:"id"`
	Error  *apiError       `json:"error"`
}

// depthUpdateEvent is a diff depth update.
// Stream: <symbol>@depth@100ms
type depthUpdateEvent struct {
	EventType     string     `json:"e"` // "depthUpdate"
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// depthResponse is the REST depth snapshot.
type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// exchangeInfoResponse carries symbol filters; only PRICE_FILTER is read.
type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
		} `json:"filters"`
	} `json:"symbols"`
}
