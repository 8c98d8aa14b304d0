// Package okx synchronizes OKX spot order books from the v5 public books
// channel.
package okx

import (
	"encoding/json"
	"fmt"
)

type channelArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// wsRequest is an op frame.
type wsRequest struct {
	ID   string       `json:"id,omitempty"`
	Op   string       `json:"op"`
	Args []channelArg `json:"args"`
}

// wsMessage covers event replies and channel pushes.
type wsMessage struct {
	Event string `json:"event"`
	Code  string `json:"code"`
	Msg   string `json:"msg"`

	Arg    channelArg      `json:"arg"`
	Action string          `json:"action"` // "snapshot" or "update"
	Data   json.RawMessage `json:"data"`
}

// bookData is one books payload, shared by stream and REST. Levels are
// [price, size, deprecated, order count]. Stream snapshots carry
// prevSeqId -1; REST payloads carry no sequence ids at all.
type bookData struct {
	Asks      [][]string `json:"asks"`
	Bids      [][]string `json:"bids"`
	SeqID     int64      `json:"seqId"`
	PrevSeqID int64      `json:"prevSeqId"`
}

// envelope is the REST response wrapper.
type envelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

type instrument struct {
	InstID string `json:"instId"`
	TickSz string `json:"tickSz"`
}

// apiError is a non-"0" code.
type apiError struct {
	Code    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("okx API error %s: %s", e.Code, e.Message)
}
