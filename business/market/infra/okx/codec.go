package okx

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/business/market/infra/syncer"
	"github.com/fd1az/depth-compare/internal/asset"
)

const booksChannel = "books"

type codec struct{}

var _ syncer.Codec = codec{}

// Symbol returns the instId, e.g. "BTC-USDT".
func (codec) Symbol(pair asset.Pair) string {
	return pair.String()
}

func (codec) SubscribeFrame(pair asset.Pair, id int64) any {
	return wsRequest{
		ID:   strconv.FormatInt(id, 10),
		Op:   "subscribe",
		Args: []channelArg{{Channel: booksChannel, InstID: pair.String()}},
	}
}

func (codec) UnsubscribeFrame(pair asset.Pair, id int64) any {
	return wsRequest{
		ID:   strconv.FormatInt(id, 10),
		Op:   "unsubscribe",
		Args: []channelArg{{Channel: booksChannel, InstID: pair.String()}},
	}
}

func (codec) Decode(msg []byte) ([]syncer.Event, error) {
	if string(msg) == "pong" {
		return nil, nil
	}

	var m wsMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}

	switch {
	case m.Event == "error":
		return nil, &apiError{Code: m.Code, Message: m.Msg}
	case m.Event != "":
		return nil, nil
	case m.Arg.Channel != booksChannel:
		return nil, nil
	}

	var snapshot bool
	switch m.Action {
	case "snapshot":
		snapshot = true
	case "update":
	default:
		return nil, fmt.Errorf("books push action %q", m.Action)
	}

	var data []bookData
	if err := json.Unmarshal(m.Data, &data); err != nil {
		return nil, err
	}

	events := make([]syncer.Event, 0, len(data))
	for _, d := range data {
		ev, err := toEvent(m.Arg.InstID, d)
		if err != nil {
			return nil, err
		}
		ev.Snapshot = snapshot
		events = append(events, ev)
	}
	return events, nil
}

func toEvent(instID string, d bookData) (syncer.Event, error) {
	if d.SeqID < 0 {
		return syncer.Event{}, fmt.Errorf("books %s: negative seqId %d", instID, d.SeqID)
	}
	bids, err := syncer.ParseLevels(d.Bids)
	if err != nil {
		return syncer.Event{}, err
	}
	asks, err := syncer.ParseLevels(d.Asks)
	if err != nil {
		return syncer.Event{}, err
	}
	return syncer.Event{
		Symbol: instID,
		Bids:   bids,
		Asks:   asks,
		Marker: domain.LinkedMarker(d.PrevSeqID, d.SeqID),
	}, nil
}
