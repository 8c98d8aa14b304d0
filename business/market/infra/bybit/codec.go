package bybit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/business/market/infra/syncer"
	"github.com/fd1az/depth-compare/internal/asset"
)

const topicPrefix = "orderbook."

// Spot orderbook topics exist for these depths only.
var streamDepths = []int{1, 50, 200, 1000}

type codec struct {
	depth int
}

var _ syncer.Codec = codec{}

func newCodec(depth int) codec {
	for _, d := range streamDepths {
		if depth <= d {
			return codec{depth: d}
		}
	}
	return codec{depth: streamDepths[len(streamDepths)-1]}
}

func (c codec) topic(pair asset.Pair) string {
	return topicPrefix + strconv.Itoa(c.depth) + "." + pair.Concat()
}

func (codec) Symbol(pair asset.Pair) string {
	return pair.Concat()
}

func (c codec) SubscribeFrame(pair asset.Pair, id int64) any {
	return wsRequest{Op: "subscribe", Args: []string{c.topic(pair)}, ReqID: strconv.FormatInt(id, 10)}
}

func (c codec) UnsubscribeFrame(pair asset.Pair, id int64) any {
	return wsRequest{Op: "unsubscribe", Args: []string{c.topic(pair)}, ReqID: strconv.FormatInt(id, 10)}
}

func (codec) Decode(msg []byte) ([]syncer.Event, error) {
	var m wsMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}

	if m.Topic == "" {
		if m.Success != nil && !*m.Success {
			return nil, fmt.Errorf("bybit %s rejected: %s", m.Op, m.RetMsg)
		}
		return nil, nil
	}
	if !strings.HasPrefix(m.Topic, topicPrefix) {
		return nil, nil
	}

	var data bookData
	if err := json.Unmarshal(m.Data, &data); err != nil {
		return nil, err
	}
	if data.Symbol == "" {
		return nil, errors.New("orderbook push without symbol")
	}

	var snapshot bool
	switch m.Type {
	case "snapshot":
		snapshot = true
	case "delta":
	default:
		return nil, fmt.Errorf("orderbook push type %q", m.Type)
	}

	bids, err := syncer.ParseLevels(data.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := syncer.ParseLevels(data.Asks)
	if err != nil {
		return nil, err
	}

	return []syncer.Event{{
		Symbol:   data.Symbol,
		Snapshot: snapshot,
		Bids:     bids,
		Asks:     asks,
		Marker:   domain.SequenceMarker(data.UpdateID, data.UpdateID),
	}}, nil
}
