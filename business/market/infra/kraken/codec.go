package kraken

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/business/market/infra/syncer"
	"github.com/fd1az/depth-compare/internal/asset"
)

const bookChannel = "book"

// The book channel accepts these depths only.
var streamDepths = []int{10, 25, 100, 500, 1000}

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

// Symbol returns the v2 symbol, e.g. "BTC/USD".
func (codec) Symbol(pair asset.Pair) string {
	return pair.Join("/")
}

func (c codec) SubscribeFrame(pair asset.Pair, id int64) any {
	return wsRequest{
		Method: "subscribe",
		Params: subscribeParams{Channel: bookChannel, Symbol: []string{pair.Join("/")}, Depth: c.depth},
		ReqID:  id,
	}
}

func (c codec) UnsubscribeFrame(pair asset.Pair, id int64) any {
	return wsRequest{
		Method: "unsubscribe",
		Params: subscribeParams{Channel: bookChannel, Symbol: []string{pair.Join("/")}, Depth: c.depth},
		ReqID:  id,
	}
}

func (codec) Decode(msg []byte) ([]syncer.Event, error) {
	var m wsMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}

	if m.Method != "" {
		if m.Success != nil && !*m.Success {
			return nil, &apiError{Messages: []string{m.Method + ": " + m.Error}}
		}
		return nil, nil
	}
	if m.Channel != bookChannel {
		return nil, nil
	}

	var snapshot bool
	switch m.Type {
	case "snapshot":
		snapshot = true
	case "update":
	default:
		return nil, fmt.Errorf("book push type %q", m.Type)
	}

	var books []wsBook
	if err := json.Unmarshal(m.Data, &books); err != nil {
		return nil, err
	}

	events := make([]syncer.Event, 0, len(books))
	for _, b := range books {
		if b.Symbol == "" {
			return nil, errors.New("book push without symbol")
		}
		// Snapshots may omit the timestamp; a zero marker lets every later
		// update win.
		var marker domain.Marker
		if b.Timestamp != "" {
			ts, err := time.Parse(time.RFC3339Nano, b.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("timestamp %q: %w", b.Timestamp, err)
			}
			marker = domain.TimestampMarker(ts)
		}
		events = append(events, syncer.Event{
			Symbol:   b.Symbol,
			Snapshot: snapshot,
			Bids:     wsLevels(b.Bids),
			Asks:     wsLevels(b.Asks),
			Marker:   marker,
		})
	}
	return events, nil
}

func wsLevels(raw []wsLevel) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, l := range raw {
		levels = append(levels, domain.PriceLevel{Price: l.Price, Quantity: l.Qty})
	}
	return levels
}
