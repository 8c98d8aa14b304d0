package binance

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/business/market/infra/syncer"
	"github.com/fd1az/depth-compare/internal/asset"
)

const (
	eventDepthUpdate = "depthUpdate"
	depthSpeed       = "100ms"
)

// codec speaks the raw /ws endpoint with dynamic SUBSCRIBE frames.
type codec struct{}

var _ syncer.Codec = codec{}

func (codec) Symbol(pair asset.Pair) string {
	return pair.Concat()
}

func streamName(pair asset.Pair) string {
	return fmt.Sprintf("%s@depth@%s", strings.ToLower(pair.Concat()), depthSpeed)
}

func (codec) SubscribeFrame(pair asset.Pair, id int64) any {
	return wsRequest{Method: "SUBSCRIBE", Params: []string{streamName(pair)}, ID: id}
}

func (codec) UnsubscribeFrame(pair asset.Pair, id int64) any {
	return wsRequest{Method: "UNSUBSCRIBE", Params: []string{streamName(pair)}, ID: id}
}

func (codec) Decode(msg []byte) ([]syncer.Event, error) {
	// "E" is declared so the event time never lands in EventType: json
	// falls back to case-insensitive key matching.
	var probe struct {
		EventType string          `json:"e"`
		EventTime int64           `json:"E"`
		ID        json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		return nil, err
	}

	if probe.EventType != eventDepthUpdate {
		if len(probe.ID) > 0 {
			var resp wsResponse
			if err := json.Unmarshal(msg, &resp); err != nil {
				return nil, err
			}
			if resp.Error != nil {
				return nil, resp.Error
			}
		}
		return nil, nil
	}

	var ev depthUpdateEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return nil, err
	}
	if ev.Symbol == "" || ev.FinalUpdateID < ev.FirstUpdateID {
		return nil, fmt.Errorf("depth update %q: bad update range [%d, %d]", ev.Symbol, ev.FirstUpdateID, ev.FinalUpdateID)
	}

	bids, err := syncer.ParseLevels(ev.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := syncer.ParseLevels(ev.Asks)
	if err != nil {
		return nil, err
	}

	return []syncer.Event{{
		Symbol: ev.Symbol,
		Bids:   bids,
		Asks:   asks,
		Marker: domain.SequenceMarker(ev.FirstUpdateID, ev.FinalUpdateID),
	}}, nil
}
