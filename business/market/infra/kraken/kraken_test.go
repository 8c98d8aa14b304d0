package kraken

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/config"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var btcusd = asset.NewPair("BTC", "USD")

func TestCodec_Decode(t *testing.T) {
	tests := []struct {
		name         string
		msg          string
		wantEvents   int
		wantSnapshot bool
		wantErr      bool
	}{
		{
			name:         "snapshot",
			msg:          `{"channel":"book","type":"snapshot","data":[{"symbol":"BTC/USD","bids":[{"price":45283.5,"qty":0.1}],"asks":[{"price":45285.2,"qty":0.00100000}],"checksum":3310070434}]}`,
			wantEvents:   1,
			wantSnapshot: true,
		},
		{
			name:       "update",
			msg:        `{"channel":"book","type":"update","data":[{"symbol":"BTC/USD","bids":[{"price":45283.5,"qty":0}],"asks":[],"checksum":1,"timestamp":"2023-10-06T17:35:55.440295Z"}]}`,
			wantEvents: 1,
		},
		{name: "heartbeat", msg: `{"channel":"heartbeat"}`},
		{name: "status", msg: `{"channel":"status","type":"update","data":[{"system":"online"}]}`},
		{name: "ack", msg: `{"method":"subscribe","result":{"channel":"book"},"success":true,"req_id":1}`},
		{name: "rejected", msg: `{"method":"subscribe","error":"Currency pair not supported","success":false,"req_id":1}`, wantErr: true},
		{name: "bad timestamp", msg: `{"channel":"book","type":"update","data":[{"symbol":"BTC/USD","bids":[],"asks":[],"timestamp":"yesterday"}]}`, wantErr: true},
		{name: "no symbol", msg: `{"channel":"book","type":"update","data":[{"bids":[],"asks":[]}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := newCodec(500).Decode([]byte(tt.msg))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(events) != tt.wantEvents {
				t.Fatalf("got %d events, want %d", len(events), tt.wantEvents)
			}
			if len(events) == 1 && events[0].Snapshot != tt.wantSnapshot {
				t.Errorf("Snapshot = %v", events[0].Snapshot)
			}
		})
	}
}

func TestCodec_NumericLevelsKeepPrecision(t *testing.T) {
	events, err := newCodec(10).Decode([]byte(`{"channel":"book","type":"update","data":[{"symbol":"BTC/USD","bids":[{"price":0.1,"qty":0.30000000000000004}],"asks":[],"timestamp":"2023-10-06T17:35:55.440Z"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	ev := events[0]
	if ev.Bids[0].Quantity.String() != "0.30000000000000004" {
		t.Errorf("qty = %s", ev.Bids[0].Quantity)
	}
	want := time.Date(2023, 10, 6, 17, 35, 55, 440_000_000, time.UTC).UnixMilli()
	if ev.Marker.Last != want {
		t.Errorf("marker = %d, want %d", ev.Marker.Last, want)
	}
}

func TestCodec_Frames(t *testing.T) {
	frame, err := json.Marshal(newCodec(300).SubscribeFrame(btcusd, 4))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"method":"subscribe","params":{"channel":"book","symbol":["BTC/USD"],"depth":500},"req_id":4}`
	if string(frame) != want {
		t.Errorf("frame = %s, want %s", frame, want)
	}
}

func TestRestPair(t *testing.T) {
	if got := restPair(btcusd); got != "XBTUSD" {
		t.Errorf("restPair(BTC-USD) = %s", got)
	}
	if got := restPair(asset.NewPair("ETH", "USDT")); got != "ETHUSDT" {
		t.Errorf("restPair(ETH-USDT) = %s", got)
	}
}

func TestRESTClient_FetchSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pair"); got != "XBTUSD" {
			t.Errorf("pair = %s", got)
		}
		w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{
			"asks":[["30384.10000","2.059",1688671659]],
			"bids":[["30384.00000","0.500",1688671834],["30383.90000","1.000",1688671000]]}}}`))
	}))
	defer server.Close()

	client, err := NewRESTClient(RESTConfig{BaseURL: server.URL}, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	snap, err := client.FetchSnapshot(context.Background(), btcusd, 500)
	if err != nil {
		t.Fatalf("FetchSnapshot() error = %v", err)
	}
	if snap.Marker.Last != 1688671834000 {
		t.Errorf("marker = %d, want newest level time in ms", snap.Marker.Last)
	}
	if len(snap.Bids) != 2 || !snap.Asks[0].Price.Equal(decimal.RequireFromString("30384.1")) {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestRESTClient_ErrorArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":["EQuery:Unknown asset pair"]}`))
	}))
	defer server.Close()

	client, err := NewRESTClient(RESTConfig{BaseURL: server.URL}, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.FetchSnapshot(context.Background(), btcusd, 10)
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Messages[0] != "EQuery:Unknown asset pair" {
		t.Errorf("error = %v", err)
	}

	_, err = client.TickSize(context.Background(), btcusd)
	if !errors.Is(err, apperror.New(apperror.CodeTickSizeUnavailable)) {
		t.Errorf("tick size error = %v", err)
	}
}

func TestRESTClient_TickSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{"altname":"XBTUSD","wsname":"XBT/USD","tick_size":"0.1"}}}`))
	}))
	defer server.Close()

	client, err := NewRESTClient(RESTConfig{BaseURL: server.URL}, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	tick, err := client.TickSize(context.Background(), btcusd)
	if err != nil {
		t.Fatal(err)
	}
	if !tick.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("tick = %s", tick)
	}
}

// TestSynchronizer_LastWriteWins: an update stamped before the last applied
// one is dropped without forcing a resync.
func TestSynchronizer_LastWriteWins(t *testing.T) {
	rest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{"asks":[["110","1",1]],"bids":[["90","1",1]]}}}`))
	}))
	defer rest.Close()

	stream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()

		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
		for _, msg := range []string{
			`{"method":"subscribe","success":true,"req_id":1}`,
			`{"channel":"book","type":"snapshot","data":[{"symbol":"BTC/USD","bids":[{"price":100,"qty":1}],"asks":[{"price":101,"qty":1}]}]}`,
			`{"channel":"book","type":"update","data":[{"symbol":"BTC/USD","bids":[{"price":100,"qty":3}],"asks":[],"timestamp":"2024-01-01T00:00:02Z"}]}`,
			`{"channel":"book","type":"update","data":[{"symbol":"BTC/USD","bids":[{"price":100,"qty":9}],"asks":[],"timestamp":"2024-01-01T00:00:01Z"}]}`,
			`{"channel":"book","type":"update","data":[{"symbol":"BTC/USD","bids":[],"asks":[{"price":101,"qty":4}],"timestamp":"2024-01-01T00:00:02Z"}]}`,
		} {
			conn.Write(ctx, websocket.MessageText, []byte(msg))
		}
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	defer stream.Close()

	venue, err := NewSynchronizer(config.ExchangeConfig{
		WebSocketURL:       "ws" + strings.TrimPrefix(stream.URL, "http"),
		RESTURL:            rest.URL,
		SnapshotDepth:      500,
		BufferCapacity:     100,
		EmitInterval:       10 * time.Millisecond,
		SnapshotAttempts:   2,
		SnapshotBackoff:    10 * time.Millisecond,
		SnapshotMaxBackoff: 20 * time.Millisecond,
		ResyncCooldown:     50 * time.Millisecond,
	}, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer venue.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	venue.Start(ctx)
	if err := venue.Watch(ctx, btcusd); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		book, ok := venue.CurrentBook(btcusd)
		if ok && len(book.Asks) == 1 && book.Asks[0].Quantity.Equal(decimal.NewFromInt(4)) {
			if !book.Bids[0].Quantity.Equal(decimal.NewFromInt(3)) {
				t.Errorf("bid qty = %s, want 3: the older update must lose", book.Bids[0].Quantity)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("book never reached the last update; status %+v", venue.Status())
}
