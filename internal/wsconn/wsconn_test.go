package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// mockWSServer creates a test WebSocket server running handler per connection.
func mockWSServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		if handler != nil {
			handler(conn)
		}
	}))
}

// drain reads until the peer goes away.
func drain(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func echoHandler(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, msgType, data); err != nil {
			return
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newTestClient(t *testing.T, url string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig(url, "test")
	cfg.PingInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestClient_Connect_Success(t *testing.T) {
	server := mockWSServer(t, drain)
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	if err := client.Connect(testContext(t)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if client.State() != StateConnected {
		t.Errorf("expected state %v, got %v", StateConnected, client.State())
	}
	if !client.IsConnected() {
		t.Error("expected IsConnected() to return true")
	}
}

func TestClient_Connect_Failure(t *testing.T) {
	client := newTestClient(t, "ws://localhost:59999", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err == nil {
		t.Fatal("expected Connect to fail with unreachable url")
	}
	if client.State() != StateDisconnected {
		t.Errorf("expected state %v, got %v", StateDisconnected, client.State())
	}
}

func TestClient_SendJSON(t *testing.T) {
	received := make(chan []byte, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		received <- data
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)
	ctx := testContext(t)
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	payload := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"orderbook.50.BTCUSDT"},
	}
	if err := client.SendJSON(ctx, payload); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}

	select {
	case data := <-received:
		var parsed map[string]interface{}
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("received data is not valid JSON: %v\ndata: %s", err, data)
		}
		if parsed["op"] != "subscribe" {
			t.Errorf("expected op=subscribe, got %v", parsed["op"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive message")
	}
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	client := newTestClient(t, "ws://localhost:59999", nil)
	if err := client.Send(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected Send to fail before Connect")
	}
}

func TestClient_MessageHandling(t *testing.T) {
	server := mockWSServer(t, echoHandler)
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	got := make(chan []byte, 1)
	client.OnMessage(func(ctx context.Context, msg []byte) {
		got <- msg
	})

	ctx := testContext(t)
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	testMsg := []byte(`{"topic":"orderbook.50.BTCUSDT","type":"delta"}`)
	if err := client.Send(ctx, testMsg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case msg := <-got:
		if string(msg) != string(testMsg) {
			t.Errorf("expected %s, got %s", testMsg, msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestClient_StateChangeHandler(t *testing.T) {
	server := mockWSServer(t, drain)
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	var states []State
	var mu sync.Mutex
	client.OnStateChange(func(state State, err error) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	if err := client.Connect(testContext(t)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(states) < 2 {
		t.Fatalf("expected at least 2 state changes, got %d: %v", len(states), states)
	}
	if states[0] != StateConnecting {
		t.Errorf("expected first state to be Connecting, got %v", states[0])
	}
	if states[1] != StateConnected {
		t.Errorf("expected second state to be Connected, got %v", states[1])
	}
}

func TestClient_GracefulClose(t *testing.T) {
	server := mockWSServer(t, drain)
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)
	if err := client.Connect(testContext(t)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if client.State() != StateClosed {
		t.Errorf("expected state %v, got %v", StateClosed, client.State())
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close should not error: %v", err)
	}
	if err := client.Connect(context.Background()); err == nil {
		t.Error("expected Connect after Close to fail")
	}
}

func TestClient_ConcurrentSend(t *testing.T) {
	var msgCount atomic.Int32

	server := mockWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
			msgCount.Add(1)
		}
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)
	ctx := testContext(t)
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	const workers = 10
	const perWorker = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if err := client.SendJSON(ctx, map[string]int{"worker": id, "msg": j}); err != nil {
					t.Errorf("SendJSON failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && msgCount.Load() < workers*perWorker {
		time.Sleep(10 * time.Millisecond)
	}
	if got := msgCount.Load(); got != workers*perWorker {
		t.Errorf("expected %d messages, server received %d", workers*perWorker, got)
	}
}

func TestClient_MaxMessageSize(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		largeMsg := []byte(strings.Repeat("A", 1024*1024))
		conn.Write(context.Background(), websocket.MessageText, largeMsg)
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), func(cfg *Config) {
		cfg.MaxMessageSize = 100
	})

	if err := client.Connect(testContext(t)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if client.State() == StateConnected {
		t.Error("expected client to disconnect after receiving oversized message")
	}
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	var conns atomic.Int32

	server := mockWSServer(t, func(conn *websocket.Conn) {
		if conns.Add(1) == 1 {
			// Drop the first connection right away.
			return
		}
		drain(conn)
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), func(cfg *Config) {
		cfg.InitialBackoff = 20 * time.Millisecond
		cfg.MaxBackoff = 50 * time.Millisecond
	})

	reconnected := make(chan struct{}, 1)
	var sawReconnecting atomic.Bool
	client.OnStateChange(func(state State, err error) {
		switch state {
		case StateReconnecting:
			sawReconnecting.Store(true)
		case StateConnected:
			if sawReconnecting.Load() {
				select {
				case reconnected <- struct{}{}:
				default:
				}
			}
		}
	})

	if err := client.Connect(testContext(t)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case <-reconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("client did not reconnect")
	}

	if client.Reconnects() != 1 {
		t.Errorf("expected 1 reconnect, got %d", client.Reconnects())
	}
}

func TestClient_BackoffIsCappedWithJitter(t *testing.T) {
	client := newTestClient(t, "ws://localhost:1", func(cfg *Config) {
		cfg.InitialBackoff = 100 * time.Millisecond
		cfg.MaxBackoff = 400 * time.Millisecond
		cfg.Jitter = 0.5
	})

	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{1, 100 * time.Millisecond, 150 * time.Millisecond},
		{2, 200 * time.Millisecond, 300 * time.Millisecond},
		{3, 400 * time.Millisecond, 600 * time.Millisecond},
		{10, 400 * time.Millisecond, 600 * time.Millisecond},
	}

	for _, tt := range tests {
		for i := 0; i < 20; i++ {
			d := client.backoff(tt.attempt)
			if d < tt.min || d > tt.max {
				t.Fatalf("attempt %d: backoff %v outside [%v, %v]", tt.attempt, d, tt.min, tt.max)
			}
		}
	}
}
