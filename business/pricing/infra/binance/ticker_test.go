package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

func TestTickerSource_USDPrice(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tickerEndpoint {
			t.Errorf("path = %s", r.URL.Path)
		}
		symbol := r.URL.Query().Get("symbol")
		mu.Lock()
		seen = append(seen, symbol)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch symbol {
		case "BNBUSDC":
			w.Write([]byte(`{"symbol":"BNBUSDC","price":"589.12000000"}`))
		case "ETHUSDT":
			w.Write([]byte(`{"symbol":"ETHUSDT","price":"3401.55"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}
	}))
	defer server.Close()

	src, err := NewTickerSource(TickerConfig{BaseURL: server.URL}, &mockLogger{})
	if err != nil {
		t.Fatalf("NewTickerSource() error = %v", err)
	}

	tests := []struct {
		name    string
		sym     asset.Symbol
		want    string
		wantErr bool
	}{
		{name: "usdt market", sym: asset.ETH, want: "3401.55"},
		{name: "falls through to usdc", sym: asset.BNB, want: "589.12"},
		{name: "no market", sym: asset.Symbol("NOPE"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := src.USDPrice(context.Background(), tt.sym)
			if (err != nil) != tt.wantErr {
				t.Fatalf("USDPrice() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("USDPrice() = %s, want %s", got, tt.want)
			}
		})
	}

	mu.Lock()
	defer mu.Unlock()
	if seen[1] != "BNBUSDT" || seen[2] != "BNBUSDC" {
		t.Errorf("symbols tried = %v", seen)
	}
}

func TestTickerSource_ServerErrorStops(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	src, _ := NewTickerSource(TickerConfig{BaseURL: server.URL}, &mockLogger{})
	if _, err := src.USDPrice(context.Background(), asset.BTC); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
