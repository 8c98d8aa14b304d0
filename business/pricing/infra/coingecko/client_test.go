package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/logger"
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

var _ logger.LoggerInterface = (*mockLogger)(nil)

func TestSource_USDPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != simplePriceEndpoint {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("vs_currencies") != "usd" {
			t.Errorf("vs_currencies = %s", r.URL.Query().Get("vs_currencies"))
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("ids") {
		case "bitcoin":
			w.Write([]byte(`{"bitcoin":{"usd":67187.3312}}`))
		case "okb":
			w.Write([]byte(`{"okb":{"usd":48.1}}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	src, err := NewSource(Config{
		BaseURL: server.URL,
		IDs:     map[string]string{"btc": "bitcoin"},
	}, &mockLogger{})
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	tests := []struct {
		name    string
		sym     asset.Symbol
		want    string
		wantErr bool
	}{
		{name: "configured id", sym: asset.BTC, want: "67187.3312"},
		{name: "ticker as id", sym: asset.OKB, want: "48.1"},
		{name: "unknown coin", sym: asset.Symbol("ZZZ"), wantErr: true},
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
}

func TestSource_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":{"error_code":429}}`))
	}))
	defer server.Close()

	src, _ := NewSource(Config{BaseURL: server.URL}, &mockLogger{})
	if _, err := src.USDPrice(context.Background(), asset.BTC); err == nil {
		t.Fatal("expected error on 429")
	}
}
