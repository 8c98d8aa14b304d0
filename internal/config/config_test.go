package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: depth-compare\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.EnabledExchanges(); len(got) != 4 {
		t.Errorf("expected 4 enabled exchanges, got %v", got)
	}
	if cfg.Compare.Debounce != 120*time.Millisecond {
		t.Errorf("debounce = %v, want 120ms", cfg.Compare.Debounce)
	}
	if cfg.Oracle.TTL != 60*time.Second {
		t.Errorf("oracle ttl = %v, want 60s", cfg.Oracle.TTL)
	}
	binance := cfg.Exchanges[ExchangeBinance]
	if binance.EmitInterval != time.Second {
		t.Errorf("emit interval = %v, want 1s", binance.EmitInterval)
	}
	if binance.SnapshotDepth != 1000 {
		t.Errorf("snapshot depth = %d, want 1000", binance.SnapshotDepth)
	}
	if cfg.Oracle.CoinGeckoIDs["btc"] != "bitcoin" {
		t.Errorf("coingecko id for btc = %q", cfg.Oracle.CoinGeckoIDs["btc"])
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
exchanges:
  kraken:
    enabled: false
  binance:
    buffer_capacity: 50
    fee:
      tier: VIP1
      fee_asset: BNB
compare:
  pair: ETH-USDC
  side: sell
  size: "2500"
  size_asset: quote
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, name := range cfg.EnabledExchanges() {
		if name == ExchangeKraken {
			t.Error("kraken should be disabled")
		}
	}
	binance := cfg.Exchanges[ExchangeBinance]
	if binance.BufferCapacity != 50 {
		t.Errorf("buffer capacity = %d, want 50", binance.BufferCapacity)
	}
	if binance.Fee.Tier != "VIP1" || binance.Fee.FeeAsset != "BNB" {
		t.Errorf("fee account = %+v", binance.Fee)
	}
	// Keys not in the file keep their defaults.
	if binance.SnapshotAttempts != 5 {
		t.Errorf("snapshot attempts = %d, want 5", binance.SnapshotAttempts)
	}
	pair, err := cfg.Compare.TradingPair()
	if err != nil || pair.String() != "ETH-USDC" {
		t.Errorf("pair = %v, %v", pair, err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DC_SIZE", "0.25")
	t.Setenv("DC_SIDE", "sell")

	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Compare.Size != "0.25" || cfg.Compare.Side != "sell" {
		t.Errorf("compare = %+v", cfg.Compare)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"zero size", "compare:\n  size: \"0\"\n", true},
		{"bad side", "compare:\n  side: hold\n", true},
		{"bad size asset", "compare:\n  size_asset: fee\n", true},
		{"bad pair", "compare:\n  pair: BTCUSDT\n", true},
		{"bad custom rate", "exchanges:\n  okx:\n    fee:\n      custom_rate: cheap\n", true},
		{"redis without addr", "redis:\n  enabled: true\n  addr: \"\"\n", true},
		{"audit without dsn", "audit:\n  enabled: true\n", true},
		{"unknown exchange", "exchanges:\n  kucoin:\n    enabled: true\n    websocket_url: wss://x\n    rest_url: https://x\n    buffer_capacity: 1\n    emit_interval: 1s\n    snapshot_attempts: 1\n", true},
		{"mid reference", "compare:\n  reference_price: mid\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFeeAccountConfig_CustomRateDecimal(t *testing.T) {
	rate, err := FeeAccountConfig{}.CustomRateDecimal()
	if err != nil || rate != nil {
		t.Fatalf("empty custom rate: %v, %v", rate, err)
	}
	rate, err = FeeAccountConfig{CustomRate: "0.0004"}.CustomRateDecimal()
	if err != nil || rate == nil || rate.String() != "0.0004" {
		t.Fatalf("custom rate: %v, %v", rate, err)
	}
}
