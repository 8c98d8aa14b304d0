// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fd1az/depth-compare/internal/asset"
)

// Exchange identifiers with built-in adapters.
const (
	ExchangeBinance = "binance"
	ExchangeBybit   = "bybit"
	ExchangeOKX     = "okx"
	ExchangeKraken  = "kraken"
)

// KnownExchanges lists every exchange with an adapter.
var KnownExchanges = []string{ExchangeBinance, ExchangeBybit, ExchangeOKX, ExchangeKraken}

// Config holds all application configuration.
type Config struct {
	App       AppConfig                 `mapstructure:"app"`
	Telemetry TelemetryConfig           `mapstructure:"telemetry"`
	Health    HealthConfig              `mapstructure:"health"`
	Exchanges map[string]ExchangeConfig `mapstructure:"exchanges"`
	Compare   CompareConfig             `mapstructure:"compare"`
	Fees      FeesConfig                `mapstructure:"fees"`
	Oracle    OracleConfig              `mapstructure:"oracle"`
	Redis     RedisConfig               `mapstructure:"redis"`
	Audit     AuditConfig               `mapstructure:"audit"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // Set at runtime, not from config file
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"` // zipkin | otlp_grpc | otlp_http | console | none
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"` // key=value
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig controls the health endpoint server.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ExchangeConfig configures one exchange synchronizer.
type ExchangeConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	WebSocketURL string `mapstructure:"websocket_url"`
	RESTURL      string `mapstructure:"rest_url"`

	SnapshotDepth  int           `mapstructure:"snapshot_depth"`
	BufferCapacity int           `mapstructure:"buffer_capacity"`
	EmitInterval   time.Duration `mapstructure:"emit_interval"`

	SnapshotAttempts   int           `mapstructure:"snapshot_attempts"`
	SnapshotBackoff    time.Duration `mapstructure:"snapshot_backoff"`
	SnapshotMaxBackoff time.Duration `mapstructure:"snapshot_max_backoff"`
	ResyncCooldown     time.Duration `mapstructure:"resync_cooldown"`
	RESTRatePerMinute  int           `mapstructure:"rest_rate_per_minute"`

	ReconnectInitialBackoff time.Duration `mapstructure:"reconnect_initial_backoff"`
	ReconnectMaxBackoff     time.Duration `mapstructure:"reconnect_max_backoff"`

	Fee FeeAccountConfig `mapstructure:"fee"`
}

// FeeAccountConfig is the account context used for fee evaluation.
type FeeAccountConfig struct {
	Tier          string `mapstructure:"tier"`
	FeeAsset      string `mapstructure:"fee_asset"`
	CustomRate    string `mapstructure:"custom_rate"`
	ExecutionType string `mapstructure:"execution_type"`
}

// CustomRateDecimal parses the optional custom override rate.
func (f FeeAccountConfig) CustomRateDecimal() (*decimal.Decimal, error) {
	if strings.TrimSpace(f.CustomRate) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(f.CustomRate)
	if err != nil {
		return nil, fmt.Errorf("invalid custom_rate %q: %w", f.CustomRate, err)
	}
	return &d, nil
}

// CompareConfig describes the order being compared.
type CompareConfig struct {
	Pair           string        `mapstructure:"pair"`
	Side           string        `mapstructure:"side"`       // buy | sell
	Size           string        `mapstructure:"size"`       // decimal string
	SizeAsset      string        `mapstructure:"size_asset"` // base | quote
	ReferencePrice string        `mapstructure:"reference_price"`
	Debounce       time.Duration `mapstructure:"debounce"`
}

// TradingPair parses Pair.
func (c CompareConfig) TradingPair() (asset.Pair, error) {
	return asset.ParsePair(c.Pair)
}

// SizeDecimal parses Size.
func (c CompareConfig) SizeDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(c.Size)
}

// FeesConfig locates fee schedule documents.
type FeesConfig struct {
	// SchedulesDir holds <exchange>.yaml documents. Empty uses the built-in
	// schedules.
	SchedulesDir string `mapstructure:"schedules_dir"`
}

// OracleConfig configures USD conversion.
type OracleConfig struct {
	TTL                    time.Duration     `mapstructure:"ttl"`
	Stablecoins            []string          `mapstructure:"stablecoins"`
	Sources                []string          `mapstructure:"sources"` // priority order
	BinanceURL             string            `mapstructure:"binance_url"`
	CoinGeckoURL           string            `mapstructure:"coingecko_url"`
	CoinGeckoIDs           map[string]string `mapstructure:"coingecko_ids"`
	RequestTimeout         time.Duration     `mapstructure:"request_timeout"`
	CoinGeckoRatePerMinute int               `mapstructure:"coingecko_rate_per_minute"`
}

// RedisConfig configures the persisted price cache.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	PoolSize  int    `mapstructure:"pool_size"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AuditConfig configures the comparison audit store.
type AuditConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	MaxConns    int    `mapstructure:"max_conns"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("./configs")
	}

	// Environment variables
	v.SetEnvPrefix("DC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "DC_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "DC_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "DC_LOG_LEVEL", "LOG_LEVEL")

	// Compare
	v.BindEnv("compare.pair", "DC_PAIR")
	v.BindEnv("compare.side", "DC_SIDE")
	v.BindEnv("compare.size", "DC_SIZE")
	v.BindEnv("compare.size_asset", "DC_SIZE_ASSET")

	// Collaborators
	v.BindEnv("redis.addr", "DC_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "DC_REDIS_PASSWORD", "REDIS_PASSWORD")
	v.BindEnv("audit.postgres_dsn", "DC_POSTGRES_DSN", "DATABASE_URL")
	v.BindEnv("fees.schedules_dir", "DC_FEE_SCHEDULES_DIR")

	// Telemetry
	v.BindEnv("telemetry.enabled", "DC_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "DC_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "DC_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "DC_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "depth-compare")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "depth-compare")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)

	// Exchange defaults
	urls := map[string][2]string{
		ExchangeBinance: {"wss://stream.binance.com:9443/ws", "https://api.binance.com"},
		ExchangeBybit:   {"wss://stream.bybit.com/v5/public/spot", "https://api.bybit.com"},
		ExchangeOKX:     {"wss://ws.okx.com:8443/ws/v5/public", "https://www.okx.com"},
		ExchangeKraken:  {"wss://ws.kraken.com/v2", "https://api.kraken.com"},
	}
	depth := map[string]int{
		ExchangeBinance: 1000,
		ExchangeBybit:   200,
		ExchangeOKX:     400,
		ExchangeKraken:  500,
	}
	for name, u := range urls {
		prefix := "exchanges." + name + "."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"websocket_url", u[0])
		v.SetDefault(prefix+"rest_url", u[1])
		v.SetDefault(prefix+"snapshot_depth", depth[name])
		v.SetDefault(prefix+"buffer_capacity", 1000)
		v.SetDefault(prefix+"emit_interval", "1s")
		v.SetDefault(prefix+"snapshot_attempts", 5)
		v.SetDefault(prefix+"snapshot_backoff", "500ms")
		v.SetDefault(prefix+"snapshot_max_backoff", "10s")
		v.SetDefault(prefix+"resync_cooldown", "30s")
		v.SetDefault(prefix+"rest_rate_per_minute", 600)
		v.SetDefault(prefix+"reconnect_initial_backoff", "1s")
		v.SetDefault(prefix+"reconnect_max_backoff", "30s")
		v.SetDefault(prefix+"fee.tier", "")
		v.SetDefault(prefix+"fee.fee_asset", "")
		v.SetDefault(prefix+"fee.custom_rate", "")
		v.SetDefault(prefix+"fee.execution_type", "taker")
	}

	// Compare defaults
	v.SetDefault("compare.pair", "BTC-USDT")
	v.SetDefault("compare.side", "buy")
	v.SetDefault("compare.size", "1")
	v.SetDefault("compare.size_asset", "base")
	v.SetDefault("compare.reference_price", "best")
	v.SetDefault("compare.debounce", "120ms")

	v.SetDefault("fees.schedules_dir", "")

	// Oracle defaults
	v.SetDefault("oracle.ttl", "60s")
	stables := make([]string, 0, len(asset.DefaultStablecoins))
	for _, s := range asset.DefaultStablecoins {
		stables = append(stables, s.String())
	}
	v.SetDefault("oracle.stablecoins", stables)
	v.SetDefault("oracle.sources", []string{"binance", "coingecko"})
	v.SetDefault("oracle.binance_url", "https://api.binance.com")
	v.SetDefault("oracle.coingecko_url", "https://api.coingecko.com")
	v.SetDefault("oracle.coingecko_ids", map[string]string{
		"btc": "bitcoin",
		"eth": "ethereum",
		"sol": "solana",
		"bnb": "binancecoin",
		"okb": "okb",
		"mnt": "mantle",
		"xrp": "ripple",
	})
	v.SetDefault("oracle.request_timeout", "5s")
	v.SetDefault("oracle.coingecko_rate_per_minute", 30)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.key_prefix", "depthcompare:")

	// Audit defaults
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.max_conns", 4)
}

// EnabledExchanges returns the enabled exchange names, sorted.
func (c *Config) EnabledExchanges() []string {
	names := make([]string, 0, len(c.Exchanges))
	for name, ex := range c.Exchanges {
		if ex.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.EnabledExchanges()) == 0 {
		return fmt.Errorf("at least one exchange must be enabled")
	}

	known := make(map[string]bool, len(KnownExchanges))
	for _, name := range KnownExchanges {
		known[name] = true
	}

	for _, name := range c.EnabledExchanges() {
		ex := c.Exchanges[name]
		if !known[name] {
			return fmt.Errorf("exchanges.%s: no adapter for this exchange", name)
		}
		if ex.WebSocketURL == "" || ex.RESTURL == "" {
			return fmt.Errorf("exchanges.%s: websocket_url and rest_url are required", name)
		}
		if ex.BufferCapacity <= 0 {
			return fmt.Errorf("exchanges.%s.buffer_capacity must be positive", name)
		}
		if ex.EmitInterval <= 0 {
			return fmt.Errorf("exchanges.%s.emit_interval must be positive", name)
		}
		if ex.SnapshotAttempts <= 0 {
			return fmt.Errorf("exchanges.%s.snapshot_attempts must be positive", name)
		}
		if _, err := ex.Fee.CustomRateDecimal(); err != nil {
			return fmt.Errorf("exchanges.%s.fee: %w", name, err)
		}
		switch ex.Fee.ExecutionType {
		case "", "taker", "maker":
		default:
			return fmt.Errorf("exchanges.%s.fee.execution_type must be taker or maker", name)
		}
	}

	if _, err := c.Compare.TradingPair(); err != nil {
		return fmt.Errorf("compare.pair: %w", err)
	}
	size, err := c.Compare.SizeDecimal()
	if err != nil {
		return fmt.Errorf("compare.size: %w", err)
	}
	if !size.IsPositive() {
		return fmt.Errorf("compare.size must be positive")
	}
	switch c.Compare.Side {
	case "buy", "sell":
	default:
		return fmt.Errorf("compare.side must be buy or sell, got %q", c.Compare.Side)
	}
	switch c.Compare.SizeAsset {
	case "base", "quote":
	default:
		return fmt.Errorf("compare.size_asset must be base or quote, got %q", c.Compare.SizeAsset)
	}
	switch c.Compare.ReferencePrice {
	case "best", "mid":
	default:
		return fmt.Errorf("compare.reference_price must be best or mid, got %q", c.Compare.ReferencePrice)
	}

	if c.Oracle.TTL <= 0 {
		return fmt.Errorf("oracle.ttl must be positive")
	}
	if len(c.Oracle.Sources) == 0 {
		return fmt.Errorf("oracle.sources cannot be empty")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Audit.Enabled && c.Audit.PostgresDSN == "" {
		return fmt.Errorf("audit.postgres_dsn is required when audit is enabled")
	}
	return nil
}
