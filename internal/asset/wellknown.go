package asset

// Common symbols.
const (
	USD   Symbol = "USD"
	USDT  Symbol = "USDT"
	USDC  Symbol = "USDC"
	FDUSD Symbol = "FDUSD"
	DAI   Symbol = "DAI"
	TUSD  Symbol = "TUSD"
	USDP  Symbol = "USDP"
	PYUSD Symbol = "PYUSD"

	BTC Symbol = "BTC"
	ETH Symbol = "ETH"
	SOL Symbol = "SOL"
	BNB Symbol = "BNB"
	OKB Symbol = "OKB"
	MNT Symbol = "MNT"
	XRP Symbol = "XRP"
)

// CommonUnit is the unit all cost figures are converted into.
const CommonUnit = USD

// DefaultStablecoins are treated as 1:1 with USD.
var DefaultStablecoins = []Symbol{USD, USDT, USDC, FDUSD, DAI, TUSD, USDP, PYUSD}

// DefaultRegistry returns a registry pre-populated with common assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(Asset{Symbol: BTC, Name: "Bitcoin", DisplayDecimals: 8})
	r.Register(Asset{Symbol: ETH, Name: "Ether", DisplayDecimals: 6})
	r.Register(Asset{Symbol: SOL, Name: "Solana", DisplayDecimals: 4})
	r.Register(Asset{Symbol: BNB, Name: "BNB", DisplayDecimals: 5})
	r.Register(Asset{Symbol: OKB, Name: "OKB", DisplayDecimals: 5})
	r.Register(Asset{Symbol: MNT, Name: "Mantle", DisplayDecimals: 4})
	r.Register(Asset{Symbol: XRP, Name: "XRP", DisplayDecimals: 4})

	r.Register(Asset{Symbol: USD, Name: "US Dollar", DisplayDecimals: 2, Stablecoin: true})
	r.Register(Asset{Symbol: USDT, Name: "Tether", DisplayDecimals: 4, Stablecoin: true})
	r.Register(Asset{Symbol: USDC, Name: "USD Coin", DisplayDecimals: 4, Stablecoin: true})
	r.Register(Asset{Symbol: FDUSD, Name: "First Digital USD", DisplayDecimals: 4, Stablecoin: true})
	r.Register(Asset{Symbol: DAI, Name: "Dai", DisplayDecimals: 4, Stablecoin: true})
	r.Register(Asset{Symbol: TUSD, Name: "TrueUSD", DisplayDecimals: 4, Stablecoin: true})
	r.Register(Asset{Symbol: USDP, Name: "Pax Dollar", DisplayDecimals: 4, Stablecoin: true})
	r.Register(Asset{Symbol: PYUSD, Name: "PayPal USD", DisplayDecimals: 4, Stablecoin: true})

	return r
}
