package asset

import (
	"sort"
	"sync"
)

// Asset is display metadata for a symbol.
type Asset struct {
	Symbol Symbol
	Name   string
	// DisplayDecimals is how many fractional digits reporters print.
	DisplayDecimals int32
	Stablecoin      bool
}

// Registry is a thread-safe set of known assets.
type Registry struct {
	mu     sync.RWMutex
	assets map[Symbol]Asset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{assets: make(map[Symbol]Asset)}
}

// Register adds or replaces an asset.
func (r *Registry) Register(a Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[a.Symbol] = a
}

// Get looks an asset up by symbol.
func (r *Registry) Get(s Symbol) (Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[s]
	return a, ok
}

// IsStablecoin reports whether s is registered as a USD stablecoin.
func (r *Registry) IsStablecoin(s Symbol) bool {
	a, ok := r.Get(s)
	return ok && a.Stablecoin
}

// Stablecoins returns the registered stablecoins, sorted.
func (r *Registry) Stablecoins() []Symbol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Symbol, 0)
	for s, a := range r.assets {
		if a.Stablecoin {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarkStablecoins flags the given symbols as stablecoins, registering any
// that are unknown.
func (r *Registry) MarkStablecoins(symbols ...Symbol) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range symbols {
		a, ok := r.assets[s]
		if !ok {
			a = Asset{Symbol: s, Name: string(s), DisplayDecimals: 2}
		}
		a.Stablecoin = true
		r.assets[s] = a
	}
}

// DisplayDecimals returns the print precision for s, 8 when unknown.
func (r *Registry) DisplayDecimals(s Symbol) int32 {
	if a, ok := r.Get(s); ok {
		return a.DisplayDecimals
	}
	return 8
}
