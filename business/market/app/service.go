package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/logger"
)

// MarketService fans out over every exchange synchronizer.
type MarketService struct {
	syncs  map[string]Synchronizer
	names  []string
	logger logger.LoggerInterface

	ticksMu sync.RWMutex
	ticks   map[string]decimal.Decimal
	group   singleflight.Group
}

// NewMarketService creates a service over syncs. Exchange names must be
// unique.
func NewMarketService(syncs []Synchronizer, log logger.LoggerInterface) (*MarketService, error) {
	s := &MarketService{
		syncs:  make(map[string]Synchronizer, len(syncs)),
		logger: log,
		ticks:  make(map[string]decimal.Decimal),
	}
	for _, sy := range syncs {
		name := sy.Exchange()
		if _, dup := s.syncs[name]; dup {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext("duplicate synchronizer for "+name))
		}
		s.syncs[name] = sy
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return s, nil
}

// Exchanges returns the exchange ids, sorted.
func (s *MarketService) Exchanges() []string {
	return append([]string(nil), s.names...)
}

// Synchronizer returns one exchange's synchronizer.
func (s *MarketService) Synchronizer(exchange string) (Synchronizer, bool) {
	sy, ok := s.syncs[exchange]
	return sy, ok
}

// Start starts every synchronizer.
func (s *MarketService) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range s.names {
		sy := s.syncs[name]
		g.Go(func() error {
			if err := sy.Start(ctx); err != nil {
				return fmt.Errorf("start %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Stop stops every synchronizer.
func (s *MarketService) Stop() {
	var wg sync.WaitGroup
	for _, name := range s.names {
		sy := s.syncs[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			sy.Stop()
		}()
	}
	wg.Wait()
}

// Watch starts synchronizing pair on every exchange.
func (s *MarketService) Watch(ctx context.Context, pair asset.Pair) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range s.names {
		sy := s.syncs[name]
		g.Go(func() error {
			if err := sy.Watch(ctx, pair); err != nil {
				return fmt.Errorf("watch %s on %s: %w", pair, name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Unwatch stops synchronizing pair on every exchange.
func (s *MarketService) Unwatch(ctx context.Context, pair asset.Pair) error {
	var g errgroup.Group
	for _, name := range s.names {
		sy := s.syncs[name]
		g.Go(func() error {
			return sy.Unwatch(ctx, pair)
		})
	}
	return g.Wait()
}

// OnUpdate registers listener on every exchange. The returned func removes
// it everywhere.
func (s *MarketService) OnUpdate(listener func(*domain.OrderBook)) func() {
	unsubs := make([]func(), 0, len(s.names))
	for _, name := range s.names {
		unsubs = append(unsubs, s.syncs[name].OnUpdate(listener))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// ReadyBooks returns the synced books for pair keyed by exchange. Exchanges
// that are resyncing or disconnected are absent.
func (s *MarketService) ReadyBooks(pair asset.Pair) map[string]*domain.OrderBook {
	books := make(map[string]*domain.OrderBook, len(s.names))
	for _, name := range s.names {
		if book, ok := s.syncs[name].CurrentBook(pair); ok {
			books[name] = book
		}
	}
	return books
}

// Statuses returns one status per exchange, sorted by exchange.
func (s *MarketService) Statuses() []domain.SyncStatus {
	out := make([]domain.SyncStatus, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.syncs[name].Status())
	}
	return out
}

// TickSize returns the exchange's tick for pair. Successful lookups are
// cached for the life of the service; concurrent lookups share one request.
func (s *MarketService) TickSize(ctx context.Context, exchange string, pair asset.Pair) (decimal.Decimal, error) {
	key := exchange + ":" + pair.String()

	s.ticksMu.RLock()
	tick, ok := s.ticks[key]
	s.ticksMu.RUnlock()
	if ok {
		return tick, nil
	}

	sy, ok := s.syncs[exchange]
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodeNotFound,
			apperror.WithContext("no synchronizer for "+exchange))
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		tick, err := sy.TickSize(ctx, pair)
		if err != nil {
			return decimal.Zero, err
		}
		s.ticksMu.Lock()
		s.ticks[key] = tick
		s.ticksMu.Unlock()
		s.logger.Debug(ctx, "tick size cached", "exchange", exchange, "pair", pair.String(), "tick", tick.String())
		return tick, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

// TickSizes looks up every exchange's tick for pair concurrently. Exchanges
// whose lookup failed are absent from the result and reported in errs.
func (s *MarketService) TickSizes(ctx context.Context, exchanges []string, pair asset.Pair) (map[string]decimal.Decimal, map[string]error) {
	var (
		mu    sync.Mutex
		ticks = make(map[string]decimal.Decimal, len(exchanges))
		errs  = make(map[string]error)
		wg    sync.WaitGroup
	)
	for _, name := range exchanges {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tick, err := s.TickSize(ctx, name, pair)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[name] = err
				return
			}
			ticks[name] = tick
		}()
	}
	wg.Wait()
	return ticks, errs
}
