package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
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

var btcusdt = asset.NewPair("BTC", "USDT")

type fakeSync struct {
	name    string
	book    *domain.OrderBook
	tick    decimal.Decimal
	tickErr error
	// tickGate blocks TickSize until closed when set.
	tickGate  chan struct{}
	tickCalls atomic.Int32

	mu        sync.Mutex
	watched   []string
	listeners []func(*domain.OrderBook)
	started   bool
	stopped   bool
}

func (f *fakeSync) Exchange() string { return f.name }

func (f *fakeSync) Start(ctx context.Context) error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSync) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeSync) Watch(ctx context.Context, pair asset.Pair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched = append(f.watched, pair.String())
	return nil
}

func (f *fakeSync) Unwatch(ctx context.Context, pair asset.Pair) error { return nil }

func (f *fakeSync) OnUpdate(l func(*domain.OrderBook)) func() {
	f.mu.Lock()
	idx := len(f.listeners)
	f.listeners = append(f.listeners, l)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.listeners[idx] = nil
		f.mu.Unlock()
	}
}

func (f *fakeSync) emit(book *domain.OrderBook) {
	f.mu.Lock()
	ls := append([]func(*domain.OrderBook){}, f.listeners...)
	f.mu.Unlock()
	for _, l := range ls {
		if l != nil {
			l(book)
		}
	}
}

func (f *fakeSync) CurrentBook(pair asset.Pair) (*domain.OrderBook, bool) {
	if f.book == nil {
		return nil, false
	}
	return f.book, true
}

func (f *fakeSync) Status() domain.SyncStatus {
	return domain.SyncStatus{Exchange: f.name, Connected: f.book != nil}
}

func (f *fakeSync) TickSize(ctx context.Context, pair asset.Pair) (decimal.Decimal, error) {
	f.tickCalls.Add(1)
	if f.tickGate != nil {
		<-f.tickGate
	}
	return f.tick, f.tickErr
}

func TestNewMarketService_RejectsDuplicates(t *testing.T) {
	_, err := NewMarketService([]Synchronizer{&fakeSync{name: "okx"}, &fakeSync{name: "okx"}}, &mockLogger{})
	if !errors.Is(err, apperror.New(apperror.CodeConfigurationError)) {
		t.Fatalf("error = %v, want CONFIGURATION_ERROR", err)
	}
}

func TestMarketService_LifecycleAndWatch(t *testing.T) {
	a, b := &fakeSync{name: "okx"}, &fakeSync{name: "binance"}
	svc, err := NewMarketService([]Synchronizer{a, b}, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}

	if got := svc.Exchanges(); got[0] != "binance" || got[1] != "okx" {
		t.Errorf("Exchanges() = %v, want sorted", got)
	}

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := svc.Watch(ctx, btcusdt); err != nil {
		t.Fatal(err)
	}
	svc.Stop()

	for _, f := range []*fakeSync{a, b} {
		if !f.started || !f.stopped || len(f.watched) != 1 || f.watched[0] != "BTC-USDT" {
			t.Errorf("%s: started=%v stopped=%v watched=%v", f.name, f.started, f.stopped, f.watched)
		}
	}
}

func TestMarketService_ReadyBooksSkipsUnsynced(t *testing.T) {
	ready := &fakeSync{name: "binance", book: &domain.OrderBook{Exchange: "binance", Pair: btcusdt}}
	syncing := &fakeSync{name: "kraken"}
	svc, _ := NewMarketService([]Synchronizer{ready, syncing}, &mockLogger{})

	books := svc.ReadyBooks(btcusdt)
	if len(books) != 1 || books["binance"] == nil {
		t.Fatalf("ReadyBooks() = %v, want only binance", books)
	}

	statuses := svc.Statuses()
	if len(statuses) != 2 || statuses[0].Exchange != "binance" || statuses[1].Connected {
		t.Errorf("Statuses() = %+v", statuses)
	}
}

func TestMarketService_OnUpdateFansInAndUnsubscribes(t *testing.T) {
	a, b := &fakeSync{name: "okx"}, &fakeSync{name: "bybit"}
	svc, _ := NewMarketService([]Synchronizer{a, b}, &mockLogger{})

	var got atomic.Int32
	unsub := svc.OnUpdate(func(*domain.OrderBook) { got.Add(1) })

	a.emit(&domain.OrderBook{})
	b.emit(&domain.OrderBook{})
	if got.Load() != 2 {
		t.Fatalf("received %d updates, want 2", got.Load())
	}

	unsub()
	a.emit(&domain.OrderBook{})
	if got.Load() != 2 {
		t.Errorf("listener still called after unsubscribe")
	}
}

func TestMarketService_TickSizeCachedAndCoalesced(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeSync{name: "okx", tick: decimal.RequireFromString("0.1"), tickGate: gate}
	svc, _ := NewMarketService([]Synchronizer{f}, &mockLogger{})

	ctx := context.Background()
	var wg sync.WaitGroup
	results := make([]decimal.Decimal, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tick, err := svc.TickSize(ctx, "okx", btcusdt)
			if err != nil {
				t.Errorf("TickSize() error = %v", err)
			}
			results[i] = tick
		}()
	}

	// Let the goroutines pile up on the single in-flight lookup.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for _, r := range results {
		if !r.Equal(decimal.RequireFromString("0.1")) {
			t.Errorf("tick = %s", r)
		}
	}
	if n := f.tickCalls.Load(); n != 1 {
		t.Errorf("exchange queried %d times, want 1", n)
	}

	if _, err := svc.TickSize(ctx, "okx", btcusdt); err != nil {
		t.Fatal(err)
	}
	if n := f.tickCalls.Load(); n != 1 {
		t.Errorf("cached lookup hit the exchange again")
	}
}

func TestMarketService_TickSizeErrorsNotCached(t *testing.T) {
	f := &fakeSync{name: "kraken", tickErr: apperror.New(apperror.CodeTickSizeUnavailable)}
	svc, _ := NewMarketService([]Synchronizer{f}, &mockLogger{})
	ctx := context.Background()

	ticks, errs := svc.TickSizes(ctx, []string{"kraken", "nowhere"}, btcusdt)
	if len(ticks) != 0 || len(errs) != 2 {
		t.Fatalf("ticks=%v errs=%v", ticks, errs)
	}
	if !errors.Is(errs["nowhere"], apperror.New(apperror.CodeNotFound)) {
		t.Errorf("unknown exchange error = %v", errs["nowhere"])
	}

	f.tickErr = nil
	f.tick = decimal.RequireFromString("0.5")
	tick, err := svc.TickSize(ctx, "kraken", btcusdt)
	if err != nil || !tick.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("retry after failure = %s, %v", tick, err)
	}
}
