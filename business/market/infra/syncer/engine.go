// Package syncer implements the snapshot + diff reconciliation protocol shared
// by every exchange synchronizer. An Engine owns all per-symbol state on one
// goroutine; adapters feed it decoded stream messages and answer snapshot
// requests.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/circuitbreaker"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/logger"
)

const (
	tracerName = "github.com/fd1az/depth-compare/business/market/infra/syncer"
	meterName  = "github.com/fd1az/depth-compare/business/market/infra/syncer"

	inboxSize = 4096
	ctrlSize  = 256
)

// Adapter is the exchange-specific half of a synchronizer.
type Adapter interface {
	// Subscribe and Unsubscribe send stream subscription frames.
	Subscribe(ctx context.Context, pair asset.Pair) error
	Unsubscribe(ctx context.Context, pair asset.Pair) error
	// FetchSnapshot performs one REST snapshot request.
	FetchSnapshot(ctx context.Context, pair asset.Pair, depth int) (domain.Snapshot, error)
}

// Config tunes the protocol for one exchange.
type Config struct {
	Exchange string
	Policy   domain.MarkerPolicy
	// ResubscribeOnResync cycles the stream subscription after a gap so the
	// venue re-baselines.
	ResubscribeOnResync bool

	SnapshotDepth      int
	BufferCapacity     int
	EmitInterval       time.Duration
	SnapshotAttempts   int
	SnapshotBackoff    time.Duration
	SnapshotMaxBackoff time.Duration
	ResyncCooldown     time.Duration
	// Jitter is the fraction of each backoff added at random.
	Jitter float64
}

// ConfigFrom maps an exchange section of the application config.
func ConfigFrom(exchange string, ex config.ExchangeConfig, policy domain.MarkerPolicy, resubscribe bool) Config {
	return Config{
		Exchange:            exchange,
		Policy:              policy,
		ResubscribeOnResync: resubscribe,
		SnapshotDepth:       ex.SnapshotDepth,
		BufferCapacity:      ex.BufferCapacity,
		EmitInterval:        ex.EmitInterval,
		SnapshotAttempts:    ex.SnapshotAttempts,
		SnapshotBackoff:     ex.SnapshotBackoff,
		SnapshotMaxBackoff:  ex.SnapshotMaxBackoff,
		ResyncCooldown:      ex.ResyncCooldown,
		Jitter:              0.2,
	}
}

func (c *Config) applyDefaults() {
	if c.Policy == nil {
		c.Policy = domain.SequencePolicy{}
	}
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = 1000
	}
	if c.EmitInterval <= 0 {
		c.EmitInterval = time.Second
	}
	if c.SnapshotAttempts <= 0 {
		c.SnapshotAttempts = 5
	}
	if c.SnapshotBackoff <= 0 {
		c.SnapshotBackoff = 500 * time.Millisecond
	}
	if c.SnapshotMaxBackoff < c.SnapshotBackoff {
		c.SnapshotMaxBackoff = c.SnapshotBackoff
	}
	if c.ResyncCooldown <= 0 {
		c.ResyncCooldown = 30 * time.Second
	}
}

// Listener receives every emitted book. Books are shared and must not be
// mutated.
type Listener func(book *domain.OrderBook)

// Status is a coarse health view of one engine.
type Status = domain.SyncStatus

type engineMetrics struct {
	diffsApplied   metric.Int64Counter
	diffsStale     metric.Int64Counter
	bufferDropped  metric.Int64Counter
	gaps           metric.Int64Counter
	resyncs        metric.Int64Counter
	resyncFailures metric.Int64Counter
	snapshots      metric.Int64Counter
	emits          metric.Int64Counter
}

// Engine runs the reconciliation protocol for one exchange.
type Engine struct {
	cfg     Config
	adapter Adapter
	logger  logger.LoggerInterface
	breaker *circuitbreaker.CircuitBreaker[domain.Snapshot]
	tracer  trace.Tracer
	metrics *engineMetrics
	attrs   metric.MeasurementOption

	inbox chan any
	ctrl  chan func(context.Context)
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Owned by the run goroutine.
	states    map[string]*symbolState
	connected bool

	booksMu sync.RWMutex
	books   map[string]*domain.OrderBook

	listenersMu  sync.RWMutex
	listeners    map[uint64]Listener
	nextListener uint64

	isConnected atomic.Bool
	watched     atomic.Int32
	lastErrMu   sync.Mutex
	lastErr     string
}

// NewEngine creates an engine. Start must be called before Watch.
func NewEngine(cfg Config, adapter Adapter, log logger.LoggerInterface) (*Engine, error) {
	cfg.applyDefaults()

	e := &Engine{
		cfg:       cfg,
		adapter:   adapter,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		attrs:     metric.WithAttributes(attribute.String("exchange", cfg.Exchange)),
		inbox:     make(chan any, inboxSize),
		ctrl:      make(chan func(context.Context), ctrlSize),
		done:      make(chan struct{}),
		states:    make(map[string]*symbolState),
		books:     make(map[string]*domain.OrderBook),
		listeners: make(map[uint64]Listener),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig(cfg.Exchange + "-snapshot")
	cbCfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	e.breaker = circuitbreaker.New[domain.Snapshot](cbCfg)

	return e, nil
}

func (e *Engine) initMetrics() error {
	meter := otel.Meter(meterName)
	e.metrics = &engineMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&e.metrics.diffsApplied, "depth_diffs_applied_total", "Diffs applied to a synced book"},
		{&e.metrics.diffsStale, "depth_diffs_stale_total", "Diffs dropped as already covered"},
		{&e.metrics.bufferDropped, "depth_buffer_dropped_total", "Buffered diffs dropped on overflow"},
		{&e.metrics.gaps, "depth_gaps_total", "Sequence gaps that forced a resync"},
		{&e.metrics.resyncs, "depth_resyncs_total", "Resyncs started"},
		{&e.metrics.resyncFailures, "depth_resync_failures_total", "Snapshot retry budgets exhausted"},
		{&e.metrics.snapshots, "depth_snapshots_total", "Snapshots applied"},
		{&e.metrics.emits, "depth_emits_total", "Books emitted to listeners"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return err
		}
		*c.dst = counter
	}
	return nil
}

// Exchange returns the exchange id.
func (e *Engine) Exchange() string {
	return e.cfg.Exchange
}

// Start launches the protocol goroutine. It returns immediately.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		ctx, e.cancel = context.WithCancel(ctx)
		e.started.Store(true)

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.ctrlLoop(ctx)
		}()
		go e.run(ctx)
	})
}

// Stop tears down every symbol and waits for background work to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if !e.started.Load() {
			close(e.done)
			return
		}
		e.cancel()
		<-e.done
		e.wg.Wait()
	})
}

// Watch starts synchronizing pair. Watching an already watched pair is a no-op.
func (e *Engine) Watch(ctx context.Context, pair asset.Pair) error {
	done := make(chan struct{})
	if err := e.postCtx(ctx, watchCmd{pair: pair, done: done}); err != nil {
		return err
	}
	return e.wait(ctx, done)
}

// Unwatch stops synchronizing pair and returns once its state, timers and any
// in-flight snapshot fetch have been torn down. It is idempotent.
func (e *Engine) Unwatch(ctx context.Context, pair asset.Pair) error {
	done := make(chan struct{})
	if err := e.postCtx(ctx, unwatchCmd{pair: pair, done: done}); err != nil {
		if errors.Is(err, errStopped) {
			return nil
		}
		return err
	}
	if err := e.wait(ctx, done); err != nil && !errors.Is(err, errStopped) {
		return err
	}
	return nil
}

// Flush returns once every event posted before the call has been handled.
func (e *Engine) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := e.postCtx(ctx, flushCmd{done: done}); err != nil {
		return err
	}
	return e.wait(ctx, done)
}

// HandleSnapshot feeds a stream snapshot message.
func (e *Engine) HandleSnapshot(snap domain.Snapshot) {
	e.post(snapshotEvent{snap: snap})
}

// HandleDiff feeds a stream delta message.
func (e *Engine) HandleDiff(diff domain.Diff) {
	e.post(diffEvent{diff: diff})
}

// SetConnected reports the stream connection state. Losing the connection
// withdraws every book; regaining it resubscribes and resyncs every watched
// pair.
func (e *Engine) SetConnected(connected bool) {
	e.post(connEvent{connected: connected})
}

// OnUpdate registers a listener and returns its unsubscribe func.
func (e *Engine) OnUpdate(l Listener) func() {
	e.listenersMu.Lock()
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = l
	e.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.listenersMu.Lock()
			delete(e.listeners, id)
			e.listenersMu.Unlock()
		})
	}
}

// CurrentBook returns a copy of the last published book. A pair that is not
// synced is absent, never empty.
func (e *Engine) CurrentBook(pair asset.Pair) (*domain.OrderBook, bool) {
	e.booksMu.RLock()
	book, ok := e.books[pair.String()]
	e.booksMu.RUnlock()
	if !ok {
		return nil, false
	}
	return book.Clone(), true
}

// Status returns a coarse health view.
func (e *Engine) Status() Status {
	e.booksMu.RLock()
	synced := len(e.books)
	e.booksMu.RUnlock()

	e.lastErrMu.Lock()
	lastErr := e.lastErr
	e.lastErrMu.Unlock()

	return Status{
		Exchange:  e.cfg.Exchange,
		Connected: e.isConnected.Load(),
		Watched:   int(e.watched.Load()),
		Synced:    synced,
		LastError: lastErr,
	}
}

// Events handled by the run goroutine.
type (
	watchCmd struct {
		pair asset.Pair
		done chan struct{}
	}
	unwatchCmd struct {
		pair asset.Pair
		done chan struct{}
	}
	flushCmd struct {
		done chan struct{}
	}
	snapshotEvent struct {
		snap domain.Snapshot
	}
	diffEvent struct {
		diff domain.Diff
	}
	fetchResult struct {
		key  string
		gen  uint64
		snap domain.Snapshot
		err  error
	}
	retryEvent struct {
		key string
		gen uint64
	}
	connEvent struct {
		connected bool
	}
)

var errStopped = errors.New("syncer: engine stopped")

func (e *Engine) post(ev any) bool {
	select {
	case e.inbox <- ev:
		return true
	case <-e.done:
		return false
	}
}

func (e *Engine) postCtx(ctx context.Context, ev any) error {
	select {
	case e.inbox <- ev:
		return nil
	case <-e.done:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-e.done:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	defer e.teardown()

	ticker := time.NewTicker(e.cfg.EmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.inbox:
			e.handle(ctx, ev)
		case now := <-ticker.C:
			e.emitDirty(ctx, now)
		}
	}
}

func (e *Engine) handle(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case watchCmd:
		e.watch(ctx, ev.pair)
		close(ev.done)
	case unwatchCmd:
		e.unwatch(ctx, ev.pair)
		close(ev.done)
	case flushCmd:
		close(ev.done)
	case snapshotEvent:
		e.onStreamSnapshot(ctx, ev.snap)
	case diffEvent:
		e.onDiff(ctx, ev.diff)
	case fetchResult:
		e.onFetchResult(ctx, ev)
	case retryEvent:
		if st, ok := e.states[ev.key]; ok && st.generation == ev.gen {
			e.resync(ctx, st, "cooldown")
		}
	case connEvent:
		e.onConnection(ctx, ev.connected)
	}
}

func (e *Engine) watch(ctx context.Context, pair asset.Pair) {
	key := pair.String()
	if _, ok := e.states[key]; ok {
		return
	}

	st := newSymbolState(pair, e.cfg.BufferCapacity)
	e.states[key] = st
	e.watched.Add(1)

	e.logger.Info(ctx, "watching pair", "exchange", e.cfg.Exchange, "pair", key)

	if e.connected {
		e.subscribe(pair)
	}
	e.resync(ctx, st, "watch")
}

func (e *Engine) unwatch(ctx context.Context, pair asset.Pair) {
	key := pair.String()
	st, ok := e.states[key]
	if !ok {
		return
	}

	st.teardown()
	delete(e.states, key)
	e.watched.Add(-1)
	e.unpublish(key)

	if e.connected {
		e.enqueue(func(ctx context.Context) {
			if err := e.adapter.Unsubscribe(ctx, pair); err != nil {
				e.logger.Warn(ctx, "unsubscribe failed", "exchange", e.cfg.Exchange, "pair", key, "error", err)
			}
		})
	}

	e.logger.Info(ctx, "unwatched pair", "exchange", e.cfg.Exchange, "pair", key)
}

// resync clears the state and, when connected, requests a fresh snapshot.
func (e *Engine) resync(ctx context.Context, st *symbolState, reason string) {
	st.reset()
	e.unpublish(st.key)

	if !e.connected {
		return
	}

	e.metrics.resyncs.Add(ctx, 1, e.attrs, metric.WithAttributes(attribute.String("reason", reason)))
	e.logger.Debug(ctx, "resync started", "exchange", e.cfg.Exchange, "pair", st.key, "reason", reason)

	fetchCtx, cancel := context.WithCancel(ctx)
	st.fetchCancel = cancel

	key, pair, gen := st.key, st.pair, st.generation
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		snap, err := e.fetchSnapshot(fetchCtx, pair)
		if fetchCtx.Err() != nil {
			return
		}
		e.post(fetchResult{key: key, gen: gen, snap: snap, err: err})
	}()
}

func (e *Engine) onFetchResult(ctx context.Context, res fetchResult) {
	st, ok := e.states[res.key]
	if !ok || st.generation != res.gen || !st.syncing {
		return
	}
	st.fetchCancel = nil

	if res.err != nil {
		e.metrics.resyncFailures.Add(ctx, 1, e.attrs)
		e.setLastErr(res.err)
		e.logger.Error(ctx, "snapshot retries exhausted, book unavailable",
			"exchange", e.cfg.Exchange, "pair", st.key,
			"retry_in", e.cfg.ResyncCooldown.String(), "error", res.err)

		key, gen := st.key, st.generation
		st.retry = time.AfterFunc(e.cfg.ResyncCooldown, func() {
			e.post(retryEvent{key: key, gen: gen})
		})
		return
	}

	e.applySnapshot(ctx, st, res.snap)
}

func (e *Engine) onStreamSnapshot(ctx context.Context, snap domain.Snapshot) {
	st, ok := e.states[snap.Pair.String()]
	if !ok {
		return
	}
	// Supersedes any REST fetch in flight.
	st.generation++
	st.stopTimers()
	e.applySnapshot(ctx, st, snap)
}

// applySnapshot replaces both sides, then replays buffered diffs ordered by
// marker. Arrival order breaks marker ties.
func (e *Engine) applySnapshot(ctx context.Context, st *symbolState, snap domain.Snapshot) {
	st.bids.Replace(snap.Bids)
	st.asks.Replace(snap.Asks)
	st.marker = snap.Marker
	st.bridged = false
	st.syncing = false

	pending := st.buffer.drain()
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Marker.Less(pending[j].Marker)
	})

	e.metrics.snapshots.Add(ctx, 1, e.attrs)

	for _, d := range pending {
		if !e.applyDiff(ctx, st, d) {
			return
		}
	}

	st.dirty = true
	e.setLastErr(nil)
	e.publish(st, time.Now())
	e.logger.Debug(ctx, "book synced",
		"exchange", e.cfg.Exchange, "pair", st.key,
		"replayed", len(pending), "bids", len(st.bids), "asks", len(st.asks))
}

func (e *Engine) onDiff(ctx context.Context, d domain.Diff) {
	st, ok := e.states[d.Pair.String()]
	if !ok {
		return
	}
	if st.syncing {
		if st.buffer.push(d) {
			e.metrics.bufferDropped.Add(ctx, 1, e.attrs)
		}
		return
	}
	e.applyDiff(ctx, st, d)
}

// applyDiff returns false when the diff revealed a gap and a resync started.
func (e *Engine) applyDiff(ctx context.Context, st *symbolState, d domain.Diff) bool {
	switch e.cfg.Policy.Check(st.marker, st.bridged, d.Marker) {
	case domain.Stale:
		e.metrics.diffsStale.Add(ctx, 1, e.attrs)
		return true
	case domain.Gap:
		e.metrics.gaps.Add(ctx, 1, e.attrs)
		e.logger.Warn(ctx, "update gap detected",
			"exchange", e.cfg.Exchange, "pair", st.key,
			"policy", e.cfg.Policy.Name(),
			"current_last", st.marker.Last, "diff_first", d.Marker.First, "diff_last", d.Marker.Last)
		e.onGap(ctx, st)
		return false
	}

	for _, level := range d.Bids {
		st.bids.Set(level)
	}
	for _, level := range d.Asks {
		st.asks.Set(level)
	}
	st.marker = d.Marker
	st.bridged = true
	st.dirty = true
	e.metrics.diffsApplied.Add(ctx, 1, e.attrs)
	return true
}

func (e *Engine) onGap(ctx context.Context, st *symbolState) {
	if e.cfg.ResubscribeOnResync && e.connected {
		pair := st.pair
		e.enqueue(func(ctx context.Context) {
			if err := e.adapter.Unsubscribe(ctx, pair); err != nil {
				e.logger.Warn(ctx, "unsubscribe failed", "exchange", e.cfg.Exchange, "pair", pair.String(), "error", err)
			}
			if err := e.adapter.Subscribe(ctx, pair); err != nil {
				e.logger.Warn(ctx, "resubscribe failed", "exchange", e.cfg.Exchange, "pair", pair.String(), "error", err)
			}
		})
	}
	e.resync(ctx, st, "gap")
}

func (e *Engine) onConnection(ctx context.Context, connected bool) {
	if connected == e.connected {
		return
	}
	e.connected = connected
	e.isConnected.Store(connected)

	if !connected {
		e.setLastErr(apperror.New(apperror.CodeStreamDisconnected, apperror.WithContext(e.cfg.Exchange)))
		for _, st := range e.states {
			st.reset()
			e.unpublish(st.key)
		}
		e.logger.Warn(ctx, "stream disconnected, books withdrawn",
			"exchange", e.cfg.Exchange, "watched", len(e.states))
		return
	}

	e.setLastErr(nil)
	e.logger.Info(ctx, "stream connected, resyncing",
		"exchange", e.cfg.Exchange, "watched", len(e.states))
	for _, st := range e.states {
		e.subscribe(st.pair)
		e.resync(ctx, st, "reconnect")
	}
}

func (e *Engine) subscribe(pair asset.Pair) {
	e.enqueue(func(ctx context.Context) {
		if err := e.adapter.Subscribe(ctx, pair); err != nil {
			e.logger.Warn(ctx, "subscribe failed", "exchange", e.cfg.Exchange, "pair", pair.String(), "error", err)
		}
	})
}

func (e *Engine) emitDirty(ctx context.Context, now time.Time) {
	for _, st := range e.states {
		if !st.dirty || st.syncing {
			continue
		}
		book := e.publish(st, now)
		st.dirty = false
		st.lastEmit = now
		e.metrics.emits.Add(ctx, 1, e.attrs)
		e.notify(book)
	}
}

func (e *Engine) publish(st *symbolState, now time.Time) *domain.OrderBook {
	book := &domain.OrderBook{
		Exchange:  e.cfg.Exchange,
		Pair:      st.pair,
		Bids:      st.bids.Sorted(true),
		Asks:      st.asks.Sorted(false),
		Marker:    st.marker,
		UpdatedAt: now,
	}
	e.booksMu.Lock()
	e.books[st.key] = book
	e.booksMu.Unlock()
	return book
}

func (e *Engine) unpublish(key string) {
	e.booksMu.Lock()
	delete(e.books, key)
	e.booksMu.Unlock()
}

func (e *Engine) notify(book *domain.OrderBook) {
	e.listenersMu.RLock()
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.listenersMu.RUnlock()

	for _, l := range listeners {
		l(book)
	}
}

func (e *Engine) teardown() {
	for key, st := range e.states {
		st.teardown()
		delete(e.states, key)
	}
	e.watched.Store(0)
	e.booksMu.Lock()
	clear(e.books)
	e.booksMu.Unlock()
}

// enqueue hands fn to the control goroutine, which serializes stream sends
// off the protocol goroutine.
func (e *Engine) enqueue(fn func(context.Context)) {
	select {
	case e.ctrl <- fn:
	default:
		e.logger.Warn(context.Background(), "control queue full, dropping stream command",
			"exchange", e.cfg.Exchange)
	}
}

func (e *Engine) ctrlLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-e.ctrl:
			fn(ctx)
		}
	}
}

// fetchSnapshot retries the REST snapshot with capped exponential backoff and
// jitter. Each attempt goes through the circuit breaker.
func (e *Engine) fetchSnapshot(ctx context.Context, pair asset.Pair) (domain.Snapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.SnapshotAttempts; attempt++ {
		if attempt > 1 {
			t := time.NewTimer(e.backoff(attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return domain.Snapshot{}, ctx.Err()
			case <-t.C:
			}
		}

		snap, err := e.breaker.Execute(func() (domain.Snapshot, error) {
			ctx, span := e.tracer.Start(ctx, "syncer.fetch_snapshot",
				trace.WithAttributes(
					attribute.String("exchange", e.cfg.Exchange),
					attribute.String("pair", pair.String()),
					attribute.Int("attempt", attempt),
				),
			)
			defer span.End()

			s, err := e.adapter.FetchSnapshot(ctx, pair, e.cfg.SnapshotDepth)
			if err != nil {
				span.RecordError(err)
			}
			return s, err
		})
		if err == nil {
			snap.Pair = pair
			return snap, nil
		}
		if ctx.Err() != nil {
			return domain.Snapshot{}, ctx.Err()
		}

		lastErr = err
		e.logger.Warn(ctx, "snapshot fetch failed",
			"exchange", e.cfg.Exchange, "pair", pair.String(),
			"attempt", attempt, "max_attempts", e.cfg.SnapshotAttempts, "error", err)
	}

	return domain.Snapshot{}, apperror.New(apperror.CodeResyncFailed,
		apperror.WithCause(lastErr),
		apperror.WithContext(e.cfg.Exchange+" "+pair.String()),
		apperror.WithDetail("attempts", e.cfg.SnapshotAttempts))
}

func (e *Engine) backoff(attempt int) time.Duration {
	d := e.cfg.SnapshotBackoff
	for i := 1; i < attempt && d < e.cfg.SnapshotMaxBackoff; i++ {
		d *= 2
	}
	if d > e.cfg.SnapshotMaxBackoff {
		d = e.cfg.SnapshotMaxBackoff
	}
	if e.cfg.Jitter > 0 {
		d += time.Duration(rand.Float64() * e.cfg.Jitter * float64(d))
	}
	return d
}

func (e *Engine) setLastErr(err error) {
	e.lastErrMu.Lock()
	defer e.lastErrMu.Unlock()
	if err == nil {
		e.lastErr = ""
		return
	}
	e.lastErr = err.Error()
}
