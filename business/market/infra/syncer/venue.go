package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/logger"
	"github.com/fd1az/depth-compare/internal/wsconn"
)

// Event is one decoded book message.
type Event struct {
	Symbol   string
	Snapshot bool
	Bids     []domain.PriceLevel
	Asks     []domain.PriceLevel
	Marker   domain.Marker
}

// Codec translates between pairs and an exchange's stream wire format.
type Codec interface {
	// Symbol is the venue's name for pair as it appears in stream messages.
	Symbol(pair asset.Pair) string
	SubscribeFrame(pair asset.Pair, id int64) any
	UnsubscribeFrame(pair asset.Pair, id int64) any
	// Decode returns no events and no error for control frames such as
	// subscription acks and heartbeats.
	Decode(msg []byte) ([]Event, error)
}

// SnapshotSource is the REST half of an exchange adapter.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, pair asset.Pair, depth int) (domain.Snapshot, error)
	TickSize(ctx context.Context, pair asset.Pair) (decimal.Decimal, error)
}

type venueMetrics struct {
	messages    metric.Int64Counter
	parseErrors metric.Int64Counter
	unknown     metric.Int64Counter
}

// Venue is a complete exchange synchronizer: one persistent stream
// connection, a codec for its frames, a REST snapshot source and the Engine
// running the protocol.
type Venue struct {
	engine *Engine
	conn   *wsconn.Client
	codec  Codec
	rest   SnapshotSource
	logger logger.LoggerInterface

	symbolsMu sync.RWMutex
	symbols   map[string]asset.Pair

	nextID    atomic.Int64
	connected atomic.Bool
	metrics   *venueMetrics
	attrs     metric.MeasurementOption

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewVenue wires a stream client, codec and snapshot source into an Engine.
func NewVenue(cfg Config, stream wsconn.Config, codec Codec, rest SnapshotSource, log logger.LoggerInterface) (*Venue, error) {
	conn, err := wsconn.New(stream)
	if err != nil {
		return nil, err
	}

	v := &Venue{
		conn:    conn,
		codec:   codec,
		rest:    rest,
		logger:  log,
		symbols: make(map[string]asset.Pair),
		attrs:   metric.WithAttributes(attribute.String("exchange", cfg.Exchange)),
	}
	if err := v.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	v.engine, err = NewEngine(cfg, v, log)
	if err != nil {
		return nil, err
	}

	conn.OnMessage(v.handleMessage)
	conn.OnStateChange(v.handleState)
	return v, nil
}

func (v *Venue) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	v.metrics = &venueMetrics{}

	v.metrics.messages, err = meter.Int64Counter(
		"stream_messages_total",
		metric.WithDescription("Stream frames received"),
	)
	if err != nil {
		return err
	}

	v.metrics.parseErrors, err = meter.Int64Counter(
		"stream_parse_errors_total",
		metric.WithDescription("Stream frames dropped as malformed"),
	)
	if err != nil {
		return err
	}

	v.metrics.unknown, err = meter.Int64Counter(
		"stream_unknown_symbol_total",
		metric.WithDescription("Book messages for symbols that are not watched"),
	)
	return err
}

// Exchange returns the exchange id.
func (v *Venue) Exchange() string {
	return v.engine.Exchange()
}

// Start launches the engine and dials the stream in the background.
func (v *Venue) Start(ctx context.Context) error {
	v.startOnce.Do(func() {
		v.engine.Start(ctx)

		v.wg.Add(1)
		go func() {
			defer v.wg.Done()
			if err := v.conn.ConnectWithRetry(ctx); err != nil && !errors.Is(err, context.Canceled) {
				v.logger.Error(ctx, "stream connect failed", "exchange", v.Exchange(), "error", err)
			}
		}()
	})
	return nil
}

// Stop closes the stream and tears the engine down.
func (v *Venue) Stop() {
	v.stopOnce.Do(func() {
		_ = v.conn.Close()
		v.engine.Stop()
		v.wg.Wait()
	})
}

// Watch starts synchronizing pair.
func (v *Venue) Watch(ctx context.Context, pair asset.Pair) error {
	v.symbolsMu.Lock()
	v.symbols[v.codec.Symbol(pair)] = pair
	v.symbolsMu.Unlock()

	return v.engine.Watch(ctx, pair)
}

// Unwatch stops synchronizing pair. It is idempotent.
func (v *Venue) Unwatch(ctx context.Context, pair asset.Pair) error {
	err := v.engine.Unwatch(ctx, pair)

	v.symbolsMu.Lock()
	delete(v.symbols, v.codec.Symbol(pair))
	v.symbolsMu.Unlock()
	return err
}

// OnUpdate registers a book listener and returns its unsubscribe func.
func (v *Venue) OnUpdate(l func(*domain.OrderBook)) func() {
	return v.engine.OnUpdate(l)
}

// CurrentBook returns the last published book for pair.
func (v *Venue) CurrentBook(pair asset.Pair) (*domain.OrderBook, bool) {
	return v.engine.CurrentBook(pair)
}

// Status reports the engine's health view.
func (v *Venue) Status() domain.SyncStatus {
	return v.engine.Status()
}

// TickSize asks the venue for pair's price increment.
func (v *Venue) TickSize(ctx context.Context, pair asset.Pair) (decimal.Decimal, error) {
	return v.rest.TickSize(ctx, pair)
}

// Subscribe implements Adapter.
func (v *Venue) Subscribe(ctx context.Context, pair asset.Pair) error {
	return v.conn.SendJSON(ctx, v.codec.SubscribeFrame(pair, v.nextID.Add(1)))
}

// Unsubscribe implements Adapter.
func (v *Venue) Unsubscribe(ctx context.Context, pair asset.Pair) error {
	return v.conn.SendJSON(ctx, v.codec.UnsubscribeFrame(pair, v.nextID.Add(1)))
}

// FetchSnapshot implements Adapter. The engine's breaker guards each attempt.
func (v *Venue) FetchSnapshot(ctx context.Context, pair asset.Pair, depth int) (domain.Snapshot, error) {
	snap, err := v.rest.FetchSnapshot(ctx, pair, depth)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Pair = pair
	return snap, nil
}

func (v *Venue) handleMessage(ctx context.Context, msg []byte) {
	v.metrics.messages.Add(ctx, 1, v.attrs)

	events, err := v.codec.Decode(msg)
	if err != nil {
		v.metrics.parseErrors.Add(ctx, 1, v.attrs)
		v.logger.Warn(ctx, "dropping malformed message",
			"exchange", v.Exchange(),
			"error", apperror.New(apperror.CodeMalformedMessage, apperror.WithCause(err), apperror.WithContext(v.Exchange())),
			"size", len(msg))
		return
	}

	for _, ev := range events {
		v.symbolsMu.RLock()
		pair, ok := v.symbols[ev.Symbol]
		v.symbolsMu.RUnlock()
		if !ok {
			v.metrics.unknown.Add(ctx, 1, v.attrs)
			continue
		}

		if ev.Snapshot {
			v.engine.HandleSnapshot(domain.Snapshot{Pair: pair, Bids: ev.Bids, Asks: ev.Asks, Marker: ev.Marker})
		} else {
			v.engine.HandleDiff(domain.Diff{Pair: pair, Bids: ev.Bids, Asks: ev.Asks, Marker: ev.Marker})
		}
	}
}

func (v *Venue) handleState(state wsconn.State, err error) {
	ctx := context.Background()
	switch state {
	case wsconn.StateConnected:
		if !v.connected.Swap(true) {
			v.logger.Info(ctx, "stream connected", "exchange", v.Exchange())
			v.engine.SetConnected(true)
		}
	case wsconn.StateReconnecting, wsconn.StateDisconnected, wsconn.StateClosed:
		if v.connected.Swap(false) {
			v.logger.Warn(ctx, "stream disconnected", "exchange", v.Exchange(), "state", string(state), "error", err)
			v.engine.SetConnected(false)
		}
	}
}

// ParseLevels converts [price, quantity, ...] string tuples. Extra fields
// are ignored.
func ParseLevels(raw [][]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			return nil, fmt.Errorf("level %v: want price and quantity", entry)
		}
		price, err := asset.ParseDecimal(entry[0])
		if err != nil {
			return nil, fmt.Errorf("level price %q: %w", entry[0], err)
		}
		qty, err := asset.ParseDecimal(entry[1])
		if err != nil {
			return nil, fmt.Errorf("level quantity %q: %w", entry[1], err)
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

// StreamConfig maps an exchange section onto websocket client settings.
func StreamConfig(exchange string, ex config.ExchangeConfig) wsconn.Config {
	stream := wsconn.DefaultConfig(ex.WebSocketURL, exchange)
	if ex.ReconnectInitialBackoff > 0 {
		stream.InitialBackoff = ex.ReconnectInitialBackoff
	}
	if ex.ReconnectMaxBackoff > 0 {
		stream.MaxBackoff = ex.ReconnectMaxBackoff
	}
	return stream
}
