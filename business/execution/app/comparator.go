package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/depth-compare/business/execution/domain"
	marketDomain "github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/logger"
)

// DefaultDebounce coalesces book update bursts into one comparison.
const DefaultDebounce = 120 * time.Millisecond

// ComparatorConfig holds configuration for the comparator.
type ComparatorConfig struct {
	Request  domain.Request
	Debounce time.Duration
	Now      func() time.Time
}

type comparatorMetrics struct {
	comparisons metric.Int64Counter
	failures    metric.Int64Counter
	duration    metric.Float64Histogram
}

// Comparator re-runs the comparison whenever a book for the requested pair
// changes.
type Comparator struct {
	books     BookSource
	fees      FeeQuoter
	sim       *Simulator
	reporters []Reporter
	audit     AuditStore // optional
	cfg       ComparatorConfig
	logger    logger.LoggerInterface
	tracer    trace.Tracer
	metrics   *comparatorMetrics

	trigger chan struct{}

	mu     sync.RWMutex
	last   *domain.Comparison
	unsub  func()
	cancel context.CancelFunc
	done   chan struct{}
}

// NewComparator creates a Comparator. audit may be nil.
func NewComparator(
	books BookSource,
	fees FeeQuoter,
	sim *Simulator,
	reporters []Reporter,
	audit AuditStore,
	cfg ComparatorConfig,
	log logger.LoggerInterface,
) (*Comparator, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Request.Reference == "" {
		cfg.Request.Reference = domain.ReferenceBest
	}
	if cfg.Request.SizeAsset == "" {
		cfg.Request.SizeAsset = domain.SizeInBase
	}

	c := &Comparator{
		books:     books,
		fees:      fees,
		sim:       sim,
		reporters: reporters,
		audit:     audit,
		cfg:       cfg,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		trigger:   make(chan struct{}, 1),
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return c, nil
}

func (c *Comparator) initMetrics() error {
	meter := otel.Meter(tracerName)
	var err error

	c.metrics = &comparatorMetrics{}

	c.metrics.comparisons, err = meter.Int64Counter(
		"comparisons_total",
		metric.WithDescription("Completed comparisons"),
	)
	if err != nil {
		return err
	}

	c.metrics.failures, err = meter.Int64Counter(
		"comparison_failures_total",
		metric.WithDescription("Exchanges left out of a comparison, by error code"),
	)
	if err != nil {
		return err
	}

	c.metrics.duration, err = meter.Float64Histogram(
		"comparison_duration_seconds",
		metric.WithDescription("Time spent building one comparison"),
		metric.WithUnit("s"),
	)
	return err
}

// Request returns the order being compared.
func (c *Comparator) Request() domain.Request {
	return c.cfg.Request
}

// Start starts the reporters and begins reacting to book updates.
func (c *Comparator) Start(ctx context.Context) error {
	c.logger.Info(ctx, "starting comparator",
		"request", c.cfg.Request.String(),
		"debounce", c.cfg.Debounce.String())

	for _, r := range c.reporters {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	pair := c.cfg.Request.Pair
	unsub := c.books.OnUpdate(func(book *marketDomain.OrderBook) {
		if book.Pair != pair {
			return
		}
		select {
		case c.trigger <- struct{}{}:
		default:
		}
	})

	c.mu.Lock()
	c.unsub = unsub
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.run(runCtx, done)
	return nil
}

// run arms one timer per burst: the first update starts it and later ones
// inside the window ride along.
func (c *Comparator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info(ctx, "comparator stopping", "reason", ctx.Err())
			return
		case <-c.trigger:
			if fire != nil {
				continue
			}
			timer = time.NewTimer(c.cfg.Debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			if _, err := c.Compare(ctx); err != nil && ctx.Err() == nil {
				c.logger.Debug(ctx, "comparison skipped", "error", err)
			}
		}
	}
}

// Compare runs one comparison over the currently ready books, publishes it
// to the reporters and the audit store, and returns it.
func (c *Comparator) Compare(ctx context.Context) (*domain.Comparison, error) {
	req := c.cfg.Request
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "execution.compare",
		trace.WithAttributes(
			attribute.String("pair", req.Pair.String()),
			attribute.String("side", string(req.Side)),
			attribute.String("size", req.Size.String()),
		),
	)
	defer span.End()

	statuses := c.books.Statuses()
	for _, r := range c.reporters {
		r.UpdateStatus(statuses)
	}

	books := c.books.ReadyBooks(req.Pair)
	if len(books) == 0 {
		return nil, apperror.New(apperror.CodeBookUnavailable,
			apperror.WithContext(req.Pair.String()),
			apperror.WithMessage("no exchange has a synced book"))
	}

	exchanges := make([]string, 0, len(books))
	for name := range books {
		exchanges = append(exchanges, name)
	}
	slices.Sort(exchanges)

	tick := c.normalize(ctx, exchanges, books)

	breakdowns := make([]*domain.CostBreakdown, len(exchanges))
	errs := make([]error, len(exchanges))

	var g errgroup.Group
	for i, name := range exchanges {
		g.Go(func() error {
			breakdowns[i], errs[i] = c.simulate(ctx, name, books[name])
			return nil
		})
	}
	_ = g.Wait()

	cmp := &domain.Comparison{
		ID:       uuid.New(),
		Request:  req,
		TickSize: tick,
		At:       c.cfg.Now(),
	}
	for i, name := range exchanges {
		if errs[i] != nil {
			f := failureFrom(name, errs[i])
			cmp.Failures = append(cmp.Failures, f)
			c.metrics.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("exchange", name),
				attribute.String("code", string(f.Code)),
			))
			c.logger.Warn(ctx, "exchange left out of comparison",
				append([]any{"exchange", name}, apperror.LogArgs(errs[i])...)...)
			continue
		}
		cmp.Breakdowns = append(cmp.Breakdowns, breakdowns[i])
	}
	cmp.Ranking = Rank(cmp.Breakdowns, req.Side)

	c.mu.Lock()
	c.last = cmp
	c.mu.Unlock()

	for _, r := range c.reporters {
		r.Report(cmp)
	}

	if c.audit != nil {
		if err := c.audit.Save(ctx, cmp); err != nil {
			c.logger.Error(ctx, "failed to persist comparison", "id", cmp.ID.String(), "error", err)
		}
	}

	c.metrics.comparisons.Add(ctx, 1)
	c.metrics.duration.Record(ctx, time.Since(start).Seconds())

	if best, ok := cmp.Ranking.Best(); ok {
		span.SetAttributes(attribute.String("best", best.Exchange))
		c.logger.Debug(ctx, "comparison complete",
			"id", cmp.ID.String(),
			"best", best.Exchange,
			"score", best.Score.StringFixed(6),
			"ranked", len(cmp.Ranking.Entries),
			"failures", len(cmp.Failures))
	}
	return cmp, nil
}

// normalize buckets every book onto the coarsest known tick in place and
// returns it. Exchanges whose tick is unavailable still take part on the
// common grid of the others.
func (c *Comparator) normalize(ctx context.Context, exchanges []string, books map[string]*marketDomain.OrderBook) decimal.Decimal {
	ticks, errs := c.books.TickSizes(ctx, exchanges, c.cfg.Request.Pair)
	for name, err := range errs {
		c.logger.Warn(ctx, "tick size unavailable", "exchange", name, "error", err)
	}

	known := make([]decimal.Decimal, 0, len(ticks))
	for _, t := range ticks {
		known = append(known, t)
	}
	tick, ok := marketDomain.CoarsestTick(known...)
	if !ok {
		return decimal.Zero
	}
	for name, book := range books {
		books[name] = marketDomain.Bucketize(book, tick)
	}
	return tick
}

func (c *Comparator) simulate(ctx context.Context, exchange string, book *marketDomain.OrderBook) (*domain.CostBreakdown, error) {
	req := c.cfg.Request

	quote, err := c.fees.Quote(ctx, exchange, req.Pair, req.Received())
	if err != nil {
		return nil, err
	}

	return c.sim.Simulate(ctx, Input{
		Exchange:  exchange,
		Book:      book,
		Side:      req.Side,
		Size:      req.Size,
		SizeAsset: req.SizeAsset,
		Reference: req.Reference,
		FeeRate:   quote.Rate,
		FeeAsset:  quote.FeeAsset,
		FeeTrail:  quote.Result.Trail,
	})
}

// Last returns the most recent comparison, or nil before the first one.
func (c *Comparator) Last() *domain.Comparison {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Stop stops reacting to updates and shuts the reporters down.
func (c *Comparator) Stop() error {
	c.mu.Lock()
	unsub, cancel, done := c.unsub, c.cancel, c.done
	c.unsub, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
		<-done
	}

	var errs []error
	for _, r := range c.reporters {
		if err := r.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func failureFrom(exchange string, err error) domain.Failure {
	f := domain.Failure{
		Exchange: exchange,
		Code:     apperror.GetCode(err),
		Message:  err.Error(),
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		f.Message = appErr.Message
		f.Details = appErr.Details
	}
	return f
}
