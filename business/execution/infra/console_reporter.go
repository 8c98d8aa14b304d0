// Package infra contains infrastructure adapters for the execution context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/execution/domain"
	marketDomain "github.com/fd1az/depth-compare/business/market/domain"
)

const rule = "================================================================================"

var bps = decimal.NewFromInt(10000)

// ConsoleReporter prints rankings for CLI mode. A ranking is printed when
// the order changes or when Interval has passed since the last print.
type ConsoleReporter struct {
	out      io.Writer
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	lastOrder string
	lastPrint time.Time
	statuses  map[string]marketDomain.SyncStatus
}

// NewConsoleReporter creates a new ConsoleReporter writing to stdout.
func NewConsoleReporter(interval time.Duration) *ConsoleReporter {
	return newConsoleReporter(os.Stdout, interval, time.Now)
}

func newConsoleReporter(out io.Writer, interval time.Duration, now func() time.Time) *ConsoleReporter {
	return &ConsoleReporter{
		out:      out,
		interval: interval,
		now:      now,
		statuses: make(map[string]marketDomain.SyncStatus),
	}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "depth-compare started")
	fmt.Fprintln(r.out, "=====================")
	return nil
}

// Report prints the comparison when it is worth printing.
func (r *ConsoleReporter) Report(c *domain.Comparison) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order := orderKey(c)
	now := r.now()
	if order == r.lastOrder && now.Sub(r.lastPrint) < r.interval {
		return
	}
	r.lastOrder = order
	r.lastPrint = now

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "COMPARISON  %s\n", c.Request.String())
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "Time:      %s\n", c.At.Format(time.RFC3339))
	fmt.Fprintf(r.out, "ID:        %s\n", c.ID)
	if c.TickSize.IsPositive() {
		fmt.Fprintf(r.out, "Tick:      %s\n", c.TickSize)
	}
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintf(r.out, "%-3s %-9s %14s %9s %12s %20s %12s\n",
		"#", "EXCHANGE", "AVG PRICE", "SLIP BP", "FEE USD", "NET RECEIVED", "USD/UNIT")
	for _, e := range c.Ranking.Entries {
		b := e.Breakdown
		net, netAsset := b.NetBaseReceived, b.Pair.Base
		if b.Side == domain.Sell {
			net, netAsset = b.NetQuoteReceived, b.Pair.Quote
		}
		score := "n/a"
		if e.Scored {
			score = e.Score.Abs().StringFixed(4)
		}
		fmt.Fprintf(r.out, "%-3d %-9s %14s %9s %12s %20s %12s\n",
			e.Rank,
			e.Exchange,
			b.AveragePrice.StringFixed(4),
			b.Slippage.Rate.Mul(bps).StringFixed(2),
			b.Totals.FeeUSD.StringFixed(4),
			net.StringFixed(6)+" "+netAsset.String(),
			score,
		)
	}

	if best, ok := c.Ranking.Best(); ok && len(best.Breakdown.Fee.Trail) > 0 {
		fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
		fmt.Fprintf(r.out, "FEE (%s, %s)\n", best.Exchange, best.Breakdown.Fee.Asset)
		for _, s := range best.Breakdown.Fee.Trail {
			fmt.Fprintf(r.out, "  %-11s %-24s %s -> %s\n", s.Kind, s.Name, s.Before, s.After)
		}
	}

	if len(c.Failures) > 0 {
		fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
		fmt.Fprintln(r.out, "EXCLUDED")
		for _, f := range c.Failures {
			fmt.Fprintf(r.out, "  %-9s %s %s%s\n", f.Exchange, f.Code, f.Message, formatDetails(f.Details))
		}
	}
	fmt.Fprintln(r.out, rule)
}

// UpdateStatus prints exchanges whose connection or sync state changed.
func (r *ConsoleReporter) UpdateStatus(statuses []marketDomain.SyncStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range statuses {
		prev, seen := r.statuses[s.Exchange]
		r.statuses[s.Exchange] = s
		if seen && prev.Connected == s.Connected && prev.Synced == s.Synced {
			continue
		}
		state := "disconnected"
		switch {
		case s.Connected && s.Synced == s.Watched && s.Watched > 0:
			state = "synced"
		case s.Connected:
			state = fmt.Sprintf("syncing (%d/%d)", s.Synced, s.Watched)
		}
		line := fmt.Sprintf("[%s] %s: %s", r.now().Format("15:04:05"), s.Exchange, state)
		if s.LastError != "" && !s.Connected {
			line += " (" + s.LastError + ")"
		}
		fmt.Fprintln(r.out, line)
	}
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "depth-compare stopped")
	return nil
}

func orderKey(c *domain.Comparison) string {
	names := make([]string, 0, len(c.Ranking.Entries)+len(c.Failures))
	for _, e := range c.Ranking.Entries {
		names = append(names, e.Exchange)
	}
	for _, f := range c.Failures {
		names = append(names, "!"+f.Exchange)
	}
	return strings.Join(names, ",")
}

func formatDetails(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return " (" + strings.Join(parts, " ") + ")"
}
