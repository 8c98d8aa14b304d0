package syncer

import (
	"context"
	"time"

	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/asset"
)

// symbolState is the live book of one pair. Only the engine's run goroutine
// touches it.
type symbolState struct {
	key  string
	pair asset.Pair

	bids domain.Levels
	asks domain.Levels

	// syncing is true from resync start until a snapshot lands. Diffs are
	// buffered, never applied, while it is set.
	syncing bool
	bridged bool
	marker  domain.Marker
	buffer  *diffBuffer

	dirty    bool
	lastEmit time.Time

	// generation tags fetches and timers; results from an older generation
	// are ignored.
	generation  uint64
	fetchCancel context.CancelFunc
	retry       *time.Timer
}

func newSymbolState(pair asset.Pair, capacity int) *symbolState {
	return &symbolState{
		key:     pair.String(),
		pair:    pair,
		bids:    domain.Levels{},
		asks:    domain.Levels{},
		syncing: true,
		buffer:  newDiffBuffer(capacity),
	}
}

// reset re-initializes the state for a resync.
func (s *symbolState) reset() {
	s.generation++
	s.stopTimers()
	clear(s.bids)
	clear(s.asks)
	s.syncing = true
	s.bridged = false
	s.marker = domain.Marker{}
	s.buffer.reset()
	s.dirty = false
}

func (s *symbolState) teardown() {
	s.reset()
}

func (s *symbolState) stopTimers() {
	if s.fetchCancel != nil {
		s.fetchCancel()
		s.fetchCancel = nil
	}
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

// diffBuffer is a bounded FIFO that drops its oldest entry on overflow.
type diffBuffer struct {
	items    []domain.Diff
	capacity int
}

func newDiffBuffer(capacity int) *diffBuffer {
	return &diffBuffer{capacity: capacity}
}

// push appends d and reports whether an older entry was dropped.
func (b *diffBuffer) push(d domain.Diff) bool {
	dropped := false
	if len(b.items) >= b.capacity {
		copy(b.items, b.items[1:])
		b.items = b.items[:len(b.items)-1]
		dropped = true
	}
	b.items = append(b.items, d)
	return dropped
}

func (b *diffBuffer) drain() []domain.Diff {
	out := b.items
	b.items = nil
	return out
}

func (b *diffBuffer) reset() {
	b.items = nil
}

func (b *diffBuffer) len() int {
	return len(b.items)
}
