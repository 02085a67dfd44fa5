// Package msgiter defines the pull-based message iterator contract shared
// by every source implementation and consumed by the cursor (internal/cursor)
// and worker boundary (internal/worker). spec.md §9 allows realizing "async
// iterator" as an explicit state machine, a generator, or a pull-based
// callback; Go's natural fit is a small pull interface backed by a channel
// or a slice cursor, which is what this package provides.
package msgiter

import (
	"context"

	"github.com/gaby/logstream/internal/logmsg"
)

// Iterator is a single-pass, single-consumer pull source of
// logmsg.IteratorResult values. Next returns ok=false once the iterator is
// exhausted; Close releases any held resources and is safe to call more
// than once.
type Iterator interface {
	Next(ctx context.Context) (result logmsg.IteratorResult, ok bool, err error)
	Close() error
}

// MessageIteratorArgs selects the topic/time window a source's
// MessageIterator will deliver, per spec.md §6.
type MessageIteratorArgs struct {
	Topics  []string
	Start   *logmsg.Time
	End     *logmsg.Time
	Reverse bool
}

// BackfillArgs selects the topics and reference time for a Backfill call.
type BackfillArgs struct {
	Topics []string
	Time   logmsg.Time
}

// Slice adapts a pre-computed, already-ordered slice of results into an
// Iterator — the shape both the MCAP unindexed source and the bag source
// produce, since both fully materialize their message list before
// streaming it out.
type Slice struct {
	items []logmsg.IteratorResult
	pos   int
}

func NewSlice(items []logmsg.IteratorResult) *Slice {
	return &Slice{items: items}
}

func (s *Slice) Next(ctx context.Context) (logmsg.IteratorResult, bool, error) {
	select {
	case <-ctx.Done():
		return logmsg.IteratorResult{}, false, ctx.Err()
	default:
	}
	if s.pos >= len(s.items) {
		return logmsg.IteratorResult{}, false, nil
	}
	item := s.items[s.pos]
	s.pos++
	return item, true, nil
}

func (s *Slice) Close() error { return nil }
