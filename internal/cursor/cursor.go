// Package cursor implements the iterator cursor (spec.md §4.J): a thin
// wrapper around a msgiter.Iterator that adds single-item stash semantics
// for read_until, duration-bounded batching, and best-effort cancellation.
package cursor

import (
	"context"

	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/msgiter"
)

// Cursor wraps one iterator plus an optional cancellation context. It is
// not safe for concurrent use — matching the single-consumer pull model the
// wrapped iterator already assumes.
type Cursor struct {
	it     msgiter.Iterator
	ctx    context.Context
	cancel context.CancelFunc

	stash    *logmsg.IteratorResult
	hasStash bool
}

// New wraps it. If ctx is nil, context.Background() is used and the cursor
// is never externally cancellable (only End() releases it).
func New(ctx context.Context, it msgiter.Iterator) *Cursor {
	if ctx == nil {
		ctx = context.Background()
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Cursor{it: it, ctx: cctx, cancel: cancel}
}

// Cancel arms the cursor's cancellation signal; already-returned batches are
// not revoked, per spec.md §5.
func (c *Cursor) Cancel() { c.cancel() }

func (c *Cursor) cancelled() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Next pulls one item, or (zero, false, nil) if cancelled or exhausted.
func (c *Cursor) Next() (logmsg.IteratorResult, bool, error) {
	if c.cancelled() {
		return logmsg.IteratorResult{}, false, nil
	}
	if c.hasStash {
		item := *c.stash
		c.stash = nil
		c.hasStash = false
		return item, true, nil
	}
	return c.it.Next(c.ctx)
}

// NextBatch pulls the first item; if it is a problem, returns it alone.
// Otherwise it keeps pulling while each subsequent item's time does not
// strictly exceed time_of(first) + duration, stopping on the first item
// that does, on a problem (appended before stopping), or on exhaustion.
func (c *Cursor) NextBatch(duration logmsg.Time) ([]logmsg.IteratorResult, error) {
	first, ok, err := c.Next()
	if err != nil || !ok {
		return nil, err
	}
	if first.Kind == logmsg.ResultProblem {
		return []logmsg.IteratorResult{first}, nil
	}

	cutoff := addTime(first.Time(), duration)
	batch := []logmsg.IteratorResult{first}
	for {
		item, ok, err := c.Next()
		if err != nil {
			return batch, err
		}
		if !ok {
			return batch, nil
		}
		if item.Kind != logmsg.ResultProblem && item.Time().After(cutoff) {
			c.stashOne(item)
			return batch, nil
		}
		batch = append(batch, item)
		if item.Kind == logmsg.ResultProblem {
			return batch, nil
		}
	}
}

// ReadUntil returns items whose time is ≤ end for messages and < end for
// stamps. The first item outside the bound (a message after end, or a stamp
// at or after end) is stashed for the next call, per spec.md §4.J.
func (c *Cursor) ReadUntil(end logmsg.Time) ([]logmsg.IteratorResult, error) {
	var out []logmsg.IteratorResult
	for {
		item, ok, err := c.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		if c.cancelled() {
			return nil, nil
		}
		if item.Kind == logmsg.ResultStamp {
			if !item.Stamp.Before(end) {
				c.stashOne(item)
				return out, nil
			}
			out = append(out, item)
			continue
		}
		if item.Kind == logmsg.ResultMessageEvent && item.Message.ReceiveTime.After(end) {
			c.stashOne(item)
			return out, nil
		}
		out = append(out, item)
	}
}

// End invokes the underlying iterator's release hook. Safe to call more
// than once.
func (c *Cursor) End() error {
	c.cancel()
	return c.it.Close()
}

func (c *Cursor) stashOne(item logmsg.IteratorResult) {
	c.stash = &item
	c.hasStash = true
}

// addTime adds a duration expressed as a logmsg.Time delta (seconds+nanos)
// to a base timestamp; used for NextBatch's cutoff computation.
func addTime(base, delta logmsg.Time) logmsg.Time {
	return logmsg.FromNanos(base.ToNanos() + delta.ToNanos())
}
