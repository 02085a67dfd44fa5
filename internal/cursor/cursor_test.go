package cursor

import (
	"context"
	"testing"

	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/msgiter"
)

func msgAt(topic string, sec int64) logmsg.IteratorResult {
	return logmsg.IteratorResult{
		Kind:    logmsg.ResultMessageEvent,
		Message: logmsg.MessageEvent{Topic: topic, ReceiveTime: logmsg.Time{Sec: sec}},
	}
}

func stampAt(sec int64) logmsg.IteratorResult {
	return logmsg.IteratorResult{Kind: logmsg.ResultStamp, Stamp: logmsg.Time{Sec: sec}}
}

func TestCursorNextBatchStopsAtCutoff(t *testing.T) {
	items := []logmsg.IteratorResult{
		msgAt("/a", 0),
		msgAt("/a", 1),
		msgAt("/a", 5),
		msgAt("/a", 6),
	}
	c := New(context.Background(), msgiter.NewSlice(items))

	batch, err := c.NextBatch(logmsg.Time{Sec: 2})
	if err != nil {
		t.Fatalf("next batch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 items within cutoff, got %d: %+v", len(batch), batch)
	}

	batch, err = c.NextBatch(logmsg.Time{Sec: 10})
	if err != nil {
		t.Fatalf("next batch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected remaining 2 items, got %d", len(batch))
	}
}

func TestCursorNextBatchReturnsProblemAlone(t *testing.T) {
	items := []logmsg.IteratorResult{
		{Kind: logmsg.ResultProblem, Problem: logmsg.Problem{Message: "bad"}},
		msgAt("/a", 1),
	}
	c := New(context.Background(), msgiter.NewSlice(items))
	batch, err := c.NextBatch(logmsg.Time{Sec: 100})
	if err != nil {
		t.Fatalf("next batch: %v", err)
	}
	if len(batch) != 1 || batch[0].Kind != logmsg.ResultProblem {
		t.Fatalf("expected a single problem item, got %+v", batch)
	}
}

func TestCursorReadUntilStashesOverflow(t *testing.T) {
	items := []logmsg.IteratorResult{
		msgAt("/a", 0),
		msgAt("/a", 5),
		msgAt("/a", 10),
	}
	c := New(context.Background(), msgiter.NewSlice(items))

	out, err := c.ReadUntil(logmsg.Time{Sec: 5})
	if err != nil {
		t.Fatalf("read until: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 items ≤ bound, got %d", len(out))
	}

	out, err = c.ReadUntil(logmsg.Time{Sec: 20})
	if err != nil {
		t.Fatalf("read until: %v", err)
	}
	if len(out) != 1 || out[0].Message.ReceiveTime.Sec != 10 {
		t.Fatalf("expected stashed item to reappear first, got %+v", out)
	}
}

// TestCursorReadUntilStashesStampAtBound exercises S4: over stamps
// 1,2,3,4, read_until(0,2) must return [1] with 2 stashed, and the next
// read_until(0,3) must then return [2], not skip it.
func TestCursorReadUntilStashesStampAtBound(t *testing.T) {
	items := []logmsg.IteratorResult{
		stampAt(1),
		stampAt(2),
		stampAt(3),
		stampAt(4),
	}
	c := New(context.Background(), msgiter.NewSlice(items))

	out, err := c.ReadUntil(logmsg.Time{Sec: 2})
	if err != nil {
		t.Fatalf("read until: %v", err)
	}
	if len(out) != 1 || out[0].Stamp.Sec != 1 {
		t.Fatalf("expected [1], got %+v", out)
	}

	out, err = c.ReadUntil(logmsg.Time{Sec: 3})
	if err != nil {
		t.Fatalf("read until: %v", err)
	}
	if len(out) != 1 || out[0].Stamp.Sec != 2 {
		t.Fatalf("expected stashed stamp 2 to reappear, got %+v", out)
	}
}

func TestCursorCancelledNextReturnsFalse(t *testing.T) {
	c := New(context.Background(), msgiter.NewSlice([]logmsg.IteratorResult{msgAt("/a", 0)}))
	c.Cancel()
	_, ok, err := c.Next()
	if ok || err != nil {
		t.Fatalf("expected cancelled next to report ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestCursorEndClosesIterator(t *testing.T) {
	c := New(context.Background(), msgiter.NewSlice(nil))
	if err := c.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
}
