package worker

import (
	"context"
	"testing"

	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/msgiter"
	"github.com/gaby/logstream/internal/source"
)

type fakeSource struct {
	terminated bool
}

func (f *fakeSource) Initialize(context.Context) (logmsg.Initialization, error) {
	return logmsg.Initialization{Topics: []logmsg.Topic{{Name: "/a"}}}, nil
}

func (f *fakeSource) MessageIterator(args msgiter.MessageIteratorArgs) (msgiter.Iterator, error) {
	return msgiter.NewSlice([]logmsg.IteratorResult{
		{Kind: logmsg.ResultMessageEvent, Message: logmsg.MessageEvent{Topic: "/a"}},
	}), nil
}

func (f *fakeSource) Backfill(context.Context, msgiter.BackfillArgs) ([]logmsg.MessageEvent, error) {
	return []logmsg.MessageEvent{{Topic: "/a"}}, nil
}

func (f *fakeSource) Terminate() error {
	f.terminated = true
	return nil
}

func TestWorkerRoundTrip(t *testing.T) {
	var fs fakeSource
	w := Start(func() source.Source { return &fs })

	init, err := w.Initialize(context.Background())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(init.Topics) != 1 {
		t.Fatalf("unexpected init: %+v", init)
	}

	cur, err := w.GetMessageCursor(context.Background(), msgiter.MessageIteratorArgs{Topics: []string{"/a"}})
	if err != nil {
		t.Fatalf("get message cursor: %v", err)
	}
	item, ok, err := cur.Next()
	if err != nil || !ok {
		t.Fatalf("cursor next: ok=%v err=%v", ok, err)
	}
	if item.Message.Topic != "/a" {
		t.Fatalf("unexpected item: %+v", item)
	}

	events, err := w.Backfill(context.Background(), msgiter.BackfillArgs{Topics: []string{"/a"}})
	if err != nil || len(events) != 1 {
		t.Fatalf("backfill: events=%v err=%v", events, err)
	}

	if err := w.Terminate(); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if !fs.terminated {
		t.Fatalf("expected underlying source to be terminated")
	}
}
