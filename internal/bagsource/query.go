package bagsource

import (
	"sort"

	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/msgiter"
)

// MessageIterator collects all stored events matching topics ∩ [start,end]
// (inclusive), sorted stably by receive time, mirroring
// mcapsource.Unindexed.MessageIterator. An empty topic selection yields
// nothing.
func (b *Bag) MessageIterator(args msgiter.MessageIteratorArgs) (msgiter.Iterator, error) {
	if !b.initialized {
		return nil, logmsg.ErrNotInitialized
	}
	if len(args.Topics) == 0 {
		return msgiter.NewSlice(nil), nil
	}
	want := make(map[string]bool, len(args.Topics))
	for _, t := range args.Topics {
		want[t] = true
	}

	var matched []logmsg.MessageEvent
	for conn, events := range b.eventsByConn {
		info := b.connections[conn]
		if !want[info.topic] {
			continue
		}
		for _, ev := range events {
			if args.Start != nil && ev.ReceiveTime.Before(*args.Start) {
				continue
			}
			if args.End != nil && ev.ReceiveTime.After(*args.End) {
				continue
			}
			matched = append(matched, ev)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if args.Reverse {
			return matched[j].ReceiveTime.Before(matched[i].ReceiveTime)
		}
		return matched[i].ReceiveTime.Before(matched[j].ReceiveTime)
	})

	results := make([]logmsg.IteratorResult, len(matched))
	for i, ev := range matched {
		results[i] = logmsg.IteratorResult{Kind: logmsg.ResultMessageEvent, Message: ev}
	}
	return msgiter.NewSlice(results), nil
}

// Backfill handles each requested topic independently: it scans that
// topic's stored events and keeps the latest one with ReceiveTime ≤
// args.Time. Results are sorted by receive time.
func (b *Bag) Backfill(args msgiter.BackfillArgs) ([]logmsg.MessageEvent, error) {
	if !b.initialized {
		return nil, logmsg.ErrNotInitialized
	}
	var out []logmsg.MessageEvent
	for _, topic := range args.Topics {
		var best *logmsg.MessageEvent
		for conn, events := range b.eventsByConn {
			if b.connections[conn].topic != topic {
				continue
			}
			for i := range events {
				ev := events[i]
				if ev.ReceiveTime.After(args.Time) {
					continue
				}
				if best == nil || ev.ReceiveTime.After(best.ReceiveTime) {
					best = &ev
				}
			}
		}
		if best != nil {
			out = append(out, *best)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceiveTime.Before(out[j].ReceiveTime) })
	return out, nil
}
