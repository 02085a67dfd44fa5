package mcapsource

import (
	"sort"

	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/msgiter"
)

// MessageIterator collects all stored events matching topics ∩ [start,end]
// (inclusive), sorted stably by receive time, per spec.md §4.G. An empty
// topic selection yields nothing.
func (u *Unindexed) MessageIterator(args msgiter.MessageIteratorArgs) (msgiter.Iterator, error) {
	if !u.initialized {
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
	for chID, events := range u.eventsByChannel {
		ch := u.channels[chID]
		if !want[ch.Topic] {
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

// Backfill returns, for each requested topic, the last event with
// ReceiveTime ≤ args.Time, sorted by receive time.
func (u *Unindexed) Backfill(args msgiter.BackfillArgs) ([]logmsg.MessageEvent, error) {
	if !u.initialized {
		return nil, logmsg.ErrNotInitialized
	}
	var out []logmsg.MessageEvent
	for _, topic := range args.Topics {
		var best *logmsg.MessageEvent
		for chID, events := range u.eventsByChannel {
			ch := u.channels[chID]
			if ch.Topic != topic {
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
