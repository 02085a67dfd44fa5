// Package cachedfile combines the range algebra (internal/rangeset), the
// virtual LRU buffer (internal/vbuffer) and the HTTP range reader
// (internal/httpreader) into a random-access read(offset, length) → bytes
// interface backed by a single active upstream connection, per spec.md §4.D.
package cachedfile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gaby/logstream/internal/httpreader"
	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/rangeset"
	"github.com/gaby/logstream/internal/vbuffer"
)

const (
	// reconnectThreshold is the "threshold = 5 MiB" drift bound from spec.md §4.D.
	reconnectThreshold = 5 * 1024 * 1024
	// dualErrorWindow is the "two errors within 100 ms" fatal-failure window.
	dualErrorWindow = 100 * time.Millisecond
)

// KeepReconnecting, if non-nil, is invoked with true on the first transport
// error on the active stream and false the next time data arrives. When
// set, transport errors never close the filelike — the scheduler keeps
// retrying indefinitely.
type KeepReconnecting func(retrying bool)

type request struct {
	r        rangeset.Range
	resultCh chan result
}

type result struct {
	data []byte
	err  error
}

// File is a cached, range-addressable view over one HTTP resource.
type File struct {
	reader           *httpreader.Reader
	cacheSize        int64
	keepReconnecting KeepReconnecting

	mu      sync.Mutex
	size    int64
	buf     *vbuffer.Buffer
	pending []*request
	lastEnd *int64

	activeStream    *httpreader.Stream
	activeRemaining rangeset.Range // advances as chunks land; .End is the fixed target end
	lastErrAt       time.Time
	pendingErrCount int
}

// Open probes the resource and allocates the virtual buffer.
func Open(ctx context.Context, reader *httpreader.Reader, cacheSizeBytes int64, keepReconnecting KeepReconnecting) (*File, error) {
	res, err := reader.Open(ctx)
	if err != nil {
		return nil, err
	}
	f := &File{
		reader:           reader,
		cacheSize:        cacheSizeBytes,
		keepReconnecting: keepReconnecting,
		size:             res.Size,
	}
	if cacheSizeBytes >= res.Size {
		f.buf = vbuffer.New(res.Size, res.Size, 1)
	} else {
		blocks := int((cacheSizeBytes+vbuffer.DefaultBlockSize-1)/vbuffer.DefaultBlockSize) + 2
		f.buf = vbuffer.New(res.Size, vbuffer.DefaultBlockSize, blocks)
	}
	return f, nil
}

func (f *File) Size() int64 { return f.size }

// Read returns exactly length bytes starting at offset, fetching from
// upstream through the connection scheduler as needed.
func (f *File) Read(ctx context.Context, offset, length int64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	if length > f.cacheSize {
		return nil, fmt.Errorf("cachedfile: read length %d exceeds cache size %d: %w", length, f.cacheSize, logmsg.ErrRequestExceedsCache)
	}
	if offset+length > f.size {
		return nil, fmt.Errorf("cachedfile: range [%d,%d) exceeds file size %d: %w", offset, offset+length, f.size, logmsg.ErrRangeExceedsFile)
	}

	req := &request{r: rangeset.Range{Start: offset, End: offset + length}, resultCh: make(chan result, 1)}

	f.mu.Lock()
	f.pending = append(f.pending, req)
	f.runScheduler(ctx)
	f.mu.Unlock()

	select {
	case res := <-req.resultCh:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runScheduler must be called with f.mu held. It resolves any pending
// request already fully resident, then decides whether to open/replace the
// single active upstream connection.
func (f *File) runScheduler(ctx context.Context) {
	f.resolveCacheHits()

	var R *rangeset.Range
	if len(f.pending) > 0 {
		R = &f.pending[0].r
	}
	downloaded := f.buf.RangesWithData()

	if R != nil {
		missing := rangeset.Missing(*R, downloaded)
		if len(missing) == 0 {
			// Invariant violation per spec.md §4.D: a fully-covered request
			// should already have been resolved by resolveCacheHits.
			return
		}
		openNew := f.activeStream == nil
		if !openNew {
			if !rangeset.IsOverlapping(f.activeRemaining, missing[0]) {
				openNew = true
			} else if f.activeRemaining.Start+reconnectThreshold < missing[0].Start {
				openNew = true
			}
		}
		if !openNew {
			return
		}

		var target rangeset.Range
		switch {
		case f.cacheSize >= f.size:
			target = rangeset.Range{Start: missing[0].Start, End: f.size}
			if subMissing := rangeset.Missing(target, downloaded); len(subMissing) > 0 {
				target = subMissing[0]
			}
		case missing[0].End == R.End:
			end := R.Start + f.cacheSize
			if end > f.size {
				end = f.size
			}
			target = rangeset.Range{Start: missing[0].Start, End: end}
		default:
			target = missing[0]
		}
		f.openConnection(ctx, target)
		return
	}

	// No pending request.
	if f.activeStream != nil {
		return
	}
	var target rangeset.Range
	switch {
	case f.cacheSize >= f.size:
		start := int64(0)
		if f.lastEnd != nil {
			start = *f.lastEnd
		}
		target = rangeset.Range{Start: start, End: f.size}
		if len(rangeset.Missing(target, downloaded)) == 0 {
			target = rangeset.Range{Start: 0, End: f.size}
		}
	case f.lastEnd != nil:
		end := *f.lastEnd + f.cacheSize
		if end > f.size {
			end = f.size
		}
		target = rangeset.Range{Start: *f.lastEnd, End: end}
	default:
		return
	}
	missing := rangeset.Missing(target, downloaded)
	if len(missing) == 0 {
		return
	}
	f.openConnection(ctx, missing[0])
}

func (f *File) resolveCacheHits() {
	remaining := f.pending[:0]
	for _, req := range f.pending {
		if f.buf.HasData(req.r.Start, req.r.End) {
			data, err := f.buf.Slice(req.r.Start, req.r.End)
			req.resultCh <- result{data: data, err: err}
			end := req.r.End
			f.lastEnd = &end
			continue
		}
		remaining = append(remaining, req)
	}
	f.pending = remaining
}

// openConnection opens a new upstream fetch for the missing portion of
// target, destroying any existing connection first (at most one is ever
// live).
func (f *File) openConnection(ctx context.Context, target rangeset.Range) {
	if f.activeStream != nil {
		f.activeStream.Destroy()
		f.activeStream = nil
	}
	downloaded := f.buf.RangesWithData()
	missing := rangeset.Missing(target, downloaded)
	if len(missing) == 0 {
		return
	}
	start, end := missing[0].Start, target.End

	s, err := f.reader.Fetch(ctx, start, end-start)
	if err != nil {
		f.failAll(err)
		return
	}
	f.activeStream = s
	f.activeRemaining = rangeset.Range{Start: start, End: end}

	go f.pump(ctx, s)
}

// pump drains one stream's events and feeds them back through the
// scheduler. It identity-checks the stream against f.activeStream before
// applying any effect, so a superseded stream's late events are ignored.
func (f *File) pump(ctx context.Context, s *httpreader.Stream) {
	for ev := range s.Events() {
		f.mu.Lock()
		if f.activeStream != s {
			f.mu.Unlock()
			continue
		}
		switch {
		case ev.Err != nil:
			f.handleStreamError(ctx, s, ev.Err)
			f.mu.Unlock()
			return
		case ev.End:
			f.activeStream = nil
			f.pendingErrCount = 0
			f.runScheduler(ctx)
			f.mu.Unlock()
			return
		default:
			if f.keepReconnecting != nil && f.pendingErrCount > 0 {
				f.keepReconnecting(false)
			}
			f.pendingErrCount = 0
			f.buf.CopyFrom(ev.Data, f.activeRemaining.Start)
			f.activeRemaining.Start += int64(len(ev.Data))
			target := f.activeRemaining
			covered := len(f.pending) > 0 && f.buf.HasData(f.pending[0].r.Start, f.pending[0].r.End)
			fullyFetched := target.Start >= target.End
			if covered || fullyFetched {
				s.Destroy()
				f.activeStream = nil
				f.activeRemaining = rangeset.Range{}
			}
			f.runScheduler(ctx)
		}
		f.mu.Unlock()
	}
}

// handleStreamError applies the failure semantics in spec.md §4.D. Caller
// holds f.mu.
func (f *File) handleStreamError(ctx context.Context, s *httpreader.Stream, streamErr error) {
	s.Destroy()
	if f.activeStream == s {
		f.activeStream = nil
	}

	if f.keepReconnecting != nil {
		if f.pendingErrCount == 0 {
			f.keepReconnecting(true)
		}
		f.pendingErrCount++
		f.runScheduler(ctx)
		return
	}

	now := time.Now()
	if !f.lastErrAt.IsZero() && now.Sub(f.lastErrAt) < dualErrorWindow {
		f.failAll(streamErr)
		return
	}
	f.lastErrAt = now
	f.runScheduler(ctx)
}

// failAll rejects every pending request with err. Caller holds f.mu.
func (f *File) failAll(err error) {
	for _, req := range f.pending {
		req.resultCh <- result{err: err}
	}
	f.pending = nil
}
