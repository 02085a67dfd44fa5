// Package worker implements the worker boundary (spec.md §4.K) as a
// goroutine owning one source.Source instance, exercised only through a
// command channel — the Go analogue of the original's separate worker
// thread. Within that goroutine, work is cooperative and single-threaded,
// matching spec.md §5's concurrency model; callers cross the boundary by
// sending a command and waiting on its reply channel, an explicit command
// loop in the manner of a manager/worker channel pair (grounded on the
// conc_reader.go pattern in the reference pack).
package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/gaby/logstream/internal/cursor"
	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/msgiter"
	"github.com/gaby/logstream/internal/source"
)

// command is one unit of work submitted to the worker goroutine; run
// executes against the owned source and reports completion through done.
type command struct {
	run  func(s source.Source)
	done chan struct{}
}

// Worker hosts a single source.Source, exposing the same operations
// cross-boundary that the foreground would otherwise call directly.
// Exactly one goroutine ever touches the underlying source.
type Worker struct {
	cmdc       chan command
	grp        *errgroup.Group
	stop       context.CancelFunc
	terminated chan struct{}
}

// Start spawns the worker goroutine and constructs newSource lazily inside
// it — mirroring the real worker boundary, where the source instance only
// exists on the other side of the proxy.
func Start(newSource func() source.Source) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	grp, gctx := errgroup.WithContext(ctx)
	w := &Worker{
		cmdc:       make(chan command),
		grp:        grp,
		stop:       cancel,
		terminated: make(chan struct{}),
	}
	grp.Go(func() error {
		s := newSource()
		for {
			select {
			case <-gctx.Done():
				return nil
			case cmd, ok := <-w.cmdc:
				if !ok {
					return nil
				}
				cmd.run(s)
				close(cmd.done)
			}
		}
	})
	return w
}

// submit runs fn on the worker goroutine and blocks until it completes or
// the worker is stopped.
func (w *Worker) submit(fn func(s source.Source)) error {
	done := make(chan struct{})
	cmd := command{run: fn, done: done}
	select {
	case w.cmdc <- cmd:
	case <-w.terminated:
		return fmt.Errorf("worker: terminated")
	}
	select {
	case <-done:
		return nil
	case <-w.terminated:
		return fmt.Errorf("worker: terminated")
	}
}

// Initialize proxies source.Source.Initialize onto the worker goroutine.
func (w *Worker) Initialize(ctx context.Context) (logmsg.Initialization, error) {
	var result logmsg.Initialization
	var resultErr error
	err := w.submit(func(s source.Source) {
		result, resultErr = s.Initialize(ctx)
	})
	if err != nil {
		return logmsg.Initialization{}, err
	}
	return result, resultErr
}

// MessageIterator proxies source.Source.MessageIterator. The returned
// iterator is itself a cross-boundary proxy: every Next is a round trip
// back onto the worker goroutine (spec.md §4.K).
func (w *Worker) MessageIterator(args msgiter.MessageIteratorArgs) (msgiter.Iterator, error) {
	var it msgiter.Iterator
	var itErr error
	err := w.submit(func(s source.Source) {
		it, itErr = s.MessageIterator(args)
	})
	if err != nil {
		return nil, err
	}
	if itErr != nil {
		return nil, itErr
	}
	return &proxyIterator{w: w, it: it}, nil
}

// GetMessageCursor wraps MessageIterator's proxy iterator in a cursor, the
// shape the foreground actually consumes (spec.md §4.K: "because async
// iterator round-tripping is slow, the foreground calls next_batch via the
// cursor").
func (w *Worker) GetMessageCursor(ctx context.Context, args msgiter.MessageIteratorArgs) (*cursor.Cursor, error) {
	it, err := w.MessageIterator(args)
	if err != nil {
		return nil, err
	}
	return cursor.New(ctx, it), nil
}

// Backfill proxies source.Source.Backfill onto the worker goroutine.
func (w *Worker) Backfill(ctx context.Context, args msgiter.BackfillArgs) ([]logmsg.MessageEvent, error) {
	var events []logmsg.MessageEvent
	var evErr error
	err := w.submit(func(s source.Source) {
		events, evErr = s.Backfill(ctx, args)
	})
	if err != nil {
		return nil, err
	}
	return events, evErr
}

// Terminate drops the worker goroutine and releases the underlying source.
func (w *Worker) Terminate() error {
	var termErr error
	_ = w.submit(func(s source.Source) {
		termErr = s.Terminate()
	})
	close(w.terminated)
	w.stop()
	_ = w.grp.Wait()
	return termErr
}

// proxyIterator forwards Next/Close calls through the worker goroutine, so
// an iterator obtained via MessageIterator still only ever touches the
// underlying source from the one goroutine that owns it.
type proxyIterator struct {
	w  *Worker
	it msgiter.Iterator
}

func (p *proxyIterator) Next(ctx context.Context) (logmsg.IteratorResult, bool, error) {
	var result logmsg.IteratorResult
	var ok bool
	var nextErr error
	err := p.w.submit(func(source.Source) {
		result, ok, nextErr = p.it.Next(ctx)
	})
	if err != nil {
		return logmsg.IteratorResult{}, false, err
	}
	return result, ok, nextErr
}

func (p *proxyIterator) Close() error {
	var closeErr error
	err := p.w.submit(func(source.Source) {
		closeErr = p.it.Close()
	})
	if err != nil {
		return err
	}
	return closeErr
}
