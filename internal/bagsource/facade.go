package bagsource

import (
	"context"
	"fmt"
	"io"

	"github.com/gaby/logstream/internal/cachedfile"
	"github.com/gaby/logstream/internal/httpreader"
	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/msgiter"
	"github.com/gaby/logstream/internal/source"
)

// DefaultCacheSize bounds the cached filelike used when opening a bag by
// URL, mirroring mcapsource.DefaultCacheSize.
const DefaultCacheSize = 64 * 1024 * 1024

// Facade dispatches a file|url input to the Bag reader, implementing
// source.Source. Stream input is rejected, per spec.md §4.I.
type Facade struct {
	input source.Input
	inner *Bag
}

func NewFacade(input source.Input) *Facade {
	return &Facade{input: input}
}

func (f *Facade) Initialize(ctx context.Context) (logmsg.Initialization, error) {
	var r io.Reader
	switch f.input.Kind {
	case source.InputFile:
		if f.input.File == nil {
			return logmsg.Initialization{}, logmsg.ErrUnsupportedInput
		}
		r = io.NewSectionReader(f.input.File, 0, f.input.File.Size())
	case source.InputURL:
		reader := httpreader.New(f.input.URL, nil)
		open, err := reader.Open(ctx)
		if err != nil {
			return logmsg.Initialization{}, err
		}
		cf, err := cachedfile.Open(ctx, reader, DefaultCacheSize, nil)
		if err != nil {
			return logmsg.Initialization{}, err
		}
		r = &sequentialCachedReader{cf: cf, ctx: ctx, size: open.Size}
	case source.InputStream:
		return logmsg.Initialization{}, logmsg.ErrUnsupportedInput
	default:
		return logmsg.Initialization{}, logmsg.ErrUnsupportedInput
	}

	f.inner = New()
	return f.inner.Initialize(r)
}

func (f *Facade) MessageIterator(args msgiter.MessageIteratorArgs) (msgiter.Iterator, error) {
	if f.inner == nil {
		return nil, logmsg.ErrNotInitialized
	}
	return f.inner.MessageIterator(args)
}

func (f *Facade) Backfill(_ context.Context, args msgiter.BackfillArgs) ([]logmsg.MessageEvent, error) {
	if f.inner == nil {
		return nil, logmsg.ErrNotInitialized
	}
	return f.inner.Backfill(args)
}

func (f *Facade) Terminate() error { return nil }

// sequentialCachedReader adapts the cached filelike's Read(offset, length)
// into a sequential io.Reader, the same shape mcapsource.cachedFileReader
// provides for MCAP-over-HTTP.
type sequentialCachedReader struct {
	cf     *cachedfile.File
	ctx    context.Context
	size   int64
	offset int64
}

func (c *sequentialCachedReader) Read(p []byte) (int, error) {
	if c.offset >= c.size {
		return 0, io.EOF
	}
	n := int64(len(p))
	if c.offset+n > c.size {
		n = c.size - c.offset
	}
	data, err := c.cf.Read(c.ctx, c.offset, n)
	if err != nil {
		return 0, fmt.Errorf("bagsource: read upstream: %w", err)
	}
	copy(p, data)
	c.offset += int64(len(data))
	return len(data), nil
}
