package mcapsource

import (
	"context"
	"fmt"
	"io"

	"github.com/gaby/logstream/internal/cachedfile"
	"github.com/gaby/logstream/internal/decompress"
	"github.com/gaby/logstream/internal/httpreader"
	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/msgiter"
	"github.com/gaby/logstream/internal/source"
)

// DefaultCacheSize bounds the cached filelike used when opening an MCAP
// file by URL, before the whole body is pulled into the unindexed reader.
const DefaultCacheSize = 64 * 1024 * 1024

// Facade dispatches a file|url input to a concrete MCAP reading strategy.
// The indexed path is reserved (spec.md §9.1: tryCreateIndexedReader always
// returns false upstream) — this facade always falls through to Unindexed.
type Facade struct {
	input         source.Input
	decompressors decompress.Registry

	inner *Unindexed
}

func NewFacade(input source.Input, decompressors decompress.Registry) *Facade {
	if decompressors == nil {
		decompressors = decompress.Default()
	}
	return &Facade{input: input, decompressors: decompressors}
}

// tryCreateIndexedReader mirrors the stubbed upstream behavior: the indexed
// MCAP path is not implemented, so this always reports false and the
// facade falls through to the unindexed reader (spec.md §9.1).
func tryCreateIndexedReader() bool { return false }

func (f *Facade) Initialize(ctx context.Context) (logmsg.Initialization, error) {
	var r io.Reader
	switch f.input.Kind {
	case source.InputFile:
		if f.input.File == nil {
			return logmsg.Initialization{}, logmsg.ErrUnsupportedInput
		}
		// Probe readability by reading the first byte, per spec.md §4.H.
		probe := make([]byte, 1)
		if _, err := f.input.File.ReadAt(probe, 0); err != nil && err != io.EOF {
			return logmsg.Initialization{}, fmt.Errorf("mcapsource: probe file: %w", err)
		}
		_ = tryCreateIndexedReader()
		r = io.NewSectionReader(f.input.File, 0, f.input.File.Size())
	case source.InputURL:
		reader := httpreader.New(f.input.URL, nil)
		open, err := reader.Open(ctx)
		if err != nil {
			return logmsg.Initialization{}, err
		}
		_ = tryCreateIndexedReader()
		cf, err := cachedfile.Open(ctx, reader, DefaultCacheSize, nil)
		if err != nil {
			return logmsg.Initialization{}, err
		}
		r = &cachedFileReader{cf: cf, ctx: ctx, size: open.Size}
	case source.InputStream:
		return logmsg.Initialization{}, logmsg.ErrUnsupportedInput
	default:
		return logmsg.Initialization{}, logmsg.ErrUnsupportedInput
	}

	f.inner = New(f.decompressors)
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

// cachedFileReader adapts the cached filelike's Read(offset, length) into a
// sequential io.Reader, since the unindexed source consumes a plain byte
// stream (spec.md §2: "MCAP unindexed consumes a raw byte stream").
type cachedFileReader struct {
	cf     *cachedfile.File
	ctx    context.Context
	size   int64
	offset int64
}

func (c *cachedFileReader) Read(p []byte) (int, error) {
	if c.offset >= c.size {
		return 0, io.EOF
	}
	n := int64(len(p))
	if c.offset+n > c.size {
		n = c.size - c.offset
	}
	data, err := c.cf.Read(c.ctx, c.offset, n)
	if err != nil {
		return 0, err
	}
	copy(p, data)
	c.offset += int64(len(data))
	return len(data), nil
}
