// Package source defines the polymorphic source contract (spec.md §6) that
// both the bag source and the MCAP facade implement, and the input
// descriptor a caller uses to open one.
package source

import (
	"context"
	"io"

	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/msgiter"
)

// InputKind selects which concrete transport an Input describes.
type InputKind int

const (
	InputFile InputKind = iota
	InputURL
	InputStream // reserved; rejected at Initialize per spec.md §6
)

// Blob is a local file-like input: a ReaderAt with a known size, matching
// what a "file" input descriptor carries (spec.md §6).
type Blob interface {
	io.ReaderAt
	Size() int64
}

// Input describes where a source's bytes come from.
type Input struct {
	Kind InputKind
	File Blob
	URL  string
}

// Source is the public operation surface spec.md §6 names: initialize,
// message_iterator, backfill, get_message_cursor (layered on top in
// internal/cursor), terminate.
type Source interface {
	// Initialize must be called exactly once before any other method.
	Initialize(ctx context.Context) (logmsg.Initialization, error)
	MessageIterator(args msgiter.MessageIteratorArgs) (msgiter.Iterator, error)
	Backfill(ctx context.Context, args msgiter.BackfillArgs) ([]logmsg.MessageEvent, error)
	// Terminate releases any held resources (cache, connections). Safe to
	// call multiple times.
	Terminate() error
}
