// Package httpreader opens an HTTP resource supporting byte-range requests
// and exposes streaming fetch of an interval as an event-emitting Stream
// with abort, per spec.md §4.C.
package httpreader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/gaby/logstream/internal/logmsg"
)

// OpenResult describes the probed resource.
type OpenResult struct {
	Size       int64
	Identifier string // ETag or Last-Modified, for consumer-defined change detection
}

// Reader wraps an HTTP resource that has been verified to support range
// requests.
type Reader struct {
	url    string
	client *http.Client
}

func New(url string, client *http.Client) *Reader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Reader{url: url, client: client}
}

// Open issues a no-store GET, immediately aborts it, and verifies the
// server advertises Accept-Ranges: bytes and a Content-Length.
func (r *Reader) Open(ctx context.Context) (OpenResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return OpenResult{}, fmt.Errorf("httpreader: build open request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := r.client.Do(req)
	if err != nil {
		return OpenResult{}, fmt.Errorf("httpreader: open: %w: %w", logmsg.ErrHTTPNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return OpenResult{}, fmt.Errorf("httpreader: open status %d: %w", resp.StatusCode, logmsg.ErrHTTPStatus)
	}
	if resp.Header.Get("Accept-Ranges") != "bytes" {
		return OpenResult{}, logmsg.ErrAcceptRangesMissing
	}
	if resp.ContentLength < 0 {
		return OpenResult{}, logmsg.ErrMissingContentLength
	}

	identifier := resp.Header.Get("ETag")
	if identifier == "" {
		identifier = resp.Header.Get("Last-Modified")
	}
	return OpenResult{Size: resp.ContentLength, Identifier: identifier}, nil
}

// Event is one item emitted on a Stream's channel.
type Event struct {
	Data []byte
	Err  error
	End  bool
}

// Stream is a single in-flight ranged GET. Destroy aborts it; once
// destroyed, no further events are sent.
type Stream struct {
	id      uuid.UUID
	events  chan Event
	cancel  context.CancelFunc
	once    sync.Once
	destroy chan struct{}
}

// ID uniquely identifies this stream instance. The cached filelike does not
// use it: it ignores a superseded stream by comparing *Stream pointers.
func (s *Stream) ID() uuid.UUID { return s.id }

// Events returns the channel of Data/End/Err events. The channel is closed
// after End or Err is sent, or after Destroy.
func (s *Stream) Events() <-chan Event { return s.events }

// Destroy aborts the underlying request without emitting an error event.
func (s *Stream) Destroy() {
	s.once.Do(func() {
		close(s.destroy)
		s.cancel()
	})
}

// Fetch issues GET with Range: bytes=offset-(offset+length-1) and returns a
// Stream emitting Data/End/Err events as the body is read.
func (r *Reader) Fetch(ctx context.Context, offset, length int64) (*Stream, error) {
	if length <= 0 {
		return nil, fmt.Errorf("httpreader: fetch length must be positive")
	}
	fctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(fctx, http.MethodGet, r.url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("httpreader: build fetch request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	s := &Stream{
		id:      uuid.New(),
		events:  make(chan Event, 4),
		cancel:  cancel,
		destroy: make(chan struct{}),
	}

	resp, err := r.client.Do(req)
	if err != nil {
		cancel()
		close(s.events)
		return nil, fmt.Errorf("httpreader: fetch: %w: %w", logmsg.ErrHTTPNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		cancel()
		close(s.events)
		return nil, fmt.Errorf("httpreader: fetch status %d: %w", resp.StatusCode, logmsg.ErrHTTPStatus)
	}
	if resp.Body == nil {
		cancel()
		close(s.events)
		return nil, logmsg.ErrMissingBody
	}

	go s.pump(resp)
	return s, nil
}

func (s *Stream) pump(resp *http.Response) {
	defer close(s.events)
	defer func() { _ = resp.Body.Close() }()
	defer s.cancel()

	buf := make([]byte, 256*1024)
	for {
		select {
		case <-s.destroy:
			return
		default:
		}
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.events <- Event{Data: chunk}:
			case <-s.destroy:
				return
			}
		}
		if err != nil {
			select {
			case <-s.destroy:
			default:
				if errors.Is(err, io.EOF) {
					s.events <- Event{End: true}
				} else {
					s.events <- Event{Err: fmt.Errorf("httpreader: stream read: %w", err)}
				}
			}
			return
		}
	}
}
