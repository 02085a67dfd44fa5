package logmsg

import "errors"

// Error taxonomy (spec.md §7). Components wrap these with fmt.Errorf("...: %w", Err...)
// so callers can still errors.Is/errors.As against the sentinel.
var (
	// Configuration
	ErrUnsupportedInput      = errors.New("unsupported input")
	ErrUnsupportedEncoding   = errors.New("unsupported encoding")
	ErrMissingContentLength  = errors.New("missing content-length")
	ErrAcceptRangesMissing   = errors.New("server did not advertise accept-ranges: bytes")

	// Resource limit
	ErrFileTooLarge      = errors.New("file too large")
	ErrRequestExceedsCache = errors.New("requested length exceeds cache size")
	ErrRangeExceedsFile  = errors.New("requested range exceeds file size")

	// State
	ErrNotInitialized    = errors.New("source not initialized")
	ErrAlreadyInitialized = errors.New("source already initialized")
	ErrCancelled         = errors.New("cancelled")

	// Data integrity
	ErrDuplicateSchemaMismatch  = errors.New("duplicate schema id with different bytes")
	ErrDuplicateChannelMismatch = errors.New("duplicate channel id with different bytes")
	ErrChannelBeforeSchema      = errors.New("channel references unknown schema")
	ErrMessageWithoutChannel    = errors.New("message references unknown channel")
	ErrEmptySchema              = errors.New("empty schema body")

	// Transport
	ErrHTTPStatus          = errors.New("unexpected http status")
	ErrHTTPNetwork         = errors.New("http network error")
	ErrStreamLockContention = errors.New("stream lock contention")
	ErrMissingBody         = errors.New("missing response body")

	// Decode
	ErrDeserializeFailed = errors.New("deserialize failed")
)
