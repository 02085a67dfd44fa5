package logmsg

// Topic identifies a named stream and, optionally, the schema it carries.
type Topic struct {
	Name       string
	SchemaName string
}

// Schema describes a message type. Two schemas sharing an ID within one
// source must be byte-equal (see Invariant 3 in spec.md §3).
type Schema struct {
	ID       uint16
	Name     string
	Encoding string
	Data     []byte
}

// Channel binds a topic to a schema and wire encoding. Same-id channels
// across one stream must agree byte-for-byte.
type Channel struct {
	ID              uint16
	Topic           string
	MessageEncoding string
	SchemaID        uint16
	Metadata        map[string]string
}

// Datatype is a named field layout extracted from a schema, keyed by
// schema-qualified type name in ParsedChannel.Datatypes.
type Datatype struct {
	Fields []Field
}

type Field struct {
	Name string
	Type string
}

// ParsedChannel is produced once per channel and reused for every message on
// that channel.
type ParsedChannel struct {
	Deserialize func([]byte) (any, error)
	Datatypes   map[string]Datatype
}

// MessageEvent is one decoded message delivered by an iterator or backfill.
type MessageEvent struct {
	Topic        string
	SchemaName   string
	ReceiveTime  Time
	PublishTime  *Time
	Message      any
	SizeInBytes  uint32
	ConnectionID uint16
}

// Severity classifies a Problem result.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarn
	SeverityInfo
)

// Problem is a non-fatal, in-stream diagnostic tagged with the originating
// connection/channel id.
type Problem struct {
	ConnectionID uint16
	Severity     Severity
	Message      string
	Err          error
	Tip          string
}

// ResultKind tags the payload carried by an IteratorResult.
type ResultKind int

const (
	ResultMessageEvent ResultKind = iota
	ResultProblem
	ResultStamp
)

// IteratorResult is the tagged union an iterator yields: a decoded message, a
// non-fatal problem, or a stamp used to advance playback wall time without a
// payload.
type IteratorResult struct {
	Kind    ResultKind
	Message MessageEvent
	Problem Problem
	Stamp   Time
}

// Time returns the timestamp relevant for cursor batching/read-until
// comparisons: ReceiveTime for messages, Stamp for stamps. Problems have no
// time and are handled specially by the cursor.
func (r IteratorResult) Time() Time {
	if r.Kind == ResultStamp {
		return r.Stamp
	}
	return r.Message.ReceiveTime
}

// TopicStats summarizes per-topic message counts for Initialization.
type TopicStats struct {
	NumMessages uint64
	First       *Time
	Last        *Time
}

// TopicSelectionEntry is one entry of a TopicSelection mapping.
type TopicSelectionEntry struct {
	Topic   string
	Preload string // "full" | "partial", empty means unspecified
}

// Initialization is the result of a source's one-time Initialize call.
type Initialization struct {
	Start             Time
	End               Time
	Topics            []Topic
	Datatypes         map[string]Datatype
	Profile           string
	PublishersByTopic map[string]map[string]struct{}
	TopicStats        map[string]TopicStats
}
