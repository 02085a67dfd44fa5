// Package mcapsource implements the MCAP unindexed source (spec.md §4.G)
// and the MCAP source facade that dispatches file/url inputs to it
// (spec.md §4.H). Record parsing is delegated to the real foxglove/mcap Go
// library rather than hand-rolling a second binary-format parser.
package mcapsource

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/foxglove/mcap/go/mcap"

	"github.com/gaby/logstream/internal/chanparse"
	"github.com/gaby/logstream/internal/decompress"
	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/sizeest"
)

// MaxFileSize rejects streams larger than this; the unindexed source
// materializes everything in memory (spec.md §4.G).
const MaxFileSize = 1 << 30 // 1 GiB

// Unindexed streams an MCAP file end-to-end into memory, supporting
// topic+time filtering and per-topic backfill.
type Unindexed struct {
	decompressors decompress.Registry

	initialized bool
	profile     string
	schemas     map[uint16]*logmsg.Schema
	channels    map[uint16]*logmsg.Channel
	parsed      map[uint16]*logmsg.ParsedChannel
	faulty      map[uint16]bool

	eventsByChannel map[uint16][]logmsg.MessageEvent
	topicsSeen      map[string]string // topic -> schema name
	publishers      map[string]map[string]struct{}
	start, end      logmsg.Time
	sawMessage      bool

	sizeCache *sizeest.Cache
}

// New constructs an Unindexed source. decompressors maps algorithm name to
// handler; "zstd" is required by spec.md §6, "lz4"/"bz2" are optional.
func New(decompressors decompress.Registry) *Unindexed {
	return &Unindexed{
		decompressors:   decompressors,
		schemas:         make(map[uint16]*logmsg.Schema),
		channels:        make(map[uint16]*logmsg.Channel),
		parsed:          make(map[uint16]*logmsg.ParsedChannel),
		faulty:          make(map[uint16]bool),
		eventsByChannel: make(map[uint16][]logmsg.MessageEvent),
		topicsSeen:      make(map[string]string),
		publishers:      make(map[string]map[string]struct{}),
		sizeCache:       sizeest.NewCache(),
	}
}

// Initialize streams the whole file, building the in-memory channel/message
// tables, and returns the resulting Initialization. It must be called
// exactly once.
func (u *Unindexed) Initialize(r io.Reader) (logmsg.Initialization, error) {
	if u.initialized {
		return logmsg.Initialization{}, logmsg.ErrAlreadyInitialized
	}

	limited := &limitedCountingReader{r: r, limit: MaxFileSize + 1}
	lexer, err := mcap.NewLexer(limited, &mcap.LexerOptions{EmitChunks: true})
	if err != nil {
		return logmsg.Initialization{}, fmt.Errorf("mcapsource: new lexer: %w", err)
	}
	defer lexer.Close()

	err = u.consume(lexer)
	if limited.total > MaxFileSize {
		return logmsg.Initialization{}, logmsg.ErrFileTooLarge
	}
	if err != nil {
		return logmsg.Initialization{}, err
	}

	u.initialized = true
	return u.buildInitialization(), nil
}

type limitedCountingReader struct {
	r     io.Reader
	limit int64
	total int64
}

func (l *limitedCountingReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.total += int64(n)
	if l.total > l.limit {
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}

func (u *Unindexed) consume(lexer *mcap.Lexer) error {
	var buf []byte
	for {
		tok, data, err := lexer.Next(buf)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("mcapsource: lexer: %w", err)
		}
		buf = data
		if err := u.handleToken(tok, data); err != nil {
			return err
		}
	}
}

func (u *Unindexed) handleToken(tok mcap.TokenType, data []byte) error {
	switch tok {
	case mcap.TokenHeader:
		h, err := mcap.ParseHeader(data)
		if err != nil {
			return fmt.Errorf("mcapsource: parse header: %w", err)
		}
		u.profile = h.Profile
	case mcap.TokenSchema:
		return u.handleSchema(data)
	case mcap.TokenChannel:
		return u.handleChannel(data)
	case mcap.TokenMessage:
		return u.handleMessage(data)
	case mcap.TokenChunk:
		return u.handleChunk(data)
	}
	return nil
}

func (u *Unindexed) handleSchema(data []byte) error {
	s, err := mcap.ParseSchema(data)
	if err != nil {
		return fmt.Errorf("mcapsource: parse schema: %w", err)
	}
	cur := &logmsg.Schema{ID: s.ID, Name: s.Name, Encoding: s.Encoding, Data: append([]byte(nil), s.Data...)}
	if existing, ok := u.schemas[s.ID]; ok {
		if !bytes.Equal(existing.Data, cur.Data) || existing.Name != cur.Name || existing.Encoding != cur.Encoding {
			return logmsg.ErrDuplicateSchemaMismatch
		}
		return nil
	}
	u.schemas[s.ID] = cur
	return nil
}

func (u *Unindexed) handleChannel(data []byte) error {
	c, err := mcap.ParseChannel(data)
	if err != nil {
		return fmt.Errorf("mcapsource: parse channel: %w", err)
	}
	cur := &logmsg.Channel{
		ID:              c.ID,
		Topic:           c.Topic,
		MessageEncoding: c.MessageEncoding,
		SchemaID:        c.SchemaID,
		Metadata:        c.Metadata,
	}
	if existing, ok := u.channels[c.ID]; ok {
		if !sameChannel(existing, cur) {
			return logmsg.ErrDuplicateChannelMismatch
		}
		return nil
	}
	if cur.SchemaID != 0 {
		if _, ok := u.schemas[cur.SchemaID]; !ok {
			return logmsg.ErrChannelBeforeSchema
		}
	}
	u.channels[c.ID] = cur

	var schema *logmsg.Schema
	if cur.SchemaID != 0 {
		schema = u.schemas[cur.SchemaID]
	}
	pc, perr := chanparse.Parse(cur.MessageEncoding, schema, chanparse.Options{})
	if perr != nil {
		log.Printf("mcapsource: channel %d (%s) parse error, quarantining: %v", c.ID, c.Topic, perr)
		u.faulty[c.ID] = true
		return nil
	}
	u.parsed[c.ID] = pc

	schemaName := ""
	if schema != nil {
		schemaName = schema.Name
	}
	u.topicsSeen[cur.Topic] = schemaName

	callerID := cur.Metadata["callerid"]
	if callerID == "" {
		callerID = fmt.Sprintf("%d", cur.ID)
	}
	if u.publishers[cur.Topic] == nil {
		u.publishers[cur.Topic] = make(map[string]struct{})
	}
	u.publishers[cur.Topic][callerID] = struct{}{}
	return nil
}

func sameChannel(a, b *logmsg.Channel) bool {
	if a.Topic != b.Topic || a.MessageEncoding != b.MessageEncoding || a.SchemaID != b.SchemaID {
		return false
	}
	if len(a.Metadata) != len(b.Metadata) {
		return false
	}
	for k, v := range a.Metadata {
		if b.Metadata[k] != v {
			return false
		}
	}
	return true
}

func (u *Unindexed) handleMessage(data []byte) error {
	m, err := mcap.ParseMessage(data)
	if err != nil {
		return fmt.Errorf("mcapsource: parse message: %w", err)
	}
	ch, ok := u.channels[m.ChannelID]
	if !ok {
		return logmsg.ErrMessageWithoutChannel
	}
	if u.faulty[m.ChannelID] {
		return nil
	}
	pc := u.parsed[m.ChannelID]
	value, derr := pc.Deserialize(m.Data)
	if derr != nil {
		log.Printf("mcapsource: channel %d (%s) deserialize error, skipping message: %v", m.ChannelID, ch.Topic, derr)
		return nil
	}

	estimate, _ := u.sizeCache.EstimateForTopic(ch.Topic, value)
	sz := uint32(len(m.Data))
	if estimate > sz {
		sz = estimate
	}

	receive := logmsg.FromNanos(int64(m.LogTime))
	var publishPtr *logmsg.Time
	if m.PublishTime != 0 {
		p := logmsg.FromNanos(int64(m.PublishTime))
		publishPtr = &p
	}

	schemaName := ""
	if schema, ok := u.schemas[ch.SchemaID]; ok {
		schemaName = schema.Name
	}

	ev := logmsg.MessageEvent{
		Topic:        ch.Topic,
		SchemaName:   schemaName,
		ReceiveTime:  receive,
		PublishTime:  publishPtr,
		Message:      value,
		SizeInBytes:  sz,
		ConnectionID: m.ChannelID,
	}
	u.eventsByChannel[m.ChannelID] = append(u.eventsByChannel[m.ChannelID], ev)

	if !u.sawMessage {
		u.start, u.end = receive, receive
		u.sawMessage = true
	} else {
		if receive.Before(u.start) {
			u.start = receive
		}
		if receive.After(u.end) {
			u.end = receive
		}
	}
	return nil
}

func (u *Unindexed) handleChunk(data []byte) error {
	c, err := mcap.ParseChunk(data)
	if err != nil {
		return fmt.Errorf("mcapsource: parse chunk: %w", err)
	}
	raw := c.Records
	if c.Compression != "" && c.Compression != "none" {
		fn, ok := u.decompressors[c.Compression]
		if !ok {
			return fmt.Errorf("mcapsource: chunk compression %q: %w", c.Compression, logmsg.ErrUnsupportedEncoding)
		}
		raw, err = fn(c.Records, c.UncompressedSize)
		if err != nil {
			return fmt.Errorf("mcapsource: decompress chunk (%s): %w", c.Compression, err)
		}
	}
	inner, err := mcap.NewLexer(bytes.NewReader(raw), &mcap.LexerOptions{SkipMagic: true})
	if err != nil {
		return fmt.Errorf("mcapsource: chunk lexer: %w", err)
	}
	defer inner.Close()
	return u.consume(inner)
}

func (u *Unindexed) buildInitialization() logmsg.Initialization {
	topics := make([]logmsg.Topic, 0, len(u.topicsSeen))
	datatypes := make(map[string]logmsg.Datatype)
	for topic, schemaName := range u.topicsSeen {
		topics = append(topics, logmsg.Topic{Name: topic, SchemaName: schemaName})
	}
	for _, pc := range u.parsed {
		for name, dt := range pc.Datatypes {
			datatypes[name] = dt
		}
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name < topics[j].Name })

	topicStats := make(map[string]logmsg.TopicStats)
	for chID, events := range u.eventsByChannel {
		ch := u.channels[chID]
		st := topicStats[ch.Topic]
		st.NumMessages += uint64(len(events))
		topicStats[ch.Topic] = st
	}

	start, end := u.start, u.end
	if !u.sawMessage {
		start, end = logmsg.Zero, logmsg.Zero
	}

	return logmsg.Initialization{
		Start:             start,
		End:               end,
		Topics:            topics,
		Datatypes:         datatypes,
		Profile:           u.profile,
		PublishersByTopic: u.publishers,
		TopicStats:        topicStats,
	}
}
