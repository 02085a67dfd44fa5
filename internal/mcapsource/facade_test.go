package mcapsource

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foxglove/mcap/go/mcap"

	"github.com/gaby/logstream/internal/decompress"
	"github.com/gaby/logstream/internal/logmsg"
	"github.com/gaby/logstream/internal/source"
)

func buildTestMCAP(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := mcap.NewWriter(&buf, &mcap.WriterOptions{Compression: mcap.CompressionNone})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteHeader(&mcap.Header{Profile: "", Library: "test"}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.WriteSchema(&mcap.Schema{ID: 1, Name: "std_msgs/String", Encoding: "ros2msg", Data: []byte("string data\n")}); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	if err := w.WriteChannel(&mcap.Channel{ID: 1, Topic: "/chatter", MessageEncoding: "cdr", SchemaID: 1}); err != nil {
		t.Fatalf("write channel: %v", err)
	}
	if err := w.WriteMessage(&mcap.Message{ChannelID: 1, Sequence: 0, LogTime: 1000, PublishTime: 1000, Data: []byte{0, 1, 0, 0, 5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o', 0, 0, 0}}); err != nil {
		t.Fatalf("write message: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

type byteBlob struct{ data []byte }

func (b *byteBlob) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(b.data).ReadAt(p, off)
}
func (b *byteBlob) Size() int64 { return int64(len(b.data)) }

func TestFacadeFileInput(t *testing.T) {
	data := buildTestMCAP(t)
	f := NewFacade(source.Input{Kind: source.InputFile, File: &byteBlob{data: data}}, decompress.Default())
	init, err := f.Initialize(context.Background())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(init.Topics) != 1 || init.Topics[0].Name != "/chatter" {
		t.Fatalf("unexpected topics: %+v", init.Topics)
	}
}

func TestFacadeURLInput(t *testing.T) {
	data := buildTestMCAP(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		http.ServeContent(w, r, "test.mcap", time.Unix(0, 0), bytes.NewReader(data))
	}))
	defer srv.Close()

	f := NewFacade(source.Input{Kind: source.InputURL, URL: srv.URL}, decompress.Default())
	init, err := f.Initialize(context.Background())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(init.Topics) != 1 {
		t.Fatalf("unexpected topics: %+v", init.Topics)
	}
}

func TestFacadeUnsupportedStreamInput(t *testing.T) {
	f := NewFacade(source.Input{Kind: source.InputStream}, nil)
	if _, err := f.Initialize(context.Background()); err != logmsg.ErrUnsupportedInput {
		t.Fatalf("expected ErrUnsupportedInput, got %v", err)
	}
}
