package httpreader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gaby/logstream/internal/logmsg"
)

func TestOpenRejectsMissingAcceptRanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New(srv.URL, srv.Client())
	_, err := r.Open(context.Background())
	if err != logmsg.ErrAcceptRangesMissing {
		t.Fatalf("expected ErrAcceptRangesMissing, got %v", err)
	}
}

func TestOpenReturnsSizeAndIdentifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("Content-Length", "42")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New(srv.URL, srv.Client())
	res, err := r.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Size != 42 || res.Identifier != `"abc"` {
		t.Fatalf("unexpected OpenResult: %+v", res)
	}
}

func TestFetchStreamsRange(t *testing.T) {
	payload := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(payload[2:7])
	}))
	defer srv.Close()

	r := New(srv.URL, srv.Client())
	stream, err := r.Fetch(context.Background(), 2, 5)
	if err != nil {
		t.Fatal(err)
	}

	var got []byte
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				t.Fatal("channel closed before End")
			}
			if ev.Err != nil {
				t.Fatal(ev.Err)
			}
			if ev.End {
				if string(got) != "23456" {
					t.Fatalf("got %q, want %q", got, "23456")
				}
				return
			}
			got = append(got, ev.Data...)
		case <-timeout:
			t.Fatal("timed out waiting for stream")
		}
	}
}
