package fabrica

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"
)

const generatedSchema = `{
	"tables": [
		{"name": "artists", "row_count": 200},
		{"name": "albums", "row_count": 1000}
	],
	"columns": {
		"artists": [{"name": "id", "type": "uuid"}, {"name": "name", "type": "name"}],
		"albums": [{"name": "id", "type": "uuid"}, {"name": "artist_id", "type": "uuid"}]
	},
	"relationships": [
		{"parent_table": "artists", "child_table": "albums", "parent_key": "id", "child_key": "artist_id"}
	]
}`

func TestGenerateSchema_PlainJSON(t *testing.T) {
	ts := fabricaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schema/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if body["story"] != "a music catalog" {
			t.Errorf("unexpected story: %q", body["story"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(generatedSchema))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	doc, err := c.GenerateSchema(context.Background(), "a music catalog", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Tables) != 2 || doc.Tables[0].Name != "artists" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

// The same bytes as one JSON body or as an event-stream must decode to the
// same document.
func TestGenerateSchema_StreamEqualsPlain(t *testing.T) {
	plain := fabricaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(generatedSchema))
	})
	defer plain.Close()

	streamed := fabricaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(generatedSchema))
	})
	defer streamed.Close()

	fromPlain, err := newTestClient(t, plain.URL).GenerateSchema(context.Background(), "story", nil)
	if err != nil {
		t.Fatalf("plain: %v", err)
	}
	fromStream, err := newTestClient(t, streamed.URL).GenerateSchema(context.Background(), "story", nil)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	if !reflect.DeepEqual(fromPlain, fromStream) {
		t.Errorf("documents differ:\nplain:  %+v\nstream: %+v", fromPlain, fromStream)
	}
}

func TestGenerateSchema_ChunksArriveInOrder(t *testing.T) {
	pieces := []string{}
	for i := 0; i < len(generatedSchema); i += 64 {
		end := i + 64
		if end > len(generatedSchema) {
			end = len(generatedSchema)
		}
		pieces = append(pieces, generatedSchema[i:end])
	}

	ts := fabricaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer does not support flushing")
			return
		}
		for _, p := range pieces {
			w.Write([]byte(p))
			flusher.Flush()
			time.Sleep(time.Millisecond)
		}
	})
	defer ts.Close()

	var got []string
	c := newTestClient(t, ts.URL)
	doc, err := c.GenerateSchema(context.Background(), "story", func(chunk string) {
		got = append(got, chunk)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Tables) != 2 {
		t.Errorf("unexpected document: %+v", doc)
	}

	// Chunk boundaries may differ from what the server wrote, but the
	// concatenation in callback order must reproduce the exact bytes.
	if joined := strings.Join(got, ""); joined != generatedSchema {
		t.Errorf("chunks out of order or lossy:\nwant %q\ngot  %q", generatedSchema, joined)
	}
	if len(got) < 2 {
		t.Errorf("expected multiple chunk callbacks, got %d", len(got))
	}
}

func TestGenerateSchema_MalformedStream(t *testing.T) {
	ts := fabricaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`{"tables": [`)) // truncated
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.GenerateSchema(context.Background(), "story", nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGenerateSchema_MalformedJSON(t *testing.T) {
	ts := fabricaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("oops"))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.GenerateSchema(context.Background(), "story", nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGenerateSchema_ServerError(t *testing.T) {
	ts := fabricaServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.GenerateSchema(context.Background(), "story", nil)
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
}

func TestGenerateSchema_CancelMidStream(t *testing.T) {
	release := make(chan struct{})
	ts := fabricaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		w.Write([]byte(`{"tables": [`))
		flusher.Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	c := newTestClient(t, ts.URL)
	start := time.Now()
	_, err := c.GenerateSchema(ctx, "story", nil)
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("cancellation should interrupt the stream, took %v", time.Since(start))
	}
}
