package publishers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestHTTPPublisher(t *testing.T, cfg HTTPConfig) Publisher {
	t.Helper()
	cfg.normalize()
	pub, err := newHTTPPublisher(context.Background(), Config{ID: "hook", Type: TypeHTTP, HTTP: &cfg}, nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })
	return pub
}

func TestHTTPPublisherPostsEnvelope(t *testing.T) {
	var received atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-Test"); got != "1" {
			t.Errorf("missing configured header, got %q", got)
		}
		if got := r.Header.Get("X-Event-ID"); got != "evt-1" {
			t.Errorf("X-Event-ID = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		var evt Event
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			t.Errorf("decode event: %v", err)
		}
		if evt.Kind != EventKindDashboardSnapshot || evt.UserID != "u1" {
			t.Errorf("unexpected event %#v", evt)
		}
		received.Store(true)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pub := newTestHTTPPublisher(t, HTTPConfig{
		URL:            srv.URL,
		Headers:        map[string]string{"X-Test": "1"},
		TimeoutSeconds: 2,
	})
	evt := Event{ID: "evt-1", Kind: EventKindDashboardSnapshot, UserID: "u1"}
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !received.Load() {
		t.Fatalf("server did not receive request")
	}
}

func TestHTTPPublisherErrorOnClientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	pub := newTestHTTPPublisher(t, HTTPConfig{URL: srv.URL, TimeoutSeconds: 1, Retries: 3})
	if err := pub.Publish(context.Background(), Event{ID: "evt-1"}); err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", got)
	}
}

func TestHTTPPublisherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pub := newTestHTTPPublisher(t, HTTPConfig{URL: srv.URL, TimeoutSeconds: 1, Retries: 2})
	if err := pub.Publish(context.Background(), Event{ID: "evt-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}
