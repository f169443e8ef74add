package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRestyClientDoSendsRequest(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotContentType string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("search")
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`short and stout`))
	}))
	defer srv.Close()

	c := NewRestyClient(srv.URL+"/api/v1/", 2*time.Second)
	defer c.Close()

	resp, err := c.Do(context.Background(), Request{
		Method:  http.MethodPost,
		Path:    "/clients/",
		Headers: map[string]string{"Authorization": "Bearer t"},
		Query:   map[string]string{"search": "Acme"},
		Body:    map[string]string{"k": "v"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode() != http.StatusTeapot || string(resp.Body()) != "short and stout" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode(), resp.Body())
	}
	if gotPath != "/api/v1/clients/" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotQuery != "Acme" || gotAuth != "Bearer t" || gotContentType != "application/json" {
		t.Fatalf("unexpected request query=%q auth=%q ct=%q", gotQuery, gotAuth, gotContentType)
	}
	if gotBody["k"] != "v" {
		t.Fatalf("body = %#v", gotBody)
	}
}

func TestRestyClientCloseIsIdempotent(t *testing.T) {
	c := NewRestyClient("http://127.0.0.1:1", time.Second)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Do after Close err = %v, want ErrClosed", err)
	}
}
