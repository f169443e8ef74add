package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ann@example.com" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"bad credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access":"access-token-1234","refresh":"refresh-token-5678","user":{"id":7,"full_name":"Ann","role":"ADMIN"}}`))
	})
	mux.HandleFunc("/api/v1/clients/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-token-1234" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if q.Get("search") != "acme" || q.Get("region") != "eu" || q.Get("limit") != "2" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"unexpected query ` + r.URL.RawQuery + `"}`))
			return
		}
		_, _ = w.Write([]byte(`{"count":1,"next":null,"previous":null,"results":[{"id":1,"name":"Acme","email":"ops@acme.test","phone":"","company":"Acme Ltd","owner":null}]}`))
	})
	mux.HandleFunc("/api/v1/stats/overview/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_TYPE", "bbolt")
	t.Setenv("SESSION_PATH", filepath.Join(t.TempDir(), "session.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func TestLoginStoresSessionUsedByListCommands(t *testing.T) {
	setupEnv(t)
	srv := newBackend(t)
	base := srv.URL + "/api/v1"

	var out, errOut bytes.Buffer
	err := run(context.Background(), []string{"--base-url", base, "--email", "ann@example.com", "--password", "secret", "login"}, &out, &errOut)
	if err != nil {
		t.Fatalf("login: %v (stderr %s)", err, errOut.String())
	}
	if strings.Contains(out.String(), "access-token-1234") {
		t.Fatalf("login output leaked the access token: %s", out.String())
	}
	var login map[string]any
	if err := json.Unmarshal(out.Bytes(), &login); err != nil {
		t.Fatalf("decode login output: %v", err)
	}
	user, _ := login["user"].(map[string]any)
	if user["id"] != "7" || user["role"] != "ADMIN" {
		t.Fatalf("unexpected user %#v", user)
	}

	out.Reset()
	err = run(context.Background(), []string{
		"--base-url", base, "--email", "ann@example.com",
		"--search", "acme", "--limit", "2", "--param", "region=eu", "-o", "yaml", "clients",
	}, &out, &errOut)
	if err != nil {
		t.Fatalf("clients: %v (stderr %s)", err, errOut.String())
	}
	var page map[string]any
	if err := yaml.Unmarshal(out.Bytes(), &page); err != nil {
		t.Fatalf("decode yaml output: %v", err)
	}
	if page["count"] != 1 {
		t.Fatalf("count = %#v, want 1", page["count"])
	}
	results, _ := page["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %#v", page["results"])
	}
	first, _ := results[0].(map[string]any)
	if first["id"] != "1" || first["company"] != "Acme Ltd" || first["owner"] != nil {
		t.Fatalf("unexpected client %#v", first)
	}
}

func TestCommandWithoutSessionFails(t *testing.T) {
	setupEnv(t)
	srv := newBackend(t)

	var out, errOut bytes.Buffer
	err := run(context.Background(), []string{"--base-url", srv.URL + "/api/v1", "clients"}, &out, &errOut)
	if err != errNoSession {
		t.Fatalf("expected errNoSession, got %v", err)
	}
	if exitCode(err) != exitFailure {
		t.Fatalf("exit code = %d", exitCode(err))
	}
}

func TestExitCodesFollowErrorKind(t *testing.T) {
	setupEnv(t)
	srv := newBackend(t)
	base := srv.URL + "/api/v1"

	var out, errOut bytes.Buffer
	err := run(context.Background(), []string{"--base-url", base, "--token", "access-token-1234", "stats"}, &out, &errOut)
	if code := exitCode(err); code != exitUnavailable {
		t.Fatalf("stats exit code = %d (err %v), want %d", code, err, exitUnavailable)
	}

	err = run(context.Background(), []string{"--base-url", base, "--email", "ann@example.com", "--password", "wrong", "login"}, &out, &errOut)
	if code := exitCode(err); code != exitAuth {
		t.Fatalf("login exit code = %d (err %v), want %d", code, err, exitAuth)
	}
}

func TestUsageErrors(t *testing.T) {
	setupEnv(t)
	var out, errOut bytes.Buffer

	cases := [][]string{
		{},
		{"bogus"},
		{"--param", "novalue", "--token", "x", "clients"},
	}
	for _, args := range cases {
		err := run(context.Background(), args, &out, &errOut)
		if exitCode(err) != exitUsage {
			t.Fatalf("args %v: exit code = %d (err %v), want usage", args, exitCode(err), err)
		}
	}

	if err := run(context.Background(), []string{"-o", "xml", "stats"}, &out, &errOut); err == nil {
		t.Fatalf("expected error for invalid output format")
	}
}

func TestQueryPassesParamsThrough(t *testing.T) {
	opts := options{params: []string{"ordering=-created_at", "owner= 3"}, status: "WON"}
	q, err := opts.query()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if q["ordering"] != "-created_at" || q["owner"] != " 3" || q["status"] != "WON" {
		t.Fatalf("unexpected query %#v", q)
	}
	if _, ok := q["limit"]; ok {
		t.Fatalf("limit should be omitted when not set")
	}
}

func TestMask(t *testing.T) {
	if got := mask("abc"); got != "***" {
		t.Fatalf("mask short = %q", got)
	}
	if got := mask("abcdefghijkl"); got != "abcd...ijkl" {
		t.Fatalf("mask long = %q", got)
	}
}
