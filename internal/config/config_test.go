package config

import (
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/crm-bff/pkg/backendapi"
	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND_API_URL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BackendAPIURL != backendapi.DefaultBaseURL {
		t.Fatalf("BackendAPIURL = %q, want %q", cfg.BackendAPIURL, backendapi.DefaultBaseURL)
	}
	if cfg.RequestTimeout != backendapi.DefaultTimeout {
		t.Fatalf("RequestTimeout = %v, want %v", cfg.RequestTimeout, backendapi.DefaultTimeout)
	}
}

func TestLoadReadsBackendURLFromEnv(t *testing.T) {
	t.Setenv("BACKEND_API_URL", "http://localhost:9000/api/v1")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BackendAPIURL != "http://localhost:9000/api/v1" {
		t.Fatalf("BackendAPIURL = %q", cfg.BackendAPIURL)
	}
	if cfg.RequestTimeout != 2500*time.Millisecond {
		t.Fatalf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.Backend().Timeout != cfg.RequestTimeout {
		t.Fatalf("Backend() timeout mismatch")
	}
	if cfg.SessionTTL != 24*time.Hour || cfg.SnapshotInterval != 5*time.Minute {
		t.Fatalf("unexpected durations ttl=%v interval=%v", cfg.SessionTTL, cfg.SnapshotInterval)
	}
	if d := cfg.Dashboard(); d.DealLimit != 10 || d.ActivityLimit != 5 {
		t.Fatalf("unexpected dashboard options %#v", d)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	v := viper.New()
	v.Set("backend_api_url", "https://crm.example.com/api/v1")
	v.Set("dashboard_deal_limit", 3)

	cfg, err := LoadWith(v)
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if cfg.BackendAPIURL != "https://crm.example.com/api/v1" || cfg.DashboardDealLimit != 3 {
		t.Fatalf("overrides not applied: %#v", cfg)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	v := viper.New()
	v.Set("request_timeout_seconds", 0)
	if _, err := LoadWith(v); err == nil {
		t.Fatalf("expected error for zero timeout")
	}
}

func TestLoadValidationNamesConfigKeys(t *testing.T) {
	cases := map[string]struct {
		key   string
		value any
		want  string
	}{
		"relative url":    {key: "backend_api_url", value: "crm_backend/api", want: "backend_api_url"},
		"unknown session": {key: "session_type", value: "memcached", want: "session_type"},
		"bad interval":    {key: "snapshot_interval", value: -1, want: "snapshot_interval"},
		"bad email":       {key: "bff_email", value: "not-an-email", want: "bff_email"},
		"bad level":       {key: "log_level", value: "verbose", want: "log_level"},
		"metrics addr":    {key: "metrics_addr", value: "no-port", want: "metrics_addr"},
	}
	for name, tc := range cases {
		v := viper.New()
		v.Set(tc.key, tc.value)
		_, err := LoadWith(v)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error naming %s, got %v", name, tc.want, err)
		}
	}
}

func TestLoadRedisSessionRequiresAddr(t *testing.T) {
	v := viper.New()
	v.Set("session_type", "redis")
	if _, err := LoadWith(v); err == nil || !strings.Contains(err.Error(), "session_redis_addr is required") {
		t.Fatalf("expected missing redis addr error, got %v", err)
	}

	v.Set("session_redis_addr", "localhost:6379")
	v.Set("metrics_addr", ":9090")
	cfg, err := LoadWith(v)
	if err != nil {
		t.Fatalf("LoadWith: %v", err)
	}
	if cfg.SessionType != "redis" || cfg.TokenRefreshSkew != 30*time.Second {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if got := cfg.SessionLocation(); got != "localhost:6379" {
		t.Fatalf("SessionLocation = %q", got)
	}
}
