package publishers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/crm-bff/pkg/httpclient"
)

const (
	httpRetryWait    = 200 * time.Millisecond
	httpRetryMaxWait = 2 * time.Second
	httpSnippetLimit = 512
)

// httpPublisher posts the event envelope to a webhook.
type httpPublisher struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  *resty.Client
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg Config, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}

	client := httpclient.NewRestyHTTPClient(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second)
	if cfg.HTTP.Retries > 0 {
		client.SetRetryCount(cfg.HTTP.Retries).
			SetRetryWaitTime(httpRetryWait).
			SetRetryMaxWaitTime(httpRetryMaxWait).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				return err != nil || resp.StatusCode() >= http.StatusInternalServerError
			})
	}

	return &httpPublisher{
		id:      cfg.ID,
		method:  cfg.HTTP.Method,
		url:     cfg.HTTP.URL,
		headers: cfg.HTTP.Headers,
		client:  client,
		log:     ensureLogger(log),
	}, nil
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return TypeHTTP }

func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := evt.encode()
	if err != nil {
		return err
	}

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeaders(h.headers).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Event-ID", evt.ID).
		SetHeader("X-Event-Kind", evt.Kind).
		SetBody(payload).
		Execute(h.method, h.url)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("http response status %d: %s", resp.StatusCode(), snippet(resp.Body()))
	}
	h.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"publisher_id": h.id,
		"event_id":     evt.ID,
		"status":       resp.StatusCode(),
		"attempts":     resp.Request.Attempt,
	})
	return nil
}

func (h *httpPublisher) Close() error {
	h.client.GetClient().CloseIdleConnections()
	return nil
}

func snippet(body []byte) string {
	if len(body) > httpSnippetLimit {
		body = body[:httpSnippetLimit]
	}
	return strings.TrimSpace(string(body))
}
