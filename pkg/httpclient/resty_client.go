package httpclient

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "crm-bff/0.1"

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client    *resty.Client
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewRestyClient creates a RestyClient bound to baseURL with the specified timeout.
func NewRestyClient(baseURL string, timeout time.Duration) *RestyClient {
	c := newRestyBaseClient(timeout)
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		c.SetBaseURL(baseURL)
	}
	return &RestyClient{client: c}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetHeader("Accept", "application/json")
	c.SetHeader("User-Agent", defaultUserAgent)
	return c
}

// Do performs the request and returns the raw response. Any non-nil error is a
// transport failure; HTTP error statuses are returned as responses.
func (r *RestyClient) Do(ctx context.Context, in Request) (Response, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	req := r.client.R().SetContext(ctx)
	if len(in.Headers) > 0 {
		req.SetHeaders(in.Headers)
	}
	if len(in.Query) > 0 {
		req.SetQueryParams(in.Query)
	}
	if in.Body != nil {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(in.Body)
	}
	resp, err := req.Execute(in.Method, in.Path)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// Close releases idle connections. Only the first call has an effect.
func (r *RestyClient) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.client.GetClient().CloseIdleConnections()
	})
	return nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }
