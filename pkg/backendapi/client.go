// Package backendapi is the BFF's only way to talk to the CRM backend: every
// operation goes through one request executor that attaches the bearer token
// and maps failures onto ErrUnavailable, ErrAuth or ErrAPI. Successful bodies
// are converted by package dto.
package backendapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/crm-bff/pkg/dto"
	"github.com/samvad-hq/crm-bff/pkg/httpclient"
)

const (
	DefaultBaseURL = "http://crm_backend:8000/api/v1"
	DefaultTimeout = 5 * time.Second

	DefaultDashboardDealLimit     = 10
	DefaultDashboardActivityLimit = 5

	// DealStatusInProgress is the deal filter used for the dashboard.
	DealStatusInProgress = "IN_PROGRESS"
)

const (
	pathLogin    = "/auth/login/"
	pathRefresh  = "/auth/refresh/"
	pathLogout   = "/auth/logout/"
	pathClients  = "/clients/"
	pathDeals    = "/deals/"
	pathTasks    = "/tasks/"
	pathActivity = "/activity/"
	pathStats    = "/stats/overview/"
)

// Query is forwarded untouched as URL query parameters.
type Query map[string]string

// Config holds the backend address and per-request timeout.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// API is the surface presentation code depends on.
type API interface {
	Login(ctx context.Context, email, password string) (dto.AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (dto.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	ListClients(ctx context.Context, token string, q Query) (dto.Page[dto.Client], error)
	ListDeals(ctx context.Context, token string, q Query) (dto.Page[dto.Deal], error)
	ListTasks(ctx context.Context, token string, q Query) (dto.Page[dto.Task], error)
	ListActivity(ctx context.Context, token string, q Query) (dto.Page[dto.Activity], error)
	GetStats(ctx context.Context, token string) (dto.Stats, error)
	BuildDashboard(ctx context.Context, token string, opts DashboardOptions) (dto.Dashboard, error)
	Close() error
}

var _ API = (*Client)(nil)

// Client talks to the CRM backend API.
type Client struct {
	baseURL   string
	timeout   time.Duration
	transport httpclient.Client
	log       Logger

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// Option customizes a Client.
type Option func(*Client)

func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTransport replaces the default resty transport. The client takes
// ownership and closes it on Close.
func WithTransport(t httpclient.Client) Option {
	return func(c *Client) { c.transport = t }
}

// New opens a client for cfg. Call Close when done.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{baseURL: base, timeout: timeout}
	for _, opt := range opts {
		opt(c)
	}
	c.log = ensureLogger(c.log)
	if c.transport == nil {
		c.transport = httpclient.NewRestyClient(base, timeout)
	}
	c.log.DebugObj("backend api client initialized", "backend_client", map[string]any{
		"base_url":   base,
		"timeout_ms": timeout.Milliseconds(),
	})
	return c, nil
}

// Use opens a client, hands it to fn and closes it afterwards, whatever fn returns.
func Use(cfg Config, fn func(*Client) error, opts ...Option) (err error) {
	c, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close backend client: %w", cerr)
		}
	}()
	return fn(c)
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// Close releases the transport. It is safe to call more than once.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.transport.Close()
		c.log.DebugObj("backend api client closed", "base_url", c.baseURL)
	})
	return c.closeErr
}

func (c *Client) Login(ctx context.Context, email, password string) (dto.AuthTokens, error) {
	raw, err := c.do(ctx, http.MethodPost, pathLogin, "", map[string]string{"email": email, "password": password}, nil)
	if err != nil {
		return dto.AuthTokens{}, err
	}
	return decodeAs(http.MethodPost, pathLogin, raw, dto.DecodeAuthTokens)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (dto.AuthTokens, error) {
	raw, err := c.do(ctx, http.MethodPost, pathRefresh, "", map[string]string{"refresh": refreshToken}, nil)
	if err != nil {
		return dto.AuthTokens{}, err
	}
	return decodeAs(http.MethodPost, pathRefresh, raw, dto.DecodeAuthTokens)
}

func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	_, err := c.do(ctx, http.MethodPost, pathLogout, "", map[string]string{"refresh": refreshToken}, nil)
	return err
}

func (c *Client) ListClients(ctx context.Context, token string, q Query) (dto.Page[dto.Client], error) {
	return list(ctx, c, pathClients, token, q, dto.DecodeClient)
}

func (c *Client) ListDeals(ctx context.Context, token string, q Query) (dto.Page[dto.Deal], error) {
	return list(ctx, c, pathDeals, token, q, dto.DecodeDeal)
}

func (c *Client) ListTasks(ctx context.Context, token string, q Query) (dto.Page[dto.Task], error) {
	return list(ctx, c, pathTasks, token, q, dto.DecodeTask)
}

func (c *Client) ListActivity(ctx context.Context, token string, q Query) (dto.Page[dto.Activity], error) {
	return list(ctx, c, pathActivity, token, q, dto.DecodeActivity)
}

func (c *Client) GetStats(ctx context.Context, token string) (dto.Stats, error) {
	raw, err := c.do(ctx, http.MethodGet, pathStats, token, nil, nil)
	if err != nil {
		return dto.Stats{}, err
	}
	return decodeAs(http.MethodGet, pathStats, raw, dto.DecodeStats)
}

// DashboardOptions limits the dashboard lists. Non-positive values use the defaults.
type DashboardOptions struct {
	DealLimit     int
	ActivityLimit int
}

func (o DashboardOptions) normalized() DashboardOptions {
	if o.DealLimit <= 0 {
		o.DealLimit = DefaultDashboardDealLimit
	}
	if o.ActivityLimit <= 0 {
		o.ActivityLimit = DefaultDashboardActivityLimit
	}
	return o
}

// BuildDashboard fetches stats, in-progress deals and recent activity in that
// order. The first failing call aborts the build and its error is returned as is.
func (c *Client) BuildDashboard(ctx context.Context, token string, opts DashboardOptions) (dto.Dashboard, error) {
	opts = opts.normalized()

	stats, err := c.GetStats(ctx, token)
	if err != nil {
		return dto.Dashboard{}, err
	}
	deals, err := c.ListDeals(ctx, token, Query{
		"status": DealStatusInProgress,
		"limit":  strconv.Itoa(opts.DealLimit),
	})
	if err != nil {
		return dto.Dashboard{}, err
	}
	activity, err := c.ListActivity(ctx, token, Query{
		"limit": strconv.Itoa(opts.ActivityLimit),
	})
	if err != nil {
		return dto.Dashboard{}, err
	}
	return dto.ComposeDashboard(stats, head(deals.Results, opts.DealLimit), head(activity.Results, opts.ActivityLimit)), nil
}

func list[T any](ctx context.Context, c *Client, path, token string, q Query, decode func([]byte) (T, error)) (dto.Page[T], error) {
	raw, err := c.do(ctx, http.MethodGet, path, token, nil, q)
	if err != nil {
		return dto.Page[T]{}, err
	}
	return decodeAs(http.MethodGet, path, raw, func(b []byte) (dto.Page[T], error) {
		return dto.DecodePage(b, decode)
	})
}

func decodeAs[T any](method, path string, raw []byte, decode func([]byte) (T, error)) (T, error) {
	rec, err := decode(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return rec, nil
}

// do is the single request executor. Outcomes are classified in order:
// transport failure, 401, 5xx, other error status, success.
func (c *Client) do(ctx context.Context, method, path, token string, body any, q Query) ([]byte, error) {
	if c.closed.Load() {
		return nil, &Error{Kind: KindUnavailable, Method: method, Path: path, Err: httpclient.ErrClosed}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req := httpclient.Request{
		Method: method,
		Path:   path,
		Query:  q,
		Body:   body,
	}
	if token != "" {
		req.Headers = map[string]string{"Authorization": "Bearer " + token}
	}

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		c.log.ErrorObj("backend request failed", "backend_request", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return nil, &Error{Kind: KindUnavailable, Method: method, Path: path, Err: err}
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusUnauthorized:
		c.log.WarnObj("backend auth error", "backend_request", map[string]any{
			"method": method,
			"path":   path,
		})
		return nil, &Error{Kind: KindAuth, Method: method, Path: path, StatusCode: status, Body: string(resp.Body())}
	case status >= http.StatusInternalServerError:
		c.log.ErrorObj("backend unavailable", "backend_request", map[string]any{
			"method": method,
			"path":   path,
			"status": status,
		})
		return nil, &Error{Kind: KindUnavailable, Method: method, Path: path, StatusCode: status, Body: string(resp.Body())}
	case status >= http.StatusBadRequest:
		c.log.InfoObj("backend responded with error", "backend_request", map[string]any{
			"method": method,
			"path":   path,
			"status": status,
			"body":   string(resp.Body()),
		})
		return nil, &Error{Kind: KindAPI, Method: method, Path: path, StatusCode: status, Body: string(resp.Body())}
	}
	return resp.Body(), nil
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// AsError extracts the *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
