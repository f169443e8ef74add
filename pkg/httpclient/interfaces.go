package httpclient

import (
	"context"
	"errors"
)

// ErrClosed is returned by Do once the client has been closed.
var ErrClosed = errors.New("httpclient: client closed")

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Request describes a single call relative to the client's base URL.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	// Body is encoded as JSON when non-nil.
	Body any
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Do(ctx context.Context, req Request) (Response, error)
	Close() error
}
