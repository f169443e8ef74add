package backendapi

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call.
type Kind int

const (
	// KindUnavailable covers transport failures and 5xx responses.
	KindUnavailable Kind = iota + 1
	// KindAuth is a 401 response.
	KindAuth
	// KindAPI is any other non-2xx response.
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindAuth:
		return "auth"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// Sentinels matched by *Error through errors.Is.
var (
	ErrUnavailable = errors.New("backend unavailable")
	ErrAuth        = errors.New("backend authentication error")
	ErrAPI         = errors.New("backend api error")
)

// Error is returned for every failed backend call.
type Error struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int
	// Body is the raw response body, kept verbatim for diagnostics.
	Body string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s %s: %v", e.sentinel(), e.Method, e.Path, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: %s %s -> %d: %s", e.sentinel(), e.Method, e.Path, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: %s %s -> %d", e.sentinel(), e.Method, e.Path, e.StatusCode)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.sentinel() }

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindAuth:
		return ErrAuth
	case KindAPI:
		return ErrAPI
	default:
		return ErrUnavailable
	}
}

// IsUnavailable reports whether err means the backend cannot be used right now.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return errors.Is(err, ErrAuth) }
