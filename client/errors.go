package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a package, version or artifact does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a registry refuses a write because the
	// resource already exists.
	ErrConflict = errors.New("conflict")
)

// Kind classifies a failed registry call.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindUnauthorized
	KindRateLimited
	KindUpstream
	KindTransport
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate-limited"
	case KindUpstream:
		return "upstream"
	case KindTransport:
		return "transport"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// KindForStatus maps an HTTP status code onto a Kind.
func KindForStatus(code int) Kind {
	switch {
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusConflict:
		return KindConflict
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindUnauthorized
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 500:
		return KindUpstream
	default:
		return KindUnexpected
	}
}

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
	Kind       Kind
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.Kind == KindNotFound
}

// IsConflict returns true if the registry reported the resource as already present.
func (e *HTTPError) IsConflict() bool {
	return e.Kind == KindConflict
}

// Is lets errors.Is match HTTP errors against the package sentinels.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	}
	return false
}

// TransportError wraps a failure that happened before any response arrived.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NotFoundError wraps ErrNotFound with additional context.
type NotFoundError struct {
	Ecosystem string
	Name      string
	Version   string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s: package %s version %s not found", e.Ecosystem, e.Name, e.Version)
	}
	return fmt.Sprintf("%s: package %s not found", e.Ecosystem, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ConflictError reports a publish refused because the version already exists.
type ConflictError struct {
	Name    string
	Version string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s@%s already exists", e.Name, e.Version)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// RateLimitError is returned when the registry rate limits requests.
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}

// KindOf classifies err. Errors that carry no registry classification are
// KindUnknown; nil is KindUnknown as well.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Kind
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return KindRateLimited
	}
	if errors.Is(err, ErrConflict) {
		return KindConflict
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return KindTransport
	}
	return KindUnknown
}

func retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindUpstream, KindTransport:
		return true
	}
	return false
}
