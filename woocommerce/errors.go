package woocommerce

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Transport error kinds.
const (
	KindTimeout    = "timeout"
	KindConnection = "connection"
	KindDecode     = "decode"
	KindCancelled  = "cancelled"
	KindOther      = "other"
)

// TransportError indicates the page could not be retrieved or read.
type TransportError struct {
	Kind string
	Page int
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("page %d: %s: %v", e.Page, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a structured error reported by the store, e.g. an invalid key or a rate limit.
type APIError struct {
	StatusCode int
	Code       string // WooCommerce error code, e.g. woocommerce_rest_authentication_error
	Message    string
	Page       int
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("page %d: api error (status %d, %s): %s", e.Page, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("page %d: api error (status %d): %s", e.Page, e.StatusCode, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ErrorTypeLabel maps an error to a short label used in logs and metrics.
func ErrorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return "unauthorized"
		case apiErr.StatusCode == http.StatusForbidden:
			return "forbidden"
		case apiErr.StatusCode == http.StatusNotFound:
			return "not_found"
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return "rate_limited"
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return "server"
		default:
			return "api"
		}
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Kind
	}
	return KindOther
}

func classifyTransport(err error) string {
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	return KindOther
}
