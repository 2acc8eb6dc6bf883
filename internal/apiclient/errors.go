package apiclient

import (
	"context"
	"errors"
	"net"
	"net/http"
)

const (
	msgGeneric     = "An error occurred"
	msgTransport   = "Unable to reach the server. Please try again."
	msgBadResponse = "The server returned an invalid response."
)

// Kind classifies a backend failure.
type Kind int

const (
	// KindTransport means the request never completed: dial, DNS, timeout,
	// cancellation or a truncated body.
	KindTransport Kind = iota + 1
	// KindStatus means the backend answered with a non-2xx status.
	KindStatus
	// KindDecode means a 2xx body could not be decoded as JSON.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	}
	return "unknown"
}

// Error is the single failure shape returned by Client. Message is always
// suitable for showing to the user.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	// Reason is the transport failure class ("timeout", "dns", ...).
	Reason string
	Method string
	Path   string
	Err    error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindStatus && apiErr.StatusCode == http.StatusUnauthorized
}

// Message returns the user-facing message carried by err, or fallback when
// err is not an *Error or carries no message.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// classifyTransportError categorizes a round-trip error for logs.
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Op == "dial" {
			return "connection_refused"
		}
		return "network"
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return "timeout"
	}
	return "other"
}
