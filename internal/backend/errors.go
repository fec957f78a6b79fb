package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a failed backend call.
type ErrorKind string

// Known error kinds.
const (
	// KindTransport covers unreachable hosts, refused or reset connections.
	KindTransport ErrorKind = "transport"
	// KindTimeout is a transport failure caused by a deadline.
	KindTimeout ErrorKind = "timeout"
	// KindCanceled means the caller gave up before a response arrived.
	KindCanceled ErrorKind = "canceled"
	// KindBackend is a non-2xx response or a 2xx body carrying an error field.
	KindBackend ErrorKind = "backend"
	// KindDecode is a response body that could not be parsed.
	KindDecode ErrorKind = "decode"
)

// Error is the normalized failure of a discovery or crawl call. Message,
// Type and Details are meant for display and logs only.
type Error struct {
	Op         string
	Kind       ErrorKind
	Type       string
	Message    string
	Details    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport reports whether the failure happened before a usable response
// was received.
func (e *Error) Transport() bool {
	return e.Kind == KindTransport || e.Kind == KindTimeout || e.Kind == KindCanceled
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// Error type tags reported when the backend does not supply its own.
const (
	TypeConnection = "CONNECTION_ERROR"
	TypeTimeout    = "TIMEOUT_ERROR"
	TypeBackend    = "BACKEND_ERROR"
	TypeDecode     = "PARSE_ERROR"
	TypeCanceled   = "CANCELLED"
)

var connectionHints = []string{
	"connection refused",
	"econnrefused",
	"no such host",
	"connection reset",
	"reset by peer",
	"network is unreachable",
	"broken pipe",
	"eof",
}

var timeoutHints = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"etimedout",
}

// classifyTransport turns an error from the HTTP client into a *Error. It
// checks typed errors first and falls back to message heuristics.
func classifyTransport(op string, err error) *Error {
	out := &Error{Op: op, Kind: KindTransport, Type: TypeConnection, Message: err.Error(), Err: err}
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		out.Kind, out.Type = KindCanceled, TypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		out.Kind, out.Type = KindTimeout, TypeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		out.Kind, out.Type = KindTimeout, TypeTimeout
	default:
		msg := strings.ToLower(err.Error())
		if containsAny(msg, timeoutHints) {
			out.Kind, out.Type = KindTimeout, TypeTimeout
		} else if !containsAny(msg, connectionHints) {
			out.Details = "unclassified transport failure"
		}
	}
	switch out.Kind {
	case KindTimeout:
		out.Message = "backend did not respond in time"
	case KindCanceled:
		out.Message = "request was cancelled before the backend responded"
	default:
		out.Message = "could not reach the discovery backend"
	}
	out.Details = strings.TrimSpace(out.Details + "\n" + err.Error())
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
