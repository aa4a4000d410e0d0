package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind tags why a fetch failed.
type Kind string

const (
	KindConnection Kind = "connection"
	KindTimeout    Kind = "timeout"
	KindRejected   Kind = "rejected"
	KindShape      Kind = "shape"
	KindUnknown    Kind = "unknown"
)

// FetchError is the tagged failure of one upstream operation.
type FetchError struct {
	Kind   Kind
	Op     string
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (http %d)", e.Status)
	}
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Classify wraps a transport-level error from Do.
func Classify(op, target string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	kind := KindUnknown
	var netErr net.Error
	var urlErr *url.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &opErr):
		kind = KindConnection
	case errors.As(err, &urlErr):
		kind = KindConnection
	}
	return &FetchError{Kind: kind, Op: op, URL: target, Err: err}
}

// Rejected builds the error for a non-success status.
func Rejected(op string, resp *Response) error {
	fe := &FetchError{Kind: KindRejected, Op: op}
	if resp != nil {
		fe.URL = resp.URL
		fe.Status = resp.StatusCode
		fe.Body = truncate(string(resp.Body), 512)
	}
	return fe
}

// Shape builds the error for an undecodable body.
func Shape(op, target string, err error) error {
	return &FetchError{Kind: KindShape, Op: op, URL: target, Err: err}
}

// IsTransient reports connection and timeout failures.
func IsTransient(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Kind == KindConnection || fe.Kind == KindTimeout
}

// KindOf returns the tag of err, or KindUnknown.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
