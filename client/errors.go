package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNotFound indicates the requested entity does not exist upstream.
var ErrNotFound = errors.New("entity not found")

// TransportError indicates a network failure, timeout or non-success
// HTTP status. Transport errors are retried on the next scheduled tick
// (the heartbeat path instead counts them toward failover).
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError indicates a malformed or unexpected response shape.
// Parse errors are logged and treated as soft failures (empty result),
// never fatal to the session.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsParse reports whether err is (or wraps) a structural/parse failure.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
