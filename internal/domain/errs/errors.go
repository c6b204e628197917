// Package errs holds the relay's error taxonomy.
//
// ConnectionError is transport-level and triggers reconnect with backoff.
// DecodeError means one frame was skipped. Delivery failures never leave the hub.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected  = errors.New("upstream not connected")
	ErrRemoteClosed  = errors.New("upstream closed the connection")
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
	ErrMalformed     = errors.New("malformed payload")
	ErrNotEvent      = errors.New("frame is not a market event")
	ErrMissingField  = errors.New("required field missing")
	ErrInvalidPrice  = errors.New("price is not a decimal")
	ErrHubClosed     = errors.New("hub closed")
)

// ConnectionError wraps a transport failure with the operation that hit it.
type ConnectionError struct {
	Op       string // dial, subscribe, read, ping
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("upstream %s %s: %v", e.Op, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DecodeError describes a frame that could not become a MarketEvent.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsConnection reports whether err is (or wraps) a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsDecode reports whether err is (or wraps) a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
