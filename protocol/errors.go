package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedOffset ...
	ErrMalformedOffset = errors.New("malformed upload offset")
	// ErrMissingLocation ...
	ErrMissingLocation = errors.New("missing location")
	// ErrInvalidLocation ...
	ErrInvalidLocation = errors.New("invalid location")
	// ErrUnexpectedStatus ...
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// ProtocolError is returned when the server breaks the protocol: an unexpected status code,
// a missing or malformed header, or an unparseable location.
type ProtocolError struct {
	// Op is the protocol step that failed (creation, offset query, transfer).
	Op         string
	Reason     string
	StatusCode int
	Err        error
}

// NewProtocolError ...
func NewProtocolError(op, reason string, err error) *ProtocolError {
	return &ProtocolError{Op: op, Reason: reason, Err: err}
}

// StatusError builds a ProtocolError for a response status outside the accepted range.
func StatusError(op string, statusCode int, body string) *ProtocolError {
	reason := fmt.Sprintf("unexpected status during %s", op)
	if body != "" {
		reason = fmt.Sprintf("%s: %s", reason, body)
	}
	return &ProtocolError{Op: op, Reason: reason, StatusCode: statusCode, Err: ErrUnexpectedStatus}
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("protocol error (%s): %s", e.Op, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil && !errors.Is(e.Err, ErrUnexpectedStatus) {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// OffsetMismatchError is returned when the offset reported by the server after a transfer
// differs from the locally computed one.
type OffsetMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *OffsetMismatchError) Error() string {
	return fmt.Sprintf("offset mismatch: expected %d, server reported %d", e.Expected, e.Actual)
}
