package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrStringTooLong  = errors.New("string exceeds 255 bytes")
	ErrTooManyEntries = errors.New("list exceeds 255 entries")
)

// TransportError is a read or write failure on the request stream. It aborts
// the rest of the request.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a well-formed read of a request the node will not act on.
type ProtocolError struct {
	Type   RequestType
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on %s request: %s", e.Type, e.Reason)
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
