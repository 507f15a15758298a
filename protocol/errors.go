package protocol

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by this module matches exactly one of
// these with errors.Is.
var (
	// ErrTransport indicates a channel open/send/receive failure
	ErrTransport = errors.New("transport error")

	// ErrFraming indicates a frame length, marker or terminator mismatch
	ErrFraming = errors.New("framing error")

	// ErrProtocolViolation indicates an unexpected acknowledge byte or handshake failure
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrBounds indicates a memory region outside the documented limits
	ErrBounds = errors.New("out of bounds")

	// ErrIO indicates a firmware file open/read failure
	ErrIO = errors.New("i/o error")

	// ErrTimeout indicates a bounded retry loop was exhausted
	ErrTimeout = errors.New("timeout")
)

// Error is a typed failure carrying one of the error kinds above.
type Error struct {
	// Op is the operation that failed, e.g. "write memory"
	Op string

	// Kind is one of the Err* sentinels
	Kind error

	// Address is the target address involved, valid when HasAddress is set
	Address    uint32
	HasAddress bool

	// Err is the underlying cause (optional)
	Err error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.HasAddress {
		msg += fmt.Sprintf(" at 0x%08X", e.Address)
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds an Error of the given kind with a formatted cause.
func NewError(op string, kind error, format string, args ...interface{}) *Error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WrapError builds an Error of the given kind around err.
func WrapError(op string, kind error, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// AtAddress returns a copy of e annotated with addr.
func (e *Error) AtAddress(addr uint32) *Error {
	c := *e
	c.Address = addr
	c.HasAddress = true
	return &c
}

// KindOf returns the kind sentinel of err, or nil if err carries none.
// The outermost *Error wins when several are nested.
func KindOf(err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	for _, kind := range []error{ErrTransport, ErrFraming, ErrProtocolViolation, ErrBounds, ErrIO, ErrTimeout} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// AckError reports an acknowledge byte other than Ack.
type AckError struct {
	// Phase names the handshake phase, e.g. "address"
	Phase string

	// Got is the received byte
	Got byte
}

func (e *AckError) Error() string {
	if e.Got == Nack {
		return fmt.Sprintf("%s phase rejected (NACK)", e.Phase)
	}
	return fmt.Sprintf("%s phase: expected ACK 0x%02X, got 0x%02X", e.Phase, Ack, e.Got)
}
