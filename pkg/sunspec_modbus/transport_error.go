package sunspec_modbus

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/simonvetter/modbus"
)

var errShortResponse = errors.New("short response")

type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureConnect
	FailureSend
	FailureReceive
	FailureTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailureConnect:
		return "connect"
	case FailureSend:
		return "send"
	case FailureReceive:
		return "receive"
	case FailureTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TransportError is returned by register sources when a read fails on the wire.
type TransportError struct {
	Kind    FailureKind
	Address uint16
	Count   uint16
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("modbus %s error reading %d registers at %d: %v", e.Kind, e.Count, e.Address, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FailureKindOf returns the kind of the first TransportError in err's chain.
func FailureKindOf(err error) FailureKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return FailureUnknown
}

func classifyError(err error) FailureKind {
	if errors.Is(err, modbus.ErrRequestTimedOut) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return FailureConnect
		case "write":
			return FailureSend
		case "read":
			return FailureReceive
		}
	}
	switch {
	case errors.Is(err, syscall.EPIPE):
		return FailureSend
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, errShortResponse),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, modbus.ErrShortFrame),
		errors.Is(err, modbus.ErrProtocolError),
		errors.Is(err, modbus.ErrBadTransactionId),
		errors.Is(err, modbus.ErrBadUnitId),
		errors.Is(err, modbus.ErrUnknownProtocolId):
		return FailureReceive
	}
	return FailureUnknown
}
