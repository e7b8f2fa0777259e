package modbus

import (
	"errors"
	"fmt"
)

// Domain-specific errors for Modbus operations.
// Use errors.Is() to check for these errors in calling code.
//
// The exact error strings below are load-bearing beyond logging: the
// conflict monitor in internal/bridge matches substrings of read-failure
// text to recognise a competing client. Change them in step.
var (
	// ErrConnectionFailed is returned when the initial dial fails.
	ErrConnectionFailed = errors.New("modbus: connection failed")

	// ErrNotConnected is returned when attempting a transaction on a dead connection.
	ErrNotConnected = errors.New("modbus: not connected")

	// ErrNoResponse is returned when the unit does not answer within the
	// read timeout. With the SDongle this is the classic symptom of a
	// second client having stolen the session.
	ErrNoResponse = errors.New("modbus: no response within read timeout")

	// ErrClosedMidRequest is returned when the peer closes the connection
	// between request and reply.
	ErrClosedMidRequest = errors.New("modbus: connection closed mid-request")

	// ErrTransactionMismatch is returned when a reply carries an
	// unexpected transaction or unit identifier, meaning replies are crossing
	// between clients.
	ErrTransactionMismatch = errors.New("modbus: transaction id mismatch")

	// ErrInvalidResponse is returned for malformed frames.
	ErrInvalidResponse = errors.New("modbus: invalid response")
)

// ExceptionError represents a Modbus exception response from the unit.
type ExceptionError struct {
	Function byte
	Code     byte
}

// Error implements the error interface.
func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus: exception 0x%02X (%s) for function 0x%02X",
		e.Code, exceptionName(e.Code), e.Function)
}

// exceptionName maps common Modbus exception codes to readable names.
func exceptionName(code byte) string {
	switch code {
	case 0x01:
		return "illegal function"
	case 0x02:
		return "illegal data address"
	case 0x03:
		return "illegal data value"
	case 0x04:
		return "slave device failure"
	case 0x05:
		return "acknowledge"
	case 0x06:
		return "slave device busy"
	case 0x0B:
		return "gateway target failed to respond"
	default:
		return "unknown"
	}
}
