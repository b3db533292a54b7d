// Package errors defines the typed error kinds used throughout the Wisp
// engine.
//
// Each kind carries operation context and, where available, the underlying
// cause, so callers can log an actionable message and so errors.Is/As chains
// still work through Unwrap. This mirrors the teacher package's shape
// (struct-per-kind, Operation/Err fields) but the kinds themselves are the
// ones the engine actually raises: Malformed, Policy, Network, Protocol,
// Handshake, Internal.
package errors

import (
	"fmt"

	"github.com/wisp-gateway/wispd/internal/wire"
)

// MalformedError represents bad wire framing: truncated packets, unknown
// packet types, or extension lists that overrun the buffer.
type MalformedError struct {
	// Operation describes what was being parsed (e.g. "packet header", "extension list").
	Operation string

	// Err is the underlying cause, if any.
	Err error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("malformed %s", e.Operation)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// PolicyError represents a destination-policy denial: a blocked host, a
// disabled stream kind, or an exhausted quota.
type PolicyError struct {
	// Reason is the close reason code that will be sent to the client.
	Reason wire.CloseReason

	// Detail explains which rule produced the denial.
	Detail string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("destination policy denied (%s): %s", e.Reason, e.Detail)
}

// NetworkError represents a failure reaching or using a destination socket:
// DNS failure, connect failure, or a read/write error on an established
// socket.
type NetworkError struct {
	// Operation describes the network operation that failed (e.g. "dial", "dns lookup").
	Operation string

	// Host and Port identify the destination, when known.
	Host string
	Port uint16

	// Err is the underlying cause.
	Err error
}

func (e *NetworkError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("network error during %s to %s:%d: %v", e.Operation, e.Host, e.Port, e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError represents a peer violating the protocol in a way that is
// not fatal to the connection: an unexpected CONTINUE, an INFO packet on a
// v1 session, or a handshake packet out of sequence.
type ProtocolError struct {
	// Operation describes what was being processed when the violation was observed.
	Operation string

	// Message describes the violation.
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation during %s: %s", e.Operation, e.Message)
}

// HandshakeError represents a failure during the version-2 capability
// handshake: a malformed INFO packet, or the carrier closing before the
// client's INFO arrives. It is always fatal to the connection.
type HandshakeError struct {
	// Message describes why the handshake failed.
	Message string

	// Err is the underlying cause, if any (e.g. a carrier read error).
	Err error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("handshake failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("handshake failed: %s", e.Message)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// InternalError represents an unexpected failure inside a pump or other
// engine-internal task that is not attributable to the peer or the
// destination: a bug surface, not a protocol or network condition.
type InternalError struct {
	// Operation describes what the engine was doing.
	Operation string

	// Err is the underlying cause.
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error during %s: %v", e.Operation, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }
