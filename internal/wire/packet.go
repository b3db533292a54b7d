package wire

import (
	"errors"
	"fmt"
)

// PacketType is the one-byte packet type tag.
type PacketType uint8

const (
	PacketConnect  PacketType = 0x01
	PacketData     PacketType = 0x02
	PacketContinue PacketType = 0x03
	PacketClose    PacketType = 0x04
	PacketInfo     PacketType = 0x05
)

func (t PacketType) String() string {
	switch t {
	case PacketConnect:
		return "CONNECT"
	case PacketData:
		return "DATA"
	case PacketContinue:
		return "CONTINUE"
	case PacketClose:
		return "CLOSE"
	case PacketInfo:
		return "INFO"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(t))
	}
}

// StreamKind identifies whether a stream carries TCP or UDP traffic.
type StreamKind uint8

const (
	StreamTCP StreamKind = 1
	StreamUDP StreamKind = 2
)

func (k StreamKind) String() string {
	switch k {
	case StreamTCP:
		return "tcp"
	case StreamUDP:
		return "udp"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// CloseReason is the one-byte reason code carried by a CLOSE packet.
type CloseReason uint8

const (
	CloseUnknown                CloseReason = 0x01
	CloseVoluntary              CloseReason = 0x02
	CloseNetworkError           CloseReason = 0x03
	CloseIncompatibleExtensions CloseReason = 0x04
	CloseInvalidInfo            CloseReason = 0x41
	CloseUnreachableHost        CloseReason = 0x42
	CloseNoResponse             CloseReason = 0x43
	CloseConnRefused            CloseReason = 0x44
	CloseTransferTimeout        CloseReason = 0x47
	CloseHostBlocked            CloseReason = 0x48
	CloseConnThrottled          CloseReason = 0x49
	CloseClientError            CloseReason = 0x81
	CloseAuthBadPassword        CloseReason = 0xC0
	CloseAuthBadSignature       CloseReason = 0xC1
	CloseAuthMissingCredentials CloseReason = 0xC2
)

func (r CloseReason) String() string {
	switch r {
	case CloseUnknown:
		return "Unknown"
	case CloseVoluntary:
		return "Voluntary"
	case CloseNetworkError:
		return "NetworkError"
	case CloseIncompatibleExtensions:
		return "IncompatibleExtensions"
	case CloseInvalidInfo:
		return "InvalidInfo"
	case CloseUnreachableHost:
		return "UnreachableHost"
	case CloseNoResponse:
		return "NoResponse"
	case CloseConnRefused:
		return "ConnRefused"
	case CloseTransferTimeout:
		return "TransferTimeout"
	case CloseHostBlocked:
		return "HostBlocked"
	case CloseConnThrottled:
		return "ConnThrottled"
	case CloseClientError:
		return "ClientError"
	case CloseAuthBadPassword:
		return "AuthBadPassword"
	case CloseAuthBadSignature:
		return "AuthBadSignature"
	case CloseAuthMissingCredentials:
		return "AuthMissingCredentials"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(r))
	}
}

// Parse errors. Upper layers (internal/engine) translate these into
// errors.MalformedError with operation context attached.
var (
	ErrTooShort         = errors.New("packet shorter than 5-byte header")
	ErrUnknownType      = errors.New("unknown packet type")
	ErrPayloadTooShort  = errors.New("payload shorter than minimum size for type")
	ErrExtensionOverrun = errors.New("extension length exceeds remaining buffer")
)

// ParseError wraps a parse failure with the field that failed to decode.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string { return fmt.Sprintf("wire: %s: %v", e.Field, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Payload is implemented by every packet payload type.
type Payload interface {
	encode() Buffer
}

// ConnectPayload is the CONNECT packet payload: stream kind, destination
// port, and hostname filling the remainder of the payload.
type ConnectPayload struct {
	Kind     StreamKind
	Port     uint16
	Hostname string
}

func (p ConnectPayload) encode() Buffer {
	head := ZeroBuffer(3)
	head.SetU8(0, uint8(p.Kind))
	head.SetU16(1, p.Port)
	return Concat(head, EncodeString(p.Hostname))
}

// DataPayload is the DATA packet payload: opaque bytes, possibly empty.
type DataPayload struct {
	Data []byte
}

func (p DataPayload) encode() Buffer { return NewBuffer(p.Data) }

// ContinuePayload is the CONTINUE packet payload: remaining buffer credit.
type ContinuePayload struct {
	BufferRemaining uint32
}

func (p ContinuePayload) encode() Buffer {
	buf := ZeroBuffer(4)
	buf.SetU32(0, p.BufferRemaining)
	return buf
}

// ClosePayload is the CLOSE packet payload: a one-byte reason code.
type ClosePayload struct {
	Reason CloseReason
}

func (p ClosePayload) encode() Buffer {
	buf := ZeroBuffer(1)
	buf.SetU8(0, uint8(p.Reason))
	return buf
}

// InfoPayload is the INFO packet payload: protocol major/minor and a raw,
// still-encoded extension list. internal/extension owns parsing/serializing
// the extension list itself; wire only frames it.
type InfoPayload struct {
	Major, Minor uint8
	Extensions   []byte
}

func (p InfoPayload) encode() Buffer {
	head := ZeroBuffer(2)
	head.SetU8(0, p.Major)
	head.SetU8(1, p.Minor)
	return Concat(head, NewBuffer(p.Extensions))
}

// Packet is a fully decoded Wisp packet.
type Packet struct {
	Type     PacketType
	StreamID uint32
	Payload  Payload
}

// EncodePacket serializes a packet: one type byte, four-byte little-endian
// stream id, then the payload.
func EncodePacket(p Packet) []byte {
	header := ZeroBuffer(5)
	header.SetU8(0, uint8(p.Type))
	header.SetU32(1, p.StreamID)
	return Concat(header, p.Payload.encode()).Bytes()
}

// DecodePacket parses a complete packet from data. It requires at least 5
// bytes for the header and enforces each packet type's minimum payload size.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < 5 {
		return Packet{}, &ParseError{Field: "header", Err: ErrTooShort}
	}
	buf := NewBuffer(data)
	typ := PacketType(buf.U8(0))
	streamID := buf.U32(1)
	payload := data[5:]

	parsed, err := parsePayload(typ, payload)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Type: typ, StreamID: streamID, Payload: parsed}, nil
}

func parsePayload(typ PacketType, payload []byte) (Payload, error) {
	switch typ {
	case PacketConnect:
		if len(payload) < 3 {
			return nil, &ParseError{Field: "connect payload", Err: ErrPayloadTooShort}
		}
		buf := NewBuffer(payload)
		return ConnectPayload{
			Kind:     StreamKind(buf.U8(0)),
			Port:     buf.U16(1),
			Hostname: buf.String(3, len(payload)),
		}, nil

	case PacketData:
		return DataPayload{Data: payload}, nil

	case PacketContinue:
		if len(payload) < 4 {
			return nil, &ParseError{Field: "continue payload", Err: ErrPayloadTooShort}
		}
		return ContinuePayload{BufferRemaining: NewBuffer(payload).U32(0)}, nil

	case PacketClose:
		if len(payload) < 1 {
			return nil, &ParseError{Field: "close payload", Err: ErrPayloadTooShort}
		}
		return ClosePayload{Reason: CloseReason(payload[0])}, nil

	case PacketInfo:
		if len(payload) < 2 {
			return nil, &ParseError{Field: "info payload", Err: ErrPayloadTooShort}
		}
		return InfoPayload{Major: payload[0], Minor: payload[1], Extensions: payload[2:]}, nil

	default:
		return nil, &ParseError{Field: "type", Err: ErrUnknownType}
	}
}
