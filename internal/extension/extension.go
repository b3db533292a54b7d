// Package extension implements the Wisp capability-extension registry: the
// tagged variant of known extensions (UDP availability, server MOTD) plus
// an Opaque fallback, and the generic length-prefixed extension-list codec
// built on top of internal/wire.
//
// This replaces the source's "per-extension record carrying its own
// parse/serialize closures" with a static table of (id, parser,
// serializer) pairs, per the redesign note in the distilled spec.
package extension

import (
	"github.com/wisp-gateway/wispd/internal/wire"
)

// Role distinguishes which side of the handshake an extension payload was
// encoded for, since UDP and MOTD have different (empty vs non-empty)
// payload shapes depending on who sends them.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

// Known extension ids.
const (
	IDUDP  uint8 = 0x01
	IDMOTD uint8 = 0x04
)

// Extension is implemented by every known capability record and by Opaque.
type Extension interface {
	ID() uint8
}

// UDP advertises that the sender supports UDP streams. Its payload is empty
// from both roles.
type UDP struct{}

func (UDP) ID() uint8 { return IDUDP }

// MOTD carries a server message of the day. The server payload is the
// UTF-8 message; the client payload is always empty (MOTD is server→client
// only).
type MOTD struct {
	Message string
}

func (MOTD) ID() uint8 { return IDMOTD }

// Opaque carries an extension id the local registry does not know, for
// serialization: SerializeList emits its bytes verbatim. ParseList never
// produces an Opaque; it skips unknown ids.
type Opaque struct {
	IDValue uint8
	Bytes   []byte
}

func (o Opaque) ID() uint8 { return o.IDValue }

type parseFunc func(role Role, payload []byte) Extension
type serializeFunc func(role Role, ext Extension) []byte

type registryEntry struct {
	parse     parseFunc
	serialize serializeFunc
}

var registry = map[uint8]registryEntry{
	IDUDP: {
		parse:     func(Role, []byte) Extension { return UDP{} },
		serialize: func(Role, Extension) []byte { return nil },
	},
	IDMOTD: {
		parse: func(role Role, payload []byte) Extension {
			if role == RoleServer {
				return MOTD{Message: wire.NewBuffer(payload).String(0, len(payload))}
			}
			return MOTD{}
		},
		serialize: func(role Role, ext Extension) []byte {
			if role != RoleServer {
				return nil
			}
			m, _ := ext.(MOTD)
			return wire.EncodeString(m.Message).Bytes()
		},
	},
}
