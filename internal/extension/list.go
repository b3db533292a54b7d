package extension

import (
	"github.com/wisp-gateway/wispd/internal/wire"
)

// ParseList decodes a length-prefixed extension list (as carried in the
// remainder of an INFO packet). Each record is read in full regardless of
// whether its id is allowed, so a later unknown record never corrupts
// parsing of the rest of the list; records whose id is not in allowed (or
// not known to the local registry) are skipped rather than returned.
//
// A length that would read past the end of data is a malformed list.
func ParseList(data []byte, role Role, allowed map[uint8]bool) ([]Extension, error) {
	var out []Extension
	offset := 0
	for offset < len(data) {
		if len(data)-offset < 5 {
			return nil, &wire.ParseError{Field: "extension header", Err: wire.ErrExtensionOverrun}
		}
		buf := wire.NewBuffer(data)
		id := buf.U8(offset)
		length := int(buf.U32(offset + 1))
		offset += 5

		if length > len(data)-offset {
			return nil, &wire.ParseError{Field: "extension payload", Err: wire.ErrExtensionOverrun}
		}
		payload := data[offset : offset+length]
		offset += length

		if !allowed[id] {
			continue
		}
		entry, known := registry[id]
		if !known {
			continue
		}
		out = append(out, entry.parse(role, payload))
	}
	return out, nil
}

// SerializeList encodes exts as a length-prefixed extension list. Opaque
// extensions are re-emitted byte-for-byte; known extensions are serialized
// per role via the registry.
func SerializeList(exts []Extension, role Role) []byte {
	var bufs []wire.Buffer
	for _, ext := range exts {
		var payload []byte
		if opaque, ok := ext.(Opaque); ok {
			payload = opaque.Bytes
		} else if entry, known := registry[ext.ID()]; known {
			payload = entry.serialize(role, ext)
		}

		head := wire.ZeroBuffer(5)
		head.SetU8(0, ext.ID())
		head.SetU32(1, uint32(len(payload)))
		bufs = append(bufs, head, wire.NewBuffer(payload))
	}
	return wire.Concat(bufs...).Bytes()
}

// AllIDs returns the set of ids known to the local registry, suitable as an
// allow-list when the caller has no narrower set to enforce.
func AllIDs() map[uint8]bool {
	out := make(map[uint8]bool, len(registry))
	for id := range registry {
		out[id] = true
	}
	return out
}

// IDSet builds an allow-list map from the ids of a list of extensions
// (used by the handshake to build "ids I advertised").
func IDSet(exts []Extension) map[uint8]bool {
	out := make(map[uint8]bool, len(exts))
	for _, e := range exts {
		out[e.ID()] = true
	}
	return out
}
