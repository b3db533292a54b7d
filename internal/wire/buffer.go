// Package wire implements the Wisp frame codec: a byte-buffer abstraction
// with little-endian accessors, and the packet/extension-list encoders and
// decoders built on top of it.
package wire

import "encoding/binary"

// Buffer is a value type over a byte slice with little-endian typed
// accessors at arbitrary offsets. NewBuffer and Slice never copy; ZeroBuffer,
// EncodeString and Concat allocate new storage.
type Buffer struct {
	data []byte
}

// NewBuffer wraps an existing byte slice without copying it.
func NewBuffer(data []byte) Buffer {
	return Buffer{data: data}
}

// ZeroBuffer allocates a new zero-filled buffer of n bytes.
func ZeroBuffer(n int) Buffer {
	return Buffer{data: make([]byte, n)}
}

// Len returns the number of bytes in the buffer.
func (b Buffer) Len() int { return len(b.data) }

// Bytes returns the underlying byte slice. Callers must not retain it past
// the buffer's lifetime if the buffer is later reused.
func (b Buffer) Bytes() []byte { return b.data }

// U8 reads an unsigned byte at off.
func (b Buffer) U8(off int) uint8 { return b.data[off] }

// U16 reads a little-endian uint16 at off.
func (b Buffer) U16(off int) uint16 { return binary.LittleEndian.Uint16(b.data[off : off+2]) }

// U32 reads a little-endian uint32 at off.
func (b Buffer) U32(off int) uint32 { return binary.LittleEndian.Uint32(b.data[off : off+4]) }

// SetU8 writes an unsigned byte at off.
func (b Buffer) SetU8(off int, v uint8) { b.data[off] = v }

// SetU16 writes a little-endian uint16 at off.
func (b Buffer) SetU16(off int, v uint16) { binary.LittleEndian.PutUint16(b.data[off:off+2], v) }

// SetU32 writes a little-endian uint32 at off.
func (b Buffer) SetU32(off int, v uint32) { binary.LittleEndian.PutUint32(b.data[off:off+4], v) }

// Slice returns the sub-buffer [start, end) without copying.
func (b Buffer) Slice(start, end int) Buffer { return Buffer{data: b.data[start:end]} }

// String decodes [start, end) as UTF-8.
func (b Buffer) String(start, end int) string { return string(b.data[start:end]) }

// EncodeString returns a new buffer holding s's UTF-8 bytes.
func EncodeString(s string) Buffer { return Buffer{data: []byte(s)} }

// Concat allocates a new buffer holding the concatenation of bufs in order.
func Concat(bufs ...Buffer) Buffer {
	n := 0
	for _, b := range bufs {
		n += b.Len()
	}
	out := make([]byte, 0, n)
	for _, b := range bufs {
		out = append(out, b.data...)
	}
	return Buffer{data: out}
}
