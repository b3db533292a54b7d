package engine

import (
	"sync"
	"sync/atomic"

	"github.com/wisp-gateway/wispd/internal/socket"
	"github.com/wisp-gateway/wispd/internal/wire"
)

// Stream is one multiplexed stream's engine-side state: the destination
// socket and the bounded client→target buffer the carrier→target pump
// drains. buffer is single-producer (the packet reader, via pushData) and
// single-consumer (the carrier→target pump) per §5.
type Stream struct {
	id       uint32
	hostname string
	kind     wire.StreamKind
	conn     *Connection
	sock     socket.Socket

	buffer chan []byte

	terminal  atomic.Bool
	closeOnce sync.Once
}

func newStream(id uint32, hostname string, kind wire.StreamKind, conn *Connection, sock socket.Socket) *Stream {
	return &Stream{
		id:       id,
		hostname: hostname,
		kind:     kind,
		conn:     conn,
		sock:     sock,
		buffer:   make(chan []byte, StreamBufferCapacity),
	}
}

// pushData enqueues client→target bytes. Returns false if the stream is
// already terminal (the packet belongs to a stream mid-teardown; caller
// should drop it silently, matching §4.6.2's "look up the stream by id; if
// absent, log and drop").
func (s *Stream) pushData(chunk []byte) bool {
	if s.terminal.Load() {
		return false
	}
	defer func() {
		// buffer may have been closed by a concurrent teardown between the
		// terminal check above and this send; recover rather than propagate
		// a panic across a single malformed-timing race.
		recover()
	}()
	s.buffer <- chunk
	return true
}

// bufferDepth reports the current queued-entry count, for CONTINUE credit
// (B − current-depth).
func (s *Stream) bufferDepth() int {
	return len(s.buffer)
}
