package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wisp-gateway/wispd/internal/errors"
	"github.com/wisp-gateway/wispd/internal/wire"
)

// recoverPump implements §7's pump-internal-error handling: a panic inside
// either direction's pump is logged and closes only the affected stream,
// leaving the rest of the connection to run.
func (c *Connection) recoverPump(operation string, s *Stream) {
	if r := recover(); r != nil {
		internalErr := &errors.InternalError{Operation: operation, Err: fmt.Errorf("%v", r)}
		c.logger.Error(internalErr.Error(), slog.Uint64("stream_id", uint64(s.id)))
		c.teardownStream(s, wire.CloseNetworkError, true)
	}
}

// targetToCarrierPump implements §4.6.3's target→carrier direction: iterate
// the destination socket's receive-stream, wrap each chunk in a DATA
// packet, and send it. A carrier send failure is fatal to the whole
// connection per §7; a graceful socket end tears down just this stream.
func (c *Connection) targetToCarrierPump(s *Stream) {
	defer c.recoverPump("target-to-carrier pump", s)
	for chunk := range s.sock.Receive() {
		pkt := wire.Packet{Type: wire.PacketData, StreamID: s.id, Payload: wire.DataPayload{Data: chunk}}
		if err := c.carrier.Send(context.Background(), wire.EncodePacket(pkt)); err != nil {
			c.logger.Warn("carrier send failed, tearing down connection",
				slog.Uint64("stream_id", uint64(s.id)), slog.String("error", err.Error()))
			c.teardownConnection()
			return
		}
	}

	if err := s.sock.Err(); err != nil {
		c.logger.Debug("destination receive ended with error",
			slog.Uint64("stream_id", uint64(s.id)), slog.String("error", err.Error()))
		c.teardownStream(s, wire.CloseNetworkError, true)
		return
	}
	c.teardownStream(s, wire.CloseVoluntary, true)
}

// carrierToTargetPump implements §4.6.3's carrier→target direction: drain
// the per-stream buffer, write each chunk to the destination socket, and
// issue a CONTINUE every B/2 sends reporting the remaining credit.
func (c *Connection) carrierToTargetPump(s *Stream) {
	defer c.recoverPump("carrier-to-target pump", s)
	var sent uint64
	for chunk := range s.buffer {
		if err := s.sock.Send(chunk); err != nil {
			c.logger.Warn("destination send failed",
				slog.Uint64("stream_id", uint64(s.id)), slog.String("error", err.Error()))
			c.teardownStream(s, wire.CloseNetworkError, true)
			return
		}
		sent++
		if sent%(StreamBufferCapacity/2) == 0 {
			credit := uint32(StreamBufferCapacity - s.bufferDepth())
			pkt := wire.Packet{Type: wire.PacketContinue, StreamID: s.id, Payload: wire.ContinuePayload{BufferRemaining: credit}}
			if err := c.carrier.Send(context.Background(), wire.EncodePacket(pkt)); err != nil {
				c.logger.Warn("carrier send failed, tearing down connection",
					slog.Uint64("stream_id", uint64(s.id)), slog.String("error", err.Error()))
				c.teardownConnection()
				return
			}
		}
	}
}
