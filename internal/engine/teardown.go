package engine

import (
	"context"
	"log/slog"

	"github.com/wisp-gateway/wispd/internal/wire"
)

// teardownStream implements §4.6.4: idempotent, marks the stream terminal,
// ends its buffer (releasing the carrier→target pump), closes the
// destination socket (releasing the target→carrier pump), optionally emits
// a CLOSE, and removes the stream from the table.
func (c *Connection) teardownStream(s *Stream, reason wire.CloseReason, emitClose bool) {
	s.closeOnce.Do(func() {
		s.terminal.Store(true)
		close(s.buffer)
		if err := s.sock.Close(); err != nil {
			c.logger.Debug("socket close", slog.Uint64("stream_id", uint64(s.id)), slog.String("error", err.Error()))
		}
		if emitClose {
			pkt := wire.Packet{Type: wire.PacketClose, StreamID: s.id, Payload: wire.ClosePayload{Reason: reason}}
			if err := c.carrier.Send(context.Background(), wire.EncodePacket(pkt)); err != nil {
				c.logger.Debug("close emit failed", slog.Uint64("stream_id", uint64(s.id)), slog.String("error", err.Error()))
			}
		}
	})
	c.removeStream(s.id)
}
