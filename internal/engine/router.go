package engine

import (
	"context"
	"log/slog"

	"github.com/wisp-gateway/wispd/internal/errors"
	"github.com/wisp-gateway/wispd/internal/policy"
	"github.com/wisp-gateway/wispd/internal/wire"
)

// handlePacket implements §4.6.2's dispatch by packet type.
func (c *Connection) handlePacket(ctx context.Context, pkt wire.Packet) {
	switch pkt.Type {
	case wire.PacketConnect:
		c.handleConnect(ctx, pkt)
	case wire.PacketData:
		c.handleData(pkt)
	case wire.PacketContinue:
		protoErr := &errors.ProtocolError{Operation: "client packet dispatch", Message: "client sent CONTINUE"}
		c.logger.Warn(protoErr.Error(), slog.Uint64("stream_id", uint64(pkt.StreamID)))
	case wire.PacketClose:
		c.handleClose(pkt)
	default:
		c.logger.Warn("dropping packet of unexpected type", slog.String("type", pkt.Type.String()))
	}
}

func (c *Connection) handleConnect(ctx context.Context, pkt wire.Packet) {
	connect, ok := pkt.Payload.(wire.ConnectPayload)
	if !ok {
		c.logger.Warn("malformed CONNECT payload", slog.Uint64("stream_id", uint64(pkt.StreamID)))
		return
	}

	sock := c.newSocket(connect.Kind, connect.Hostname, connect.Port)
	s := newStream(pkt.StreamID, connect.Hostname, connect.Kind, c, sock)
	c.addStream(s)

	go c.setupStream(ctx, s, connect.Port)
}

// setupStream evaluates destination policy and connects the socket as a
// background task (§4.6.2 "enqueue a background task"), then spawns the
// stream's two pumps on success.
func (c *Connection) setupStream(ctx context.Context, s *Stream, port uint16) {
	reason := policy.IsStreamAllowed(ctx, c.opts, c.resolver, c, s.kind, s.hostname, port)
	if reason != policy.Allowed {
		policyErr := &errors.PolicyError{Reason: reason, Detail: s.hostname}
		c.logger.Warn(policyErr.Error(), slog.Uint64("stream_id", uint64(s.id)))
		c.teardownStream(s, reason, true)
		return
	}

	if err := s.sock.Connect(ctx); err != nil {
		c.logger.Warn("destination connect failed",
			slog.Uint64("stream_id", uint64(s.id)), slog.String("error", err.Error()))
		c.teardownStream(s, wire.CloseNetworkError, true)
		return
	}

	go c.targetToCarrierPump(s)
	go c.carrierToTargetPump(s)
}

func (c *Connection) handleData(pkt wire.Packet) {
	s, ok := c.lookupStream(pkt.StreamID)
	if !ok {
		c.logger.Debug("DATA for unknown stream, dropping", slog.Uint64("stream_id", uint64(pkt.StreamID)))
		return
	}
	data, ok := pkt.Payload.(wire.DataPayload)
	if !ok {
		c.logger.Warn("malformed DATA payload", slog.Uint64("stream_id", uint64(pkt.StreamID)))
		return
	}
	s.pushData(data.Data)
}

func (c *Connection) handleClose(pkt wire.Packet) {
	s, ok := c.lookupStream(pkt.StreamID)
	if !ok {
		return
	}
	closePayload, ok := pkt.Payload.(wire.ClosePayload)
	reason := wire.CloseVoluntary
	if ok {
		reason = closePayload.Reason
	}
	c.logger.Debug("client closed stream", slog.Uint64("stream_id", uint64(s.id)), slog.String("reason", reason.String()))
	c.teardownStream(s, 0, false)
}
