package engine

import (
	"context"
	"log/slog"

	"github.com/wisp-gateway/wispd/internal/errors"
	"github.com/wisp-gateway/wispd/internal/extension"
	"github.com/wisp-gateway/wispd/internal/wire"
)

// runHandshake implements §4.6.1: send the server's INFO, receive exactly
// one client message that must parse as INFO, and negotiate the extension
// set as the intersection of what both sides advertised.
func (c *Connection) runHandshake(ctx context.Context) error {
	c.localExtensions = c.advertisedExtensions()

	info := wire.Packet{
		Type:     wire.PacketInfo,
		StreamID: 0,
		Payload: wire.InfoPayload{
			Major:      2,
			Minor:      0,
			Extensions: extension.SerializeList(c.localExtensions, extension.RoleServer),
		},
	}
	if err := c.carrier.Send(ctx, wire.EncodePacket(info)); err != nil {
		return &errors.HandshakeError{Message: "failed to send server INFO", Err: err}
	}

	data, ok := c.carrier.Receive(ctx)
	if !ok {
		return &errors.HandshakeError{Message: "carrier closed before client INFO"}
	}

	pkt, err := wire.DecodePacket(data)
	if err != nil {
		c.sendClose(ctx, 0, wire.CloseInvalidInfo)
		return &errors.HandshakeError{Message: "client INFO did not parse", Err: err}
	}
	clientInfo, ok := pkt.Payload.(wire.InfoPayload)
	if pkt.Type != wire.PacketInfo || !ok {
		c.sendClose(ctx, 0, wire.CloseInvalidInfo)
		return &errors.HandshakeError{Message: "expected INFO as the first client message"}
	}

	allowed := extension.IDSet(c.localExtensions)
	clientExts, err := extension.ParseList(clientInfo.Extensions, extension.RoleClient, allowed)
	if err != nil {
		c.sendClose(ctx, 0, wire.CloseInvalidInfo)
		return &errors.HandshakeError{Message: "client extension list did not parse", Err: err}
	}

	c.negotiatedMu.Lock()
	for id := range extension.IDSet(clientExts) {
		if allowed[id] {
			c.negotiatedIDs[id] = true
		}
	}
	c.negotiatedMu.Unlock()

	c.logger.Debug("handshake complete", slog.Int("negotiated_extensions", len(c.negotiatedIDs)))
	return nil
}

func (c *Connection) advertisedExtensions() []extension.Extension {
	var exts []extension.Extension
	if c.opts.AllowUDPStreams {
		exts = append(exts, extension.UDP{})
	}
	if c.opts.HasMOTD {
		exts = append(exts, extension.MOTD{Message: c.opts.WispMOTD})
	}
	return exts
}

func (c *Connection) hasNegotiated(id uint8) bool {
	c.negotiatedMu.RLock()
	defer c.negotiatedMu.RUnlock()
	return c.negotiatedIDs[id]
}

func (c *Connection) sendClose(ctx context.Context, streamID uint32, reason wire.CloseReason) {
	pkt := wire.Packet{Type: wire.PacketClose, StreamID: streamID, Payload: wire.ClosePayload{Reason: reason}}
	if err := c.carrier.Send(ctx, wire.EncodePacket(pkt)); err != nil {
		c.logger.Debug("close emit failed", slog.String("error", err.Error()))
	}
}
