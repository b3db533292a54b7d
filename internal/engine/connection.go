// Package engine implements the connection engine (§4.6): per-connection
// handshake, packet routing, and the per-stream pump goroutines that move
// bytes between the carrier and destination sockets.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wisp-gateway/wispd/internal/carrier"
	"github.com/wisp-gateway/wispd/internal/config"
	"github.com/wisp-gateway/wispd/internal/errors"
	"github.com/wisp-gateway/wispd/internal/extension"
	"github.com/wisp-gateway/wispd/internal/resolver"
	"github.com/wisp-gateway/wispd/internal/socket"
	"github.com/wisp-gateway/wispd/internal/wire"
)

// socketFactory builds the destination socket for a CONNECT request. A
// field (rather than a direct call to socket.New) so tests can substitute
// an in-memory double without a real network.
type socketFactory func(kind wire.StreamKind, hostname string, port uint16) socket.Socket

// StreamBufferCapacity is B, the per-stream buffer depth bound (§3
// invariants): CONTINUE credit always reports B minus the current depth.
const StreamBufferCapacity = 128

// Connection is one accepted carrier's connection-level state: the stream
// table, negotiated extensions, and the collaborators (options, resolver,
// logger) shared read-only across every connection per §5.
type Connection struct {
	id       uint64
	carrier  carrier.Channel
	opts     *config.Options
	resolver *resolver.Resolver
	logger   *slog.Logger

	version int

	localExtensions []extension.Extension
	negotiatedIDs   map[uint8]bool // extensions both sides advertised
	negotiatedMu    sync.RWMutex

	streamsMu sync.Mutex
	streams   map[uint32]*Stream

	newSocket socketFactory

	torndown atomic.Bool
}

// New builds a Connection wrapping an already-open carrier.
func New(id uint64, ch carrier.Channel, opts *config.Options, res *resolver.Resolver, logger *slog.Logger) *Connection {
	return &Connection{
		id:            id,
		carrier:       ch,
		opts:          opts,
		resolver:      res,
		logger:        logger.With(slog.Uint64("conn_id", id)),
		version:       opts.WispVersion,
		negotiatedIDs: make(map[uint8]bool),
		streams:       make(map[uint32]*Stream),
		newSocket: func(kind wire.StreamKind, hostname string, port uint16) socket.Socket {
			return socket.New(kind, hostname, port, res)
		},
	}
}

// Run drives the connection's lifecycle: handshake (if v2), the initial
// CONTINUE on stream 0, then the packet-reader loop, until the carrier
// closes or a fatal error occurs. It always returns after full teardown.
func (c *Connection) Run(ctx context.Context) {
	defer c.teardownConnection()

	if c.version >= 2 {
		if err := c.runHandshake(ctx); err != nil {
			c.logger.Warn("handshake failed", slog.String("error", err.Error()))
			return
		}
	}

	initialContinue := wire.Packet{
		Type:     wire.PacketContinue,
		StreamID: 0,
		Payload:  wire.ContinuePayload{BufferRemaining: StreamBufferCapacity},
	}
	if err := c.carrier.Send(ctx, wire.EncodePacket(initialContinue)); err != nil {
		c.logger.Warn("failed to send initial continue", slog.String("error", err.Error()))
		return
	}

	c.readLoop(ctx)
}

func (c *Connection) readLoop(ctx context.Context) {
	for {
		data, ok := c.carrier.Receive(ctx)
		if !ok {
			return
		}
		pkt, err := wire.DecodePacket(data)
		if err != nil {
			malformed := &errors.MalformedError{Operation: "packet decode", Err: err}
			c.logger.Warn("malformed packet", slog.String("error", malformed.Error()))
			continue
		}
		c.handlePacket(ctx, pkt)
	}
}

// StreamCount and StreamCountForHost implement policy.StreamLister.
func (c *Connection) StreamCount() int {
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	return len(c.streams)
}

func (c *Connection) StreamCountForHost(hostname string) int {
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	n := 0
	for _, s := range c.streams {
		if s.hostname == hostname {
			n++
		}
	}
	return n
}

func (c *Connection) addStream(s *Stream) {
	c.streamsMu.Lock()
	c.streams[s.id] = s
	c.streamsMu.Unlock()
}

func (c *Connection) lookupStream(id uint32) (*Stream, bool) {
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	s, ok := c.streams[id]
	return s, ok
}

func (c *Connection) removeStream(id uint32) {
	c.streamsMu.Lock()
	delete(c.streams, id)
	c.streamsMu.Unlock()
}

func (c *Connection) snapshotStreams() []*Stream {
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	out := make([]*Stream, 0, len(c.streams))
	for _, s := range c.streams {
		out = append(out, s)
	}
	return out
}

// teardownConnection tears down every live stream (without emitting CLOSE,
// since the carrier that would carry it is already gone or going) and
// closes the carrier. Idempotent.
func (c *Connection) teardownConnection() {
	if !c.torndown.CompareAndSwap(false, true) {
		return
	}
	for _, s := range c.snapshotStreams() {
		c.teardownStream(s, 0, false)
	}
	if err := c.carrier.Close(); err != nil {
		c.logger.Debug("carrier close", slog.String("error", err.Error()))
	}
}
