// Package socket implements the destination socket abstraction (§4.4): a
// small capability set — hostname, port, connect, send, a receive-stream of
// byte chunks, and close — uniform across TCP and UDP destinations.
package socket

import (
	"context"
	"net"
	"strconv"

	"github.com/wisp-gateway/wispd/internal/resolver"
	"github.com/wisp-gateway/wispd/internal/wire"
)

// Socket is a connected destination endpoint. Receive returns a channel of
// chunks that is closed when the stream ends gracefully; Err reports the
// error that ended it, if any (nil on a graceful close). Implementations
// surface connect failures directly from Connect; post-connect receive
// failures terminate the receive channel and are reported by Err. Send
// returns only the error of its own write, not an earlier receive failure.
type Socket interface {
	Hostname() string
	Port() uint16
	Connect(ctx context.Context) error
	Send(chunk []byte) error
	Receive() <-chan []byte
	Err() error
	Close() error
}

// New builds the Socket implementation appropriate for kind, resolving
// hostname via res.
func New(kind wire.StreamKind, hostname string, port uint16, res *resolver.Resolver) Socket {
	switch kind {
	case wire.StreamUDP:
		return &UDPSocket{hostname: hostname, port: port, resolver: res}
	default:
		return &TCPSocket{hostname: hostname, port: port, resolver: res}
	}
}

func dialAddr(ip net.IP, port uint16) string {
	return net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))
}
