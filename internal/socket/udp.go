package socket

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/wisp-gateway/wispd/internal/errors"
	"github.com/wisp-gateway/wispd/internal/resolver"
)

// UDPSocket connects a datagram socket to the resolved destination address
// and surfaces each inbound datagram as a discrete chunk.
type UDPSocket struct {
	hostname string
	port     uint16
	resolver *resolver.Resolver

	conn    *net.UDPConn
	recvCh  chan []byte
	errMu   sync.Mutex
	lastErr error
}

func (s *UDPSocket) Hostname() string { return s.hostname }
func (s *UDPSocket) Port() uint16     { return s.port }

func (s *UDPSocket) Connect(ctx context.Context) error {
	ip, err := s.resolver.LookupIP(ctx, s.hostname)
	if err != nil {
		return &errors.NetworkError{Operation: "resolve", Host: s.hostname, Port: s.port, Err: err}
	}

	raddr := &net.UDPAddr{IP: ip, Port: int(s.port)}
	conn, err := net.DialUDP(udpNetwork(ip), nil, raddr)
	if err != nil {
		return &errors.NetworkError{Operation: "connect", Host: s.hostname, Port: s.port, Err: err}
	}

	s.conn = conn
	s.recvCh = make(chan []byte, 4)
	go s.pumpReceive()
	return nil
}

func udpNetwork(ip net.IP) string {
	if ip.To4() != nil {
		return "udp4"
	}
	return "udp6"
}

func (s *UDPSocket) pumpReceive() {
	defer close(s.recvCh)
	for {
		bufPtr := getChunkBuf()
		buf := *bufPtr
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			putChunkBuf(bufPtr)
			s.recvCh <- chunk
		} else {
			putChunkBuf(bufPtr)
		}
		if err != nil {
			if err != io.EOF {
				s.setErr(&errors.NetworkError{Operation: "receive", Host: s.hostname, Port: s.port, Err: err})
			}
			return
		}
	}
}

// Send transmits chunk as a single datagram.
func (s *UDPSocket) Send(chunk []byte) error {
	_, err := s.conn.Write(chunk)
	if err != nil {
		netErr := &errors.NetworkError{Operation: "send", Host: s.hostname, Port: s.port, Err: err}
		s.setErr(netErr)
		return netErr
	}
	return nil
}

func (s *UDPSocket) Receive() <-chan []byte { return s.recvCh }

func (s *UDPSocket) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

func (s *UDPSocket) setErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

func (s *UDPSocket) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
