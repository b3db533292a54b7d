package socket

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/wisp-gateway/wispd/internal/errors"
	"github.com/wisp-gateway/wispd/internal/resolver"
)

// TCPSocket resolves hostname via the DNS façade, disables Nagle, connects,
// and exposes the connection's byte stream as chunks of up to 16 KiB, each
// holding whatever a single read returned.
type TCPSocket struct {
	hostname string
	port     uint16
	resolver *resolver.Resolver

	conn    net.Conn
	recvCh  chan []byte
	errMu   sync.Mutex
	lastErr error
}

func (s *TCPSocket) Hostname() string { return s.hostname }
func (s *TCPSocket) Port() uint16     { return s.port }

func (s *TCPSocket) Connect(ctx context.Context) error {
	ip, err := s.resolver.LookupIP(ctx, s.hostname)
	if err != nil {
		return &errors.NetworkError{Operation: "resolve", Host: s.hostname, Port: s.port, Err: err}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", dialAddr(ip, s.port))
	if err != nil {
		return &errors.NetworkError{Operation: "connect", Host: s.hostname, Port: s.port, Err: err}
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := setNoDelay(tcpConn); err != nil {
			_ = conn.Close()
			return &errors.NetworkError{Operation: "set TCP_NODELAY", Host: s.hostname, Port: s.port, Err: err}
		}
	}

	s.conn = conn
	s.recvCh = make(chan []byte, 4)
	go s.pumpReceive()
	return nil
}

func (s *TCPSocket) pumpReceive() {
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

func (s *TCPSocket) Send(chunk []byte) error {
	_, err := s.conn.Write(chunk)
	if err != nil {
		netErr := &errors.NetworkError{Operation: "send", Host: s.hostname, Port: s.port, Err: err}
		s.setErr(netErr)
		return netErr
	}
	return nil
}

func (s *TCPSocket) Receive() <-chan []byte { return s.recvCh }

func (s *TCPSocket) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

func (s *TCPSocket) setErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

func (s *TCPSocket) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
