package socket

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/wisp-gateway/wispd/internal/clock"
	"github.com/wisp-gateway/wispd/internal/config"
	"github.com/wisp-gateway/wispd/internal/resolver"
	"github.com/wisp-gateway/wispd/internal/wire"
)

func loopbackResolver(t *testing.T) *resolver.Resolver {
	t.Helper()
	opts, err := config.New(config.WithDNSCustomFunc(func(ctx context.Context, hostname string) (net.IP, error) {
		return net.ParseIP("127.0.0.1"), nil
	}))
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	return resolver.New(opts, clock.Real{})
}

func TestTCPSocketRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		conn.Write(buf)
	}()

	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	s := New(wire.StreamTCP, "loopback.test", port, loopbackResolver(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()

	if err := s.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case chunk := <-s.Receive():
		if string(chunk) != "hello" {
			t.Fatalf("got %q, want %q", chunk, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	<-serverDone
}

func TestTCPSocketConnectFailureSurfacesImmediately(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	ln.Close() // nothing listening now

	s := New(wire.StreamTCP, "loopback.test", port, loopbackResolver(t))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err == nil {
		t.Fatal("expected connect error against closed listener")
	}
}

func TestUDPSocketRoundTrip(t *testing.T) {
	serverConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer serverConn.Close()

	go func() {
		buf := make([]byte, 1024)
		n, addr, err := serverConn.ReadFrom(buf)
		if err != nil {
			return
		}
		serverConn.WriteTo(buf[:n], addr)
	}()

	port := uint16(serverConn.LocalAddr().(*net.UDPAddr).Port)
	s := New(wire.StreamUDP, "loopback.test", port, loopbackResolver(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()

	if err := s.Send([]byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case chunk := <-s.Receive():
		if string(chunk) != "ping" {
			t.Fatalf("got %q, want %q", chunk, "ping")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}
