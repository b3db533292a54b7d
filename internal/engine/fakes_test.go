package engine

import (
	"context"
	"sync/atomic"

	"github.com/wisp-gateway/wispd/internal/socket"
)

// fakeChannel is an in-memory carrier.Channel pair connecting a simulated
// client driver directly to the engine under test, with no real network.
type fakeChannel struct {
	out    chan []byte
	in     chan []byte
	closed atomic.Bool
}

func newFakeChannelPair() (server, driver *fakeChannel) {
	c1 := make(chan []byte, 32)
	c2 := make(chan []byte, 32)
	server = &fakeChannel{out: c1, in: c2}
	driver = &fakeChannel{out: c2, in: c1}
	return
}

func (f *fakeChannel) Connect(ctx context.Context) error { return nil }

func (f *fakeChannel) Send(ctx context.Context, payload []byte) error {
	if f.closed.Load() {
		return errClosedChannel
	}
	select {
	case f.out <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeChannel) Receive(ctx context.Context) ([]byte, bool) {
	select {
	case data, ok := <-f.in:
		return data, ok
	case <-ctx.Done():
		return nil, false
	}
}

func (f *fakeChannel) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		close(f.out)
	}
	return nil
}

var errClosedChannel = &fakeChannelClosedError{}

type fakeChannelClosedError struct{}

func (*fakeChannelClosedError) Error() string { return "fake channel closed" }

// fakeSocket is an in-memory socket.Socket double: Send captures outgoing
// chunks on sentCh, and the test drives inbound chunks by writing to
// recvCh directly (closing it to simulate a graceful destination end).
type fakeSocket struct {
	connectErr error

	recvCh chan []byte
	sentCh chan []byte

	err    atomic.Value
	closed atomic.Bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{recvCh: make(chan []byte, 16), sentCh: make(chan []byte, 16)}
}

func (f *fakeSocket) Hostname() string { return "" }
func (f *fakeSocket) Port() uint16     { return 0 }

func (f *fakeSocket) Connect(ctx context.Context) error { return f.connectErr }

func (f *fakeSocket) Send(chunk []byte) error {
	cp := append([]byte(nil), chunk...)
	f.sentCh <- cp
	return nil
}

func (f *fakeSocket) Receive() <-chan []byte { return f.recvCh }

func (f *fakeSocket) Err() error {
	e, _ := f.err.Load().(error)
	return e
}

func (f *fakeSocket) Close() error {
	f.closed.Store(true)
	return nil
}

var _ socket.Socket = (*fakeSocket)(nil)
