package carrier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/wisp-gateway/wispd/internal/errors"
)

// WSChannel adapts a nhooyr.io/websocket connection to Channel. The library
// has no bufferedAmount accessor the way a browser RTCDataChannel does, so
// the adapter tracks it itself: bufferedBytes is incremented in Send before
// handing payload to the write queue, and decremented by the single writer
// goroutine after each write completes.
type WSChannel struct {
	conn *websocket.Conn

	writeQueue chan []byte
	stopCh     chan struct{}
	writerDone chan struct{}
	writeErr   atomic.Value // error

	bufferedBytes atomic.Int64
	recvClosed    atomic.Bool

	closeOnce sync.Once

	highWatermark int64
	lowWatermark  int64
	pollInterval  time.Duration
	yieldInterval time.Duration
}

// NewWSChannel wraps an already-accepted websocket connection.
func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{
		conn:          conn,
		writeQueue:    make(chan []byte, 64),
		stopCh:        make(chan struct{}),
		writerDone:    make(chan struct{}),
		highWatermark: DefaultHighWatermark,
		lowWatermark:  DefaultLowWatermark,
		pollInterval:  20 * time.Millisecond,
		yieldInterval: time.Millisecond,
	}
}

// Connect starts the single writer goroutine. The underlying handshake has
// already completed by the time a *websocket.Conn exists (it is produced by
// websocket.Accept), so this only wires up internal plumbing.
func (c *WSChannel) Connect(ctx context.Context) error {
	go c.runWriter()
	return nil
}

func (c *WSChannel) runWriter() {
	defer close(c.writerDone)
	for {
		select {
		case payload := <-c.writeQueue:
			err := c.conn.Write(context.Background(), websocket.MessageBinary, payload)
			c.bufferedBytes.Add(-int64(len(payload)))
			if err != nil {
				c.writeErr.Store(err)
				return
			}
		case <-c.stopCh:
			return
		}
	}
}

// Send enqueues payload for transmission, then observes bufferedBytes and
// applies the watermark policy from §4.5 before returning.
func (c *WSChannel) Send(ctx context.Context, payload []byte) error {
	if err, ok := c.writeErr.Load().(error); ok {
		return &errors.NetworkError{Operation: "carrier send", Err: err}
	}
	select {
	case <-c.stopCh:
		return &errors.NetworkError{Operation: "carrier send", Err: websocket.CloseError{Code: websocket.StatusNormalClosure}}
	default:
	}

	c.bufferedBytes.Add(int64(len(payload)))
	select {
	case c.writeQueue <- payload:
	case <-c.stopCh:
		c.bufferedBytes.Add(-int64(len(payload)))
		return &errors.NetworkError{Operation: "carrier send", Err: websocket.CloseError{Code: websocket.StatusNormalClosure}}
	case <-ctx.Done():
		c.bufferedBytes.Add(-int64(len(payload)))
		return ctx.Err()
	}

	if c.bufferedBytes.Load() > c.highWatermark {
		for c.bufferedBytes.Load() > c.lowWatermark {
			select {
			case <-time.After(c.pollInterval):
			case <-c.stopCh:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if c.bufferedBytes.Load() > c.lowWatermark {
		select {
		case <-time.After(c.yieldInterval):
		case <-c.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err, ok := c.writeErr.Load().(error); ok {
		return &errors.NetworkError{Operation: "carrier send", Err: err}
	}
	return nil
}

// Receive returns the next inbound binary message, or (nil, false) once the
// connection is closed.
func (c *WSChannel) Receive(ctx context.Context) ([]byte, bool) {
	if c.recvClosed.Load() {
		return nil, false
	}
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		c.recvClosed.Store(true)
		return nil, false
	}
	return data, true
}

func (c *WSChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.writerDone
		err = c.conn.Close(websocket.StatusNormalClosure, "")
	})
	return err
}
