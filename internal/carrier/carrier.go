// Package carrier implements the carrier channel adapter (§4.5): a wrapper
// around a single message-oriented bidirectional channel that applies
// backpressure against a high/low buffered-bytes watermark.
package carrier

import "context"

// DefaultHighWatermark and DefaultLowWatermark are the default backpressure
// thresholds, in bytes of outstanding (enqueued but not yet transmitted)
// payload.
const (
	DefaultHighWatermark = 32 * 1024 * 1024
	DefaultLowWatermark  = DefaultHighWatermark / 2
)

// Channel is the carrier surface the connection engine depends on. Connect
// resolves once the underlying transport reports open, or returns an error
// if it closes/errors first. Receive yields the next inbound message, or
// (nil, false) once the channel is closed. Send enqueues payload and blocks
// for backpressure per §4.5 before returning.
type Channel interface {
	Connect(ctx context.Context) error
	Receive(ctx context.Context) ([]byte, bool)
	Send(ctx context.Context, payload []byte) error
	Close() error
}
