package video

import (
	"context"
	"errors"
)

// ErrSourceClosed is returned by Read after Release has been called.
var ErrSourceClosed = errors.New("frame source closed")

// FrameSource owns the connection to a live video transport and produces
// frames on demand. Implementations must bound every Read with an I/O
// deadline so a dead connection surfaces as an error instead of hanging;
// the capture worker relies on this to stay responsive to cancellation.
//
// Transport specifics (protocol, buffer sizing, timeouts) belong to the
// implementation and its configuration, not to this contract.
type FrameSource interface {
	// Connect establishes the initial connection.
	Connect(ctx context.Context) error

	// Read blocks until the next frame is available or the deadline passes.
	// The returned frame is owned by the caller.
	Read(ctx context.Context) (*Frame, error)

	// Reconnect tears down and re-establishes the connection after a read
	// failure.
	Reconnect(ctx context.Context) error

	// Release frees transport resources. Read returns ErrSourceClosed
	// afterwards.
	Release() error
}
