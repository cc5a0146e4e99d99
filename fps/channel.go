package fps

import (
	"context"
	"sync/atomic"
	"time"
)

// ChannelStats are passive counters surfaced by a Channel for
// operational visibility. Nothing here is persisted; it is only
// queryable while the channel is open.
type ChannelStats struct {
	Sent         uint64
	Received     uint64
	LastActivity time.Time
}

// Channel abstracts one logical CAN transport: a remote ASCII-framed
// gateway, an in-process virtual bus, or a local socket-CAN device.
// A Channel enforces FIFO order on its own wire; sends from different
// channels are independent of one another.
type Channel interface {
	// Name identifies the channel for logging and error attribution.
	Name() string

	// Open establishes the underlying transport.
	Open(ctx context.Context) error

	// Send transmits a frame. It does not wait for a reply; replies
	// arrive asynchronously through Receive.
	Send(ctx context.Context, f Frame) error

	// Receive blocks until the next frame arrives, the channel is
	// closed, or ctx is cancelled.
	Receive(ctx context.Context) (Frame, error)

	// Close releases the underlying transport gracefully.
	Close() error

	// Shutdown cancels any pending Send/Receive and releases
	// resources immediately, for use during emergency teardown.
	Shutdown()

	// Stats returns a snapshot of the channel's send/receive counters.
	Stats() ChannelStats
}

// statsTracker is embedded by every Channel implementation to provide
// Stats() without duplicating the bookkeeping in each transport.
type statsTracker struct {
	sent, received atomic.Uint64
	lastActivity   atomic.Int64 // unix nanos
}

func (s *statsTracker) recordSend() {
	s.sent.Add(1)
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *statsTracker) recordReceive() {
	s.received.Add(1)
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *statsTracker) snapshot() ChannelStats {
	var last time.Time
	if n := s.lastActivity.Load(); n != 0 {
		last = time.Unix(0, n)
	}
	return ChannelStats{Sent: s.sent.Load(), Received: s.received.Load(), LastActivity: last}
}
