package fps

import (
	"context"
	"errors"
	"sync"
)

// VirtualBus is an in-process multi-drop bus used for tests and for
// exercising the array controller without hardware. It delivers a copy
// of every sent frame to all other attached channels and to none of
// the sender's own receivers.
type VirtualBus struct {
	mu      sync.Mutex
	members map[*VirtualChannel]struct{}
}

// NewVirtualBus creates an empty bus. Attach channels with Attach.
func NewVirtualBus() *VirtualBus {
	return &VirtualBus{members: make(map[*VirtualChannel]struct{})}
}

// Attach creates and registers a new channel on the bus.
func (b *VirtualBus) Attach(name string) *VirtualChannel {
	ch := &VirtualChannel{
		name: name,
		bus:  b,
		rx:   make(chan Frame, 256),
	}

	b.mu.Lock()
	b.members[ch] = struct{}{}
	b.mu.Unlock()

	return ch
}

func (b *VirtualBus) detach(ch *VirtualChannel) {
	b.mu.Lock()
	delete(b.members, ch)
	b.mu.Unlock()
}

// deliver fans f out to every attached channel other than sender, in
// submission order from the sender's perspective. The bus is FIFO per
// sender because VirtualChannel.Send holds sendMu for the duration of
// the fan-out.
func (b *VirtualBus) deliver(sender *VirtualChannel, f Frame) {
	b.mu.Lock()
	targets := make([]*VirtualChannel, 0, len(b.members))
	for ch := range b.members {
		if ch != sender {
			targets = append(targets, ch)
		}
	}
	b.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch.rx <- f:
		default:
			// Receiver isn't draining fast enough; drop rather than
			// block the whole bus, mirroring a real wire's inability
			// to apply back-pressure to other nodes.
		}
	}
}

// VirtualChannel is one attachment point on a VirtualBus.
type VirtualChannel struct {
	statsTracker

	name string
	bus  *VirtualBus
	rx   chan Frame

	sendMu sync.Mutex
	closed chan struct{}
	once   sync.Once
}

func (c *VirtualChannel) Name() string { return c.name }

func (c *VirtualChannel) Open(ctx context.Context) error {
	c.once.Do(func() { c.closed = make(chan struct{}) })
	return nil
}

func (c *VirtualChannel) Send(ctx context.Context, f Frame) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	select {
	case <-c.closed:
		return &BusError{Channel: c.name, Err: errors.New("channel closed")}
	default:
	}

	c.bus.deliver(c, f)
	c.recordSend()

	return nil
}

func (c *VirtualChannel) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-c.rx:
		c.recordReceive()
		return f, nil
	case <-c.closed:
		return Frame{}, &BusError{Channel: c.name, Err: errors.New("channel closed")}
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (c *VirtualChannel) Close() error {
	c.Shutdown()
	return nil
}

func (c *VirtualChannel) Shutdown() {
	c.bus.detach(c)
	c.once.Do(func() { c.closed = make(chan struct{}) })
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

func (c *VirtualChannel) Stats() ChannelStats { return c.snapshot() }
