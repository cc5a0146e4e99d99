//go:build !linux

package fps

import (
	"context"
	"errors"
)

// unsupportedChannel returns a BusError from Open, Send and Receive;
// Close and Shutdown do nothing. It stands in for SocketCANChannel on
// platforms without AF_CAN.
type unsupportedChannel struct {
	statsTracker
	name string
}

func newSocketCANChannelForPlatform(name, iface string) Channel {
	return &unsupportedChannel{name: name}
}

func (c *unsupportedChannel) Name() string { return c.name }

func (c *unsupportedChannel) Open(ctx context.Context) error {
	return &BusError{Channel: c.name, Err: errors.New("socket-CAN is only supported on linux")}
}

func (c *unsupportedChannel) Send(ctx context.Context, f Frame) error {
	return &BusError{Channel: c.name, Err: errors.New("socket-CAN is only supported on linux")}
}

func (c *unsupportedChannel) Receive(ctx context.Context) (Frame, error) {
	return Frame{}, &BusError{Channel: c.name, Err: errors.New("socket-CAN is only supported on linux")}
}

func (c *unsupportedChannel) Close() error { return nil }

func (c *unsupportedChannel) Shutdown() {}

func (c *unsupportedChannel) Stats() ChannelStats { return c.snapshot() }
