package fps

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/creack/pty"
)

// NewPTYLoopback opens a pseudo-terminal pair and returns two Channels
// that exchange frames as ASCII gateway lines across it, for
// integration-style tests of the byte-stream framing without a real
// serial device.
func NewPTYLoopback(name string) (a, b Channel, cleanup func(), err error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, nil, nil, err
	}

	chA := &ptyChannel{name: name + "-master", rw: master, reader: bufio.NewReader(master)}
	chB := &ptyChannel{name: name + "-slave", rw: slave, reader: bufio.NewReader(slave)}

	cleanup = func() {
		master.Close()
		slave.Close()
	}

	return chA, chB, cleanup, nil
}

// ptyChannel is one end of a pty pair, framing gateway ASCII lines.
type ptyChannel struct {
	statsTracker

	name string

	mu     sync.Mutex
	rw     io.ReadWriteCloser
	reader *bufio.Reader
	closed bool
}

func (c *ptyChannel) Name() string { return c.name }

func (c *ptyChannel) Open(ctx context.Context) error { return nil }

func (c *ptyChannel) Send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &BusError{Channel: c.name, Err: errors.New("channel closed")}
	}

	line := encodeGatewayFrame(0, f)
	if _, err := io.WriteString(c.rw, line+"\n"); err != nil {
		return &BusError{Channel: c.name, Err: err}
	}

	c.recordSend()

	return nil
}

func (c *ptyChannel) Receive(ctx context.Context) (Frame, error) {
	for {
		c.mu.Lock()
		closed := c.closed
		reader := c.reader
		c.mu.Unlock()
		if closed {
			return Frame{}, &BusError{Channel: c.name, Err: errors.New("channel closed")}
		}

		line, err := readGatewayLine(reader)
		if err != nil {
			return Frame{}, &BusError{Channel: c.name, Err: err}
		}

		frame, ok, err := decodeGatewayFrame(line)
		if err != nil || !ok {
			continue
		}

		c.recordReceive()

		return frame, nil
	}
}

func (c *ptyChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	return c.rw.Close()
}

func (c *ptyChannel) Shutdown() { c.Close() }

func (c *ptyChannel) Stats() ChannelStats { return c.snapshot() }
