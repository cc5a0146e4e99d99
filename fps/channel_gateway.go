package fps

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/pkg/term"
)

// GatewayChannel drives the ASCII-framed CAN-to-serial gateway
// protocol over a real serial device: a line-oriented interface where
// each outbound and inbound frame is one newline-terminated line of
// hex fields.
type GatewayChannel struct {
	statsTracker

	name    string
	device  string
	bitrate int
	busNum  int

	mu     sync.Mutex
	port   io.ReadWriteCloser
	reader *bufio.Reader

	rx     chan Frame
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

// NewGatewayChannel returns a channel that will open device (e.g.
// "/dev/ttyUSB0") at the given CAN bitrate once Open is called.
func NewGatewayChannel(name, device string, bitrate int) *GatewayChannel {
	return &GatewayChannel{
		name:    name,
		device:  device,
		bitrate: bitrate,
		rx:      make(chan Frame, 256),
		errs:    make(chan error, 1),
	}
}

func (c *GatewayChannel) Name() string { return c.name }

func (c *GatewayChannel) Open(ctx context.Context) error {
	port, err := term.Open(c.device, term.Speed(115200), term.RawMode)
	if err != nil {
		return &BusError{Channel: c.name, Err: err}
	}

	c.mu.Lock()
	c.port = port
	c.reader = bufio.NewReader(port)
	c.mu.Unlock()

	cmds, err := gatewayInitCommands(c.busNum, c.bitrate)
	if err != nil {
		port.Close()
		return err
	}
	for _, cmd := range cmds {
		if _, err := io.WriteString(port, cmd+"\n"); err != nil {
			port.Close()
			return &BusError{Channel: c.name, Err: err}
		}
	}

	c.once.Do(func() {
		c.closed = make(chan struct{})
		go c.readLoop()
	})

	return nil
}

// readLoop assembles bytes until a newline and feeds decoded frames to
// rx, preserving the gateway's own FIFO order on this channel's wire.
func (c *GatewayChannel) readLoop() {
	for {
		c.mu.Lock()
		reader := c.reader
		c.mu.Unlock()
		if reader == nil {
			return
		}

		line, err := readGatewayLine(reader)
		if err != nil {
			select {
			case c.errs <- &BusError{Channel: c.name, Err: err}:
			default:
			}
			return
		}

		frame, ok, err := decodeGatewayFrame(line)
		if err != nil {
			// Malformed line: log would go here via the shared
			// telemetry logger; the frame is simply dropped.
			continue
		}
		if !ok {
			continue
		}

		c.recordReceive()

		select {
		case c.rx <- frame:
		case <-c.closed:
			return
		}
	}
}

func (c *GatewayChannel) Send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	port := c.port
	c.mu.Unlock()

	if port == nil {
		return &BusError{Channel: c.name, Err: errors.New("channel not open")}
	}

	line := encodeGatewayFrame(c.busNum, f)
	if _, err := io.WriteString(port, line+"\n"); err != nil {
		return &BusError{Channel: c.name, Err: err}
	}

	c.recordSend()

	return nil
}

func (c *GatewayChannel) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-c.rx:
		return f, nil
	case err := <-c.errs:
		return Frame{}, err
	case <-c.closed:
		return Frame{}, &BusError{Channel: c.name, Err: errors.New("channel closed")}
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (c *GatewayChannel) Close() error {
	c.mu.Lock()
	port := c.port
	c.port = nil
	c.mu.Unlock()

	if port != nil {
		return port.Close()
	}

	return nil
}

func (c *GatewayChannel) Shutdown() {
	if c.closed != nil {
		select {
		case <-c.closed:
		default:
			close(c.closed)
		}
	}
	c.Close()
}

func (c *GatewayChannel) Stats() ChannelStats { return c.snapshot() }
