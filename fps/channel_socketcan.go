//go:build linux

package fps

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux SocketCAN constants not exposed by golang.org/x/sys/unix.
const (
	canRawFrameSize = 16 // sizeof(struct can_frame): id(4) + dlc(1) + pad(3) + data(8)
	canEFFFlag      = 0x80000000
	protoCANRaw     = 1 // CAN_RAW
)

// sockaddrCAN mirrors Linux's struct sockaddr_can for the bind(2) call
// (AF_CAN, ifindex, 8 reserved bytes for the transport-protocol union
// we don't use for raw frames).
type sockaddrCAN struct {
	Family  uint16
	Ifindex int32
	_       [8]byte
}

// SocketCANChannel drives a local socket-CAN interface (e.g. "can0")
// through a raw AF_CAN socket.
type SocketCANChannel struct {
	statsTracker

	name  string
	iface string

	mu     sync.Mutex
	fd     int
	closed chan struct{}
}

// NewSocketCANChannel returns a channel bound to the named Linux CAN
// interface (e.g. "can0", "vcan0") once Open is called.
func NewSocketCANChannel(name, iface string) *SocketCANChannel {
	return &SocketCANChannel{name: name, iface: iface, fd: -1}
}

func (c *SocketCANChannel) Name() string { return c.name }

func (c *SocketCANChannel) Open(ctx context.Context) error {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, protoCANRaw)
	if err != nil {
		return &BusError{Channel: c.name, Err: fmt.Errorf("socket: %w", err)}
	}

	ifi, err := net.InterfaceByName(c.iface)
	if err != nil {
		unix.Close(fd)
		return &BusError{Channel: c.name, Err: fmt.Errorf("lookup interface %q: %w", c.iface, err)}
	}

	addr := sockaddrCAN{Family: unix.AF_CAN, Ifindex: int32(ifi.Index)}
	if err := bindSockaddrCAN(fd, &addr); err != nil {
		unix.Close(fd)
		return &BusError{Channel: c.name, Err: fmt.Errorf("bind %q: %w", c.iface, err)}
	}

	c.mu.Lock()
	c.fd = fd
	c.closed = make(chan struct{})
	c.mu.Unlock()

	return nil
}

func (c *SocketCANChannel) Send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	fd := c.fd
	c.mu.Unlock()
	if fd < 0 {
		return &BusError{Channel: c.name, Err: errors.New("channel not open")}
	}

	buf := make([]byte, canRawFrameSize)
	id := f.ID
	if f.Extended {
		id |= canEFFFlag
	}
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = byte(len(f.Data))
	copy(buf[8:], f.Data)

	if _, err := unix.Write(fd, buf); err != nil {
		return &BusError{Channel: c.name, Err: err}
	}

	c.recordSend()

	return nil
}

func (c *SocketCANChannel) Receive(ctx context.Context) (Frame, error) {
	c.mu.Lock()
	fd := c.fd
	c.mu.Unlock()
	if fd < 0 {
		return Frame{}, &BusError{Channel: c.name, Err: errors.New("channel not open")}
	}

	buf := make([]byte, canRawFrameSize)

	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := unix.Read(fd, buf)
		ch <- result{n, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return Frame{}, &BusError{Channel: c.name, Err: r.err}
		}
		if r.n < canRawFrameSize {
			return Frame{}, &BusError{Channel: c.name, Err: errors.New("short CAN frame read")}
		}

		rawID := binary.LittleEndian.Uint32(buf[0:4])
		dlc := buf[4]
		if dlc > 8 {
			dlc = 8
		}

		c.recordReceive()

		return Frame{
			ID:       rawID &^ canEFFFlag,
			Extended: rawID&canEFFFlag != 0,
			Data:     append([]byte(nil), buf[8:8+dlc]...),
		}, nil
	case <-c.closed:
		return Frame{}, &BusError{Channel: c.name, Err: errors.New("channel closed")}
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (c *SocketCANChannel) Close() error {
	c.mu.Lock()
	fd := c.fd
	c.fd = -1
	c.mu.Unlock()

	if fd >= 0 {
		return unix.Close(fd)
	}

	return nil
}

func (c *SocketCANChannel) Shutdown() {
	if c.closed != nil {
		select {
		case <-c.closed:
		default:
			close(c.closed)
		}
	}
	c.Close()
}

func (c *SocketCANChannel) Stats() ChannelStats { return c.snapshot() }

func newSocketCANChannelForPlatform(name, iface string) Channel {
	return NewSocketCANChannel(name, iface)
}

func bindSockaddrCAN(fd int, addr *sockaddrCAN) error {
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(addr)), unsafe.Sizeof(*addr))
	if errno != 0 {
		return errno
	}

	return nil
}
