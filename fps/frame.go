package fps

import "fmt"

// Frame is a single 8-byte-payload extended CAN frame.
type Frame struct {
	ID       uint32
	Extended bool
	Data     []byte // 0..8 bytes
}

// NewFrame builds a Frame from a positioner id, opcode, and
// response/tag byte, validating the payload length.
func NewFrame(positionerID int, opcode Opcode, responseOrTag uint8, data []byte) (Frame, error) {
	if len(data) > 8 {
		return Frame{}, fmt.Errorf("fps: frame payload of %d bytes exceeds 8", len(data))
	}

	id, err := EncodeIdentifier(positionerID, opcode, responseOrTag)
	if err != nil {
		return Frame{}, err
	}

	return Frame{ID: id, Extended: true, Data: append([]byte(nil), data...)}, nil
}

// PositionerID returns the frame's decoded positioner id field.
func (f Frame) PositionerID() int {
	pid, _, _, _ := DecodeIdentifier(f.ID)
	return pid
}

// Opcode returns the frame's decoded opcode field.
func (f Frame) Opcode() Opcode {
	_, op, _, _ := DecodeIdentifier(f.ID)
	return op
}

// ResponseOrTag returns the frame's decoded low byte. The device
// echoes this value unchanged in its reply, so it is always the
// correlation tag, on a request frame and on the matching reply alike.
func (f Frame) ResponseOrTag() uint8 {
	_, _, r, _ := DecodeIdentifier(f.ID)
	return r
}

// replyResponseCode extracts an explicit accept/reject code from a
// reply frame's payload, for the opcodes that have no data of their
// own to return (set/move/calibration commands): those devices reply
// with a single payload byte carrying a ResponseCode. A reply carrying
// more than one payload byte is real data, not a response code, and
// isAck is false.
func replyResponseCode(f Frame) (code ResponseCode, isAck bool) {
	if len(f.Data) != 1 {
		return 0, false
	}
	return ResponseCode(f.Data[0]), true
}

func (f Frame) String() string {
	pid, op, r, err := DecodeIdentifier(f.ID)
	if err != nil {
		return fmt.Sprintf("Frame{invalid id=%#x}", f.ID)
	}
	return fmt.Sprintf("Frame{pid=%d op=%s tag/resp=%d data=% x}", pid, op, r, f.Data)
}
