package fps

import (
	"encoding/binary"
	"fmt"
)

// Endian selects byte order for the integer conversion helpers. The
// bus wire contract is big-endian unless a command overrides it;
// native-endian input is never accepted.
type Endian int

const (
	BigEndian Endian = iota
	LittleEndian
)

// IntToBytes renders v as a two's-complement integer of the given
// byte width (1, 2, or 4) in the requested byte order. It panics on an
// unsupported width, since the width is always a compile-time constant
// chosen by the caller, not caller-supplied data.
func IntToBytes(v int64, width int, order Endian) []byte {
	buf := make([]byte, width)

	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		putUint(buf, uint64(uint16(v)), order)
	case 4:
		putUint(buf, uint64(uint32(v)), order)
	default:
		panic(fmt.Sprintf("fps: unsupported integer width %d", width))
	}

	return buf
}

func putUint(buf []byte, v uint64, order Endian) {
	switch len(buf) {
	case 2:
		if order == BigEndian {
			binary.BigEndian.PutUint16(buf, uint16(v))
		} else {
			binary.LittleEndian.PutUint16(buf, uint16(v))
		}
	case 4:
		if order == BigEndian {
			binary.BigEndian.PutUint32(buf, uint32(v))
		} else {
			binary.LittleEndian.PutUint32(buf, uint32(v))
		}
	}
}

// BytesToInt is the inverse of IntToBytes: it parses an unsigned
// integer in the given byte order, taking its width from len(b), which
// must be 1, 2, or 4.
func BytesToInt(b []byte, order Endian) (uint64, error) {
	switch len(b) {
	case 1:
		return uint64(b[0]), nil
	case 2:
		if order == BigEndian {
			return uint64(binary.BigEndian.Uint16(b)), nil
		}
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		if order == BigEndian {
			return uint64(binary.BigEndian.Uint32(b)), nil
		}
		return uint64(binary.LittleEndian.Uint32(b)), nil
	default:
		return 0, fmt.Errorf("fps: unsupported byte slice length %d", len(b))
	}
}

// BytesToInt32Signed parses a 4-byte two's-complement signed integer,
// the wire representation used for motor-step quantities.
func BytesToInt32Signed(b []byte, order Endian) (int32, error) {
	u, err := BytesToInt(b, order)
	if err != nil {
		return 0, err
	}

	return int32(uint32(u)), nil
}

// degreesToSteps converts an angle in degrees to a motor-step count
// using the configured steps-per-revolution constant. Callers should
// always go through this function rather than a hard-coded constant,
// since motor-steps-per-revolution varies by gearbox.
func degreesToSteps(degrees float64, motorSteps int) int32 {
	return int32(degrees / 360.0 * float64(motorSteps))
}

// stepsToDegrees is the inverse of degreesToSteps.
func stepsToDegrees(steps int32, motorSteps int) float64 {
	return float64(steps) / float64(motorSteps) * 360.0
}
