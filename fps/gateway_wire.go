package fps

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// standardBitrates are the CAN bitrates recognised by the ASCII
// gateway protocol.
var standardBitrates = map[int]string{
	5000:    "5k",
	10000:   "10k",
	20000:   "20k",
	50000:   "50k",
	100000:  "100k",
	125000:  "125k",
	250000:  "250k",
	500000:  "500k",
	800000:  "800k",
	1000000: "1M",
}

// gatewayInitCommands returns the newline-terminated ASCII setup
// sequence for channel n at the given bitrate:
// INIT, FILTER CLEAR, FILTER ADD EXT (accept everything), START.
func gatewayInitCommands(n int, bitrate int) ([]string, error) {
	label, ok := standardBitrates[bitrate]
	if !ok {
		return nil, fmt.Errorf("fps: unsupported CAN bitrate %d", bitrate)
	}

	return []string{
		fmt.Sprintf("CAN %d INIT STD %s", n, label),
		fmt.Sprintf("CAN %d FILTER CLEAR", n),
		fmt.Sprintf("CAN %d FILTER ADD EXT 00000000 00000000", n),
		fmt.Sprintf("CAN %d START", n),
	}, nil
}

// encodeGatewayFrame renders f as the ASCII transmit line
// "M n CED <id-hex> <b0> .. <bk>". Channel n is always 0 in this
// implementation: one Channel owns exactly one gateway bus index.
func encodeGatewayFrame(n int, f Frame) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "M %d CED %08X", n, f.ID)
	for _, b := range f.Data {
		fmt.Fprintf(&sb, " %02X", b)
	}

	return sb.String()
}

// decodeGatewayFrame parses an ASCII receive line of the same form
// back into a Frame. Lines that are not data frames (e.g. gateway
// status echoes) return ok=false with no error.
func decodeGatewayFrame(line string) (f Frame, ok bool, err error) {
	fields := strings.Fields(line)
	if len(fields) < 4 || fields[0] != "M" {
		return Frame{}, false, nil
	}
	if len(fields[2]) < 3 || fields[2][0] != 'C' || fields[2][1] != 'E' {
		return Frame{}, false, nil
	}

	// fields: "M", "<n>", "CEx", "<id-hex>", "<b0>", ...
	idHex := fields[3]

	id, err := strconv.ParseUint(idHex, 16, 32)
	if err != nil {
		return Frame{}, false, fmt.Errorf("fps: malformed gateway id %q: %w", idHex, err)
	}

	var data []byte
	for _, bs := range fields[4:] {
		b, err := strconv.ParseUint(bs, 16, 8)
		if err != nil {
			return Frame{}, false, fmt.Errorf("fps: malformed gateway byte %q: %w", bs, err)
		}
		data = append(data, byte(b))
	}

	if len(data) > 8 {
		return Frame{}, false, fmt.Errorf("fps: gateway frame payload of %d bytes exceeds 8", len(data))
	}

	return Frame{ID: uint32(id), Extended: true, Data: data}, true, nil
}

// readGatewayLine reads one newline-terminated ASCII line, the way the
// gateway assembles bytes until a newline.
func readGatewayLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}
