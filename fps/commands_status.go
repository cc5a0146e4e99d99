package fps

import "fmt"

// decodeStatusReply parses a GET_STATUS reply payload into its 32-bit
// maskbit set.
func decodeStatusReply(data []byte) (StatusFlag, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("fps: status reply payload too short: %d bytes", len(data))
	}

	u, err := BytesToInt(data[:4], BigEndian)
	if err != nil {
		return 0, err
	}

	return StatusFlag(u), nil
}

// decodeBootloaderStatusReply parses a GET_STATUS reply received while
// a positioner is running its bootloader image.
func decodeBootloaderStatusReply(data []byte) (BootloaderFlag, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("fps: bootloader status reply payload too short: %d bytes", len(data))
	}

	u, err := BytesToInt(data[:4], BigEndian)
	if err != nil {
		return 0, err
	}

	return BootloaderFlag(u), nil
}

// decodeFirmwareVersionReply parses a GET_FIRMWARE_VERSION reply into
// a major.minor.patch triplet, one byte each.
func decodeFirmwareVersionReply(data []byte) (major, minor, patch int, err error) {
	if len(data) < 3 {
		return 0, 0, 0, fmt.Errorf("fps: firmware version reply payload too short: %d bytes", len(data))
	}

	return int(data[0]), int(data[1]), int(data[2]), nil
}

// decodePositionReply parses a GET_ACTUAL_POSITION reply into the raw
// alpha and beta motor-step counts.
func decodePositionReply(data []byte) (alphaSteps, betaSteps int32, err error) {
	if len(data) < 8 {
		return 0, 0, fmt.Errorf("fps: position reply payload too short: %d bytes", len(data))
	}

	a, err := BytesToInt32Signed(data[0:4], BigEndian)
	if err != nil {
		return 0, 0, err
	}
	b, err := BytesToInt32Signed(data[4:8], BigEndian)
	if err != nil {
		return 0, 0, err
	}

	return a, b, nil
}

// encodeSetActualPositionPayload builds the payload for
// SET_ACTUAL_POSITION / SET_CURRENT_POSITION: the raw alpha and beta
// motor-step counts the positioner should now believe it is at.
func encodeSetActualPositionPayload(alphaSteps, betaSteps int32) []byte {
	payload := make([]byte, 0, 8)
	payload = append(payload, IntToBytes(int64(alphaSteps), 4, BigEndian)...)
	payload = append(payload, IntToBytes(int64(betaSteps), 4, BigEndian)...)
	return payload
}

// decodePositionerInfoReply parses a GET_POSITIONER_INFO reply: the
// firmware triplet followed by a one-byte hardware revision.
func decodePositionerInfoReply(data []byte) (major, minor, patch, hardwareRev int, err error) {
	if len(data) < 4 {
		return 0, 0, 0, 0, fmt.Errorf("fps: positioner info reply payload too short: %d bytes", len(data))
	}

	return int(data[0]), int(data[1]), int(data[2]), int(data[3]), nil
}
