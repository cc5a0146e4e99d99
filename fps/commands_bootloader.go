package fps

import "fmt"

// bootloaderChunkSize is the maximum number of firmware-image bytes
// carried by one BOOTLOADER_SEND_FIRMWARE_DATA frame: the CAN payload
// minus the one-byte sequence tag this module prepends to detect gaps.
const bootloaderChunkSize = 7

// encodeBootloaderStartPayload builds the
// BOOTLOADER_START_FIRMWARE_UPGRADE payload: the total firmware image
// size in bytes, big-endian.
func encodeBootloaderStartPayload(imageSize uint32) []byte {
	return IntToBytes(int64(imageSize), 4, BigEndian)
}

// encodeBootloaderChunkPayload builds one
// BOOTLOADER_SEND_FIRMWARE_DATA payload: a sequence tag followed by up
// to bootloaderChunkSize bytes of firmware image.
func encodeBootloaderChunkPayload(seq uint8, chunk []byte) ([]byte, error) {
	if len(chunk) > bootloaderChunkSize {
		return nil, fmt.Errorf("fps: bootloader chunk of %d bytes exceeds %d", len(chunk), bootloaderChunkSize)
	}

	payload := make([]byte, 0, 1+len(chunk))
	payload = append(payload, seq)
	payload = append(payload, chunk...)

	return payload, nil
}

// decodeBootloaderFirmwareVersionReply parses a
// BOOTLOADER_GET_FIRMWARE_VERSION reply into a major.minor.patch
// triplet.
func decodeBootloaderFirmwareVersionReply(data []byte) (major, minor, patch int, err error) {
	if len(data) < 3 {
		return 0, 0, 0, fmt.Errorf("fps: bootloader firmware version reply payload too short: %d bytes", len(data))
	}

	return int(data[0]), int(data[1]), int(data[2]), nil
}
