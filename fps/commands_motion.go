package fps

// encodeGotoPayload builds the payload shared by GO_TO_ABSOLUTE_POSITION
// and GO_TO_RELATIVE_POSITION: the target alpha and beta motor-step
// counts, four bytes each, big-endian.
func encodeGotoPayload(alphaSteps, betaSteps int32) []byte {
	payload := make([]byte, 0, 8)
	payload = append(payload, IntToBytes(int64(alphaSteps), 4, BigEndian)...)
	payload = append(payload, IntToBytes(int64(betaSteps), 4, BigEndian)...)
	return payload
}

// encodeSpeedPayload builds the SET_SPEED payload: alpha and beta RPM,
// two bytes each, big-endian.
func encodeSpeedPayload(alphaRPM, betaRPM float64) []byte {
	payload := make([]byte, 0, 4)
	payload = append(payload, IntToBytes(int64(alphaRPM), 2, BigEndian)...)
	payload = append(payload, IntToBytes(int64(betaRPM), 2, BigEndian)...)
	return payload
}

// encodeOffsetPayload builds the SET_OFFSET payload: alpha and beta
// angle offsets expressed in motor steps.
func encodeOffsetPayload(alphaSteps, betaSteps int32) []byte {
	payload := make([]byte, 0, 8)
	payload = append(payload, IntToBytes(int64(alphaSteps), 4, BigEndian)...)
	payload = append(payload, IntToBytes(int64(betaSteps), 4, BigEndian)...)
	return payload
}

// decodeOffsetReply parses a GET_OFFSET reply into raw alpha and beta
// motor-step offsets.
func decodeOffsetReply(data []byte) (alphaSteps, betaSteps int32, err error) {
	if len(data) < 8 {
		return 0, 0, &ValidationError{Reason: "offset reply payload too short"}
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

// encodeCurrentPayload builds the SET_CURRENT payload: alpha and beta
// motor current as a percentage of maximum, one byte each.
func encodeCurrentPayload(alphaPercent, betaPercent uint8) []byte {
	return []byte{alphaPercent, betaPercent}
}

// encodeHoldingCurrentPayload builds the SET_HOLDING_CURRENT payload.
func encodeHoldingCurrentPayload(alphaPercent, betaPercent uint8) []byte {
	return []byte{alphaPercent, betaPercent}
}
