package fps

// Calibration commands (START_DATUM_CALIBRATION, START_MOTOR_CALIBRATION,
// START_COGGING_CALIBRATION, SAVE_INTERNAL_CALIBRATION, the CLEAR_*
// variants) carry no payload; the opcode alone is the instruction. They
// are listed here, rather than left to call sites, so every calibration
// opcode's framing lives in one place.

// encodeHallDisablePayload builds the SET_HALL_DISABLE payload: one
// byte per axis, nonzero to disable the Hall sensor on that axis.
func encodeHallDisablePayload(alphaDisable, betaDisable bool) []byte {
	b := func(v bool) byte {
		if v {
			return 1
		}
		return 0
	}
	return []byte{b(alphaDisable), b(betaDisable)}
}

// encodePrecisionMoveTimePayload builds the SET_PRECISION_MOVE_TIME
// payload: the precision-move duration in milliseconds, big-endian.
func encodePrecisionMoveTimePayload(durationMS uint16) []byte {
	return IntToBytes(int64(durationMS), 2, BigEndian)
}

// decodePrecisionMoveTimeReply parses a GET_PRECISION_MOVE_TIME reply.
func decodePrecisionMoveTimeReply(data []byte) (durationMS uint16, err error) {
	if len(data) < 2 {
		return 0, &ValidationError{Reason: "precision move time reply payload too short"}
	}
	u, err := BytesToInt(data[:2], BigEndian)
	if err != nil {
		return 0, err
	}
	return uint16(u), nil
}
