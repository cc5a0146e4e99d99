package fps

// trajectoryPoint is one sample of a positioner's commanded path: an
// angle and the duration, in milliseconds, of the segment leading up
// to it.
type trajectoryPoint struct {
	AngleSteps int32
	DurationMS uint32
}

// encodeTrajectoryPointPayload builds a SEND_TRAJECTORY_DATA_ALPHA or
// _BETA payload: the angle in motor steps followed by the segment
// duration in milliseconds, filling the frame's full eight payload
// bytes. The per-command correlation tag the registry allocates for
// this frame doubles as the point's sequence number, so the device can
// detect a dropped frame without a dedicated sequence byte.
func encodeTrajectoryPointPayload(p trajectoryPoint) []byte {
	payload := make([]byte, 0, 8)
	payload = append(payload, IntToBytes(int64(p.AngleSteps), 4, BigEndian)...)
	payload = append(payload, IntToBytes(int64(p.DurationMS), 4, BigEndian)...)
	return payload
}

// decodeTrajectoryDataEndReply extracts the accept/reject code from a
// SEND_TRAJECTORY_DATA_END reply's single-byte payload.
func decodeTrajectoryDataEndReply(f Frame) (code ResponseCode, ok bool) {
	return replyResponseCode(f)
}
