package fps

// State is the coarse lifecycle state of a positioner, derived from its
// current StatusFlag bits, whether it has been seen, whether it is in
// its bootloader, and the opcode holding its move lock; the firmware
// version is not consulted. A Positioner never stores a State directly;
// DeriveState is called fresh every time one is needed, so the two can
// never drift apart.
type State int

const (
	StateOffline State = iota
	StateUnknown
	StateInitialized
	StateBootloader
	StateMoving
	StateCollided
	StateCalibrating
	StateReady
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "OFFLINE"
	case StateUnknown:
		return "UNKNOWN"
	case StateInitialized:
		return "INITIALIZED"
	case StateBootloader:
		return "BOOTLOADER"
	case StateMoving:
		return "MOVING"
	case StateCollided:
		return "COLLIDED"
	case StateCalibrating:
		return "CALIBRATING"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// calibratingOpcodes is the set of move commands that put a positioner
// into StateCalibrating rather than StateMoving while in flight.
var calibratingOpcodes = map[Opcode]bool{
	OpStartDatumCalibration:   true,
	OpStartMotorCalibration:   true,
	OpStartCoggingCalibration: true,
}

// DeriveState computes a positioner's coarse state. seen is false for a
// positioner with no status or firmware-version reply recorded yet;
// inBootloader
// reflects whether the last GET_STATUS reply arrived on the bootloader
// wire format rather than the application one; activeOpcode is the
// move-lock-holding opcode, or zero if none is in flight.
func DeriveState(seen bool, status StatusFlag, inBootloader bool, activeOpcode Opcode) State {
	if !seen {
		return StateOffline
	}

	if inBootloader {
		return StateBootloader
	}

	if status.Any(StatusCollisionAlpha | StatusCollisionBeta) {
		return StateCollided
	}

	if status.Any(StatusUnknown) {
		return StateUnknown
	}

	if !status.Has(StatusSystemInitialized) {
		return StateInitialized
	}

	if activeOpcode != 0 {
		if calibratingOpcodes[activeOpcode] {
			return StateCalibrating
		}
		return StateMoving
	}

	if status.Has(StatusReceivingTrajectory) {
		return StateMoving
	}

	return StateReady
}

// firmwareSupportsState reports whether a firmware version triplet is
// new enough to report StatusUnknown/COLLISION bits reliably. Older
// firmware left those bits permanently clear, so a controller talking
// to one must not treat their absence as a health signal.
func firmwareSupportsState(major, minor, patch int) bool {
	if major != 0 {
		return true
	}
	if minor > 0 {
		return true
	}
	return minor == 0 && patch >= 1
}
